// Package camera talks to a digiCamControl webserver for tethered
// capture and live view. It is independent of the job pipeline.
package camera

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL     string
	previewPath string
	captureCmd  string
	httpClient  *http.Client
}

func NewClient(baseURL, previewPath, captureCmd string) *Client {
	return &Client{
		baseURL:     baseURL,
		previewPath: previewPath,
		captureCmd:  captureCmd,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) buildURL(pathOrQuery string) string {
	if strings.HasPrefix(pathOrQuery, "http://") || strings.HasPrefix(pathOrQuery, "https://") {
		return pathOrQuery
	}
	return strings.TrimSuffix(c.baseURL, "/") + pathOrQuery
}

// TriggerCapture asks digiCamControl to take a photo.
func (c *Client) TriggerCapture() error {
	resp, err := c.httpClient.Get(c.buildURL(c.captureCmd))
	if err != nil {
		return fmt.Errorf("failed to trigger capture: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("capture command failed: status %d", resp.StatusCode)
	}
	return nil
}

// GetPreviewImage fetches the current live-view frame.
func (c *Client) GetPreviewImage() ([]byte, string, error) {
	resp, err := c.httpClient.Get(c.buildURL(c.previewPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to get preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("preview request failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read preview body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}
