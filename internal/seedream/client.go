// Package seedream is a thin client for the BytePlus Ark image
// generation API (Seedream image-to-image models).
package seedream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Image          string `json:"image"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	Watermark      bool   `json:"watermark"`
}

type generateResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// Generate runs one image-to-image generation and returns the URL of
// the remote result image.
func (c *Client) Generate(prompt, imageDataURL, size string, watermark bool) (string, error) {
	reqBody := generateRequest{
		Model:          c.model,
		Prompt:         prompt,
		Image:          imageDataURL,
		Size:           size,
		ResponseFormat: "url",
		Watermark:      watermark,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/images/generations"
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	if result.Error != nil {
		return "", fmt.Errorf("generation failed: %s: %s", result.Error.Code, result.Error.Message)
	}
	if len(result.Data) == 0 || result.Data[0].URL == "" {
		return "", fmt.Errorf("generation returned no image url, body: %s", string(body))
	}

	return result.Data[0].URL, nil
}

const (
	downloadAttempts   = 5
	downloadMaxBackoff = 10 * time.Second
)

// DownloadToFile streams a remote image into outDir under a fresh
// uuid-hex name and returns the path of the written file, retrying up
// to 5 times with exponential backoff (capped at 10s) and removing any
// partial file between attempts. logf receives one progress line per
// checkpoint; it may be nil.
func (c *Client) DownloadToFile(url, outDir, ext string, logf func(format string, args ...interface{})) (string, error) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	filename := strings.ReplaceAll(uuid.New().String(), "-", "") + ext
	outPath := filepath.Join(outDir, filename)

	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		logf("download attempt %d/%d", attempt, downloadAttempts)

		lastErr = c.downloadOnce(url, outPath)
		if lastErr == nil {
			logf("download completed -> %s", filename)
			return outPath, nil
		}

		os.Remove(outPath)

		if attempt < downloadAttempts {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			if backoff > downloadMaxBackoff {
				backoff = downloadMaxBackoff
			}
			logf("download attempt %d/%d failed: %v (retry in %s)", attempt, downloadAttempts, lastErr, backoff)
			time.Sleep(backoff)
		}
	}

	return "", fmt.Errorf("download failed after %d attempts: %w", downloadAttempts, lastErr)
}

func (c *Client) downloadOnce(url, outPath string) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to stream body: %w", err)
	}

	return nil
}

// RetryWithBackoff executes a function with exponential backoff retry logic
func (c *Client) RetryWithBackoff(fn func() error, maxRetries int) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if i < len(backoffs) {
			time.Sleep(backoffs[i])
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
