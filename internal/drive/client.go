// Package drive integrates with Google Drive: OAuth token handling,
// file uploads with public links, and the per-job sync service.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Credential status values reported by Status.
const (
	StatusMissingToken         = "missing_token"
	StatusInvalidTokenFile     = "invalid_token_file"
	StatusExpiredNoRefresh     = "expired_no_refresh_token"
	StatusRefreshFailed        = "refresh_failed"
	StatusUnauthorized         = "unauthorized"
	StatusAuthorized           = "authorized"
)

type CredentialStatus struct {
	OK              bool   `json:"ok"`
	Status          string `json:"status"`
	Message         string `json:"message"`
	Expiry          string `json:"expiry,omitempty"`
	HasRefreshToken bool   `json:"has_refresh_token"`
	Refreshed       bool   `json:"refreshed"`
	CheckedAt       string `json:"checked_at"`
}

// Uploaded describes one file pushed to Drive with shareable links.
type Uploaded struct {
	FileID       string `json:"file_id"`
	Name         string `json:"name"`
	DriveLink    string `json:"drive_link"`
	DownloadLink string `json:"download_link"`
}

type Client struct {
	tokenFile   string
	secretsFile string
	folderID    string
}

func NewClient(tokenFile, secretsFile, folderID string) *Client {
	return &Client{
		tokenFile:   tokenFile,
		secretsFile: secretsFile,
		folderID:    folderID,
	}
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.tokenFile)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenFile), 0o755); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	return os.WriteFile(c.tokenFile, data, 0o600)
}

func (c *Client) oauthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(c.secretsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, gdrive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets: %w", err)
	}
	return cfg, nil
}

// tokenSource builds a refreshing token source that persists any
// refreshed token back to the token file.
func (c *Client) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	token, err := c.loadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	cfg, err := c.oauthConfig()
	if err != nil {
		return nil, err
	}

	return &persistingTokenSource{
		client: c,
		last:   token,
		source: cfg.TokenSource(ctx, token),
	}, nil
}

type persistingTokenSource struct {
	client *Client
	last   *oauth2.Token
	source oauth2.TokenSource
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.source.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != p.last.AccessToken {
		p.last = token
		// best-effort: a stale token file only costs a refresh later
		_ = p.client.saveToken(token)
	}
	return token, nil
}

func (c *Client) service(ctx context.Context) (*gdrive.Service, error) {
	ts, err := c.tokenSource(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gdrive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to build drive service: %w", err)
	}
	return svc, nil
}

// Upload pushes one local file to the configured folder, makes it
// link-shareable, and resolves view/download links with constructed
// fallbacks when the API omits them.
func (c *Client) Upload(ctx context.Context, localPath string) (*Uploaded, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	meta := &gdrive.File{Name: filepath.Base(localPath)}
	if c.folderID != "" {
		meta.Parents = []string{c.folderID}
	}

	call := svc.Files.Create(meta).Fields("id, name, webViewLink, webContentLink").Context(ctx)
	if mimeType := mime.TypeByExtension(filepath.Ext(localPath)); mimeType != "" {
		call = call.Media(f, googleapi.ContentType(mimeType))
	} else {
		call = call.Media(f)
	}

	created, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("drive upload failed: %w", err)
	}
	if created.Id == "" {
		return nil, fmt.Errorf("drive upload failed: missing file id")
	}

	_, err = svc.Permissions.Create(created.Id, &gdrive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to make file public: %w", err)
	}

	info, err := svc.Files.Get(created.Id).Fields("id, name, webViewLink, webContentLink").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read file links: %w", err)
	}

	driveLink := info.WebViewLink
	if driveLink == "" {
		driveLink = info.WebContentLink
	}
	if driveLink == "" {
		driveLink = fmt.Sprintf("https://drive.google.com/file/d/%s/view?usp=sharing", created.Id)
	}

	downloadLink := info.WebContentLink
	if downloadLink == "" {
		downloadLink = fmt.Sprintf("https://drive.google.com/uc?id=%s&export=download", created.Id)
	}

	name := info.Name
	if name == "" {
		name = filepath.Base(localPath)
	}

	return &Uploaded{
		FileID:       created.Id,
		Name:         name,
		DriveLink:    driveLink,
		DownloadLink: downloadLink,
	}, nil
}

// Status inspects the local token state without performing any Drive
// operation, attempting a silent refresh when possible.
func (c *Client) Status(ctx context.Context) CredentialStatus {
	checkedAt := time.Now().UTC().Format(time.RFC3339)

	if _, err := os.Stat(c.tokenFile); err != nil {
		return CredentialStatus{
			Status:    StatusMissingToken,
			Message:   "Google Drive token not found. Please authorize Google Drive first.",
			CheckedAt: checkedAt,
		}
	}

	token, err := c.loadToken()
	if err != nil {
		return CredentialStatus{
			Status:    StatusInvalidTokenFile,
			Message:   "Google Drive token file is invalid. Re-authorize Google Drive.",
			CheckedAt: checkedAt,
		}
	}

	expiry := ""
	if !token.Expiry.IsZero() {
		expiry = token.Expiry.UTC().Format(time.RFC3339)
	}
	hasRefresh := token.RefreshToken != ""

	if token.Valid() {
		return CredentialStatus{
			OK:              true,
			Status:          StatusAuthorized,
			Message:         "Google Drive is authorized.",
			Expiry:          expiry,
			HasRefreshToken: hasRefresh,
			CheckedAt:       checkedAt,
		}
	}

	if hasRefresh {
		cfg, err := c.oauthConfig()
		if err == nil {
			refreshed, refreshErr := cfg.TokenSource(ctx, token).Token()
			if refreshErr == nil {
				_ = c.saveToken(refreshed)
				newExpiry := ""
				if !refreshed.Expiry.IsZero() {
					newExpiry = refreshed.Expiry.UTC().Format(time.RFC3339)
				}
				return CredentialStatus{
					OK:              true,
					Status:          StatusAuthorized,
					Message:         "Google Drive is authorized.",
					Expiry:          newExpiry,
					HasRefreshToken: true,
					Refreshed:       true,
					CheckedAt:       checkedAt,
				}
			}
			err = refreshErr
		}
		return CredentialStatus{
			Status:          StatusRefreshFailed,
			Message:         fmt.Sprintf("Google Drive token refresh failed: %v", err),
			Expiry:          expiry,
			HasRefreshToken: true,
			CheckedAt:       checkedAt,
		}
	}

	if !token.Expiry.IsZero() {
		return CredentialStatus{
			Status:    StatusExpiredNoRefresh,
			Message:   "Google Drive token is expired and missing refresh token. Re-authorize required.",
			Expiry:    expiry,
			CheckedAt: checkedAt,
		}
	}

	return CredentialStatus{
		Status:    StatusUnauthorized,
		Message:   "Google Drive is not authorized. Re-authorize required.",
		Expiry:    expiry,
		CheckedAt: checkedAt,
	}
}
