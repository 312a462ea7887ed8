package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Seedream (BytePlus Ark) generation API
	ArkBaseURL        string
	ArkAPIKey         string
	SeedreamModel     string
	SeedreamSize      string
	SeedreamWatermark bool

	// Google Drive
	DriveTokenFile         string
	DriveClientSecretsFile string
	DriveFolderID          string
	DriveManifestFile      string
	DriveUploadCompressed  bool

	// digiCamControl webserver
	DigicamBaseURL     string
	DigicamPreviewPath string
	DigicamCaptureCmd  string
	DigicamOriginalDir string

	// Database
	DatabaseURL string

	// Pipeline
	Workers         int
	QueueSize       int
	JobTimeout      time.Duration
	CompressQuality int
	CompressDPI     int

	// Maintenance / reporting
	CleanupPassword string
	EventTimezone   string

	// Server
	Port           string
	Environment    string
	BaseURL        string
	AdminJWTSecret string
	StaticDir      string
}

func Load() (*Config, error) {
	cfg := &Config{
		ArkBaseURL:        getEnv("ARK_BASE_URL", "https://ark.ap-southeast.bytepluses.com/api/v3"),
		ArkAPIKey:         getEnv("ARK_API_KEY", ""),
		SeedreamModel:     getEnv("SEEDREAM_MODEL", "seedream-4-5-251128"),
		SeedreamSize:      getEnv("SEEDREAM_SIZE", "2400x3600"),
		SeedreamWatermark: getEnvBool("SEEDREAM_WATERMARK", true),

		DriveTokenFile:         getEnv("DRIVE_TOKEN_FILE", "data/drive/token.json"),
		DriveClientSecretsFile: getEnv("DRIVE_CLIENT_SECRETS_FILE", "data/drive/client_secrets.json"),
		DriveFolderID:          getEnv("DRIVE_FOLDER_ID", ""),
		DriveManifestFile:      getEnv("DRIVE_MANIFEST_FILE", "data/drive/uploads.json"),
		DriveUploadCompressed:  getEnvBool("DRIVE_UPLOAD_COMPRESSED", true),

		DigicamBaseURL:     getEnv("DIGICAM_BASE_URL", "http://127.0.0.1:5513"),
		DigicamPreviewPath: getEnv("DIGICAM_PREVIEW_PATH", "/liveview.jpg"),
		DigicamCaptureCmd:  getEnv("DIGICAM_CAPTURE_CMD", "/?CMD=Capture"),
		DigicamOriginalDir: getEnv("DIGICAM_ORIGINAL_DIR", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Workers:         getEnvInt("PIPELINE_WORKERS", 2),
		QueueSize:       getEnvInt("PIPELINE_QUEUE_SIZE", 64),
		JobTimeout:      time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 180)) * time.Second,
		CompressQuality: getEnvInt("COMPRESS_QUALITY", 85),
		CompressDPI:     getEnvInt("COMPRESS_DPI", 150),

		CleanupPassword: getEnv("CLEANUP_PASSWORD", "event-cleanup-admin"),
		EventTimezone:   getEnv("EVENT_TIMEZONE", "Asia/Jakarta"),

		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		StaticDir:      getEnv("STATIC_DIR", "static"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be >= 1")
	}
	if c.CompressQuality < 1 || c.CompressQuality > 100 {
		return fmt.Errorf("COMPRESS_QUALITY must be between 1 and 100")
	}
	return nil
}

// Location resolves the event time zone, falling back to a fixed UTC+7
// offset on hosts without the IANA tz database.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.EventTimezone)
	if err != nil {
		return time.FixedZone("UTC+7", 7*60*60)
	}
	return loc
}

func (c *Config) UploadsDir() string    { return filepath.Join(c.StaticDir, "uploads") }
func (c *Config) ResultsDir() string    { return filepath.Join(c.StaticDir, "results") }
func (c *Config) CompressedDir() string { return filepath.Join(c.StaticDir, "compressed") }
func (c *Config) ThumbsDir() string     { return filepath.Join(c.StaticDir, "thumbs") }
func (c *Config) OverlaysDir() string   { return filepath.Join(c.StaticDir, "overlays") }
func (c *Config) CapturedDir() string   { return filepath.Join(c.StaticDir, "captured") }

// EnsureDirs creates every directory artifacts are written to.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.UploadsDir(), c.ResultsDir(), c.CompressedDir(),
		c.ThumbsDir(), c.OverlaysDir(), c.CapturedDir(),
		filepath.Dir(c.DriveManifestFile),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
