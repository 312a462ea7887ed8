package camera

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	captureTimeout = 5 * time.Second
	pollInterval   = 500 * time.Millisecond
)

type Service struct {
	client      *Client
	originalDir string
	capturedDir string
}

func NewService(client *Client, originalDir, capturedDir string) *Service {
	return &Service{
		client:      client,
		originalDir: originalDir,
		capturedDir: capturedDir,
	}
}

// latestFile returns the newest regular file in dir by mtime, or ""
// when the directory is empty.
func latestFile(dir string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, err
	}

	var newest string
	var newestMtime time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMtime) {
			newest = filepath.Join(dir, entry.Name())
			newestMtime = info.ModTime()
		}
	}
	return newest, newestMtime, nil
}

// CaptureAndSave triggers the camera, waits for a new file to land in
// the digiCamControl folder, copies it into the captured dir, and
// returns the stored file name.
func (s *Service) CaptureAndSave() (string, error) {
	if s.originalDir == "" {
		return "", fmt.Errorf("camera original directory is not configured")
	}
	if _, err := os.Stat(s.originalDir); err != nil {
		return "", fmt.Errorf("original directory does not exist: %s", s.originalDir)
	}

	_, beforeMtime, err := latestFile(s.originalDir)
	if err != nil {
		return "", fmt.Errorf("failed to scan original directory: %w", err)
	}

	if err := s.client.TriggerCapture(); err != nil {
		return "", err
	}

	var newFile string
	deadline := time.Now().Add(captureTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(pollInterval)

		candidate, mtime, err := latestFile(s.originalDir)
		if err != nil || candidate == "" {
			continue
		}
		if beforeMtime.IsZero() || mtime.After(beforeMtime) {
			newFile = candidate
			break
		}
	}

	if newFile == "" {
		return "", fmt.Errorf("no new file detected in camera folder after capture")
	}

	if err := os.MkdirAll(s.capturedDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create captured dir: %w", err)
	}

	destName := time.Now().Format("20060102-150405.000000") + "_" + filepath.Base(newFile)
	destPath := filepath.Join(s.capturedDir, destName)

	if err := copyFile(newFile, destPath); err != nil {
		return "", fmt.Errorf("failed to copy captured photo: %w", err)
	}

	return destName, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
