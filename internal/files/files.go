// Package files holds the small pieces of filesystem plumbing shared by
// handlers and the pipeline: multipart saves, data-URL encoding, and
// safe resolution of public /static/ paths back to disk.
package files

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidFileType = errors.New("invalid file type")

var allowedUploadExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// SaveUpload stores a multipart upload under a fresh uuid-hex name in
// outDir and returns the generated filename. The original extension is
// kept and validated against the photo allow-list.
func SaveUpload(file *multipart.FileHeader, outDir string) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedUploadExts[ext] {
		return "", fmt.Errorf("%w: %s", ErrInvalidFileType, ext)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	filename := strings.ReplaceAll(uuid.New().String(), "-", "") + ext
	outPath := filepath.Join(outDir, filename)

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	return filename, nil
}

// ToDataURL reads a file and encodes it as a base64 data URL with a
// mime type guessed from the extension.
func ToDataURL(path string) (string, error) {
	mime := "image/jpeg"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mime = "image/png"
	case ".webp":
		mime = "image/webp"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ResolveStatic maps a public path like /static/results/x.jpg onto the
// local static directory. It returns an error when the path does not
// live under the given public prefix or escapes the backing dir.
func ResolveStatic(publicPath, publicPrefix, dir string) (string, error) {
	if !strings.HasPrefix(publicPath, publicPrefix) {
		return "", fmt.Errorf("path %q is outside %s", publicPath, publicPrefix)
	}

	name := strings.TrimPrefix(publicPath, publicPrefix)
	if name == "" {
		return "", fmt.Errorf("path %q has no file name", publicPath)
	}

	// flatten any traversal attempt down to a bare file name
	safeName := filepath.Base(filepath.Clean(name))
	if safeName == "." || safeName == ".." || safeName == string(filepath.Separator) {
		return "", fmt.Errorf("path %q has no file name", publicPath)
	}

	return filepath.Join(dir, safeName), nil
}
