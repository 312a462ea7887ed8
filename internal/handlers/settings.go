package handlers

import (
	"bytes"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PvtMilo/gen-ai/internal/models"
)

// overlayAllowedSizes are the print canvas and its 2x variant. Any
// other resolution would land misaligned on the result.
var overlayAllowedSizes = [][2]int{
	{1200, 1800},
	{2400, 3600},
}

type SettingsHandler struct {
	overlaysDir string
}

func NewSettingsHandler(overlaysDir string) *SettingsHandler {
	return &SettingsHandler{overlaysDir: overlaysDir}
}

// UploadOverlay accepts a PNG frame at one of the allowed
// resolutions and stores it under a random name.
func (h *SettingsHandler) UploadOverlay(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "file is required", Message: err.Error()})
		return
	}

	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != "" && ext != ".png" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "overlay must be .png"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to read file", Message: err.Error()})
		return
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to read file", Message: err.Error()})
		return
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "empty file"})
		return
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || format != "png" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "overlay must be PNG format"})
		return
	}

	allowed := false
	for _, size := range overlayAllowedSizes {
		if cfg.Width == size[0] && cfg.Height == size[1] {
			allowed = true
			break
		}
	}
	if !allowed {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "overlay resolution must be 1200x1800 or 2400x3600"})
		return
	}

	filename := strings.ReplaceAll(uuid.New().String(), "-", "") + ".png"
	if err := os.WriteFile(filepath.Join(h.overlaysDir, filename), raw, 0o644); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save overlay", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.OverlayUploadResponse{
		OverlayURL: "/static/overlays/" + filename,
		Width:      cfg.Width,
		Height:     cfg.Height,
	})
}
