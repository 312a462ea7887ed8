package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/PvtMilo/gen-ai/internal/database"
	"github.com/PvtMilo/gen-ai/internal/files"
	"github.com/PvtMilo/gen-ai/internal/models"
)

const thumbsPublicPrefix = "/static/thumbs/"

type ThemesHandler struct {
	dbClient  *database.Client
	thumbsDir string
	logger    zerolog.Logger
}

func NewThemesHandler(dbClient *database.Client, thumbsDir string, logger zerolog.Logger) *ThemesHandler {
	return &ThemesHandler{
		dbClient:  dbClient,
		thumbsDir: thumbsDir,
		logger:    logger,
	}
}

// ListPublic returns every theme without prompt text. This is the
// guest-facing catalog.
func (h *ThemesHandler) ListPublic(c *gin.Context) {
	themes, err := h.dbClient.ListThemes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list themes", Message: err.Error()})
		return
	}

	out := make([]models.ThemePublicResponse, 0, len(themes))
	for i := range themes {
		out = append(out, models.NewThemePublicResponse(&themes[i]))
	}
	c.JSON(http.StatusOK, out)
}

// ListInternal returns themes with prompts, for the operator console.
func (h *ThemesHandler) ListInternal(c *gin.Context) {
	themes, err := h.dbClient.ListThemes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list themes", Message: err.Error()})
		return
	}

	out := make([]models.ThemeInternalResponse, 0, len(themes))
	for i := range themes {
		out = append(out, models.NewThemeInternalResponse(&themes[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *ThemesHandler) GetTheme(c *gin.Context) {
	theme, ok := h.loadTheme(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.NewThemeInternalResponse(theme))
}

// CreateTheme accepts a multipart form with the theme fields and a
// thumbnail image. The id is derived from the title; the saved
// thumbnail is removed again if the insert fails.
func (h *ThemesHandler) CreateTheme(c *gin.Context) {
	title := strings.TrimSpace(c.PostForm("title"))
	prompt := strings.TrimSpace(c.PostForm("prompt"))
	negativePrompt := strings.TrimSpace(c.PostForm("negative_prompt"))
	aspectRatio := strings.TrimSpace(c.PostForm("aspect_ratio"))
	if aspectRatio == "" {
		aspectRatio = "2:3"
	}

	if title == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "title is required"})
		return
	}
	if prompt == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "prompt is required"})
		return
	}

	file, err := c.FormFile("thumbnail")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "thumbnail is required"})
		return
	}

	filename, err := files.SaveUpload(file, h.thumbsDir)
	if err != nil {
		if errors.Is(err, files.ErrInvalidFileType) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unsupported file type", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save thumbnail", Message: err.Error()})
		return
	}

	themeID := database.NextThemeID(title, func(candidate string) bool {
		exists, err := h.dbClient.ThemeIDExists(candidate)
		return err == nil && exists
	})

	serial, err := h.dbClient.NextThemeSerial()
	if err != nil {
		h.removeThumbnail(filename)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to assign serial", Message: err.Error()})
		return
	}

	params, _ := json.Marshal(map[string]string{"aspect_ratio": aspectRatio})
	theme := &models.Theme{
		ID:           themeID,
		SerialID:     sql.NullInt64{Int64: serial, Valid: true},
		Title:        title,
		ThumbnailURL: thumbsPublicPrefix + filename,
		Prompt:       prompt,
		Params:       params,
	}
	if negativePrompt != "" {
		theme.NegativePrompt = sql.NullString{String: negativePrompt, Valid: true}
	}

	if err := h.dbClient.InsertTheme(theme); err != nil {
		h.removeThumbnail(filename)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create theme", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.NewThemeInternalResponse(theme))
}

// UpdateTheme edits a theme in place. The id and serial never change;
// a new thumbnail is optional and replaces the stored URL when sent.
func (h *ThemesHandler) UpdateTheme(c *gin.Context) {
	theme, ok := h.loadTheme(c)
	if !ok {
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	prompt := strings.TrimSpace(c.PostForm("prompt"))
	negativePrompt := strings.TrimSpace(c.PostForm("negative_prompt"))
	aspectRatio := strings.TrimSpace(c.PostForm("aspect_ratio"))
	if aspectRatio == "" {
		aspectRatio = "2:3"
	}

	if title == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "title is required"})
		return
	}
	if prompt == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "prompt is required"})
		return
	}

	savedThumb := ""
	if file, err := c.FormFile("thumbnail"); err == nil {
		filename, err := files.SaveUpload(file, h.thumbsDir)
		if err != nil {
			if errors.Is(err, files.ErrInvalidFileType) {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unsupported file type", Message: err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save thumbnail", Message: err.Error()})
			return
		}
		savedThumb = filename
		theme.ThumbnailURL = thumbsPublicPrefix + filename
	}

	theme.Title = title
	theme.Prompt = prompt
	theme.NegativePrompt = sql.NullString{String: negativePrompt, Valid: negativePrompt != ""}

	params := theme.ParamMap()
	params["aspect_ratio"] = aspectRatio
	theme.Params, _ = json.Marshal(params)

	if err := h.dbClient.UpdateTheme(theme); err != nil {
		if savedThumb != "" {
			h.removeThumbnail(savedThumb)
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update theme", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.NewThemeInternalResponse(theme))
}

// DeleteTheme removes a theme, then deletes its thumbnail file unless
// another theme still points at the same URL.
func (h *ThemesHandler) DeleteTheme(c *gin.Context) {
	theme, ok := h.loadTheme(c)
	if !ok {
		return
	}

	if err := h.dbClient.DeleteTheme(theme.ID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete theme", Message: err.Error()})
		return
	}

	if strings.HasPrefix(theme.ThumbnailURL, thumbsPublicPrefix) {
		inUse, err := h.dbClient.ThumbnailInUse(theme.ThumbnailURL)
		if err == nil && !inUse {
			h.removeThumbnail(strings.TrimPrefix(theme.ThumbnailURL, thumbsPublicPrefix))
		}
	}

	c.JSON(http.StatusOK, gin.H{"deleted": theme.ID})
}

func (h *ThemesHandler) loadTheme(c *gin.Context) (*models.Theme, bool) {
	themeID := c.Param("theme_id")
	theme, err := h.dbClient.GetTheme(themeID)
	if err != nil {
		if errors.Is(err, database.ErrThemeNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "theme not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load theme", Message: err.Error()})
		return nil, false
	}
	return theme, true
}

// removeThumbnail deletes a file inside the thumbs dir, tolerating a
// file that is already gone.
func (h *ThemesHandler) removeThumbnail(filename string) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." {
		return
	}
	if err := os.Remove(filepath.Join(h.thumbsDir, name)); err != nil && !os.IsNotExist(err) {
		h.logger.Warn().Err(err).Str("file", name).Msg("Failed to remove thumbnail")
	}
}
