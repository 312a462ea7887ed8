package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PvtMilo/gen-ai/internal/database"
	"github.com/PvtMilo/gen-ai/internal/models"
)

type GalleryHandler struct {
	dbClient *database.Client
}

func NewGalleryHandler(dbClient *database.Client) *GalleryHandler {
	return &GalleryHandler{dbClient: dbClient}
}

// ListGallery returns finished jobs newest first, preferring the
// compressed copy of each image.
func (h *GalleryHandler) ListGallery(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	jobs, err := h.dbClient.ListGalleryJobs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list gallery", Message: err.Error()})
		return
	}

	items := make([]models.GalleryItemResponse, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		url := job.GalleryImagePath()
		if url == "" {
			continue
		}
		items = append(items, models.GalleryItemResponse{
			ID:           job.ID,
			URL:          url,
			DriveLink:    job.DriveLink.String,
			DownloadLink: job.DownloadLink.String,
			QRURL:        job.QRURL.String,
		})
	}

	c.JSON(http.StatusOK, items)
}
