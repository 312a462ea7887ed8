package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PvtMilo/gen-ai/internal/database"
	"github.com/PvtMilo/gen-ai/internal/files"
	"github.com/PvtMilo/gen-ai/internal/models"
	"github.com/PvtMilo/gen-ai/internal/pipeline"
)

const overlaysPublicPrefix = "/static/overlays/"

type JobsHandler struct {
	dbClient    *database.Client
	queue       *pipeline.Queue
	overlaysDir string
}

func NewJobsHandler(dbClient *database.Client, queue *pipeline.Queue, overlaysDir string) *JobsHandler {
	return &JobsHandler{
		dbClient:    dbClient,
		queue:       queue,
		overlaysDir: overlaysDir,
	}
}

// CreateJob validates the session preconditions, records the job as
// queued, and hands it to the worker pool. Generation itself happens
// asynchronously; clients poll GetJob.
func (h *JobsHandler) CreateJob(c *gin.Context) {
	var req models.JobCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = models.JobModeEvent
	}
	if mode != models.JobModeEvent && mode != models.JobModeDebugging {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid mode", Message: "mode must be event or debugging"})
		return
	}

	session, err := h.dbClient.GetSession(req.SessionID)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load session", Message: err.Error()})
		return
	}

	if !session.ThemeID.Valid || session.ThemeID.String == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "theme not set"})
		return
	}
	if !session.InputImagePath.Valid || session.InputImagePath.String == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "photo not uploaded"})
		return
	}

	overlay := sql.NullString{}
	if req.OverlayURL != "" {
		overlayAbs, err := h.validateOverlay(req.OverlayURL)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "overlay path is invalid", Message: err.Error()})
			return
		}
		if _, err := os.Stat(overlayAbs); err != nil {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "overlay not found"})
			return
		}
		overlay = sql.NullString{String: req.OverlayURL, Valid: true}
	}

	job, err := h.dbClient.CreateJob(session.ID, mode, overlay)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create job", Message: err.Error()})
		return
	}

	if err := h.queue.Enqueue(job.ID); err != nil {
		_ = h.dbClient.SetJobFailed(job.ID, "queue is full, try again later")
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "queue is full", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.NewJobResponse(job))
}

func (h *JobsHandler) GetJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid job id"})
		return
	}

	job, err := h.dbClient.GetJob(jobID)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load job", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.NewJobResponse(job))
}

// validateOverlay accepts only PNG overlays living under the public
// overlays prefix and maps them onto disk.
func (h *JobsHandler) validateOverlay(overlayURL string) (string, error) {
	if !strings.HasPrefix(overlayURL, overlaysPublicPrefix) {
		return "", errors.New("overlay must live under " + overlaysPublicPrefix)
	}
	if !strings.EqualFold(filepath.Ext(overlayURL), ".png") {
		return "", errors.New("overlay must be a .png file")
	}
	return files.ResolveStatic(overlayURL, overlaysPublicPrefix, h.overlaysDir)
}
