package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PvtMilo/gen-ai/internal/models"
	"github.com/PvtMilo/gen-ai/internal/report"
)

type MaintenanceHandler struct {
	cleaner *report.Cleaner
}

func NewMaintenanceHandler(cleaner *report.Cleaner) *MaintenanceHandler {
	return &MaintenanceHandler{cleaner: cleaner}
}

// PreviewDelete reports what an event cleanup would remove, without
// removing anything.
func (h *MaintenanceHandler) PreviewDelete(c *gin.Context) {
	req, ok := h.bindCleanupRequest(c)
	if !ok {
		return
	}

	result, err := h.cleaner.Preview(req.StartDate, req.EndDate)
	if err != nil {
		h.cleanupError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExecuteDelete removes the jobs in range plus the sessions and users
// left orphaned by them, then deletes their result files best effort.
func (h *MaintenanceHandler) ExecuteDelete(c *gin.Context) {
	req, ok := h.bindCleanupRequest(c)
	if !ok {
		return
	}

	result, err := h.cleaner.Execute(req.StartDate, req.EndDate)
	if err != nil {
		h.cleanupError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *MaintenanceHandler) bindCleanupRequest(c *gin.Context) (*models.EventCleanupRequest, bool) {
	var req models.EventCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return nil, false
	}
	if err := h.cleaner.Authorize(req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid password"})
		return nil, false
	}
	return &req, true
}

func (h *MaintenanceHandler) cleanupError(c *gin.Context, err error) {
	if errors.Is(err, report.ErrInvalidRange) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid date range", Message: err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "cleanup failed", Message: err.Error()})
}
