package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PvtMilo/gen-ai/internal/models"
	"github.com/PvtMilo/gen-ai/internal/report"
)

type EstimatorHandler struct {
	estimator *report.Estimator
}

func NewEstimatorHandler(estimator *report.Estimator) *EstimatorHandler {
	return &EstimatorHandler{estimator: estimator}
}

// Report returns the billable-usage report for an inclusive local-date
// range.
func (h *EstimatorHandler) Report(c *gin.Context) {
	startDate, endDate, ok := dateRangeParams(c)
	if !ok {
		return
	}

	rep, err := h.estimator.Build(startDate, endDate)
	if err != nil {
		if errors.Is(err, report.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid date range", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to build report", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}

// ExportCSV streams the same report as a CSV attachment.
func (h *EstimatorHandler) ExportCSV(c *gin.Context) {
	startDate, endDate, ok := dateRangeParams(c)
	if !ok {
		return
	}

	rep, err := h.estimator.Build(startDate, endDate)
	if err != nil {
		if errors.Is(err, report.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid date range", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to build report", Message: err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rep); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to write csv", Message: err.Error()})
		return
	}

	filename := report.CSVFilename(startDate, endDate)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func dateRangeParams(c *gin.Context) (string, string, bool) {
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	if startDate == "" || endDate == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "start_date and end_date are required"})
		return "", "", false
	}
	return startDate, endDate, true
}
