package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/PvtMilo/gen-ai/internal/drive"
	"github.com/PvtMilo/gen-ai/internal/models"
)

const (
	qrDefaultSize = 360
	qrMinSize     = 120
	qrMaxSize     = 1024
)

type DriveHandler struct {
	client     *drive.Client
	service    *drive.Service
	resultsDir string
}

func NewDriveHandler(client *drive.Client, service *drive.Service, resultsDir string) *DriveHandler {
	return &DriveHandler{
		client:     client,
		service:    service,
		resultsDir: resultsDir,
	}
}

// Sync uploads pending results in bulk. With force=true already-linked
// jobs are uploaded again.
func (h *DriveHandler) Sync(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	force := c.Query("force") == "true"

	results, err := h.service.SyncPending(c.Request.Context(), limit, force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "drive sync failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": len(results), "results": results})
}

// UploadForJob pushes one job's result to Drive and persists the
// returned links on the job row.
func (h *DriveHandler) UploadForJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid job id"})
		return
	}
	force := c.Query("force") == "true"

	result, err := h.service.UploadForJob(c.Request.Context(), jobID, force)
	if err != nil {
		if errors.Is(err, drive.ErrResultFileMissing) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "result file missing", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "drive upload failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// UploadFile uploads an arbitrary file to the Drive folder. The file
// is staged in the results dir and removed afterwards.
func (h *DriveHandler) UploadFile(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "file is required", Message: err.Error()})
		return
	}

	tempName := fmt.Sprintf("upload_%d%s", os.Getpid(), filepath.Ext(file.Filename))
	tempPath := filepath.Join(h.resultsDir, tempName)
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save file", Message: err.Error()})
		return
	}
	defer os.Remove(tempPath)

	result, err := h.service.UploadFile(c.Request.Context(), tempPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "drive upload failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status reports the OAuth credential state without touching Drive
// content.
func (h *DriveHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.client.Status(c.Request.Context()))
}

// QR renders a PNG QR code for any URL. Size is clamped to a sane
// range so a bad query cannot produce a giant image.
func (h *DriveHandler) QR(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "url is required"})
		return
	}

	size := qrDefaultSize
	if raw := c.Query("size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			size = n
		}
	}
	if size < qrMinSize {
		size = qrMinSize
	}
	if size > qrMaxSize {
		size = qrMaxSize
	}

	png, err := qrcode.Encode(target, qrcode.Medium, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to render qr", Message: err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
