package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PvtMilo/gen-ai/internal/camera"
	"github.com/PvtMilo/gen-ai/internal/models"
)

type CameraHandler struct {
	client  *camera.Client
	service *camera.Service
	baseURL string
}

func NewCameraHandler(client *camera.Client, service *camera.Service, baseURL string) *CameraHandler {
	return &CameraHandler{
		client:  client,
		service: service,
		baseURL: baseURL,
	}
}

// Liveview proxies one frame from the tethering webserver. The
// frontend polls this and renders it as an <img>.
func (h *CameraHandler) Liveview(c *gin.Context) {
	data, contentType, err := h.client.GetPreviewImage()
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "failed to get live view", Message: err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// Preview is a snapshot of the live view frame.
func (h *CameraHandler) Preview(c *gin.Context) {
	data, contentType, err := h.client.GetPreviewImage()
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "failed to get preview", Message: err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// Capture triggers the shutter, waits for the new file to land in the
// camera's download folder, and copies it into the static tree.
func (h *CameraHandler) Capture(c *gin.Context) {
	filename, err := h.service.CaptureAndSave()
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "failed to capture photo", Message: err.Error()})
		return
	}

	photoURL := strings.TrimSuffix(h.baseURL, "/") + "/static/captured/" + filename
	c.JSON(http.StatusOK, models.CaptureResponse{PhotoURL: photoURL})
}
