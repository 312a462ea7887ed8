package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PvtMilo/gen-ai/internal/models"
)

// HealthHandler reports liveness for frontend and kiosk polling.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
