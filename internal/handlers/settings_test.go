package handlers_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PvtMilo/gen-ai/internal/handlers"
	"github.com/PvtMilo/gen-ai/internal/models"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func overlayRequest(t *testing.T, fileName string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/settings/overlay", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func newOverlayRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	handler := handlers.NewSettingsHandler(dir)

	router := gin.New()
	router.POST("/api/v1/settings/overlay", handler.UploadOverlay)
	return router, dir
}

func TestUploadOverlay_AcceptsAllowedSize(t *testing.T) {
	router, dir := newOverlayRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, overlayRequest(t, "frame.png", pngBytes(t, 1200, 1800)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.OverlayUploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1200, resp.Width)
	assert.Equal(t, 1800, resp.Height)
	assert.True(t, strings.HasPrefix(resp.OverlayURL, "/static/overlays/"))

	name := strings.TrimPrefix(resp.OverlayURL, "/static/overlays/")
	_, err := os.Stat(filepath.Join(dir, name))
	assert.NoError(t, err)
}

func TestUploadOverlay_RejectsWrongResolution(t *testing.T) {
	router, _ := newOverlayRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, overlayRequest(t, "frame.png", pngBytes(t, 100, 100)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "resolution")
}

func TestUploadOverlay_RejectsNonPNG(t *testing.T) {
	router, _ := newOverlayRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, overlayRequest(t, "frame.jpg", []byte("not png")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadOverlay_RejectsEmptyFile(t *testing.T) {
	router, _ := newOverlayRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, overlayRequest(t, "frame.png", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
