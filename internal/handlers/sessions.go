package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PvtMilo/gen-ai/internal/database"
	"github.com/PvtMilo/gen-ai/internal/files"
	"github.com/PvtMilo/gen-ai/internal/models"
)

type SessionsHandler struct {
	dbClient   *database.Client
	uploadsDir string
}

func NewSessionsHandler(dbClient *database.Client, uploadsDir string) *SessionsHandler {
	return &SessionsHandler{
		dbClient:   dbClient,
		uploadsDir: uploadsDir,
	}
}

// buildSessionResponse assembles the full session view the frontend
// polls: user, theme, uploaded photo, and the most recent job.
func (h *SessionsHandler) buildSessionResponse(session *models.PhotoSession) (*models.SessionResponse, error) {
	user, err := h.dbClient.GetUser(session.UserID)
	if err != nil {
		return nil, err
	}

	resp := &models.SessionResponse{
		SessionID:     session.ID,
		Status:        session.Status,
		User:          models.UserResponse{ID: user.ID, Name: user.Name, Email: user.Email, Phone: user.Phone},
		ThemeID:       session.ThemeID.String,
		InputImageURL: session.InputImagePath.String,
	}

	latest, err := h.dbClient.LatestJobForSession(session.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		resp.LatestJob = models.NewJobResponse(latest)
	}
	return resp, nil
}

// StartSession finds or creates the user by email and opens a fresh
// draft session for them.
func (h *SessionsHandler) StartSession(c *gin.Context) {
	var req models.SessionStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	user, err := h.dbClient.UpsertUserByEmail(req.Name, req.Email, req.Phone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to upsert user", Message: err.Error()})
		return
	}

	session, err := h.dbClient.CreateSession(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create session", Message: err.Error()})
		return
	}

	resp, err := h.buildSessionResponse(session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load session", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionsHandler) GetSession(c *gin.Context) {
	session, ok := h.loadSession(c)
	if !ok {
		return
	}

	resp, err := h.buildSessionResponse(session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load session", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SetTheme attaches a theme to the session and advances a draft to
// theme_selected. Later statuses are left alone.
func (h *SessionsHandler) SetTheme(c *gin.Context) {
	session, ok := h.loadSession(c)
	if !ok {
		return
	}

	var req models.SessionSetThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	if _, err := h.dbClient.GetTheme(req.ThemeID); err != nil {
		if errors.Is(err, database.ErrThemeNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "theme not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load theme", Message: err.Error()})
		return
	}

	status := session.Status
	if status == models.SessionStatusDraft {
		status = models.SessionStatusThemeSelected
	}
	if err := h.dbClient.SetSessionTheme(session.ID, req.ThemeID, status); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to set theme", Message: err.Error()})
		return
	}

	h.respondWithSession(c, session.ID)
}

// UploadPhoto stores the guest photo and advances the session to
// photo_uploaded.
func (h *SessionsHandler) UploadPhoto(c *gin.Context) {
	session, ok := h.loadSession(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "file is required", Message: err.Error()})
		return
	}

	filename, err := files.SaveUpload(file, h.uploadsDir)
	if err != nil {
		if errors.Is(err, files.ErrInvalidFileType) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unsupported file type", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save upload", Message: err.Error()})
		return
	}

	status := session.Status
	if status == models.SessionStatusDraft || status == models.SessionStatusThemeSelected {
		status = models.SessionStatusPhotoUploaded
	}
	if err := h.dbClient.SetSessionPhoto(session.ID, "/static/uploads/"+filename, status); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update session", Message: err.Error()})
		return
	}

	h.respondWithSession(c, session.ID)
}

func (h *SessionsHandler) loadSession(c *gin.Context) (*models.PhotoSession, bool) {
	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid session id"})
		return nil, false
	}

	session, err := h.dbClient.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load session", Message: err.Error()})
		return nil, false
	}
	return session, true
}

func (h *SessionsHandler) respondWithSession(c *gin.Context, sessionID int64) {
	session, err := h.dbClient.GetSession(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to reload session", Message: err.Error()})
		return
	}
	resp, err := h.buildSessionResponse(session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load session", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
