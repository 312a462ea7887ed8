package models

type SessionStartRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"required"`
}

type SessionSetThemeRequest struct {
	ThemeID string `json:"theme_id" binding:"required"`
}

type JobCreateRequest struct {
	SessionID int64 `json:"session_id" binding:"required"`
	// Mode defaults to "event" when omitted.
	Mode       string `json:"mode,omitempty"`
	OverlayURL string `json:"overlay_url,omitempty"`
}

type EventCleanupRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
