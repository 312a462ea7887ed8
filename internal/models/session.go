package models

import (
	"database/sql"
	"time"
)

const (
	SessionStatusDraft         = "draft"
	SessionStatusThemeSelected = "theme_selected"
	SessionStatusPhotoUploaded = "photo_uploaded"
)

type PhotoSession struct {
	ID             int64
	UserID         int64
	ThemeID        sql.NullString
	InputImagePath sql.NullString
	Status         string
	CreatedAt      time.Time
}

// ReadyForJob reports whether the session has everything the pipeline
// needs: a chosen theme and an uploaded photo.
func (s *PhotoSession) ReadyForJob() bool {
	return s.ThemeID.Valid && s.ThemeID.String != "" &&
		s.InputImagePath.Valid && s.InputImagePath.String != ""
}
