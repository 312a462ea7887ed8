package models

import (
	"database/sql"
	"time"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"

	JobModeEvent     = "event"
	JobModeDebugging = "debugging"
)

type Job struct {
	ID                  int64
	SessionID           int64
	Mode                string
	OverlayImagePath    sql.NullString
	Status              string
	ResultImagePath     sql.NullString
	CompressedImagePath sql.NullString
	ErrorMessage        sql.NullString
	LogText             sql.NullString
	CreatedAt           time.Time

	DriveFileID     sql.NullString
	DriveLink       sql.NullString
	DownloadLink    sql.NullString
	QRURL           sql.NullString
	DriveUploadedAt sql.NullTime
}

// GalleryImagePath picks the image the gallery should show: the
// compressed copy when present, else the primary result.
func (j *Job) GalleryImagePath() string {
	if j.CompressedImagePath.Valid && j.CompressedImagePath.String != "" {
		return j.CompressedImagePath.String
	}
	if j.ResultImagePath.Valid {
		return j.ResultImagePath.String
	}
	return ""
}

// DriveComplete reports whether every cloud-link field is populated,
// meaning a re-upload would be redundant.
func (j *Job) DriveComplete() bool {
	return j.DriveFileID.Valid && j.DriveFileID.String != "" &&
		j.DriveLink.Valid && j.DriveLink.String != "" &&
		j.DownloadLink.Valid && j.DownloadLink.String != "" &&
		j.QRURL.Valid && j.QRURL.String != ""
}
