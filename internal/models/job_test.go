package models_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PvtMilo/gen-ai/internal/models"
)

func TestJob_GalleryImagePath_PrefersCompressed(t *testing.T) {
	job := &models.Job{
		ResultImagePath:     sql.NullString{String: "/static/results/a.png", Valid: true},
		CompressedImagePath: sql.NullString{String: "/static/compressed/a.jpg", Valid: true},
	}
	assert.Equal(t, "/static/compressed/a.jpg", job.GalleryImagePath())
}

func TestJob_GalleryImagePath_FallsBackToResult(t *testing.T) {
	job := &models.Job{
		ResultImagePath: sql.NullString{String: "/static/results/a.png", Valid: true},
	}
	assert.Equal(t, "/static/results/a.png", job.GalleryImagePath())
}

func TestJob_GalleryImagePath_Empty(t *testing.T) {
	assert.Equal(t, "", (&models.Job{}).GalleryImagePath())
}

func TestJob_DriveComplete(t *testing.T) {
	job := &models.Job{
		DriveFileID:  sql.NullString{String: "abc", Valid: true},
		DriveLink:    sql.NullString{String: "https://drive.google.com/file/d/abc/view", Valid: true},
		DownloadLink: sql.NullString{String: "https://drive.google.com/uc?id=abc", Valid: true},
		QRURL:        sql.NullString{String: "http://localhost/qr", Valid: true},
	}
	assert.True(t, job.DriveComplete())

	job.QRURL = sql.NullString{}
	assert.False(t, job.DriveComplete())
}

func TestSession_ReadyForJob(t *testing.T) {
	session := &models.PhotoSession{
		ThemeID:        sql.NullString{String: "royal-palace", Valid: true},
		InputImagePath: sql.NullString{String: "/static/uploads/x.jpg", Valid: true},
	}
	assert.True(t, session.ReadyForJob())

	session.InputImagePath = sql.NullString{}
	assert.False(t, session.ReadyForJob())
}
