package drive_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PvtMilo/gen-ai/internal/drive"
	"github.com/PvtMilo/gen-ai/internal/models"
)

type fakeUploader struct {
	calls    int
	uploaded *drive.Uploaded
}

func (f *fakeUploader) Upload(ctx context.Context, localPath string) (*drive.Uploaded, error) {
	f.calls++
	return f.uploaded, nil
}

type fakeJobStore struct {
	job *models.Job

	persistedFileID string
	persistedQR     string
}

func (f *fakeJobStore) GetJob(jobID int64) (*models.Job, error) { return f.job, nil }

func (f *fakeJobStore) ListJobsForDriveSync(limit int, force bool) ([]models.Job, error) {
	return []models.Job{*f.job}, nil
}

func (f *fakeJobStore) SetJobDriveInfo(jobID int64, fileID, driveLink, downloadLink, qrURL string) error {
	f.persistedFileID = fileID
	f.persistedQR = qrURL
	return nil
}

func newTestService(t *testing.T, uploader *fakeUploader, store *fakeJobStore) (*drive.Service, string) {
	t.Helper()
	base := t.TempDir()
	resultsDir := filepath.Join(base, "results")
	compressedDir := filepath.Join(base, "compressed")
	require.NoError(t, os.MkdirAll(resultsDir, 0o755))
	require.NoError(t, os.MkdirAll(compressedDir, 0o755))

	svc := drive.NewService(
		uploader, store,
		resultsDir, compressedDir,
		filepath.Join(base, "uploads.json"),
		"http://localhost:8080", false,
		zerolog.Nop(),
	)
	return svc, resultsDir
}

func TestBuildQRURL(t *testing.T) {
	svc, _ := newTestService(t, &fakeUploader{}, &fakeJobStore{})

	url := svc.BuildQRURL("https://drive.google.com/uc?id=abc&export=download", 360)
	assert.Contains(t, url, "http://localhost:8080/api/v1/drive/qr?url=")
	assert.Contains(t, url, "size=360")
	// the target is query-encoded, not embedded raw
	assert.NotContains(t, url, "uc?id=abc&export")
}

func TestUploadForJob_AlreadyUploadedShortCircuits(t *testing.T) {
	uploader := &fakeUploader{}
	store := &fakeJobStore{job: &models.Job{
		ID:              1,
		Status:          models.JobStatusDone,
		ResultImagePath: sql.NullString{String: "/static/results/a.png", Valid: true},
		DriveFileID:     sql.NullString{String: "f1", Valid: true},
		DriveLink:       sql.NullString{String: "view", Valid: true},
		DownloadLink:    sql.NullString{String: "dl", Valid: true},
		QRURL:           sql.NullString{String: "qr", Valid: true},
	}}
	svc, _ := newTestService(t, uploader, store)

	result, err := svc.UploadForJob(context.Background(), 1, false)
	require.NoError(t, err)

	assert.False(t, result.Uploaded)
	assert.Equal(t, "already_uploaded", result.Message)
	assert.Equal(t, 0, uploader.calls, "no external call expected")
}

func TestUploadForJob_UploadsAndPersistsLinks(t *testing.T) {
	uploader := &fakeUploader{uploaded: &drive.Uploaded{
		FileID:       "f2",
		Name:         "a.png",
		DriveLink:    "https://drive.google.com/file/d/f2/view?usp=sharing",
		DownloadLink: "https://drive.google.com/uc?id=f2&export=download",
	}}
	store := &fakeJobStore{job: &models.Job{
		ID:              2,
		Status:          models.JobStatusDone,
		ResultImagePath: sql.NullString{String: "/static/results/a.png", Valid: true},
	}}
	svc, resultsDir := newTestService(t, uploader, store)
	require.NoError(t, os.WriteFile(filepath.Join(resultsDir, "a.png"), []byte("img"), 0o644))

	result, err := svc.UploadForJob(context.Background(), 2, false)
	require.NoError(t, err)

	assert.True(t, result.Uploaded)
	assert.Equal(t, 1, uploader.calls)
	assert.Equal(t, "f2", store.persistedFileID)
	assert.Contains(t, store.persistedQR, "/api/v1/drive/qr?url=")
}

func TestUploadForJob_ManifestSkipsRepeatUpload(t *testing.T) {
	uploader := &fakeUploader{uploaded: &drive.Uploaded{FileID: "f3", DriveLink: "v", DownloadLink: "d"}}
	store := &fakeJobStore{job: &models.Job{
		ID:              3,
		Status:          models.JobStatusDone,
		ResultImagePath: sql.NullString{String: "/static/results/b.png", Valid: true},
	}}
	svc, resultsDir := newTestService(t, uploader, store)
	require.NoError(t, os.WriteFile(filepath.Join(resultsDir, "b.png"), []byte("img"), 0o644))

	_, err := svc.UploadForJob(context.Background(), 3, true)
	require.NoError(t, err)
	// job row still has no links, but the manifest remembers the file
	_, err = svc.UploadForJob(context.Background(), 3, false)
	require.NoError(t, err)

	assert.Equal(t, 1, uploader.calls, "second call should hit the manifest cache")
}

func TestUploadForJob_MissingResultFile(t *testing.T) {
	store := &fakeJobStore{job: &models.Job{
		ID:              4,
		Status:          models.JobStatusDone,
		ResultImagePath: sql.NullString{String: "/static/results/gone.png", Valid: true},
	}}
	svc, _ := newTestService(t, &fakeUploader{}, store)

	_, err := svc.UploadForJob(context.Background(), 4, false)
	assert.ErrorIs(t, err, drive.ErrResultFileMissing)
}
