package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PvtMilo/gen-ai/internal/files"
	"github.com/PvtMilo/gen-ai/internal/models"
)

var ErrResultFileMissing = errors.New("result file missing on disk")

const resultsPublicPrefix = "/static/results/"
const compressedPublicPrefix = "/static/compressed/"

// Uploader is the external side of the sync service; *Client is the
// real implementation, tests substitute a fake.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (*Uploaded, error)
}

type JobStore interface {
	GetJob(jobID int64) (*models.Job, error)
	ListJobsForDriveSync(limit int, force bool) ([]models.Job, error)
	SetJobDriveInfo(jobID int64, fileID, driveLink, downloadLink, qrURL string) error
}

// SyncResult reports the outcome for one job.
type SyncResult struct {
	JobID        int64  `json:"job_id"`
	Uploaded     bool   `json:"uploaded"`
	Message      string `json:"message,omitempty"`
	ResultURL    string `json:"result_url,omitempty"`
	DriveLink    string `json:"drive_link,omitempty"`
	DownloadLink string `json:"download_link,omitempty"`
	QRURL        string `json:"qr_url,omitempty"`
}

type Service struct {
	uploader         Uploader
	store            JobStore
	resultsDir       string
	compressedDir    string
	manifestFile     string
	baseURL          string
	preferCompressed bool
	logger           zerolog.Logger
}

func NewService(uploader Uploader, store JobStore, resultsDir, compressedDir, manifestFile, baseURL string, preferCompressed bool, logger zerolog.Logger) *Service {
	return &Service{
		uploader:         uploader,
		store:            store,
		resultsDir:       resultsDir,
		compressedDir:    compressedDir,
		manifestFile:     manifestFile,
		baseURL:          baseURL,
		preferCompressed: preferCompressed,
		logger:           logger,
	}
}

// BuildQRURL builds the local QR-rendering endpoint URL for a target.
func (s *Service) BuildQRURL(target string, size int) string {
	base := strings.TrimSuffix(s.baseURL, "/")
	return fmt.Sprintf("%s/api/v1/drive/qr?url=%s&size=%d", base, url.QueryEscape(target), size)
}

// UploadFile uploads a single local file and derives the QR target.
func (s *Service) UploadFile(ctx context.Context, localPath string) (*SyncResult, error) {
	uploaded, err := s.uploader.Upload(ctx, localPath)
	if err != nil {
		return nil, err
	}

	qrTarget := uploaded.DownloadLink
	if qrTarget == "" {
		qrTarget = uploaded.DriveLink
	}

	return &SyncResult{
		Uploaded:     true,
		DriveLink:    uploaded.DriveLink,
		DownloadLink: uploaded.DownloadLink,
		QRURL:        s.BuildQRURL(qrTarget, 360),
	}, nil
}

// UploadForJob uploads one job's result. When force is false and the
// job already carries complete cloud metadata it short-circuits with
// "already_uploaded" without touching the external API.
func (s *Service) UploadForJob(ctx context.Context, jobID int64, force bool) (*SyncResult, error) {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return nil, err
	}

	if job.DriveComplete() && !force {
		return &SyncResult{
			JobID:        job.ID,
			Uploaded:     false,
			Message:      "already_uploaded",
			ResultURL:    job.ResultImagePath.String,
			DriveLink:    job.DriveLink.String,
			DownloadLink: job.DownloadLink.String,
			QRURL:        job.QRURL.String,
		}, nil
	}

	localPath, err := s.jobResultFile(job)
	if err != nil {
		return nil, err
	}

	return s.uploadAndPersist(ctx, job, localPath, force)
}

// SyncPending batch-uploads jobs that have a result but no cloud link
// yet (all matching jobs when force), newest first, capped at limit.
// Jobs whose result file vanished from disk are skipped.
func (s *Service) SyncPending(ctx context.Context, limit int, force bool) ([]SyncResult, error) {
	jobs, err := s.store.ListJobsForDriveSync(limit, force)
	if err != nil {
		return nil, err
	}

	results := make([]SyncResult, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]

		localPath, err := s.jobResultFile(job)
		if err != nil {
			s.logger.Warn().Int64("job_id", job.ID).Err(err).Msg("skipping drive sync")
			continue
		}

		res, err := s.uploadAndPersist(ctx, job, localPath, force)
		if err != nil {
			return results, fmt.Errorf("job %d: %w", job.ID, err)
		}
		results = append(results, *res)
	}

	return results, nil
}

// jobResultFile resolves the job's public result path onto disk and
// verifies the file still exists. When the service is configured to
// prefer the compressed copy and one exists on disk, that copy wins.
func (s *Service) jobResultFile(job *models.Job) (string, error) {
	if !job.ResultImagePath.Valid || job.ResultImagePath.String == "" {
		return "", fmt.Errorf("job %d: %w", job.ID, ErrResultFileMissing)
	}

	if s.preferCompressed && job.CompressedImagePath.Valid && job.CompressedImagePath.String != "" {
		localPath, err := files.ResolveStatic(job.CompressedImagePath.String, compressedPublicPrefix, s.compressedDir)
		if err == nil {
			if _, statErr := os.Stat(localPath); statErr == nil {
				return localPath, nil
			}
		}
	}

	public := job.ResultImagePath.String
	var localPath string
	var err error
	if strings.HasPrefix(public, compressedPublicPrefix) {
		localPath, err = files.ResolveStatic(public, compressedPublicPrefix, s.compressedDir)
	} else {
		localPath, err = files.ResolveStatic(public, resultsPublicPrefix, s.resultsDir)
	}
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("%s: %w", localPath, ErrResultFileMissing)
	}
	return localPath, nil
}

func (s *Service) uploadAndPersist(ctx context.Context, job *models.Job, localPath string, force bool) (*SyncResult, error) {
	manifest := s.loadManifest()
	sig := fileSignature(localPath)
	cacheKey := localPath

	var uploaded *Uploaded
	if entry, ok := manifest[cacheKey]; ok && entry.Signature == sig && !force {
		uploaded = &entry.Item
	} else {
		var err error
		uploaded, err = s.uploader.Upload(ctx, localPath)
		if err != nil {
			return nil, err
		}
		manifest[cacheKey] = manifestEntry{
			Signature:  sig,
			Item:       *uploaded,
			UploadedAt: time.Now().UTC().Format(time.RFC3339),
		}
		s.saveManifest(manifest)
	}

	qrTarget := uploaded.DownloadLink
	if qrTarget == "" {
		qrTarget = uploaded.DriveLink
	}
	qrURL := s.BuildQRURL(qrTarget, 360)

	if err := s.store.SetJobDriveInfo(job.ID, uploaded.FileID, uploaded.DriveLink, uploaded.DownloadLink, qrURL); err != nil {
		return nil, fmt.Errorf("failed to persist drive info: %w", err)
	}

	s.logger.Info().Int64("job_id", job.ID).Str("drive_link", uploaded.DriveLink).Msg("drive upload ok")

	return &SyncResult{
		JobID:        job.ID,
		Uploaded:     true,
		ResultURL:    job.ResultImagePath.String,
		DriveLink:    uploaded.DriveLink,
		DownloadLink: uploaded.DownloadLink,
		QRURL:        qrURL,
	}, nil
}

type fileSig struct {
	Size  int64 `json:"size"`
	Mtime int64 `json:"mtime"`
}

type manifestEntry struct {
	Signature  fileSig  `json:"signature"`
	Item       Uploaded `json:"item"`
	UploadedAt string   `json:"uploaded_at"`
}

func fileSignature(path string) fileSig {
	info, err := os.Stat(path)
	if err != nil {
		return fileSig{}
	}
	return fileSig{Size: info.Size(), Mtime: info.ModTime().Unix()}
}

func (s *Service) loadManifest() map[string]manifestEntry {
	manifest := make(map[string]manifestEntry)
	data, err := os.ReadFile(s.manifestFile)
	if err != nil {
		return manifest
	}
	// a corrupt manifest just means re-uploading
	_ = json.Unmarshal(data, &manifest)
	return manifest
}

func (s *Service) saveManifest(manifest map[string]manifestEntry) {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.manifestFile), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(s.manifestFile, data, 0o644); err != nil {
		s.logger.Warn().Err(err).Msg("failed to save drive manifest")
	}
}
