package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PvtMilo/gen-ai/internal/drive"
	"github.com/PvtMilo/gen-ai/internal/files"
	"github.com/PvtMilo/gen-ai/internal/models"
)

// Store is the subset of database operations the pipeline needs. The
// worker pool holds its own database client, separate from the one
// serving HTTP requests.
type Store interface {
	GetJob(id int64) (*models.Job, error)
	MarkJobProcessing(id int64) error
	AppendJobLog(id int64, line string) error
	SetJobFailed(id int64, message string) error
	SetJobDone(id int64, resultPath string, compressedPath sql.NullString) error
	GetSession(id int64) (*models.PhotoSession, error)
	GetTheme(id string) (*models.Theme, error)
}

// Generator produces a result image for a prompt and source photo.
type Generator interface {
	Generate(prompt, imageDataURL, size string, watermark bool) (string, error)
	DownloadToFile(url, outDir, ext string, logf func(string, ...interface{})) (string, error)
	RetryWithBackoff(fn func() error, maxRetries int) error
}

// DriveSyncer pushes a finished job's result to cloud storage.
type DriveSyncer interface {
	UploadForJob(ctx context.Context, jobID int64, force bool) (*drive.SyncResult, error)
}

// Processor runs a single job end to end: load inputs, generate or
// copy the result, composite the overlay, compress, persist, and kick
// off the best-effort cloud upload.
type Processor struct {
	store     Store
	generator Generator
	drive     DriveSyncer

	uploadsDir    string
	overlaysDir   string
	resultsDir    string
	compressedDir string

	imageSize       string
	watermark       bool
	jobTimeout      time.Duration
	compressQuality int
	compressDPI     int

	logger zerolog.Logger
}

// ProcessorOptions carries the directories and tuning knobs for a
// Processor.
type ProcessorOptions struct {
	UploadsDir      string
	OverlaysDir     string
	ResultsDir      string
	CompressedDir   string
	ImageSize       string
	Watermark       bool
	JobTimeout      time.Duration
	CompressQuality int
	CompressDPI     int
}

func NewProcessor(store Store, generator Generator, driveSync DriveSyncer, opts ProcessorOptions, logger zerolog.Logger) *Processor {
	return &Processor{
		store:           store,
		generator:       generator,
		drive:           driveSync,
		uploadsDir:      opts.UploadsDir,
		overlaysDir:     opts.OverlaysDir,
		resultsDir:      opts.ResultsDir,
		compressedDir:   opts.CompressedDir,
		imageSize:       opts.ImageSize,
		watermark:       opts.Watermark,
		jobTimeout:      opts.JobTimeout,
		compressQuality: opts.CompressQuality,
		compressDPI:     opts.CompressDPI,
		logger:          logger,
	}
}

// Process runs one job to a terminal state. Every failure path marks
// the job failed in the database; nothing escapes to the worker loop.
func (p *Processor) Process(jobID int64) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Int64("job_id", jobID).Interface("panic", r).Msg("Job processing panicked")
			p.fail(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	started := time.Now()

	job, err := p.store.GetJob(jobID)
	if err != nil {
		p.logger.Error().Err(err).Int64("job_id", jobID).Msg("Failed to load job")
		return
	}

	if err := p.store.MarkJobProcessing(jobID); err != nil {
		p.logger.Error().Err(err).Int64("job_id", jobID).Msg("Failed to mark job processing")
		return
	}
	p.joblog(jobID, "processing started (mode=%s)", job.Mode)

	session, err := p.store.GetSession(job.SessionID)
	if err != nil {
		p.fail(jobID, fmt.Sprintf("session %d not found", job.SessionID))
		return
	}
	if !session.ReadyForJob() {
		p.fail(jobID, "session is missing a theme or an uploaded photo")
		return
	}

	theme, err := p.store.GetTheme(session.ThemeID.String)
	if err != nil {
		p.fail(jobID, fmt.Sprintf("theme %s not found", session.ThemeID.String))
		return
	}

	inputPath, err := files.ResolveStatic(session.InputImagePath.String, "/static/uploads/", p.uploadsDir)
	if err != nil {
		p.fail(jobID, fmt.Sprintf("input image path invalid: %v", err))
		return
	}
	if _, err := os.Stat(inputPath); err != nil {
		p.fail(jobID, fmt.Sprintf("input image not found: %s", session.InputImagePath.String))
		return
	}

	var resultAbs string
	switch job.Mode {
	case models.JobModeDebugging:
		resultAbs, err = p.copyInput(inputPath)
		if err != nil {
			p.fail(jobID, fmt.Sprintf("failed to copy input: %v", err))
			return
		}
		p.joblog(jobID, "debugging mode: input copied to result")
	default:
		resultAbs, err = p.generate(jobID, theme, inputPath, started)
		if err != nil {
			p.fail(jobID, err.Error())
			return
		}
	}

	if job.OverlayImagePath.Valid && job.OverlayImagePath.String != "" {
		framed, err := p.applyOverlay(jobID, resultAbs, job.OverlayImagePath.String)
		if err != nil {
			p.fail(jobID, fmt.Sprintf("overlay compositing failed: %v", err))
			return
		}
		resultAbs = framed
	}

	resultPublic := "/static/results/" + filepath.Base(resultAbs)

	// compression is best effort: the job still completes without it
	compressed := sql.NullString{}
	compressedName := "compressed_" + strings.TrimSuffix(filepath.Base(resultAbs), filepath.Ext(resultAbs)) + ".jpg"
	compressedAbs := filepath.Join(p.compressedDir, compressedName)
	if err := Compress(resultAbs, compressedAbs, p.compressQuality, p.compressDPI); err != nil {
		p.joblog(jobID, "compression skipped: %v", err)
	} else {
		compressed = sql.NullString{String: "/static/compressed/" + compressedName, Valid: true}
		p.joblog(jobID, "compressed copy written")
	}

	if err := p.store.SetJobDone(jobID, resultPublic, compressed); err != nil {
		p.logger.Error().Err(err).Int64("job_id", jobID).Msg("Failed to mark job done")
		return
	}
	p.joblog(jobID, "done in %s", time.Since(started).Round(time.Millisecond))

	if p.drive != nil {
		if _, err := p.drive.UploadForJob(context.Background(), jobID, false); err != nil {
			p.joblog(jobID, "drive upload failed: %v", err)
		}
	}
}

func (p *Processor) generate(jobID int64, theme *models.Theme, inputPath string, started time.Time) (string, error) {
	dataURL, err := files.ToDataURL(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to encode input image: %w", err)
	}
	p.joblog(jobID, "input encoded, requesting generation")

	prompt := theme.Prompt
	if theme.NegativePrompt.Valid && theme.NegativePrompt.String != "" {
		prompt = prompt + "\nAvoid: " + theme.NegativePrompt.String
	}

	var resultURL string
	err = p.generator.RetryWithBackoff(func() error {
		var genErr error
		resultURL, genErr = p.generator.Generate(prompt, dataURL, p.imageSize, p.watermark)
		return genErr
	}, 3)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if elapsed := time.Since(started); elapsed > p.jobTimeout {
		return "", fmt.Errorf("job timed out after %s", elapsed.Round(time.Second))
	}
	p.joblog(jobID, "generation finished, downloading result")

	resultAbs, err := p.generator.DownloadToFile(resultURL, p.resultsDir, ".jpg", func(format string, args ...interface{}) {
		p.joblog(jobID, format, args...)
	})
	if err != nil {
		return "", fmt.Errorf("result download failed: %w", err)
	}
	return resultAbs, nil
}

// copyInput duplicates the uploaded photo into the results directory,
// keeping the bytes identical.
func (p *Processor) copyInput(inputPath string) (string, error) {
	src, err := os.Open(inputPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := "debug_" + filepath.Base(inputPath)
	outPath := filepath.Join(p.resultsDir, name)
	dst, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(outPath)
		return "", err
	}
	return outPath, nil
}

// applyOverlay composites the frame onto the result, replaces the
// intermediate file with the lossless composite, and returns the new
// result path.
func (p *Processor) applyOverlay(jobID int64, resultAbs, overlayPublic string) (string, error) {
	overlayAbs, err := files.ResolveStatic(overlayPublic, "/static/overlays/", p.overlaysDir)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(overlayAbs); err != nil {
		return "", fmt.Errorf("overlay not found: %s", overlayPublic)
	}

	outAbs := strings.TrimSuffix(resultAbs, filepath.Ext(resultAbs)) + "_framed.png"
	if err := CompositeOverlay(resultAbs, overlayAbs, outAbs); err != nil {
		return "", err
	}
	if err := os.Remove(resultAbs); err != nil {
		p.logger.Warn().Err(err).Str("path", resultAbs).Msg("Failed to remove pre-overlay result")
	}
	p.joblog(jobID, "overlay composited")
	return outAbs, nil
}

// joblog appends a line to the job's persisted log and mirrors it to
// the structured logger.
func (p *Processor) joblog(jobID int64, format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if err := p.store.AppendJobLog(jobID, line); err != nil {
		p.logger.Warn().Err(err).Int64("job_id", jobID).Msg("Failed to append job log")
	}
	p.logger.Info().Int64("job_id", jobID).Msg(line)
}

func (p *Processor) fail(jobID int64, message string) {
	p.joblog(jobID, "failed: %s", message)
	if err := p.store.SetJobFailed(jobID, message); err != nil {
		p.logger.Error().Err(err).Int64("job_id", jobID).Msg("Failed to mark job failed")
	}
}
