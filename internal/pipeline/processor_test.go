package pipeline_test

import (
	"database/sql"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PvtMilo/gen-ai/internal/models"
	"github.com/PvtMilo/gen-ai/internal/pipeline"
)

type fakeStore struct {
	job     *models.Job
	session *models.PhotoSession
	theme   *models.Theme

	logs           []string
	processing     bool
	failed         bool
	failedMessage  string
	done           bool
	doneResult     string
	doneCompressed sql.NullString
}

func (f *fakeStore) GetJob(id int64) (*models.Job, error)     { return f.job, nil }
func (f *fakeStore) MarkJobProcessing(id int64) error         { f.processing = true; return nil }
func (f *fakeStore) AppendJobLog(id int64, line string) error { f.logs = append(f.logs, line); return nil }
func (f *fakeStore) SetJobFailed(id int64, message string) error {
	f.failed = true
	f.failedMessage = message
	return nil
}
func (f *fakeStore) SetJobDone(id int64, resultPath string, compressedPath sql.NullString) error {
	f.done = true
	f.doneResult = resultPath
	f.doneCompressed = compressedPath
	return nil
}
func (f *fakeStore) GetSession(id int64) (*models.PhotoSession, error) { return f.session, nil }
func (f *fakeStore) GetTheme(id string) (*models.Theme, error)         { return f.theme, nil }

// fakeGenerator mimics the generation client: Generate can fail a set
// number of times before succeeding, and DownloadToFile writes a real
// image so the compression step has something to decode.
type fakeGenerator struct {
	generateCalls int
	failuresLeft  int
	generateWait  time.Duration
	lastPrompt    string
	resultName    string
}

func (g *fakeGenerator) Generate(prompt, imageDataURL, size string, watermark bool) (string, error) {
	g.generateCalls++
	g.lastPrompt = prompt
	if g.generateWait > 0 {
		time.Sleep(g.generateWait)
	}
	if g.failuresLeft > 0 {
		g.failuresLeft--
		return "", errors.New("upstream returned status 500")
	}
	return "https://example.com/" + g.resultName, nil
}

func (g *fakeGenerator) DownloadToFile(url, outDir, ext string, logf func(string, ...interface{})) (string, error) {
	outPath := filepath.Join(outDir, g.resultName)
	img := imaging.New(40, 60, color.NRGBA{R: 120, G: 40, B: 200, A: 255})
	if err := imaging.Save(img, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

func (g *fakeGenerator) RetryWithBackoff(fn func() error, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func newTestProcessor(t *testing.T, store *fakeStore, gen pipeline.Generator, timeout time.Duration) (*pipeline.Processor, string, string) {
	t.Helper()
	base := t.TempDir()
	uploads := filepath.Join(base, "uploads")
	results := filepath.Join(base, "results")
	compressed := filepath.Join(base, "compressed")
	overlays := filepath.Join(base, "overlays")
	for _, dir := range []string{uploads, results, compressed, overlays} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	proc := pipeline.NewProcessor(store, gen, nil, pipeline.ProcessorOptions{
		UploadsDir:      uploads,
		OverlaysDir:     overlays,
		ResultsDir:      results,
		CompressedDir:   compressed,
		ImageSize:       "2400x3600",
		JobTimeout:      timeout,
		CompressQuality: 85,
		CompressDPI:     150,
	}, zerolog.Nop())

	return proc, uploads, results
}

func readyFixture(uploads string, t *testing.T) (*models.PhotoSession, *models.Theme, []byte) {
	t.Helper()
	inputPath := filepath.Join(uploads, "in.png")
	img := imaging.New(40, 60, color.NRGBA{R: 10, G: 200, B: 30, A: 255})
	require.NoError(t, imaging.Save(img, inputPath))
	inputBytes, err := os.ReadFile(inputPath)
	require.NoError(t, err)

	session := &models.PhotoSession{
		ID:             7,
		UserID:         1,
		ThemeID:        sql.NullString{String: "royal-palace", Valid: true},
		InputImagePath: sql.NullString{String: "/static/uploads/in.png", Valid: true},
		Status:         models.SessionStatusPhotoUploaded,
	}
	theme := &models.Theme{ID: "royal-palace", Title: "Royal Palace", Prompt: "a palace"}
	return session, theme, inputBytes
}

func TestProcess_DebuggingModeCopiesInputUnchanged(t *testing.T) {
	store := &fakeStore{
		job: &models.Job{ID: 1, SessionID: 7, Mode: models.JobModeDebugging, Status: models.JobStatusQueued},
	}
	proc, uploads, results := newTestProcessor(t, store, nil, 180*time.Second)
	session, theme, inputBytes := readyFixture(uploads, t)
	store.session = session
	store.theme = theme

	proc.Process(1)

	assert.True(t, store.processing)
	assert.False(t, store.failed, "failed with: %s", store.failedMessage)
	require.True(t, store.done)
	assert.Equal(t, "/static/results/debug_in.png", store.doneResult)

	resultBytes, err := os.ReadFile(filepath.Join(results, "debug_in.png"))
	require.NoError(t, err)
	assert.Equal(t, inputBytes, resultBytes)

	// compression of the copy is best effort and should have succeeded
	assert.True(t, store.doneCompressed.Valid)
	assert.Contains(t, store.doneCompressed.String, "/static/compressed/")
}

func TestProcess_SessionNotReadyFailsJob(t *testing.T) {
	store := &fakeStore{
		job:     &models.Job{ID: 2, SessionID: 7, Mode: models.JobModeEvent, Status: models.JobStatusQueued},
		session: &models.PhotoSession{ID: 7, UserID: 1, Status: models.SessionStatusDraft},
	}
	proc, _, _ := newTestProcessor(t, store, nil, 180*time.Second)

	proc.Process(2)

	assert.True(t, store.failed)
	assert.False(t, store.done)
	assert.Contains(t, store.failedMessage, "missing")
}

func TestProcess_MissingInputFileFailsJob(t *testing.T) {
	store := &fakeStore{
		job: &models.Job{ID: 3, SessionID: 7, Mode: models.JobModeDebugging, Status: models.JobStatusQueued},
		session: &models.PhotoSession{
			ID:             7,
			UserID:         1,
			ThemeID:        sql.NullString{String: "royal-palace", Valid: true},
			InputImagePath: sql.NullString{String: "/static/uploads/gone.png", Valid: true},
			Status:         models.SessionStatusPhotoUploaded,
		},
		theme: &models.Theme{ID: "royal-palace", Prompt: "a palace"},
	}
	proc, _, _ := newTestProcessor(t, store, nil, 180*time.Second)

	proc.Process(3)

	assert.True(t, store.failed)
	assert.Contains(t, store.failedMessage, "not found")
}

func TestProcess_OverlayApplied(t *testing.T) {
	store := &fakeStore{
		job: &models.Job{
			ID:               4,
			SessionID:        7,
			Mode:             models.JobModeDebugging,
			Status:           models.JobStatusQueued,
			OverlayImagePath: sql.NullString{String: "/static/overlays/frame.png", Valid: true},
		},
	}
	proc, uploads, results := newTestProcessor(t, store, nil, 180*time.Second)
	session, theme, _ := readyFixture(uploads, t)
	store.session = session
	store.theme = theme

	overlay := imaging.New(40, 60, color.NRGBA{A: 0})
	overlaysDir := filepath.Join(filepath.Dir(uploads), "overlays")
	require.NoError(t, imaging.Save(overlay, filepath.Join(overlaysDir, "frame.png")))

	proc.Process(4)

	assert.False(t, store.failed, "failed with: %s", store.failedMessage)
	require.True(t, store.done)
	assert.Equal(t, "/static/results/debug_in_framed.png", store.doneResult)

	// the pre-overlay intermediate is removed
	_, err := os.Stat(filepath.Join(results, "debug_in.png"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(results, "debug_in_framed.png"))
	assert.NoError(t, err)
}

func TestProcess_EventModeGeneratesResult(t *testing.T) {
	store := &fakeStore{
		job: &models.Job{ID: 5, SessionID: 7, Mode: models.JobModeEvent, Status: models.JobStatusQueued},
	}
	gen := &fakeGenerator{resultName: "gen_result.jpg"}
	proc, uploads, results := newTestProcessor(t, store, gen, 180*time.Second)
	session, theme, _ := readyFixture(uploads, t)
	theme.NegativePrompt = sql.NullString{String: "blurry, distorted", Valid: true}
	store.session = session
	store.theme = theme

	proc.Process(5)

	assert.False(t, store.failed, "failed with: %s", store.failedMessage)
	require.True(t, store.done)
	assert.Equal(t, "/static/results/gen_result.jpg", store.doneResult)
	assert.Equal(t, 1, gen.generateCalls)
	assert.Equal(t, "a palace\nAvoid: blurry, distorted", gen.lastPrompt)

	_, err := os.Stat(filepath.Join(results, "gen_result.jpg"))
	assert.NoError(t, err)
	assert.True(t, store.doneCompressed.Valid)
}

func TestProcess_EventModeTransientErrorIsRetried(t *testing.T) {
	store := &fakeStore{
		job: &models.Job{ID: 6, SessionID: 7, Mode: models.JobModeEvent, Status: models.JobStatusQueued},
	}
	gen := &fakeGenerator{resultName: "gen_result.jpg", failuresLeft: 1}
	proc, uploads, _ := newTestProcessor(t, store, gen, 180*time.Second)
	session, theme, _ := readyFixture(uploads, t)
	store.session = session
	store.theme = theme

	proc.Process(6)

	assert.False(t, store.failed, "failed with: %s", store.failedMessage)
	assert.True(t, store.done)
	assert.Equal(t, 2, gen.generateCalls)
}

func TestProcess_GenerationFailureFailsJob(t *testing.T) {
	store := &fakeStore{
		job: &models.Job{ID: 7, SessionID: 7, Mode: models.JobModeEvent, Status: models.JobStatusQueued},
	}
	gen := &fakeGenerator{resultName: "gen_result.jpg", failuresLeft: 99}
	proc, uploads, _ := newTestProcessor(t, store, gen, 180*time.Second)
	session, theme, _ := readyFixture(uploads, t)
	store.session = session
	store.theme = theme

	proc.Process(7)

	assert.True(t, store.failed)
	assert.False(t, store.done)
	assert.Equal(t, 3, gen.generateCalls)
	assert.Contains(t, store.failedMessage, "generation failed")
}

func TestProcess_SlowGenerationHitsElapsedCap(t *testing.T) {
	store := &fakeStore{
		job: &models.Job{ID: 8, SessionID: 7, Mode: models.JobModeEvent, Status: models.JobStatusQueued},
	}
	gen := &fakeGenerator{resultName: "gen_result.jpg", generateWait: 20 * time.Millisecond}
	proc, uploads, _ := newTestProcessor(t, store, gen, 5*time.Millisecond)
	session, theme, _ := readyFixture(uploads, t)
	store.session = session
	store.theme = theme

	proc.Process(8)

	assert.True(t, store.failed)
	assert.False(t, store.done)
	assert.Contains(t, store.failedMessage, "timed out")
}
