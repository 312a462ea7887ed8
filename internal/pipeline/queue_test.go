package pipeline_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/PvtMilo/gen-ai/internal/models"
	"github.com/PvtMilo/gen-ai/internal/pipeline"
)

type fakeRecoveryStore struct {
	jobs []models.Job
}

func (f *fakeRecoveryStore) ListUnfinishedJobs() ([]models.Job, error) {
	return f.jobs, nil
}

func TestQueue_EnqueueRejectsWhenFull(t *testing.T) {
	q := pipeline.NewQueue(nil, 1, zerolog.Nop())

	assert.NoError(t, q.Enqueue(1))
	assert.ErrorIs(t, q.Enqueue(2), pipeline.ErrQueueFull)
}

func TestQueue_RecoverReenqueuesUnfinishedJobs(t *testing.T) {
	q := pipeline.NewQueue(nil, 4, zerolog.Nop())
	store := &fakeRecoveryStore{jobs: []models.Job{
		{ID: 10, Status: models.JobStatusQueued},
		{ID: 11, Status: models.JobStatusProcessing},
	}}

	assert.NoError(t, q.Recover(store))

	// the buffer now holds both recovered jobs
	assert.NoError(t, q.Enqueue(12))
	assert.NoError(t, q.Enqueue(13))
	assert.ErrorIs(t, q.Enqueue(14), pipeline.ErrQueueFull)
}
