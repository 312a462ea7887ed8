package pipeline

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/PvtMilo/gen-ai/internal/models"
)

// ErrQueueFull is returned when the task buffer has no room left.
var ErrQueueFull = errors.New("job queue is full")

// RecoveryStore lists jobs that never reached a terminal state.
type RecoveryStore interface {
	ListUnfinishedJobs() ([]models.Job, error)
}

// Queue is an in-process job queue backed by a buffered channel and a
// fixed pool of workers. Jobs survive restarts through the database:
// Recover re-enqueues anything left queued or processing.
type Queue struct {
	tasks     chan int64
	processor *Processor
	logger    zerolog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewQueue(processor *Processor, size int, logger zerolog.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		tasks:     make(chan int64, size),
		processor: processor,
		logger:    logger,
	}
}

// Start launches the worker pool.
func (q *Queue) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info().Int("workers", workers).Int("capacity", cap(q.tasks)).Msg("Job queue started")
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for jobID := range q.tasks {
		q.logger.Debug().Int("worker", id).Int64("job_id", jobID).Msg("Worker picked up job")
		q.processor.Process(jobID)
	}
}

// Enqueue hands a job to the pool without blocking. Callers surface
// ErrQueueFull to the client instead of stalling the request.
func (q *Queue) Enqueue(jobID int64) error {
	select {
	case q.tasks <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Recover re-enqueues jobs interrupted by a previous shutdown. It runs
// once at startup, before the HTTP server accepts requests.
func (q *Queue) Recover(store RecoveryStore) error {
	jobs, err := store.ListUnfinishedJobs()
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := q.Enqueue(job.ID); err != nil {
			q.logger.Warn().Err(err).Int64("job_id", job.ID).Msg("Could not re-enqueue unfinished job")
			continue
		}
		q.logger.Info().Int64("job_id", job.ID).Str("status", job.Status).Msg("Re-enqueued unfinished job")
	}
	return nil
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.tasks)
	})
	q.wg.Wait()
}
