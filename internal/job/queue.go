package job

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Common errors returned by the Queue
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// Queue is a bounded in-memory queue of job IDs.
type Queue struct {
	mu     sync.RWMutex
	jobs   chan uuid.UUID
	logger *slog.Logger
	closed bool
}

// NewQueue creates a new queue with the specified buffer size
func NewQueue(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:   make(chan uuid.UUID, size),
		logger: logger,
	}
}

// Enqueue adds a job to the queue without blocking.
// Returns an error if the queue is full or closed
func (q *Queue) Enqueue(jobID uuid.UUID) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- jobID:
		q.logger.Debug("job enqueued",
			"job_id", jobID,
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Close closes the queue, preventing further submission. Jobs already
// queued can still be received.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("job queue closed")
	}
}

// Jobs returns a read-only channel for consuming job IDs
func (q *Queue) Jobs() <-chan uuid.UUID {
	return q.jobs
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}
