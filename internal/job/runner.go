package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/events"
)

// JobExecutor runs one job to a terminal state.
type JobExecutor interface {
	Execute(ctx context.Context, jobID uuid.UUID) error
}

// RunnerConfig holds configuration for the runner
type RunnerConfig struct {
	// WorkerCount determines how many jobs execute concurrently
	WorkerCount int

	// QueueSize determines the buffer size of the in-memory job queue
	QueueSize int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// Runner executes queued jobs on a pool of worker goroutines.
//
// A job ID is tracked from Submit until its execution returns; submitting it
// again meanwhile is a no-op, so one process never runs the same job twice
// at once. Runner implements events.EventHandler for the in-memory bus.
type Runner struct {
	executor JobExecutor
	queue    *Queue
	config   RunnerConfig
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRunner creates a new Runner
func NewRunner(executor JobExecutor, config RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "runner"))

	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		executor: executor,
		queue:    NewQueue(config.QueueSize, logger),
		config:   config,
		logger:   logger,
		inflight: make(map[uuid.UUID]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

var _ events.EventHandler = (*Runner)(nil)

// HandleEvent implements events.EventHandler by queueing the event's job.
func (r *Runner) HandleEvent(_ context.Context, event *events.JobEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.Submit(event.JobID)
}

// Submit queues a job for execution. A job that is already queued or
// running is not queued twice.
func (r *Runner) Submit(jobID uuid.UUID) error {
	r.mu.Lock()
	if _, busy := r.inflight[jobID]; busy {
		r.mu.Unlock()
		r.logger.Debug("job already scheduled", "job_id", jobID)
		return nil
	}
	r.inflight[jobID] = struct{}{}
	r.mu.Unlock()

	if err := r.queue.Enqueue(jobID); err != nil {
		r.release(jobID)
		return err
	}
	return nil
}

// Start launches the worker goroutines
func (r *Runner) Start() {
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.logger.Info("runner started", "worker_count", r.config.WorkerCount)
}

// Stop cancels running jobs, closes the queue and waits for the workers.
// Interrupted jobs stay pending and are picked up by a later sweep.
func (r *Runner) Stop() {
	r.once.Do(func() {
		r.cancel()
		r.queue.Close()
		r.wg.Wait()
		r.logger.Info("runner stopped", "abandoned", r.queue.Len())
	})
}

// Inflight returns the number of queued or running jobs.
func (r *Runner) Inflight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case jobID, ok := <-r.queue.Jobs():
			if !ok {
				r.logger.Debug("job queue closed, stopping worker", "worker_id", id)
				return
			}
			r.process(jobID, id)
		}
	}
}

func (r *Runner) process(jobID uuid.UUID, workerID int) {
	defer r.release(jobID)

	log := r.logger.With("job_id", jobID, "worker_id", workerID)
	log.Debug("executing job")

	err := r.executor.Execute(r.ctx, jobID)
	switch {
	case err == nil:
	case IsStepFailure(err):
		// Already recorded on the job by the executor.
	case errors.Is(err, context.Canceled):
		log.Info("job interrupted by shutdown")
	default:
		log.Error("job execution failed, leaving it for redelivery", "error", err)
	}
}

func (r *Runner) release(jobID uuid.UUID) {
	r.mu.Lock()
	delete(r.inflight, jobID)
	r.mu.Unlock()
}
