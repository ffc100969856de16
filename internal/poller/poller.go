package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
)

// State is the lifecycle of a Poller.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Snapshot is one observation of a job.
type Snapshot[T any] struct {
	JobID     uuid.UUID
	Status    domain.ResultStatus
	Step      string
	StepIndex int
	Message   string
	// Partial is the raw result payload of a pending job.
	Partial json.RawMessage
	// Result is the decoded final result, set once Status is complete.
	Result  T
	Error   string
	Attempt int
}

// Poller follows one job until it settles. A Poller runs once.
type Poller[T any] struct {
	source     Source
	jobID      uuid.UUID
	opts       Options
	onProgress func(Snapshot[T])
	logger     *slog.Logger

	state atomic.Int32
}

// New creates a Poller for jobID. onProgress, when not nil, is called from
// the polling goroutine for every pending snapshot that does not move the
// job's step backwards.
func New[T any](source Source, jobID uuid.UUID, opts Options, onProgress func(Snapshot[T])) *Poller[T] {
	opts = opts.withDefaults()
	return &Poller[T]{
		source:     source,
		jobID:      jobID,
		opts:       opts,
		onProgress: onProgress,
		logger: opts.Logger.With(
			slog.String("component", "poller"),
			slog.String("job_id", jobID.String())),
	}
}

// State returns the current lifecycle state.
func (p *Poller[T]) State() State {
	return State(p.state.Load())
}

// Run polls until the job completes or fails, attempts run out, or ctx is
// done. It returns the final snapshot together with nil on completion, a
// *JobError when the job failed, a *TimeoutError when attempts ran out, a
// permanent source error, or ctx.Err().
func (p *Poller[T]) Run(ctx context.Context) (Snapshot[T], error) {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StatePolling)) {
		return Snapshot[T]{}, ErrAlreadyStarted
	}

	var (
		last    = Snapshot[T]{JobID: p.jobID}
		lastErr error
		timer   *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if timer == nil {
				timer = time.NewTimer(p.opts.Interval)
			} else {
				timer.Reset(p.opts.Interval)
			}
			select {
			case <-ctx.Done():
				p.state.Store(int32(StateFailed))
				return last, ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			p.state.Store(int32(StateFailed))
			return last, err
		}

		result, err := p.source.Fetch(ctx, p.jobID)
		if err != nil {
			if ctx.Err() != nil {
				p.state.Store(int32(StateFailed))
				return last, ctx.Err()
			}
			if isPermanent(err) {
				p.logger.Warn("status query rejected, giving up", slog.String("error", err.Error()))
				p.state.Store(int32(StateFailed))
				return last, err
			}
			lastErr = &TransportError{JobID: p.jobID, Attempt: attempt, Err: err}
			p.logger.Warn("status query failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}
		lastErr = nil

		snap := Snapshot[T]{
			JobID:     p.jobID,
			Status:    result.Status,
			Step:      result.Step,
			StepIndex: result.StepIndex,
			Message:   result.Message,
			Error:     result.Error,
			Attempt:   attempt,
		}

		switch result.Status {
		case domain.ResultStatusComplete:
			value, err := domain.DecodeResult[T](result)
			if err != nil && !errors.Is(err, domain.ErrNoResult) {
				p.state.Store(int32(StateFailed))
				return snap, fmt.Errorf("decode result of job %s: %w", p.jobID, err)
			}
			snap.Result = value
			p.state.Store(int32(StateCompleted))
			p.logger.Debug("job completed", slog.Int("attempts", attempt))
			return snap, nil

		case domain.ResultStatusError:
			p.state.Store(int32(StateFailed))
			return snap, &JobError{JobID: p.jobID, Step: result.Step, Message: result.Error}

		default:
			snap.Partial = result.Result
			if snap.StepIndex < last.StepIndex {
				p.logger.Debug("dropping out-of-order snapshot",
					slog.Int("step_index", snap.StepIndex),
					slog.Int("seen_step_index", last.StepIndex))
				last.Attempt = attempt
				continue
			}
			last = snap
			if p.onProgress != nil {
				p.onProgress(snap)
			}
		}
	}

	p.state.Store(int32(StateFailed))
	return last, &TimeoutError{
		JobID:    p.jobID,
		Attempts: p.opts.MaxAttempts,
		LastStep: last.Step,
		LastErr:  lastErr,
	}
}
