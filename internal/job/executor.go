package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/platform/logger"
	"github.com/phrazzld/genjobs/internal/store"
)

// Executor runs the pipeline of a pending job, one step at a time.
//
// Execute is safe to call again for the same job: terminal jobs are left
// alone and checkpointed steps are not re-run. It returns nil once the job is
// terminal, a *StepFailure when a step failed the job, and any other error
// when the job is still pending and should be delivered again.
type Executor struct {
	results     store.ResultStore
	checkpoints store.CheckpointStore
	registry    *Registry
	logger      *slog.Logger
	now         func() time.Time
}

// NewExecutor creates a new Executor.
func NewExecutor(
	results store.ResultStore,
	checkpoints store.CheckpointStore,
	registry *Registry,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		results:     results,
		checkpoints: checkpoints,
		registry:    registry,
		logger:      logger.With(slog.String("component", "executor")),
		now:         time.Now,
	}
}

// Execute runs the job with the given ID to completion.
func (e *Executor) Execute(ctx context.Context, jobID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, e.logger).With(slog.String("job_id", jobID.String()))
	ctx = logger.WithLogger(ctx, log)

	job, err := e.results.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrResultNotFound) {
			log.Warn("job not found, dropping work item")
			return nil
		}
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	if job.IsTerminal() {
		log.Debug("job already terminal, skipping", slog.String("status", string(job.Status)))
		return nil
	}

	log = log.With(slog.String("event_name", job.EventName))
	ctx = logger.WithLogger(ctx, log)

	pipeline, ok := e.registry.Lookup(job.EventName)
	if !ok {
		cause := fmt.Errorf("%w: %s", ErrNoPipeline, job.EventName)
		return e.fail(ctx, job, "", 0, cause)
	}

	started := e.now()
	state := newState(job)

	for i, step := range pipeline.Steps {
		index := i + 1

		if err := ctx.Err(); err != nil {
			log.Info("execution interrupted between steps", slog.Int("next_step", index))
			return err
		}

		output, memoized, err := e.runStep(ctx, job.ID, step, state)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("execution interrupted during step", slog.String("step", step.Name))
				return ctx.Err()
			}
			var infra *checkpointError
			if errors.As(err, &infra) {
				return err
			}
			return e.fail(ctx, job, step.Name, index, err)
		}
		state.outputs[step.Name] = output

		// A memoized step at or behind the stored position was already reported.
		if memoized && index <= job.StepIndex {
			continue
		}

		err = e.results.UpdateProgress(ctx, job.ID, store.Progress{
			Step:      step.Name,
			StepIndex: index,
			Message:   step.Message,
			Partial:   output,
		})
		switch {
		case err == nil:
			log.Debug("step finished",
				slog.String("step", step.Name),
				slog.Int("step_index", index),
				slog.Bool("memoized", memoized))
		case errors.Is(err, store.ErrNotPending), errors.Is(err, store.ErrStaleProgress):
			log.Warn("job advanced elsewhere, stopping", slog.String("reason", err.Error()))
			return nil
		default:
			return fmt.Errorf("record progress of step %q: %w", step.Name, err)
		}
	}

	result, err := pipeline.finalize(ctx, state)
	if err != nil {
		return e.fail(ctx, job, "finalize", len(pipeline.Steps), err)
	}

	if err := e.results.Complete(ctx, job.ID, pipeline.FinalMessage, result); err != nil {
		if errors.Is(err, store.ErrNotPending) {
			log.Warn("job finished elsewhere before completion")
			return nil
		}
		return fmt.Errorf("complete job: %w", err)
	}

	e.clearCheckpoints(ctx, job.ID)

	log.Info("job completed", slog.Duration("duration", e.now().Sub(started)))
	return nil
}

// checkpointError marks a checkpoint store failure, which leaves the job
// pending for redelivery instead of failing it.
type checkpointError struct {
	err error
}

func (e *checkpointError) Error() string { return e.err.Error() }
func (e *checkpointError) Unwrap() error { return e.err }

// runStep returns the memoized output of step when one exists, and runs the
// step otherwise.
func (e *Executor) runStep(
	ctx context.Context,
	jobID uuid.UUID,
	step Step,
	state *State,
) (json.RawMessage, bool, error) {
	cached, err := e.checkpoints.LoadCheckpoint(ctx, jobID, step.Name)
	switch {
	case err == nil:
		return cached, true, nil
	case !errors.Is(err, store.ErrCheckpointNotFound):
		return nil, false, &checkpointError{fmt.Errorf("load checkpoint %q: %w", step.Name, err)}
	}

	stepCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	value, err := safeRun(stepCtx, step, state)
	if err != nil {
		return nil, false, err
	}

	output, err := encodeOutput(value)
	if err != nil {
		return nil, false, fmt.Errorf("encode output: %w", err)
	}

	if err := e.checkpoints.SaveCheckpoint(ctx, jobID, step.Name, output); err != nil {
		return nil, false, &checkpointError{fmt.Errorf("save checkpoint %q: %w", step.Name, err)}
	}
	return output, false, nil
}

func safeRun(ctx context.Context, step Step, state *State) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("step %q panicked: %v", step.Name, p)
		}
	}()
	return step.Run(ctx, state)
}

// fail records cause as the job's error message and returns a *StepFailure.
func (e *Executor) fail(ctx context.Context, job *domain.GenerationResult, step string, index int, cause error) error {
	log := logger.FromContextOrDefault(ctx, e.logger)

	if err := e.results.Fail(ctx, job.ID, cause.Error()); err != nil {
		if errors.Is(err, store.ErrNotPending) {
			log.Warn("job finished elsewhere before failure was recorded")
			return nil
		}
		return fmt.Errorf("record failure of job: %w", err)
	}

	e.clearCheckpoints(ctx, job.ID)

	log.Error("job failed",
		slog.String("step", step),
		slog.Int("step_index", index),
		slog.String("error", cause.Error()))

	return &StepFailure{JobID: job.ID, Step: step, StepIndex: index, Err: cause}
}

func (e *Executor) clearCheckpoints(ctx context.Context, jobID uuid.UUID) {
	if err := e.checkpoints.ClearCheckpoints(ctx, jobID); err != nil {
		logger.FromContextOrDefault(ctx, e.logger).Warn("failed to clear checkpoints",
			slog.String("error", err.Error()))
	}
}
