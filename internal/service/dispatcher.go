package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/events"
	"github.com/phrazzld/genjobs/internal/platform/logger"
	"github.com/phrazzld/genjobs/internal/store"
)

// createAttempts bounds the find-or-create loop when racing dispatches keep
// finishing the winning job before it can be read back.
const createAttempts = 3

// JobSpec describes the work a caller wants done.
type JobSpec struct {
	EventName  string          `json:"event_name"  validate:"required,max=128"`
	ObjectType string          `json:"object_type" validate:"required,max=64"`
	ObjectID   string          `json:"object_id"   validate:"required,max=128"`
	ObjectKey  string          `json:"object_key"  validate:"required,max=128"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Key returns the dedup key of the spec.
func (s JobSpec) Key() domain.DedupKey {
	return domain.DedupKey{
		EventName:  s.EventName,
		ObjectType: s.ObjectType,
		ObjectID:   s.ObjectID,
		ObjectKey:  s.ObjectKey,
	}
}

// DispatchResult identifies the job that will perform the requested work.
type DispatchResult struct {
	JobID  uuid.UUID           `json:"job_id"`
	Status domain.ResultStatus `json:"status"`
	// Deduplicated is true when an in-flight job was reused.
	Deduplicated bool `json:"deduplicated"`
}

// PipelineCatalog reports which event names can be executed.
type PipelineCatalog interface {
	Has(eventName string) bool
}

// Dispatcher schedules generation jobs.
type Dispatcher struct {
	results   store.ResultStore
	emitter   events.EventEmitter
	catalog   PipelineCatalog
	validator *validator.Validate
	logger    *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	results store.ResultStore,
	emitter events.EventEmitter,
	catalog PipelineCatalog,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		results:   results,
		emitter:   emitter,
		catalog:   catalog,
		validator: validator.New(),
		logger:    logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch returns the pending job for the spec's dedup key, creating it and
// publishing its work item when none is in flight. Concurrent calls for the
// same key resolve to the same job.
func (d *Dispatcher) Dispatch(ctx context.Context, spec JobSpec) (DispatchResult, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	if err := d.validator.Struct(spec); err != nil {
		return DispatchResult{}, fmt.Errorf("%w: %w", ErrInvalidJobSpec, err)
	}
	if len(spec.Payload) > 0 && !json.Valid(spec.Payload) {
		return DispatchResult{}, fmt.Errorf("%w: payload must be valid JSON", ErrInvalidJobSpec)
	}
	if !d.catalog.Has(spec.EventName) {
		return DispatchResult{}, fmt.Errorf("%w: %s", ErrUnknownEvent, spec.EventName)
	}

	key := spec.Key()
	log = log.With(slog.String("dedup_key", key.String()))

	for attempt := 1; attempt <= createAttempts; attempt++ {
		existing, err := d.results.FindPending(ctx, key)
		if err == nil {
			log.Debug("reusing in-flight job", slog.String("job_id", existing.ID.String()))
			return DispatchResult{JobID: existing.ID, Status: existing.Status, Deduplicated: true}, nil
		}
		if !errors.Is(err, store.ErrResultNotFound) {
			log.Error("failed to look up pending job", slog.String("error", err.Error()))
			return DispatchResult{}, NewDispatchError("find_pending", "result store unavailable", err)
		}

		result, err := domain.NewGenerationResult(key, spec.Payload)
		if err != nil {
			return DispatchResult{}, fmt.Errorf("%w: %v", ErrInvalidJobSpec, err)
		}

		err = d.results.CreatePending(ctx, result)
		if store.IsDuplicateError(err) {
			// Lost the race; read the winner on the next pass.
			log.Debug("concurrent dispatch created the job first", slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			log.Error("failed to create pending job", slog.String("error", err.Error()))
			return DispatchResult{}, NewDispatchError("create_pending", "result store unavailable", err)
		}

		if err := d.publish(ctx, result); err != nil {
			return DispatchResult{}, err
		}

		log.Info("job dispatched",
			slog.String("job_id", result.ID.String()),
			slog.String("event_name", result.EventName))
		return DispatchResult{JobID: result.ID, Status: result.Status}, nil
	}

	return DispatchResult{}, NewDispatchError("create_pending", "could not settle concurrent dispatches",
		store.ErrPendingResultExists)
}

// publish emits the job's work item. When that fails the job is failed, so
// it does not hold the dedup key without anything working on it.
func (d *Dispatcher) publish(ctx context.Context, result *domain.GenerationResult) error {
	log := logger.FromContextOrDefault(ctx, d.logger)

	err := d.emitter.EmitEvent(ctx, events.NewJobEvent(result))
	if err == nil {
		return nil
	}

	log.Error("failed to publish job event",
		slog.String("job_id", result.ID.String()),
		slog.String("error", err.Error()))

	if failErr := d.results.Fail(ctx, result.ID, "dispatch failed: "+err.Error()); failErr != nil {
		log.Error("failed to release job after publish failure",
			slog.String("job_id", result.ID.String()),
			slog.String("error", failErr.Error()))
	}

	return NewDispatchError("publish", "event bus unavailable", err)
}

// Status returns the current record of a job.
func (d *Dispatcher) Status(ctx context.Context, jobID uuid.UUID) (*domain.GenerationResult, error) {
	result, err := d.results.GetByID(ctx, jobID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrJobNotFound
		}
		return nil, NewDispatchError("get_status", "result store unavailable", err)
	}
	return result, nil
}
