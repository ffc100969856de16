package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
)

// Progress describes one checkpoint written while a job is pending.
type Progress struct {
	// Step is the name of the step that just completed.
	Step string

	// StepIndex is the 1-based position of Step in its pipeline.
	StepIndex int

	// Message is human-readable progress text.
	Message string

	// Partial replaces the stored result when non-empty.
	Partial json.RawMessage
}

// ResultStore defines the interface for generation result persistence.
//
// Only CreatePending inserts rows. UpdateProgress, Complete and Fail are
// conditional on the job still being pending, so a terminal record never
// changes again.
// Version: 1.0
type ResultStore interface {
	// CreatePending saves a new pending generation result.
	// Returns ErrPendingResultExists if a pending job already holds the same dedup key.
	CreatePending(ctx context.Context, result *domain.GenerationResult) error

	// FindPending retrieves the pending job for the given dedup key.
	// Returns ErrResultNotFound if none exists.
	FindPending(ctx context.Context, key domain.DedupKey) (*domain.GenerationResult, error)

	// GetByID retrieves a generation result by its job ID.
	// Returns ErrResultNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationResult, error)

	// UpdateProgress records a completed step.
	// Returns ErrNotPending if the job is terminal, ErrStaleProgress if the
	// step index is lower than the stored one, ErrResultNotFound if the job
	// does not exist.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress Progress) error

	// Complete transitions a pending job to complete with its final result.
	// Returns ErrNotPending if the job is already terminal.
	Complete(ctx context.Context, id uuid.UUID, message string, result json.RawMessage) error

	// Fail transitions a pending job to error with the given message.
	// Returns ErrNotPending if the job is already terminal.
	Fail(ctx context.Context, id uuid.UUID, message string) error

	// ListPending returns pending jobs last updated before the given time,
	// oldest first, up to limit rows.
	ListPending(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.GenerationResult, error)

	// DeleteTerminalBefore removes complete and error jobs last updated before
	// the cutoff and reports how many rows were removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CheckpointStore memoizes step outputs keyed by (job ID, step name) so a
// redelivered job can skip steps that already ran.
// Version: 1.0
type CheckpointStore interface {
	// LoadCheckpoint returns the memoized output of a step.
	// Returns ErrCheckpointNotFound if the step has not been checkpointed.
	LoadCheckpoint(ctx context.Context, jobID uuid.UUID, step string) (json.RawMessage, error)

	// SaveCheckpoint memoizes the output of a step. Saving the same step twice
	// overwrites the earlier output.
	SaveCheckpoint(ctx context.Context, jobID uuid.UUID, step string, output json.RawMessage) error

	// ClearCheckpoints removes every checkpoint of a job.
	ClearCheckpoints(ctx context.Context, jobID uuid.UUID) error
}
