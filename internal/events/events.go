package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
)

// ErrNoHandlers is returned when an event is emitted with nobody to receive it.
var ErrNoHandlers = errors.New("no event handlers registered")

// JobEvent asks the executor runtime to run a generation job.
// It carries only identifiers; the executor loads everything else from the
// result store, so a redelivered event always sees the current job state.
type JobEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// EventName selects the pipeline that runs the job
	EventName string `json:"event_name"`

	// JobID is the generation result the executor works on
	JobID uuid.UUID `json:"job_id"`

	// ObjectType and ObjectID identify the object the job belongs to
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewJobEvent creates a JobEvent for the given pending result.
func NewJobEvent(result *domain.GenerationResult) *JobEvent {
	return &JobEvent{
		ID:         uuid.New(),
		EventName:  result.EventName,
		JobID:      result.ID,
		ObjectType: result.ObjectType,
		ObjectID:   result.ObjectID,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks that the event can be routed to a job.
func (e *JobEvent) Validate() error {
	if e == nil {
		return errors.New("event cannot be nil")
	}
	if e.JobID == uuid.Nil {
		return domain.ErrEmptyResultID
	}
	if e.EventName == "" {
		return domain.ErrEmptyEventName
	}
	return nil
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *JobEvent) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *JobEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event.
	// A nil error means the event was accepted for delivery.
	EmitEvent(ctx context.Context, event *JobEvent) error
}
