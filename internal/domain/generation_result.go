package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResultStatus represents the lifecycle state of a generation job
type ResultStatus string

// Possible result status values
const (
	ResultStatusPending  ResultStatus = "pending"
	ResultStatusComplete ResultStatus = "complete"
	ResultStatusError    ResultStatus = "error"
)

// Common validation errors for GenerationResult
var (
	ErrEmptyResultID        = errors.New("generation result ID cannot be empty")
	ErrEmptyEventName       = errors.New("event name cannot be empty")
	ErrEmptyObjectType      = errors.New("object type cannot be empty")
	ErrEmptyObjectID        = errors.New("object ID cannot be empty")
	ErrEmptyObjectKey       = errors.New("object key cannot be empty")
	ErrInvalidResultStatus  = errors.New("invalid generation result status")
	ErrInvalidResultPayload = errors.New("generation result payload must be valid JSON")
	ErrNoResult             = errors.New("generation result has no result payload")
)

// DedupKey identifies the logical work a job performs. At most one pending
// job may exist per key.
type DedupKey struct {
	EventName  string `json:"event_name"`
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
	ObjectKey  string `json:"object_key"`
}

// Validate checks that every component of the key is present.
func (k DedupKey) Validate() error {
	switch {
	case strings.TrimSpace(k.EventName) == "":
		return ErrEmptyEventName
	case strings.TrimSpace(k.ObjectType) == "":
		return ErrEmptyObjectType
	case strings.TrimSpace(k.ObjectID) == "":
		return ErrEmptyObjectID
	case strings.TrimSpace(k.ObjectKey) == "":
		return ErrEmptyObjectKey
	}
	return nil
}

// String renders the key for logs.
func (k DedupKey) String() string {
	return fmt.Sprintf("%s:%s/%s/%s", k.EventName, k.ObjectType, k.ObjectID, k.ObjectKey)
}

// GenerationResult is the persistent record of one generation job. It is
// created pending by the dispatcher and mutated only by the executor that
// owns the job until it reaches a terminal status.
type GenerationResult struct {
	ID         uuid.UUID       `json:"id"`
	EventName  string          `json:"event_name"`
	ObjectType string          `json:"object_type"`
	ObjectID   string          `json:"object_id"`
	ObjectKey  string          `json:"object_key"`
	Status     ResultStatus    `json:"status"`
	Step       string          `json:"step,omitempty"`
	StepIndex  int             `json:"step_index"`
	Message    string          `json:"message,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewGenerationResult creates a pending GenerationResult for the given key.
// It generates a new job ID and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewGenerationResult(key DedupKey, payload json.RawMessage) (*GenerationResult, error) {
	now := time.Now().UTC()
	r := &GenerationResult{
		ID:         uuid.New(),
		EventName:  key.EventName,
		ObjectType: key.ObjectType,
		ObjectID:   key.ObjectID,
		ObjectKey:  key.ObjectKey,
		Status:     ResultStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// Key returns the dedup key of the job.
func (r *GenerationResult) Key() DedupKey {
	return DedupKey{
		EventName:  r.EventName,
		ObjectType: r.ObjectType,
		ObjectID:   r.ObjectID,
		ObjectKey:  r.ObjectKey,
	}
}

// Validate checks if the GenerationResult has valid data.
func (r *GenerationResult) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyResultID
	}

	if err := r.Key().Validate(); err != nil {
		return err
	}

	if !r.Status.Valid() {
		return ErrInvalidResultStatus
	}

	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		return ErrInvalidResultPayload
	}

	return nil
}

// IsTerminal reports whether the job reached complete or error.
func (r *GenerationResult) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// Valid reports whether s is a known status.
func (s ResultStatus) Valid() bool {
	switch s {
	case ResultStatusPending, ResultStatusComplete, ResultStatusError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s ResultStatus) IsTerminal() bool {
	return s == ResultStatusComplete || s == ResultStatusError
}

// DecodeResult unmarshals the stored result payload into T.
// Returns ErrNoResult when the record carries no payload yet.
func DecodeResult[T any](r *GenerationResult) (T, error) {
	var out T
	if r == nil || len(r.Result) == 0 {
		return out, ErrNoResult
	}
	if err := json.Unmarshal(r.Result, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return out, nil
}
