package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a second pending job for the same dedup key).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation is refused because
	// of the current state of the entity.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to begin or commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrResultNotFound indicates that the requested generation result does not exist.
	ErrResultNotFound = fmt.Errorf("%w: generation result", ErrNotFound)

	// ErrPendingResultExists indicates that a pending job already holds the dedup key.
	ErrPendingResultExists = fmt.Errorf("%w: pending generation result", ErrDuplicate)

	// ErrNotPending is returned when a write targets a job that already reached
	// a terminal status. The stored record is left unchanged.
	ErrNotPending = fmt.Errorf("%w: generation result is not pending", ErrUpdateFailed)

	// ErrStaleProgress is returned when a progress write would move the job's
	// step backwards. The stored record is left unchanged.
	ErrStaleProgress = fmt.Errorf("%w: progress step would regress", ErrUpdateFailed)

	// ErrCheckpointNotFound indicates that no memoized output exists for a step.
	ErrCheckpointNotFound = fmt.Errorf("%w: step checkpoint", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "generation_result")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
