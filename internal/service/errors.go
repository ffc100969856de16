package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in *DispatchError
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrInvalidJobSpec indicates a malformed job submission.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidJobSpec = errors.New("invalid job specification")

	// ErrUnknownEvent indicates that no pipeline is registered for the event name.
	// API layer should map this to HTTP 400 Bad Request.
	ErrUnknownEvent = errors.New("unknown event name")

	// ErrJobNotFound indicates that the job does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrJobNotFound = errors.New("job not found")
)

// DispatchError reports that a job could not be scheduled.
// No job is left blocking the dedup key when it is returned.
type DispatchError struct {
	// Operation is the step that failed (e.g., "find_pending", "publish")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for DispatchError.
func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("dispatch %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewDispatchError creates a new DispatchError.
// It returns known sentinel errors directly without wrapping.
func NewDispatchError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{ErrInvalidJobSpec, ErrUnknownEvent, ErrJobNotFound} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	return &DispatchError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
