package poller

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Errors returned by sources for failures that polling again cannot fix.
var (
	ErrJobNotFound  = errors.New("job not found")
	ErrUnauthorized = errors.New("not authorized to read job")
	ErrRejected     = errors.New("status request rejected")
)

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("poller already started")

// JobError reports that the job itself failed. Message is the error text
// stored on the job, unchanged.
type JobError struct {
	JobID   uuid.UUID
	Step    string
	Message string
}

func (e *JobError) Error() string {
	return e.Message
}

// TimeoutError reports that the job was still pending after the last
// allowed attempt. It says nothing about the job's eventual outcome.
type TimeoutError struct {
	JobID    uuid.UUID
	Attempts int
	// LastStep is the last progress step observed, if any.
	LastStep string
	// LastErr is the last transport error, if the final attempts failed.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("job %s still pending after %d attempts", e.JobID, e.Attempts)
	if e.LastStep != "" {
		msg += fmt.Sprintf(" (last step %q)", e.LastStep)
	}
	return msg
}

// Unwrap returns the last transport error.
func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

// TransportError wraps a failed status query. Polling continues after one.
type TransportError struct {
	JobID   uuid.UUID
	Attempt int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("status query %d for job %s failed: %v", e.Attempt, e.JobID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrRejected)
}
