package job

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNoPipeline is recorded on jobs whose event name has no registered pipeline.
var ErrNoPipeline = errors.New("no pipeline registered for event")

// StepFailure reports that a step returned an error and the job was moved
// to the error status with that error's message. The failure is final;
// callers acknowledging work items treat it as handled.
type StepFailure struct {
	JobID     uuid.UUID
	Step      string
	StepIndex int
	Err       error
}

// Error implements the error interface for StepFailure.
func (e *StepFailure) Error() string {
	return fmt.Sprintf("job %s failed at step %q (%d): %v", e.JobID, e.Step, e.StepIndex, e.Err)
}

// Unwrap returns the step's error.
func (e *StepFailure) Unwrap() error {
	return e.Err
}

// IsStepFailure reports whether err is or wraps a *StepFailure.
func IsStepFailure(err error) bool {
	var sf *StepFailure
	return errors.As(err, &sf)
}

// Settled reports whether a work item that produced err needs no redelivery:
// the job ran to a terminal state or failed permanently.
func Settled(err error) bool {
	return err == nil || IsStepFailure(err)
}
