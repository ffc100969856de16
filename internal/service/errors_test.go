package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDispatchError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		operation string
		message   string
		err       error
		expected  string
		wrapped   bool
	}{
		{
			name:      "wraps store failure",
			operation: "create_pending",
			message:   "result store unavailable",
			err:       cause,
			expected:  "dispatch create_pending failed: result store unavailable: connection refused",
			wrapped:   true,
		},
		{
			name:      "passes invalid spec through",
			operation: "create_pending",
			message:   "ignored",
			err:       fmt.Errorf("%w: object_id is required", ErrInvalidJobSpec),
			expected:  "invalid job specification: object_id is required",
		},
		{
			name:      "passes unknown event through",
			operation: "publish",
			message:   "ignored",
			err:       ErrUnknownEvent,
			expected:  "unknown event name",
		},
		{
			name:      "passes missing job through",
			operation: "get_status",
			message:   "ignored",
			err:       ErrJobNotFound,
			expected:  "job not found",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := NewDispatchError(tc.operation, tc.message, tc.err)
			assert.EqualError(t, err, tc.expected)
			assert.ErrorIs(t, err, tc.err)

			var de *DispatchError
			assert.Equal(t, tc.wrapped, errors.As(err, &de))
			if tc.wrapped {
				assert.Equal(t, tc.operation, de.Operation)
			}
		})
	}
}

func TestNewDispatchError_Nil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NewDispatchError("publish", "event bus unavailable", nil))
}

func TestDispatchError_WithoutCause(t *testing.T) {
	t.Parallel()

	err := &DispatchError{Operation: "publish", Message: "event bus unavailable"}
	assert.Equal(t, "dispatch publish failed: event bus unavailable", err.Error())
	assert.Nil(t, err.Unwrap())
}
