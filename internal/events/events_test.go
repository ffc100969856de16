package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult(t *testing.T) *domain.GenerationResult {
	t.Helper()
	r, err := domain.NewGenerationResult(domain.DedupKey{
		EventName:  "character/sheet/generate",
		ObjectType: "character",
		ObjectID:   "c-1",
		ObjectKey:  "sheet",
	}, json.RawMessage(`{}`))
	require.NoError(t, err)
	return r
}

func TestNewJobEvent(t *testing.T) {
	r := testResult(t)

	event := NewJobEvent(r)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, r.ID, event.JobID)
	assert.Equal(t, r.EventName, event.EventName)
	assert.Equal(t, "character", event.ObjectType)
	assert.Equal(t, "c-1", event.ObjectID)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)
	assert.NoError(t, event.Validate())

	// Events cross process boundaries as JSON.
	data, err := json.Marshal(event)
	require.NoError(t, err)
	var decoded JobEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.JobID, decoded.JobID)
	assert.Equal(t, event.EventName, decoded.EventName)
}

func TestJobEventValidate(t *testing.T) {
	var nilEvent *JobEvent
	assert.Error(t, nilEvent.Validate())
	assert.ErrorIs(t, (&JobEvent{EventName: "x"}).Validate(), domain.ErrEmptyResultID)
	assert.ErrorIs(t, (&JobEvent{JobID: uuid.New()}).Validate(), domain.ErrEmptyEventName)
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	// The last event received by this handler
	LastEvent *JobEvent
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *JobEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestEventHandlerFunc(t *testing.T) {
	var got *JobEvent
	handler := EventHandlerFunc(func(ctx context.Context, event *JobEvent) error {
		got = event
		return errors.New("handler error")
	})

	event := NewJobEvent(testResult(t))
	err := handler.HandleEvent(context.Background(), event)
	assert.EqualError(t, err, "handler error")
	assert.Same(t, event, got)
}
