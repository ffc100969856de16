package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/genjobs/internal/events"
)

// MockEventEmitter implements events.EventEmitter and records emitted events
type MockEventEmitter struct {
	EmitEventFn func(ctx context.Context, event *events.JobEvent) error

	// Err is returned by EmitEvent when EmitEventFn is nil
	Err error

	mu      sync.Mutex
	emitted []*events.JobEvent
}

var _ events.EventEmitter = (*MockEventEmitter)(nil)

// EmitEvent implements the EventEmitter interface
func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.JobEvent) error {
	m.mu.Lock()
	m.emitted = append(m.emitted, event)
	m.mu.Unlock()

	if m.EmitEventFn != nil {
		return m.EmitEventFn(ctx, event)
	}
	return m.Err
}

// Events returns the events emitted so far.
func (m *MockEventEmitter) Events() []*events.JobEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*events.JobEvent(nil), m.emitted...)
}
