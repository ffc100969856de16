package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/store"
)

type checkpointKey struct {
	jobID uuid.UUID
	step  string
}

// MockCheckpointStore implements store.CheckpointStore in memory for testing
type MockCheckpointStore struct {
	LoadCheckpointFn   func(ctx context.Context, jobID uuid.UUID, step string) (json.RawMessage, error)
	SaveCheckpointFn   func(ctx context.Context, jobID uuid.UUID, step string, output json.RawMessage) error
	ClearCheckpointsFn func(ctx context.Context, jobID uuid.UUID) error

	mu          sync.Mutex
	checkpoints map[checkpointKey]json.RawMessage
}

// NewMockCheckpointStore creates an empty MockCheckpointStore
func NewMockCheckpointStore() *MockCheckpointStore {
	return &MockCheckpointStore{checkpoints: make(map[checkpointKey]json.RawMessage)}
}

var _ store.CheckpointStore = (*MockCheckpointStore)(nil)

// LoadCheckpoint implements the CheckpointStore interface
func (m *MockCheckpointStore) LoadCheckpoint(ctx context.Context, jobID uuid.UUID, step string) (json.RawMessage, error) {
	if m.LoadCheckpointFn != nil {
		return m.LoadCheckpointFn(ctx, jobID, step)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out, ok := m.checkpoints[checkpointKey{jobID, step}]
	if !ok {
		return nil, store.ErrCheckpointNotFound
	}
	return append(json.RawMessage(nil), out...), nil
}

// SaveCheckpoint implements the CheckpointStore interface
func (m *MockCheckpointStore) SaveCheckpoint(ctx context.Context, jobID uuid.UUID, step string, output json.RawMessage) error {
	if m.SaveCheckpointFn != nil {
		return m.SaveCheckpointFn(ctx, jobID, step, output)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[checkpointKey{jobID, step}] = append(json.RawMessage(nil), output...)
	return nil
}

// ClearCheckpoints implements the CheckpointStore interface
func (m *MockCheckpointStore) ClearCheckpoints(ctx context.Context, jobID uuid.UUID) error {
	if m.ClearCheckpointsFn != nil {
		return m.ClearCheckpointsFn(ctx, jobID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.checkpoints {
		if k.jobID == jobID {
			delete(m.checkpoints, k)
		}
	}
	return nil
}

// Count returns the number of checkpoints stored for a job.
func (m *MockCheckpointStore) Count(jobID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.checkpoints {
		if k.jobID == jobID {
			n++
		}
	}
	return n
}
