package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/domain"
	"github.com/phrazzld/genjobs/internal/store"
)

// MockResultStore implements store.ResultStore for testing.
//
// Without overrides it behaves like the SQL store: one pending result per
// dedup key, conditional writes on pending jobs and non-regressing progress.
// Each method can be replaced through its Fn field.
type MockResultStore struct {
	CreatePendingFn        func(ctx context.Context, result *domain.GenerationResult) error
	FindPendingFn          func(ctx context.Context, key domain.DedupKey) (*domain.GenerationResult, error)
	GetByIDFn              func(ctx context.Context, id uuid.UUID) (*domain.GenerationResult, error)
	UpdateProgressFn       func(ctx context.Context, id uuid.UUID, progress store.Progress) error
	CompleteFn             func(ctx context.Context, id uuid.UUID, message string, result json.RawMessage) error
	FailFn                 func(ctx context.Context, id uuid.UUID, message string) error
	ListPendingFn          func(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.GenerationResult, error)
	DeleteTerminalBeforeFn func(ctx context.Context, cutoff time.Time) (int64, error)

	mu       sync.Mutex
	results  map[uuid.UUID]*domain.GenerationResult
	progress map[uuid.UUID][]store.Progress
}

// NewMockResultStore creates a new mock store with initialized defaults
func NewMockResultStore() *MockResultStore {
	return &MockResultStore{
		results:  make(map[uuid.UUID]*domain.GenerationResult),
		progress: make(map[uuid.UUID][]store.Progress),
	}
}

var _ store.ResultStore = (*MockResultStore)(nil)

// Put stores a copy of result as is, bypassing all checks.
func (m *MockResultStore) Put(result *domain.GenerationResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.ID] = clone(result)
}

// ProgressWrites returns every accepted progress write of a job in order.
func (m *MockResultStore) ProgressWrites(id uuid.UUID) []store.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Progress(nil), m.progress[id]...)
}

// Len returns the number of stored results.
func (m *MockResultStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// CreatePending implements the ResultStore interface
func (m *MockResultStore) CreatePending(ctx context.Context, result *domain.GenerationResult) error {
	if m.CreatePendingFn != nil {
		return m.CreatePendingFn(ctx, result)
	}

	if err := result.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.results[result.ID]; exists {
		return store.ErrDuplicate
	}
	if m.findPendingLocked(result.Key()) != nil {
		return store.ErrPendingResultExists
	}
	m.results[result.ID] = clone(result)
	return nil
}

// FindPending implements the ResultStore interface
func (m *MockResultStore) FindPending(ctx context.Context, key domain.DedupKey) (*domain.GenerationResult, error) {
	if m.FindPendingFn != nil {
		return m.FindPendingFn(ctx, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r := m.findPendingLocked(key); r != nil {
		return clone(r), nil
	}
	return nil, store.ErrResultNotFound
}

// GetByID implements the ResultStore interface
func (m *MockResultStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationResult, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.results[id]
	if !ok {
		return nil, store.ErrResultNotFound
	}
	return clone(r), nil
}

// UpdateProgress implements the ResultStore interface
func (m *MockResultStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress store.Progress) error {
	if m.UpdateProgressFn != nil {
		return m.UpdateProgressFn(ctx, id, progress)
	}
	if len(progress.Partial) > 0 && !json.Valid(progress.Partial) {
		return store.ErrInvalidEntity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.pendingLocked(id)
	if err != nil {
		return err
	}
	if progress.StepIndex < r.StepIndex {
		return store.ErrStaleProgress
	}

	r.Step = progress.Step
	r.StepIndex = progress.StepIndex
	r.Message = progress.Message
	if len(progress.Partial) > 0 {
		r.Result = append(json.RawMessage(nil), progress.Partial...)
	}
	r.UpdatedAt = time.Now().UTC()
	m.progress[id] = append(m.progress[id], progress)
	return nil
}

// Complete implements the ResultStore interface
func (m *MockResultStore) Complete(ctx context.Context, id uuid.UUID, message string, result json.RawMessage) error {
	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, id, message, result)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.pendingLocked(id)
	if err != nil {
		return err
	}
	r.Status = domain.ResultStatusComplete
	r.Message = message
	r.Result = append(json.RawMessage(nil), result...)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail implements the ResultStore interface
func (m *MockResultStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	if m.FailFn != nil {
		return m.FailFn(ctx, id, message)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.pendingLocked(id)
	if err != nil {
		return err
	}
	r.Status = domain.ResultStatusError
	r.Error = message
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// ListPending implements the ResultStore interface
func (m *MockResultStore) ListPending(
	ctx context.Context,
	updatedBefore time.Time,
	limit int,
) ([]*domain.GenerationResult, error) {
	if m.ListPendingFn != nil {
		return m.ListPendingFn(ctx, updatedBefore, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.GenerationResult
	for _, r := range m.results {
		if r.Status == domain.ResultStatusPending && r.UpdatedAt.Before(updatedBefore) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteTerminalBefore implements the ResultStore interface
func (m *MockResultStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteTerminalBeforeFn != nil {
		return m.DeleteTerminalBeforeFn(ctx, cutoff)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.results {
		if r.IsTerminal() && r.UpdatedAt.Before(cutoff) {
			delete(m.results, id)
			n++
		}
	}
	return n, nil
}

func (m *MockResultStore) findPendingLocked(key domain.DedupKey) *domain.GenerationResult {
	for _, r := range m.results {
		if r.Status == domain.ResultStatusPending && r.Key() == key {
			return r
		}
	}
	return nil
}

func (m *MockResultStore) pendingLocked(id uuid.UUID) (*domain.GenerationResult, error) {
	r, ok := m.results[id]
	if !ok {
		return nil, store.ErrResultNotFound
	}
	if r.IsTerminal() {
		return nil, store.ErrNotPending
	}
	return r, nil
}

func clone(r *domain.GenerationResult) *domain.GenerationResult {
	c := *r
	c.Payload = append(json.RawMessage(nil), r.Payload...)
	c.Result = append(json.RawMessage(nil), r.Result...)
	if len(c.Payload) == 0 {
		c.Payload = nil
	}
	if len(c.Result) == 0 {
		c.Result = nil
	}
	return &c
}
