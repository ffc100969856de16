package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/genjobs/internal/generation"
)

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateFn allows test cases to mock the Generate behavior
	GenerateFn func(ctx context.Context, req generation.Request) (string, error)

	// Text and Err are returned when GenerateFn is nil
	Text string
	Err  error

	mu       sync.Mutex
	requests []generation.Request
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements the generation.Generator interface
func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	return m.Text, m.Err
}

// Requests returns every request passed to Generate so far.
func (m *MockGenerator) Requests() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generation.Request(nil), m.requests...)
}

// Calls returns the number of Generate calls.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// NewMockGeneratorWithText creates a MockGenerator that always returns text
func NewMockGeneratorWithText(text string) *MockGenerator {
	return &MockGenerator{Text: text}
}

// NewMockGeneratorWithError creates a MockGenerator that always fails with err
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{Err: err}
}
