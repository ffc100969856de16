package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// MockCharacterStore keeps character sheets and backstories in memory.
type MockCharacterStore struct {
	SaveSheetFn     func(ctx context.Context, characterID string, jobID uuid.UUID, sheet json.RawMessage) error
	SaveBackstoryFn func(ctx context.Context, characterID string, jobID uuid.UUID, text string) error

	mu         sync.Mutex
	sheets     map[string]json.RawMessage
	backstory  map[string]string
	sheetSaves int
}

// NewMockCharacterStore creates an empty MockCharacterStore
func NewMockCharacterStore() *MockCharacterStore {
	return &MockCharacterStore{
		sheets:    make(map[string]json.RawMessage),
		backstory: make(map[string]string),
	}
}

// SaveSheet records the sheet unless SaveSheetFn is set
func (m *MockCharacterStore) SaveSheet(ctx context.Context, characterID string, jobID uuid.UUID, sheet json.RawMessage) error {
	if m.SaveSheetFn != nil {
		return m.SaveSheetFn(ctx, characterID, jobID, sheet)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[characterID] = append(json.RawMessage(nil), sheet...)
	m.sheetSaves++
	return nil
}

// SaveBackstory records the backstory unless SaveBackstoryFn is set
func (m *MockCharacterStore) SaveBackstory(ctx context.Context, characterID string, jobID uuid.UUID, text string) error {
	if m.SaveBackstoryFn != nil {
		return m.SaveBackstoryFn(ctx, characterID, jobID, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backstory[characterID] = text
	return nil
}

// Sheet returns the saved sheet of a character.
func (m *MockCharacterStore) Sheet(characterID string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sheets[characterID]
	return s, ok
}

// Backstory returns the saved backstory of a character.
func (m *MockCharacterStore) Backstory(characterID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.backstory[characterID]
	return s, ok
}

// SheetSaves counts successful SaveSheet calls.
func (m *MockCharacterStore) SheetSaves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sheetSaves
}
