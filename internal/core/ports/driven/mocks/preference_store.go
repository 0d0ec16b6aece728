package mocks

import (
	"context"
	"sync"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// MockPreferenceStore is a mock implementation of PreferenceStore for testing
type MockPreferenceStore struct {
	mu      sync.RWMutex
	entries map[string]domain.PreferenceEntry

	// PutErr / GetErr force failures when set
	PutErr error
	GetErr error
}

// NewMockPreferenceStore creates a new MockPreferenceStore
func NewMockPreferenceStore() *MockPreferenceStore {
	return &MockPreferenceStore{
		entries: make(map[string]domain.PreferenceEntry),
	}
}

func (m *MockPreferenceStore) Put(ctx context.Context, entry domain.PreferenceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	m.entries[entry.Title] = entry
	return nil
}

func (m *MockPreferenceStore) Get(ctx context.Context, title string) (*domain.PreferenceEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	entry, ok := m.entries[title]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}
