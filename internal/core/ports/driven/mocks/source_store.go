package mocks

import (
	"context"
	"sync"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// MockSourceStore is a mock implementation of SourceStore for testing
type MockSourceStore struct {
	mu      sync.RWMutex
	sources map[string]*domain.ContentSource

	// SaveErr / AdjustErr force failures when set
	SaveErr   error
	AdjustErr error

	saves   int
	adjusts int
}

// NewMockSourceStore creates a new MockSourceStore
func NewMockSourceStore(sources ...*domain.ContentSource) *MockSourceStore {
	m := &MockSourceStore{
		sources: make(map[string]*domain.ContentSource),
	}
	for _, s := range sources {
		m.sources[s.ID] = s.Clone()
	}
	return m
}

func (m *MockSourceStore) Save(ctx context.Context, source *domain.ContentSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.saves++
	m.sources[source.ID] = source.Clone()
	return nil
}

func (m *MockSourceStore) Get(ctx context.Context, id string) (*domain.ContentSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	source, ok := m.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return source.Clone(), nil
}

func (m *MockSourceStore) List(ctx context.Context) ([]*domain.ContentSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ContentSource
	for _, source := range m.sources {
		result = append(result, source.Clone())
	}
	return result, nil
}

func (m *MockSourceStore) ListEnabled(ctx context.Context) ([]*domain.ContentSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ContentSource
	for _, source := range m.sources {
		if source.Enabled {
			result = append(result, source.Clone())
		}
	}
	return result, nil
}

func (m *MockSourceStore) AdjustWeight(ctx context.Context, id string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AdjustErr != nil {
		return 0, m.AdjustErr
	}
	source, ok := m.sources[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	m.adjusts++
	source.Weight += delta
	return source.Weight, nil
}

func (m *MockSourceStore) SetWeight(ctx context.Context, id string, weight int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	source, ok := m.sources[id]
	if !ok {
		return domain.ErrNotFound
	}
	source.Weight = weight
	return nil
}

func (m *MockSourceStore) Ping(ctx context.Context) error {
	return nil
}

// Weight returns the stored weight of a source (0 if unknown)
func (m *MockSourceStore) Weight(id string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if source, ok := m.sources[id]; ok {
		return source.Weight
	}
	return 0
}

// SaveCount returns how many successful saves happened
func (m *MockSourceStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// AdjustCount returns how many successful weight adjustments happened
func (m *MockSourceStore) AdjustCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adjusts
}
