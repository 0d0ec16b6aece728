package driven

import (
	"context"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// SourceStore handles content source persistence (PostgreSQL or SQLite)
type SourceStore interface {
	// Save creates or updates a source
	Save(ctx context.Context, source *domain.ContentSource) error

	// Get retrieves a source by ID
	Get(ctx context.Context, id string) (*domain.ContentSource, error)

	// List retrieves all sources
	List(ctx context.Context) ([]*domain.ContentSource, error)

	// ListEnabled retrieves all enabled sources
	ListEnabled(ctx context.Context) ([]*domain.ContentSource, error)

	// AdjustWeight atomically adds delta to the stored weight and returns
	// the new value. Returns domain.ErrNotFound for an unknown ID.
	AdjustWeight(ctx context.Context, id string, delta int64) (int64, error)

	// SetWeight overwrites the stored weight (administrative override)
	SetWeight(ctx context.Context, id string, weight int64) error

	// Ping checks the backing store is reachable
	Ping(ctx context.Context) error
}
