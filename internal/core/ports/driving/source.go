package driving

import (
	"context"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// SourceRegistry holds every known content source and its weight/group state.
// It is the single writer of source weights.
type SourceRegistry interface {
	// ListEnabled retrieves all enabled sources
	ListEnabled(ctx context.Context) ([]*domain.ContentSource, error)

	// List retrieves all sources
	List(ctx context.Context) ([]*domain.ContentSource, error)

	// Get retrieves a source by identity
	Get(ctx context.Context, id string) (*domain.ContentSource, error)

	// Register validates and stores a new or updated source
	Register(ctx context.Context, source *domain.ContentSource) (*domain.ContentSource, error)

	// Disable disables a source and tags it with reasonTag (idempotent)
	Disable(ctx context.Context, id string, reasonTag string) error

	// Enable re-enables a source
	Enable(ctx context.Context, id string) error

	// AdjustWeight atomically adds delta to a source weight.
	// Best-effort: unknown identities are logged and swallowed.
	AdjustWeight(ctx context.Context, id string, delta int64)

	// SetWeight overwrites a source weight (administrative override)
	SetWeight(ctx context.Context, id string, weight int64) error
}
