package driven

import (
	"context"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// PreferenceStore keeps the most recent source choice per title.
// Entries are soft hints: implementations may drop them at any time and
// must not keep them much longer than domain.PreferenceWindow.
type PreferenceStore interface {
	// Put overwrites the entry for entry.Title
	Put(ctx context.Context, entry domain.PreferenceEntry) error

	// Get returns the entry for title, or nil when there is none
	Get(ctx context.Context, title string) (*domain.PreferenceEntry, error)
}
