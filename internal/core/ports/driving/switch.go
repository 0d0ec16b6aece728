package driving

import (
	"context"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// SwitchOperation is a handle on one in-flight change-source request
type SwitchOperation interface {
	// ID returns the operation identifier
	ID() string

	// BookID returns the shelf ID of the book being switched
	BookID() string

	// Kind returns manual or auto
	Kind() domain.SwitchKind

	// State returns the current state
	State() domain.SwitchState

	// Events streams state transitions; closed after the terminal state
	Events() <-chan domain.SwitchEvent

	// Done is closed once the operation reached a terminal state
	Done() <-chan struct{}

	// Wait blocks until the outcome is known or ctx is done
	Wait(ctx context.Context) (*domain.SwitchOutcome, error)
}

// SwitchCoordinator orchestrates change-source operations.
// At most one operation is live per book.
type SwitchCoordinator interface {
	// RequestManualSwitch switches book to the given candidate
	RequestManualSwitch(ctx context.Context, book *domain.Book, candidate domain.SearchCandidate) SwitchOperation

	// RequestAutoSwitch probes every enabled source and adopts the best match
	RequestAutoSwitch(ctx context.Context, book *domain.Book) SwitchOperation

	// CancelActiveSwitch cancels the live operation for a book.
	// Returns false when there is none or it can no longer be cancelled.
	CancelActiveSwitch(bookID string) bool

	// Active returns the live operation for a book, or nil
	Active(bookID string) SwitchOperation
}

// SearchService runs an aggregated search for the caller to pick from
type SearchService interface {
	// SearchRanked probes all enabled sources and returns ranked candidates
	SearchRanked(ctx context.Context, query domain.SearchQuery) ([]domain.RankInput, error)
}
