package driven

import (
	"context"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// SourceClient talks to one family of content sources.
// Implementations exist per protocol (HTML rules, JSON API); adding a new
// kind of source means adding a SourceClient, not touching the coordinator.
type SourceClient interface {
	// Search asks the source for books matching the query. The call must
	// return within timeout. Errors wrap domain.ErrTimeout, domain.ErrNetwork
	// or domain.ErrParse.
	Search(ctx context.Context, source *domain.ContentSource, query domain.SearchQuery, timeout time.Duration) ([]domain.SearchCandidate, error)

	// FetchChapterList retrieves the ordered chapter list behind a search
	// result URL. Errors wrap domain.ErrNetwork, domain.ErrParse or
	// domain.ErrEmptyResult.
	FetchChapterList(ctx context.Context, source *domain.ContentSource, resultURL string) (*domain.ChapterList, error)
}

// SourceClientFactory resolves the client able to talk to a source
type SourceClientFactory interface {
	// ClientFor returns the client for the source's protocol.
	// Returns domain.ErrUnsupportedProtocol for unknown protocols.
	ClientFor(source *domain.ContentSource) (SourceClient, error)
}
