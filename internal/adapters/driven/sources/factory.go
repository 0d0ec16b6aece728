package sources

import (
	"fmt"
	"sync"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SourceClientFactory = (*Factory)(nil)

// Factory resolves the client for a source protocol
type Factory struct {
	mu      sync.RWMutex
	clients map[domain.SourceProtocol]driven.SourceClient
}

// NewFactory creates a Factory serving the built-in protocols over fetcher
func NewFactory(fetcher *Fetcher) *Factory {
	f := &Factory{clients: make(map[domain.SourceProtocol]driven.SourceClient)}
	f.Register(domain.SourceProtocolHTML, NewHTMLClient(fetcher))
	f.Register(domain.SourceProtocolJSON, NewJSONClient(fetcher))
	return f
}

// Register sets the client for a protocol, replacing any previous one
func (f *Factory) Register(protocol domain.SourceProtocol, client driven.SourceClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[protocol] = client
}

// ClientFor returns the client for the source's protocol
func (f *Factory) ClientFor(source *domain.ContentSource) (driven.SourceClient, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	client, ok := f.clients[source.Protocol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProtocol, source.Protocol)
	}
	return client, nil
}
