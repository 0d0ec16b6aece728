package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
	"github.com/castn/sourceswitch/internal/core/ports/driving"
	"github.com/castn/sourceswitch/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Ensure SearchAggregator implements driving.SearchService
var _ driving.SearchService = (*SearchAggregator)(nil)

const (
	DefaultProbeTimeout   = 10 * time.Second
	DefaultSearchDeadline = 30 * time.Second
	DefaultMaxProbes      = 16
)

// SearchAggregator fans a query out to every enabled source.
// A failing source never fails the aggregate search.
type SearchAggregator struct {
	registry       driving.SourceRegistry
	clients        driven.SourceClientFactory
	weights        domain.WeightModel
	probeTimeout   time.Duration
	searchDeadline time.Duration
	maxProbes      int
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// SearchAggregatorConfig holds dependencies for SearchAggregator.
type SearchAggregatorConfig struct {
	Registry       driving.SourceRegistry
	Clients        driven.SourceClientFactory
	Weights        domain.WeightModel
	ProbeTimeout   time.Duration // Per source
	SearchDeadline time.Duration // Whole search, used by SearchRanked
	MaxProbes      int           // Concurrent probes
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// NewSearchAggregator creates a new SearchAggregator.
func NewSearchAggregator(cfg SearchAggregatorConfig) *SearchAggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	deadline := cfg.SearchDeadline
	if deadline <= 0 {
		deadline = DefaultSearchDeadline
	}
	maxProbes := cfg.MaxProbes
	if maxProbes <= 0 {
		maxProbes = DefaultMaxProbes
	}

	return &SearchAggregator{
		registry:       cfg.Registry,
		clients:        cfg.Clients,
		weights:        cfg.Weights,
		probeTimeout:   probeTimeout,
		searchDeadline: deadline,
		maxProbes:      maxProbes,
		metrics:        cfg.Metrics,
		logger:         logger,
	}
}

// SearchStream is a finite, non-restartable sequence of candidates in
// arrival order.
type SearchStream struct {
	out     chan domain.RankInput
	cancel  context.CancelFunc
	sources int
}

// Candidates returns the channel of candidates. It is closed once every
// started probe has returned.
func (s *SearchStream) Candidates() <-chan domain.RankInput {
	return s.out
}

// Sources returns how many sources were probed
func (s *SearchStream) Sources() int {
	return s.sources
}

// Cancel stops the search without waiting. No further probes are started,
// running probes are abandoned, already delivered candidates stay valid.
func (s *SearchStream) Cancel() {
	s.cancel()
}

// Collect drains the stream until it is closed, ctx is done or deadline
// elapses, whichever comes first. The stream is cancelled on return.
func (s *SearchStream) Collect(ctx context.Context, deadline time.Duration) []domain.RankInput {
	defer s.Cancel()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var collected []domain.RankInput
	for {
		select {
		case in, ok := <-s.out:
			if !ok {
				return collected
			}
			collected = append(collected, in)
		case <-timer.C:
			return collected
		case <-ctx.Done():
			return collected
		}
	}
}

// Search starts one probe per enabled source and returns immediately.
func (a *SearchAggregator) Search(ctx context.Context, query domain.SearchQuery) (*SearchStream, error) {
	if query.Title == "" {
		return nil, fmt.Errorf("%w: empty title", domain.ErrInvalidInput)
	}
	sources, err := a.registry.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled sources: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	stream := &SearchStream{
		out:     make(chan domain.RankInput),
		cancel:  cancel,
		sources: len(sources),
	}

	go func() {
		defer close(stream.out)
		defer cancel()

		g := new(errgroup.Group)
		g.SetLimit(a.maxProbes)
		for _, source := range sources {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				a.probe(ctx, source, query, stream.out)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return stream, nil
}

type probeResult struct {
	candidates []domain.SearchCandidate
	err        error
}

// probe runs one source search bounded by the probe timeout and pushes its
// deduplicated candidates. Errors are logged and dropped.
func (a *SearchAggregator) probe(ctx context.Context, source *domain.ContentSource, query domain.SearchQuery, out chan<- domain.RankInput) {
	start := time.Now()
	logger := a.logger.With("source_id", source.ID)

	if ctx.Err() != nil {
		return
	}

	client, err := a.clients.ClientFor(source)
	if err != nil {
		logger.Debug("source skipped", "error", err)
		a.metrics.ObserveProbe(metrics.ProbeError, time.Since(start), 0)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	// The client call is abandoned rather than awaited once the probe
	// context ends, so a misbehaving source cannot hold the stream open.
	resCh := make(chan probeResult, 1)
	go func() {
		candidates, err := client.Search(probeCtx, source, query, a.probeTimeout)
		resCh <- probeResult{candidates: candidates, err: err}
	}()

	var res probeResult
	select {
	case res = <-resCh:
	case <-probeCtx.Done():
		res.err = probeCtx.Err()
	}

	if res.err != nil {
		outcome := metrics.ProbeError
		switch {
		case ctx.Err() != nil:
			outcome = metrics.ProbeAbandoned
		case errors.Is(res.err, context.DeadlineExceeded), errors.Is(res.err, domain.ErrTimeout):
			outcome = metrics.ProbeTimeout
		}
		logger.Debug("source probe dropped",
			"outcome", outcome,
			"error", fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, res.err),
		)
		a.metrics.ObserveProbe(outcome, time.Since(start), 0)
		return
	}

	seen := make(map[string]struct{}, len(res.candidates))
	snapshot := *source.Clone()
	sent := 0
	for _, c := range res.candidates {
		if c.ResultURL == "" {
			continue
		}
		if _, dup := seen[c.ResultURL]; dup {
			continue
		}
		seen[c.ResultURL] = struct{}{}

		c.SourceID = source.ID
		c.SourceName = source.Name
		in := domain.RankInput{
			Source:    snapshot,
			Candidate: c,
			Match:     domain.Match(query, c),
		}
		select {
		case out <- in:
			sent++
		case <-ctx.Done():
			a.metrics.ObserveProbe(metrics.ProbeAbandoned, time.Since(start), sent)
			return
		}
	}

	logger.Debug("source probe finished", "candidates", sent, "took", time.Since(start))
	a.metrics.ObserveProbe(metrics.ProbeOK, time.Since(start), sent)
}

// SearchRanked runs a full search bounded by the search deadline and
// returns every candidate ranked by the weight model.
func (a *SearchAggregator) SearchRanked(ctx context.Context, query domain.SearchQuery) ([]domain.RankInput, error) {
	stream, err := a.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	collected := stream.Collect(ctx, a.searchDeadline)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.weights.Rank(collected), nil
}
