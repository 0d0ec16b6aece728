package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven/mocks"
	"github.com/castn/sourceswitch/internal/core/ports/driving"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock is a settable clock shared by the services under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testSource(id string, weight int64) *domain.ContentSource {
	return &domain.ContentSource{
		ID:       id,
		Name:     "Source " + id,
		Enabled:  true,
		Weight:   weight,
		Protocol: domain.SourceProtocolHTML,
		BaseURL:  "https://" + id + ".example.com",
		Rules: domain.SourceRules{
			SearchURL:       "https://" + id + ".example.com/search?q={{key}}",
			SearchList:      ".result",
			SearchTitle:     ".title",
			SearchURLField:  "a@href",
			ChapterList:     ".chapter",
			ChapterTitle:    "a",
			ChapterURLField: "a@href",
		},
	}
}

func exactCandidate(sourceID, title, author string) domain.SearchCandidate {
	return domain.SearchCandidate{
		SourceID:  sourceID,
		Title:     title,
		Author:    author,
		ResultURL: "https://" + sourceID + ".example.com/book/" + domain.NormalizeText(title),
	}
}

// testEngine wires every service over mocks
type testEngine struct {
	clock       *testClock
	sources     *mocks.MockSourceStore
	books       *mocks.MockBookStore
	prefs       *mocks.MockPreferenceStore
	client      *mocks.MockSourceClient
	registry    *SourceRegistry
	aggregator  *SearchAggregator
	preferences *PreferenceCache
	coordinator *SwitchCoordinator

	mu      sync.Mutex
	results map[string][]domain.SearchCandidate
}

func newTestEngine(t *testing.T, sources ...*domain.ContentSource) *testEngine {
	t.Helper()

	e := &testEngine{
		clock:   newTestClock(),
		sources: mocks.NewMockSourceStore(sources...),
		books:   mocks.NewMockBookStore(),
		prefs:   mocks.NewMockPreferenceStore(),
		client:  mocks.NewMockSourceClient(),
		results: make(map[string][]domain.SearchCandidate),
	}
	e.client.SearchFn = func(ctx context.Context, source *domain.ContentSource, query domain.SearchQuery, timeout time.Duration) ([]domain.SearchCandidate, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return append([]domain.SearchCandidate(nil), e.results[source.ID]...), nil
	}

	logger := quietLogger()
	weights := domain.DefaultWeightModel()
	factory := mocks.NewMockSourceClientFactory(e.client)

	e.registry = NewSourceRegistry(SourceRegistryConfig{
		Store:  e.sources,
		Logger: logger,
		Now:    e.clock.Now,
	})
	e.aggregator = NewSearchAggregator(SearchAggregatorConfig{
		Registry:       e.registry,
		Clients:        factory,
		Weights:        weights,
		ProbeTimeout:   500 * time.Millisecond,
		SearchDeadline: 2 * time.Second,
		Logger:         logger,
	})
	e.preferences = NewPreferenceCache(e.prefs, e.registry, weights, logger)
	e.coordinator = NewSwitchCoordinator(SwitchCoordinatorConfig{
		Registry:            e.registry,
		Aggregator:          e.aggregator,
		Preferences:         e.preferences,
		Clients:             factory,
		Books:               e.books,
		Weights:             weights,
		SearchDeadline:      2 * time.Second,
		ChapterFetchTimeout: 2 * time.Second,
		Logger:              logger,
		Now:                 e.clock.Now,
	})
	return e
}

// offer makes source answer every search with candidates
func (e *testEngine) offer(sourceID string, candidates ...domain.SearchCandidate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[sourceID] = candidates
}

func waitOutcome(t *testing.T, op driving.SwitchOperation) *domain.SwitchOutcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := op.Wait(ctx)
	if err != nil {
		t.Fatalf("operation %s did not finish: %v (state %s)", op.ID(), err, op.State())
	}
	return outcome
}

func waitState(t *testing.T, op driving.SwitchOperation, want domain.SwitchState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if op.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("operation %s never reached %s (state %s)", op.ID(), want, op.State())
}

func drainEvents(op driving.SwitchOperation) []domain.SwitchState {
	var states []domain.SwitchState
	for ev := range op.Events() {
		states = append(states, ev.State)
	}
	return states
}
