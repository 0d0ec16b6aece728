package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven/mocks"
	"github.com/castn/sourceswitch/internal/core/services"
	"github.com/castn/sourceswitch/internal/metrics"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

// testServer wires the real services over in-memory mocks
type testServer struct {
	server  *Server
	sources *mocks.MockSourceStore
	books   *mocks.MockBookStore
	client  *mocks.MockSourceClient

	mu      sync.Mutex
	results map[string][]domain.SearchCandidate
}

func newTestServer(t *testing.T, db Pinger, sources ...*domain.ContentSource) *testServer {
	t.Helper()

	ts := &testServer{
		sources: mocks.NewMockSourceStore(sources...),
		books:   mocks.NewMockBookStore(),
		client:  mocks.NewMockSourceClient(),
		results: make(map[string][]domain.SearchCandidate),
	}
	ts.client.SearchFn = func(ctx context.Context, source *domain.ContentSource, query domain.SearchQuery, timeout time.Duration) ([]domain.SearchCandidate, error) {
		ts.mu.Lock()
		defer ts.mu.Unlock()
		return append([]domain.SearchCandidate(nil), ts.results[source.ID]...), nil
	}

	logger := quietLogger()
	weights := domain.DefaultWeightModel()
	factory := mocks.NewMockSourceClientFactory(ts.client)

	registry := services.NewSourceRegistry(services.SourceRegistryConfig{Store: ts.sources, Logger: logger})
	aggregator := services.NewSearchAggregator(services.SearchAggregatorConfig{
		Registry:       registry,
		Clients:        factory,
		Weights:        weights,
		ProbeTimeout:   500 * time.Millisecond,
		SearchDeadline: 2 * time.Second,
		Logger:         logger,
	})
	coordinator := services.NewSwitchCoordinator(services.SwitchCoordinatorConfig{
		Registry:            registry,
		Aggregator:          aggregator,
		Preferences:         services.NewPreferenceCache(mocks.NewMockPreferenceStore(), registry, weights, logger),
		Clients:             factory,
		Books:               ts.books,
		Weights:             weights,
		SearchDeadline:      2 * time.Second,
		ChapterFetchTimeout: 2 * time.Second,
		Logger:              logger,
	})

	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	cfg.Logger = logger
	ts.server = NewServer(cfg, registry, aggregator, coordinator, ts.books, metrics.New(), db, nil)
	return ts
}

func (ts *testServer) offer(sourceID string, candidates ...domain.SearchCandidate) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.results[sourceID] = candidates
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)
	return rr
}

func newSource(id string, weight int64) *domain.ContentSource {
	return &domain.ContentSource{
		ID:       id,
		Name:     "Source " + id,
		Enabled:  true,
		Weight:   weight,
		Protocol: domain.SourceProtocolHTML,
		BaseURL:  "https://" + id + ".example.com",
		Rules: domain.SourceRules{
			SearchURL:       "/search?q={{key}}",
			SearchList:      ".result",
			SearchTitle:     ".title",
			SearchURLField:  "a@href",
			ChapterList:     ".chapter",
			ChapterTitle:    "a",
			ChapterURLField: "a@href",
		},
	}
}

func candidateOn(sourceID string) domain.SearchCandidate {
	return domain.SearchCandidate{
		SourceID:  sourceID,
		Title:     "The Long Road",
		Author:    "Ann Writer",
		ResultURL: "https://" + sourceID + ".example.com/book/42",
	}
}

func (ts *testServer) shelve(t *testing.T, sourceID string) *domain.Book {
	t.Helper()
	book := &domain.Book{
		ID:       "book-1",
		Title:    "The Long Road",
		Author:   "Ann Writer",
		SourceID: sourceID,
		NoteURL:  "https://" + sourceID + ".example.com/book/1",
	}
	if err := ts.books.Save(context.Background(), book); err != nil {
		t.Fatalf("failed to save book: %v", err)
	}
	return book
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do("GET", "/health", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if resp := decode[map[string]string](t, rr); resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestHandleVersion(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do("GET", "/version", nil)

	if resp := decode[map[string]string](t, rr); resp["version"] != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", resp["version"])
	}
}

func TestHandleReady(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		expected int
	}{
		{name: "no dependencies", db: nil, expected: http.StatusOK},
		{name: "database up", db: &mockPinger{}, expected: http.StatusOK},
		{name: "database down", db: &mockPinger{err: errors.New("connection refused")}, expected: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.db)

			rr := ts.do("GET", "/ready", nil)

			if rr.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}

func TestHandleMetrics(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do("GET", "/metrics", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleListSources(t *testing.T) {
	disabled := newSource("b", 0)
	disabled.Enabled = false
	ts := newTestServer(t, nil, newSource("a", 1), disabled)

	rr := ts.do("GET", "/api/v1/sources", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if all := decode[[]domain.ContentSource](t, rr); len(all) != 2 {
		t.Errorf("expected 2 sources, got %d", len(all))
	}

	rr = ts.do("GET", "/api/v1/sources?enabled=true", nil)
	enabled := decode[[]domain.ContentSource](t, rr)
	if len(enabled) != 1 || enabled[0].ID != "a" {
		t.Errorf("expected only a, got %+v", enabled)
	}
}

func TestHandleRegisterSource(t *testing.T) {
	ts := newTestServer(t, nil, newSource("a", 7))

	t.Run("new source", func(t *testing.T) {
		rr := ts.do("POST", "/api/v1/sources", newSource("b", 0))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
		if got := decode[domain.ContentSource](t, rr); got.ID != "b" || got.CreatedAt.IsZero() {
			t.Errorf("unexpected source: %+v", got)
		}
	})

	t.Run("existing source keeps weight", func(t *testing.T) {
		update := newSource("a", 999)
		update.Name = "Renamed"
		rr := ts.do("POST", "/api/v1/sources", update)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rr.Code)
		}
		got := decode[domain.ContentSource](t, rr)
		if got.Weight != 7 || got.Name != "Renamed" {
			t.Errorf("expected renamed source with weight 7, got %+v", got)
		}
	})

	t.Run("invalid source", func(t *testing.T) {
		invalid := newSource("c", 0)
		invalid.Name = ""
		if rr := ts.do("POST", "/api/v1/sources", invalid); rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/sources", bytes.NewBufferString("{not json"))
		rr := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHandleGetSource(t *testing.T) {
	ts := newTestServer(t, nil, newSource("a", 3))

	rr := ts.do("GET", "/api/v1/sources/a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := decode[domain.ContentSource](t, rr); got.Weight != 3 {
		t.Errorf("expected weight 3, got %d", got.Weight)
	}

	if rr := ts.do("GET", "/api/v1/sources/missing", nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleDisableEnableSource(t *testing.T) {
	ts := newTestServer(t, nil, newSource("a", 3))

	rr := ts.do("POST", "/api/v1/sources/a/disable", DisableSourceRequest{Reason: "broken"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	source, _ := ts.sources.Get(context.Background(), "a")
	if source.Enabled || !source.HasGroup("broken") {
		t.Errorf("expected disabled source tagged broken, got %+v", source)
	}

	if rr := ts.do("POST", "/api/v1/sources/a/enable", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	source, _ = ts.sources.Get(context.Background(), "a")
	if !source.Enabled || !source.HasGroup("broken") {
		t.Errorf("expected enabled source still tagged broken, got %+v", source)
	}

	if rr := ts.do("POST", "/api/v1/sources/missing/disable", nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleSetSourceWeight(t *testing.T) {
	ts := newTestServer(t, nil, newSource("a", 3))

	weight := int64(42)
	rr := ts.do("PUT", "/api/v1/sources/a/weight", SetWeightRequest{Weight: &weight})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := decode[domain.ContentSource](t, rr); got.Weight != 42 {
		t.Errorf("expected weight 42, got %d", got.Weight)
	}

	if rr := ts.do("PUT", "/api/v1/sources/a/weight", map[string]string{}); rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 without weight, got %d", rr.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	ts := newTestServer(t, nil, newSource("a", 1), newSource("b", 5))
	ts.offer("a", candidateOn("a"))
	ts.offer("b", candidateOn("b"))

	rr := ts.do("POST", "/api/v1/search", domain.SearchQuery{Title: "The Long Road"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decode[SearchResponse](t, rr)
	if resp.Count != 2 {
		t.Fatalf("expected 2 results, got %d", resp.Count)
	}
	if resp.Results[0].Source.ID != "b" {
		t.Errorf("expected heavier source b first, got %s", resp.Results[0].Source.ID)
	}

	if rr := ts.do("POST", "/api/v1/search", domain.SearchQuery{}); rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for empty title, got %d", rr.Code)
	}
}

func TestHandleAutoSwitch(t *testing.T) {
	ts := newTestServer(t, nil, newSource("origin", 0), newSource("a", 10), newSource("b", 12))
	ts.shelve(t, "origin")
	ts.offer("a", candidateOn("a"))
	ts.offer("b", candidateOn("b"))

	rr := ts.do("POST", "/api/v1/books/book-1/switch/auto", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	outcome := decode[domain.SwitchOutcome](t, rr)
	if outcome.State != domain.SwitchStateCompleted || outcome.Book.SourceID != "b" {
		t.Errorf("expected completed switch to b, got %+v", outcome)
	}
	if ts.sources.Weight("b") != 13 {
		t.Errorf("expected b weight 13, got %d", ts.sources.Weight("b"))
	}
}

func TestHandleAutoSwitch_NoCandidates(t *testing.T) {
	ts := newTestServer(t, nil, newSource("origin", 0), newSource("a", 10))
	ts.shelve(t, "origin")

	rr := ts.do("POST", "/api/v1/books/book-1/switch/auto", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	outcome := decode[domain.SwitchOutcome](t, rr)
	if outcome.State != domain.SwitchStateFailed || outcome.Reason != domain.ErrNoCandidatesFound.Error() {
		t.Errorf("expected failed outcome with no candidates, got %+v", outcome)
	}
}

func TestHandleAutoSwitch_BookNotFound(t *testing.T) {
	ts := newTestServer(t, nil, newSource("a", 10))

	if rr := ts.do("POST", "/api/v1/books/nope/switch/auto", nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleManualSwitch(t *testing.T) {
	ts := newTestServer(t, nil, newSource("origin", 0), newSource("a", 10))
	ts.shelve(t, "origin")

	rr := ts.do("POST", "/api/v1/books/book-1/switch/manual", ManualSwitchRequest{Candidate: candidateOn("a")})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	outcome := decode[domain.SwitchOutcome](t, rr)
	if outcome.Book.SourceID != "a" || outcome.Chapters.Len() != 1 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if len(ts.client.SearchCalls()) != 0 {
		t.Error("expected a manual switch not to search")
	}

	if rr := ts.do("POST", "/api/v1/books/book-1/switch/manual", ManualSwitchRequest{}); rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for empty candidate, got %d", rr.Code)
	}
}

func TestHandleSwitch_AsyncActiveAndCancel(t *testing.T) {
	ts := newTestServer(t, nil, newSource("origin", 0), newSource("a", 10))
	ts.shelve(t, "origin")

	release := make(chan struct{})
	defer close(release)
	ts.client.SearchFn = func(ctx context.Context, source *domain.ContentSource, query domain.SearchQuery, timeout time.Duration) ([]domain.SearchCandidate, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}

	rr := ts.do("POST", "/api/v1/books/book-1/switch/auto?async=true", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rr.Code)
	}
	started := decode[OperationResponse](t, rr)
	if started.BookID != "book-1" || started.Kind != domain.SwitchKindAuto {
		t.Errorf("unexpected operation: %+v", started)
	}

	rr = ts.do("GET", "/api/v1/books/book-1/switch", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if active := decode[OperationResponse](t, rr); active.OperationID != started.OperationID {
		t.Errorf("expected active operation %s, got %s", started.OperationID, active.OperationID)
	}

	rr = ts.do("DELETE", "/api/v1/books/book-1/switch", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !decode[CancelResponse](t, rr).Cancelled {
		t.Error("expected the searching switch to be cancelled")
	}
	rr = ts.do("DELETE", "/api/v1/books/book-1/switch", nil)
	if decode[CancelResponse](t, rr).Cancelled {
		t.Error("expected nothing left to cancel")
	}
}

func TestHandleGetActiveSwitch_None(t *testing.T) {
	ts := newTestServer(t, nil)

	if rr := ts.do("GET", "/api/v1/books/book-1/switch", nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestOutcomeStatus(t *testing.T) {
	tests := []struct {
		state    domain.SwitchState
		expected int
	}{
		{domain.SwitchStateCompleted, http.StatusOK},
		{domain.SwitchStateCancelled, http.StatusConflict},
		{domain.SwitchStateFailed, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := outcomeStatus(&domain.SwitchOutcome{State: tt.state}); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}
