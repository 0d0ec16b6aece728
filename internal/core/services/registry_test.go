package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven/mocks"
)

func newTestRegistry(sources ...*domain.ContentSource) (*SourceRegistry, *mocks.MockSourceStore) {
	store := mocks.NewMockSourceStore(sources...)
	return NewSourceRegistry(SourceRegistryConfig{Store: store, Logger: quietLogger(), Now: newTestClock().Now}), store
}

func TestSourceRegistry_Register(t *testing.T) {
	missingName := testSource("a", 0)
	missingName.Name = ""
	badProtocol := testSource("a", 0)
	badProtocol.Protocol = "ftp"
	missingRules := testSource("a", 0)
	missingRules.Rules.SearchURL = ""

	tests := []struct {
		name    string
		source  *domain.ContentSource
		wantErr error
	}{
		{name: "valid source", source: testSource("a", 0)},
		{name: "nil source", source: nil, wantErr: domain.ErrInvalidInput},
		{name: "missing name", source: missingName, wantErr: domain.ErrInvalidInput},
		{name: "unknown protocol", source: badProtocol, wantErr: domain.ErrInvalidInput},
		{name: "missing search url", source: missingRules, wantErr: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, store := newTestRegistry()

			got, err := registry.Register(context.Background(), tt.source)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				if store.SaveCount() != 0 {
					t.Errorf("expected nothing saved, got %d saves", store.SaveCount())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
				t.Error("expected timestamps to be set")
			}
			if _, err := store.Get(context.Background(), "a"); err != nil {
				t.Errorf("expected source to be stored: %v", err)
			}
		})
	}
}

func TestSourceRegistry_Register_KeepsWeight(t *testing.T) {
	registry, store := newTestRegistry(testSource("a", 10))

	update := testSource("a", 999)
	update.Name = "Renamed"
	got, err := registry.Register(context.Background(), update)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Weight != 10 {
		t.Errorf("expected weight 10 to be kept, got %d", got.Weight)
	}
	if store.Weight("a") != 10 {
		t.Errorf("expected stored weight 10, got %d", store.Weight("a"))
	}
	if got.Name != "Renamed" {
		t.Errorf("expected name to be updated, got %s", got.Name)
	}
}

func TestSourceRegistry_Disable_Idempotent(t *testing.T) {
	registry, store := newTestRegistry(testSource("a", 0))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := registry.Disable(ctx, "a", "broken"); err != nil {
			t.Fatalf("disable #%d: %v", i, err)
		}
	}

	source, _ := store.Get(ctx, "a")
	if source.Enabled {
		t.Error("expected source to be disabled")
	}
	if len(source.Groups) != 1 || source.Groups[0] != "broken" {
		t.Errorf("expected groups [broken], got %v", source.Groups)
	}
	if store.SaveCount() != 1 {
		t.Errorf("expected a single save, got %d", store.SaveCount())
	}

	enabled, _ := registry.ListEnabled(ctx)
	if len(enabled) != 0 {
		t.Errorf("expected no enabled sources, got %d", len(enabled))
	}
}

func TestSourceRegistry_Disable_NotFound(t *testing.T) {
	registry, _ := newTestRegistry()

	err := registry.Disable(context.Background(), "missing", "broken")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSourceRegistry_Enable(t *testing.T) {
	registry, store := newTestRegistry(testSource("a", 0))
	ctx := context.Background()

	if err := registry.Disable(ctx, "a", "broken"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := registry.Enable(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source, _ := store.Get(ctx, "a")
	if !source.Enabled {
		t.Error("expected source to be enabled")
	}
	if !source.HasGroup("broken") {
		t.Error("expected group tag to be kept")
	}
}

func TestSourceRegistry_Adjust(t *testing.T) {
	registry, store := newTestRegistry(testSource("a", 10))
	ctx := context.Background()

	weight, err := registry.Adjust(ctx, "a", 3, WeightReasonSelection)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if weight != 13 {
		t.Errorf("expected weight 13, got %d", weight)
	}

	weight, err = registry.Adjust(ctx, "a", domain.StaleSwitchPenalty, WeightReasonPenalty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if weight != -437 {
		t.Errorf("expected weight -437, got %d", weight)
	}
	if store.Weight("a") != -437 {
		t.Errorf("expected stored weight -437, got %d", store.Weight("a"))
	}
}

func TestSourceRegistry_Adjust_UnknownSource(t *testing.T) {
	registry, store := newTestRegistry(testSource("a", 10))
	ctx := context.Background()

	_, err := registry.Adjust(ctx, "missing", 1, WeightReasonSelection)
	if !errors.Is(err, domain.ErrWeightPersistenceFailed) {
		t.Errorf("expected ErrWeightPersistenceFailed, got %v", err)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected wrapped ErrNotFound, got %v", err)
	}

	// The driving port swallows the failure
	registry.AdjustWeight(ctx, "missing", 1)
	if store.Weight("a") != 10 {
		t.Errorf("expected other weights untouched, got %d", store.Weight("a"))
	}
}

func TestSourceRegistry_Adjust_StoreFailure(t *testing.T) {
	registry, store := newTestRegistry(testSource("a", 10))
	store.AdjustErr = errors.New("connection reset")

	_, err := registry.Adjust(context.Background(), "a", 1, WeightReasonSelection)
	if !errors.Is(err, domain.ErrWeightPersistenceFailed) {
		t.Errorf("expected ErrWeightPersistenceFailed, got %v", err)
	}
}

func TestSourceRegistry_Adjust_Concurrent(t *testing.T) {
	registry, store := newTestRegistry(testSource("a", 0), testSource("b", 0))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.AdjustWeight(ctx, "a", 1)
		}()
		go func() {
			defer wg.Done()
			registry.AdjustWeight(ctx, "b", -1)
		}()
	}
	wg.Wait()

	if store.Weight("a") != 100 {
		t.Errorf("expected weight 100 for a, got %d", store.Weight("a"))
	}
	if store.Weight("b") != -100 {
		t.Errorf("expected weight -100 for b, got %d", store.Weight("b"))
	}
}

func TestSourceRegistry_SetWeight(t *testing.T) {
	registry, store := newTestRegistry(testSource("a", 10))
	ctx := context.Background()

	if err := registry.SetWeight(ctx, "a", 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Weight("a") != 42 {
		t.Errorf("expected weight 42, got %d", store.Weight("a"))
	}
	if err := registry.SetWeight(ctx, "missing", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSourceRegistry_Get_EmptyID(t *testing.T) {
	registry, _ := newTestRegistry()

	if _, err := registry.Get(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
