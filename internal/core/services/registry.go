package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
	"github.com/castn/sourceswitch/internal/core/ports/driving"
	"github.com/castn/sourceswitch/internal/metrics"
	"github.com/go-playground/validator/v10"
)

// Ensure SourceRegistry implements driving.SourceRegistry
var _ driving.SourceRegistry = (*SourceRegistry)(nil)

// Weight adjustment reasons, used for logs and metrics
const (
	WeightReasonSelection = "selection"
	WeightReasonPenalty   = "stale_switch_penalty"
)

// SourceRegistry holds all known content sources.
// Every mutation is serialized per source identity and persisted through
// the SourceStore before returning.
type SourceRegistry struct {
	store    driven.SourceStore
	validate *validator.Validate
	locks    *keyedMutex
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// SourceRegistryConfig holds dependencies for SourceRegistry.
type SourceRegistryConfig struct {
	Store   driven.SourceStore
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewSourceRegistry creates a new SourceRegistry.
func NewSourceRegistry(cfg SourceRegistryConfig) *SourceRegistry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &SourceRegistry{
		store:    cfg.Store,
		validate: validator.New(),
		locks:    newKeyedMutex(),
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      now,
	}
}

// ListEnabled retrieves all enabled sources
func (r *SourceRegistry) ListEnabled(ctx context.Context) ([]*domain.ContentSource, error) {
	return r.store.ListEnabled(ctx)
}

// List retrieves all sources
func (r *SourceRegistry) List(ctx context.Context) ([]*domain.ContentSource, error) {
	return r.store.List(ctx)
}

// Get retrieves a source by identity
func (r *SourceRegistry) Get(ctx context.Context, id string) (*domain.ContentSource, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	return r.store.Get(ctx, id)
}

// Register validates and stores a source. An existing source keeps its
// stored weight; weights only move through AdjustWeight and SetWeight.
func (r *SourceRegistry) Register(ctx context.Context, source *domain.ContentSource) (*domain.ContentSource, error) {
	if source == nil {
		return nil, domain.ErrInvalidInput
	}
	s := source.Clone()
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	if err := r.validate.Struct(s); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	unlock := r.locks.Lock(s.ID)
	defer unlock()

	now := r.now()
	existing, err := r.store.Get(ctx, s.ID)
	switch {
	case err == nil:
		s.Weight = existing.Weight
		s.CreatedAt = existing.CreatedAt
	case errors.Is(err, domain.ErrNotFound):
		s.CreatedAt = now
	default:
		return nil, err
	}
	s.UpdatedAt = now

	if err := r.store.Save(ctx, s); err != nil {
		return nil, err
	}
	r.logger.Info("source registered", "source_id", s.ID, "protocol", s.Protocol, "enabled", s.Enabled)
	return s, nil
}

// Disable sets enabled=false and appends reasonTag to the source groups.
// Calling it again with the same tag changes nothing.
func (r *SourceRegistry) Disable(ctx context.Context, id string, reasonTag string) error {
	unlock := r.locks.Lock(id)
	defer unlock()

	source, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}

	changed := source.AddGroup(strings.TrimSpace(reasonTag))
	if source.Enabled {
		source.Enabled = false
		changed = true
	}
	if !changed {
		return nil
	}
	source.UpdatedAt = r.now()

	if err := r.store.Save(ctx, source); err != nil {
		return err
	}
	r.logger.Info("source disabled", "source_id", id, "reason", reasonTag)
	return nil
}

// Enable re-enables a source. Group tags are kept.
func (r *SourceRegistry) Enable(ctx context.Context, id string) error {
	unlock := r.locks.Lock(id)
	defer unlock()

	source, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if source.Enabled {
		return nil
	}
	source.Enabled = true
	source.UpdatedAt = r.now()
	return r.store.Save(ctx, source)
}

// AdjustWeight atomically adds delta to a source weight. Failures are
// logged and swallowed: weights are telemetry, not correctness.
func (r *SourceRegistry) AdjustWeight(ctx context.Context, id string, delta int64) {
	_, _ = r.Adjust(ctx, id, delta, "manual")
}

// Adjust is AdjustWeight with a reason label. It still logs every failure
// but also returns it (wrapping domain.ErrWeightPersistenceFailed) to
// callers that want to know.
func (r *SourceRegistry) Adjust(ctx context.Context, id string, delta int64, reason string) (int64, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	weight, err := r.store.AdjustWeight(ctx, id, delta)
	if err != nil {
		r.logger.Warn("weight adjustment dropped",
			"source_id", id,
			"delta", delta,
			"reason", reason,
			"error", err,
		)
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrWeightPersistenceFailed, id, err)
	}

	r.metrics.ObserveWeight(reason)
	r.logger.Debug("weight adjusted", "source_id", id, "delta", delta, "weight", weight, "reason", reason)
	return weight, nil
}

// SetWeight overwrites a source weight. Administrative override only.
func (r *SourceRegistry) SetWeight(ctx context.Context, id string, weight int64) error {
	unlock := r.locks.Lock(id)
	defer unlock()

	if err := r.store.SetWeight(ctx, id, weight); err != nil {
		return err
	}
	r.metrics.ObserveWeight("override")
	r.logger.Info("weight overridden", "source_id", id, "weight", weight)
	return nil
}
