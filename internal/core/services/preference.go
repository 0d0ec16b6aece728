package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
)

// PreferenceCache remembers the most recently confirmed source per title
// and turns rapid back-and-forth switching into a weight penalty.
type PreferenceCache struct {
	store    driven.PreferenceStore
	registry *SourceRegistry
	weights  domain.WeightModel
	logger   *slog.Logger
}

// NewPreferenceCache creates a PreferenceCache over store
func NewPreferenceCache(store driven.PreferenceStore, registry *SourceRegistry, weights domain.WeightModel, logger *slog.Logger) *PreferenceCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceCache{
		store:    store,
		registry: registry,
		weights:  weights,
		logger:   logger,
	}
}

// Remember records sourceID as the latest choice for title, replacing any
// earlier entry.
func (p *PreferenceCache) Remember(ctx context.Context, title, sourceID string, now time.Time) error {
	entry := domain.PreferenceEntry{
		Title:    domain.PreferenceKey(title),
		SourceID: sourceID,
		ChosenAt: now,
	}
	if err := p.store.Put(ctx, entry); err != nil {
		return fmt.Errorf("remember source for %q: %w", title, err)
	}
	return nil
}

// Recall returns the latest choice for title and its age. ok is false when
// there is no entry or it is older than domain.PreferenceWindow.
func (p *PreferenceCache) Recall(ctx context.Context, title string, now time.Time) (sourceID string, age time.Duration, ok bool) {
	entry, err := p.store.Get(ctx, domain.PreferenceKey(title))
	if err != nil {
		p.logger.Debug("preference lookup failed", "title", title, "error", err)
		return "", 0, false
	}
	if !entry.Fresh(now) {
		return "", 0, false
	}
	return entry.SourceID, entry.Age(now), true
}

// PenalizeIfStale applies the stale switch penalty to previousSourceID when
// that source was chosen for the same title less than
// domain.PreferenceWindow ago. Reports whether the penalty was applied.
func (p *PreferenceCache) PenalizeIfStale(ctx context.Context, title, previousSourceID string, now time.Time) (bool, error) {
	if previousSourceID == "" {
		return false, nil
	}
	chosen, age, ok := p.Recall(ctx, title, now)
	if !ok || chosen != previousSourceID {
		return false, nil
	}

	if _, err := p.registry.Adjust(ctx, previousSourceID, p.weights.StaleSwitchPenalty(), WeightReasonPenalty); err != nil {
		return false, err
	}
	p.logger.Info("stale source choice penalized",
		"title", title,
		"source_id", previousSourceID,
		"age", age,
		"delta", p.weights.StaleSwitchPenalty(),
	)
	return true, nil
}
