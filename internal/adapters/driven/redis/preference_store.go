package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.PreferenceStore = (*PreferenceStore)(nil)

// Key prefix for Redis
const preferencePrefix = "sourceswitch:pref:"

// PreferenceStore implements driven.PreferenceStore using Redis.
// Entries use Redis TTL for automatic expiration, so several instances
// share the same view of recent source choices.
type PreferenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPreferenceStore creates a new Redis-backed PreferenceStore.
// Entries expire after domain.PreferenceWindow.
func NewPreferenceStore(client *redis.Client) *PreferenceStore {
	return &PreferenceStore{client: client, ttl: domain.PreferenceWindow}
}

// Put stores the entry, replacing any previous choice for the title
func (s *PreferenceStore) Put(ctx context.Context, entry domain.PreferenceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal preference: %w", err)
	}

	if err := s.client.Set(ctx, preferencePrefix+entry.Title, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// Get retrieves the entry for title. Returns nil when it is missing or expired.
func (s *PreferenceStore) Get(ctx context.Context, title string) (*domain.PreferenceEntry, error) {
	data, err := s.client.Get(ctx, preferencePrefix+title).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}

	var entry domain.PreferenceEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preference: %w", err)
	}
	return &entry, nil
}

// Ping checks the Redis connection
func (s *PreferenceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
