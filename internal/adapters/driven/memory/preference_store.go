// Package memory provides process-local implementations of driven ports.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PreferenceStore = (*PreferenceStore)(nil)

const shardCount = 32

// PreferenceStore keeps preference entries in memory, split across shards
// so lookups for different titles do not contend on one lock.
// Entries older than the retention are evicted lazily on access.
type PreferenceStore struct {
	shards    [shardCount]preferenceShard
	retention time.Duration
	now       func() time.Time
}

type preferenceShard struct {
	mu      sync.RWMutex
	entries map[string]domain.PreferenceEntry
}

// NewPreferenceStore creates an empty in-memory PreferenceStore
func NewPreferenceStore() *PreferenceStore {
	s := &PreferenceStore{
		retention: domain.PreferenceWindow,
		now:       time.Now,
	}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]domain.PreferenceEntry)
	}
	return s
}

func (s *PreferenceStore) shard(title string) *preferenceShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	return &s.shards[h.Sum32()%shardCount]
}

// Put overwrites the entry for entry.Title
func (s *PreferenceStore) Put(ctx context.Context, entry domain.PreferenceEntry) error {
	sh := s.shard(entry.Title)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.entries[entry.Title] = entry
	s.evictLocked(sh)
	return nil
}

// Get returns the entry for title, or nil when there is none
func (s *PreferenceStore) Get(ctx context.Context, title string) (*domain.PreferenceEntry, error) {
	sh := s.shard(title)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	entry, ok := sh.entries[title]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Len returns the number of retained entries
func (s *PreferenceStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// evictLocked drops entries that can no longer be fresh.
// Entries are kept twice the window so callers with a skewed clock still
// see them; freshness itself is decided by the caller.
func (s *PreferenceStore) evictLocked(sh *preferenceShard) {
	cutoff := s.now().Add(-2 * s.retention)
	for title, e := range sh.entries {
		if e.ChosenAt.Before(cutoff) {
			delete(sh.entries, title)
		}
	}
}
