package cachestore

import (
	"context"
	"sync"
	"time"

	"github.com/arran4/httpcore/cachepolicy"
)

// MemoryStore is a process-local ResponseStore, the cache.mode: memory
// counterpart to RedisStore — no external dependency, entries lost on
// restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	entry    Entry
	deadline time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key cachepolicy.Key) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me, ok := s.entries[key.String()]
	if !ok {
		return Entry{}, false, nil
	}
	if !me.deadline.IsZero() && !me.deadline.After(timeNow()) {
		delete(s.entries, key.String())
		return Entry{}, false, nil
	}
	return me.entry, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key cachepolicy.Key, entry Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deadline time.Time
	if ttl > 0 {
		deadline = timeNow().Add(ttl)
	}
	s.entries[key.String()] = memoryEntry{entry: entry, deadline: deadline}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key cachepolicy.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key.String())
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// timeNow is a var, not a direct time.Now call, so tests can't accidentally
// depend on wall-clock flakiness around a TTL boundary without overriding
// it explicitly.
var timeNow = time.Now
