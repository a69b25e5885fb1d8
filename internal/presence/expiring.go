// Package presence holds the in-memory customer recognition engine: the
// pending identification queue, the identification cooldown tracker, the
// credential lockout tracker, and the one-time capability token issuers.
// Everything in this package is transient process state guarded by per-store
// locks; nothing is persisted.
package presence

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Store is a mutex-guarded map with per-entry insertion timestamps and bulk
// eviction of entries older than a TTL. Each higher-level component in this
// package owns one or more independent Store instances; stores never share
// locks.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
}

// NewStore creates an empty store.
func NewStore[V any]() *Store[V] {
	return &Store[V]{entries: make(map[string]entry[V])}
}

// Put inserts or replaces the value for key, recording insertedAt as the
// entry's age reference for expiry.
func (s *Store[V]) Put(key string, value V, insertedAt time.Time) {
	s.mu.Lock()
	s.entries[key] = entry[V]{value: value, insertedAt: insertedAt}
	s.mu.Unlock()
}

// Get returns the value for key and its insertion time. Expiry is the
// caller's concern: Get does not filter by age.
func (s *Store[V]) Get(key string) (V, time.Time, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		var zero V
		return zero, time.Time{}, false
	}
	return e.value, e.insertedAt, true
}

// Take atomically removes and returns the value for key. A second Take of
// the same key fails once the first has succeeded.
func (s *Store[V]) Take(key string) (V, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, time.Time{}, false
	}
	delete(s.entries, key)
	return e.value, e.insertedAt, true
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Range calls fn for every entry under the read lock. fn must not call back
// into the store.
func (s *Store[V]) Range(fn func(key string, value V, insertedAt time.Time)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, e := range s.entries {
		fn(k, e.value, e.insertedAt)
	}
}

// Len returns the number of entries, expired or not.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes every entry whose insertion time is older than ttl relative
// to now, returning the number removed. The candidate set is snapshotted
// before any deletion, and each candidate's timestamp is re-checked under the
// write lock, so an entry replaced after the snapshot survives.
func (s *Store[V]) Sweep(now time.Time, ttl time.Duration) int {
	cutoff := now.Add(-ttl)

	s.mu.RLock()
	stale := make([]string, 0)
	for k, e := range s.entries {
		if e.insertedAt.Before(cutoff) {
			stale = append(stale, k)
		}
	}
	s.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}

	removed := 0
	s.mu.Lock()
	for _, k := range stale {
		if e, ok := s.entries[k]; ok && e.insertedAt.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}
