// Package cache implements the TTL key-value stores backing contact
// identity, avatar URLs, and the stats aggregate. Expiry is lazy: an
// expired entry is invisible to Get but stays in memory until the next
// Put for its key. Memory is bounded by the number of distinct chat and
// contact identifiers seen, which is fine for a single account.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Store is a TTL cache for one namespace. Safe for concurrent use.
type Store[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[K]entry[V]
	now     func() time.Time
}

// New creates a store whose entries expire ttl after their last write.
func New[K comparable, V any](ttl time.Duration) *Store[K, V] {
	return &Store[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// Get returns the fresh value for key. An entry at or past its TTL is a
// miss even if it has not been evicted yet.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || s.now().Sub(e.storedAt) >= s.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetStale returns the value for key regardless of expiry. Used by the
// contact resolver to prefer a stale avatar URL over a fresh upstream
// fetch.
func (s *Store[K, V]) GetStale(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, resetting its TTL window. Negative results
// (zero values) are stored like any other to suppress repeated upstream
// calls until expiry.
func (s *Store[K, V]) Put(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[V]{value: value, storedAt: s.now()}
}

// Len reports the number of physical entries, expired ones included.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
