// Package cache holds short-lived snapshots of data that is expensive to
// reload on every request.
package cache

import (
	"maps"
	"sync"
	"time"
)

// Snapshot is a keyed set of values that expires as a whole. A snapshot is
// either fresh, holding exactly what the last Store saw, or stale.
type Snapshot[K comparable, V any] struct {
	mu     sync.RWMutex
	ttl    time.Duration
	data   map[K]V
	stored time.Time
	now    func() time.Time
}

// New returns an empty, stale snapshot whose contents live for ttl.
func New[K comparable, V any](ttl time.Duration) *Snapshot[K, V] {
	return &Snapshot[K, V]{ttl: ttl, data: make(map[K]V), now: time.Now}
}

// Get returns one value from a fresh snapshot.
func (s *Snapshot[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.staleLocked() {
		var zero V
		return zero, false
	}
	v, ok := s.data[key]
	return v, ok
}

// Load returns a copy of the snapshot. ok is false when it is stale, in
// which case the caller reloads and calls Store.
func (s *Snapshot[K, V]) Load() (map[K]V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.staleLocked() {
		return nil, false
	}
	return maps.Clone(s.data), true
}

// Store replaces the snapshot and restarts its lifetime.
func (s *Snapshot[K, V]) Store(data map[K]V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = maps.Clone(data)
	if s.data == nil {
		s.data = make(map[K]V)
	}
	s.stored = s.now()
}

// Invalidate marks the snapshot stale. Call it after any write to the
// underlying data.
func (s *Snapshot[K, V]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[K]V)
	s.stored = time.Time{}
}

// Fresh reports whether the snapshot can be served.
func (s *Snapshot[K, V]) Fresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.staleLocked()
}

// Len returns the number of values held, fresh or not.
func (s *Snapshot[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Snapshot[K, V]) staleLocked() bool {
	return s.stored.IsZero() || s.now().Sub(s.stored) > s.ttl
}
