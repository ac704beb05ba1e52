// Package cache provides a generic, thread-safe LRU cache used to memoize
// analysis results by buffer digest.
package cache

import (
	"container/list"
	"sync"
)

// DefaultSize is the capacity used when New is given a size of 0.
const DefaultSize = 128

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
}

// HitRatio returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type item[K comparable, V any] struct {
	key   K
	value V
}

// LRU is a fixed-capacity least-recently-used cache. A negative capacity
// makes it unbounded.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	max     int
	items   map[K]*list.Element
	recency *list.List // front is most recently used

	hits, misses, evictions int64
}

// New creates an LRU holding up to size entries.
func New[K comparable, V any](size int) *LRU[K, V] {
	switch {
	case size == 0:
		size = DefaultSize
	case size < 0:
		size = 0
	}
	return &LRU[K, V]{
		max:     size,
		items:   make(map[K]*list.Element),
		recency: list.New(),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.recency.MoveToFront(el)
	return el.Value.(*item[K, V]).value, true
}

// Put stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*item[K, V]).value = value
		c.recency.MoveToFront(el)
		return
	}

	c.items[key] = c.recency.PushFront(&item[K, V]{key: key, value: value})
	for c.max > 0 && c.recency.Len() > c.max {
		oldest := c.recency.Remove(c.recency.Back()).(*item[K, V])
		delete(c.items, oldest.key)
		c.evictions++
	}
}

// Stats returns current counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.recency.Len(),
		MaxSize:   c.max,
	}
}
