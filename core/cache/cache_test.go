package cache

import (
	"sync"
	"testing"
)

func TestLRUGetPut(t *testing.T) {
	c := New[string, int](2)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache returned ok")
	}

	c.Put("a", 1)
	c.Put("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	// a is now most recent; adding c evicts b
	c.Put("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v; want 3, true", v, ok)
	}
	if c.Stats().Size != 2 {
		t.Errorf("Size = %d, want 2", c.Stats().Size)
	}

	s := c.Stats()
	if s.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", s.Evictions)
	}
	if s.Hits != 2 || s.Misses != 2 {
		t.Errorf("Hits/Misses = %d/%d, want 2/2", s.Hits, s.Misses)
	}
	if s.MaxSize != 2 || s.Size != 2 {
		t.Errorf("Size/MaxSize = %d/%d, want 2/2", s.Size, s.MaxSize)
	}
	if got := s.HitRatio(); got != 0.5 {
		t.Errorf("HitRatio() = %v, want 0.5", got)
	}
}

func TestLRUDefaultSize(t *testing.T) {
	if got := New[string, int](0).Stats().MaxSize; got != DefaultSize {
		t.Errorf("MaxSize = %d, want %d", got, DefaultSize)
	}
}

func TestLRUUpdateExisting(t *testing.T) {
	c := New[string, string](0)
	c.Put("k", "one")
	c.Put("k", "two")
	if v, _ := c.Get("k"); v != "two" {
		t.Errorf("Get(k) = %q, want %q", v, "two")
	}
	if c.Stats().Size != 1 {
		t.Errorf("Size = %d, want 1", c.Stats().Size)
	}
}

func TestLRUUnbounded(t *testing.T) {
	c := New[int, int](-5)
	for i := 0; i < 10; i++ {
		c.Put(i, i)
	}
	if c.Stats().Size != 10 {
		t.Errorf("Size = %d, want 10 (unbounded)", c.Stats().Size)
	}
}

func TestLRUConcurrent(t *testing.T) {
	c := New[int, int](16)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Put(i%32, g)
				c.Get(i % 32)
			}
		}(g)
	}
	wg.Wait()
	if c.Stats().Size > 16 {
		t.Errorf("Size = %d exceeds capacity", c.Stats().Size)
	}
}

func TestHitRatioEmpty(t *testing.T) {
	if got := (Stats{}).HitRatio(); got != 0 {
		t.Errorf("HitRatio() = %v, want 0", got)
	}
}
