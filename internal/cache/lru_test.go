package cache

import (
	"testing"
	"time"
)

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted as least recently used")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](4, time.Minute)
	c.now = func() time.Time { return clock }

	c.Set("k", "v")
	clock = clock.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}

	c.Set("x", "1")
	c.Set("y", "2")
	clock = clock.Add(30 * time.Second)
	c.Set("z", "3")
	clock = clock.Add(45 * time.Second)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired() = %d, want 2", n)
	}
	if _, ok := c.Get("z"); !ok {
		t.Fatalf("z should still be fresh")
	}
}

func TestLRUCache_Stats(t *testing.T) {
	c := NewLRUCache[int](1, time.Minute)
	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")
	c.Set("b", 2)

	want := Stats{Hits: 1, Misses: 1, Evictions: 1}
	if got := c.Stats(); got != want {
		t.Fatalf("Stats() = %+v, want %+v", got, want)
	}
}

func TestLRUCache_Purge(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("size after purge = %d", c.Size())
	}
	c.Set("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("cache unusable after purge")
	}
}

func TestManager_CleanNow(t *testing.T) {
	clock := time.Now()
	c := NewLRUCache[int](4, time.Minute)
	c.now = func() time.Time { return clock }

	m := NewManager(nil)
	m.Register("charts", c)
	c.Set("a", 1)
	clock = clock.Add(time.Hour)

	if n := m.CleanNow(); n != 1 {
		t.Fatalf("CleanNow() = %d, want 1", n)
	}
	if s := m.Stats()["charts"]; s.Expired != 1 {
		t.Fatalf("Stats()[charts] = %+v", s)
	}

	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
