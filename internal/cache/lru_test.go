package cache

import (
	"testing"
	"time"

	applog "waterwise/internal/log"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("2024-06-01", 500)
	c.Set("2024-06-02", 700)
	if _, ok := c.Get("2024-06-01"); !ok {
		t.Fatal("expected hit")
	}
	c.Set("2024-06-03", 300)

	if _, ok := c.Get("2024-06-02"); ok {
		t.Fatal("2024-06-02 should have been evicted")
	}
	if v, ok := c.Get("2024-06-01"); !ok || v != 500 {
		t.Fatalf("expected 500, got %d ok=%v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCacheWithClock[int](10, time.Minute, clock.Now)
	c.Set("a", 1)
	c.Set("b", 2)

	clock.t = clock.t.Add(30 * time.Second)
	c.Set("b", 3)

	clock.t = clock.t.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if removed := c.CleanExpired(); removed != 0 {
		t.Fatalf("b was refreshed and a already dropped, removed=%d", removed)
	}

	clock.t = clock.t.Add(time.Minute)
	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	st := c.Stats()
	if st.Size != 0 || st.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestLRUDelete(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)
	c.Set("k", "v")
	c.Delete("k")
	c.Delete("missing")
	if _, ok := c.Get("k"); ok {
		t.Fatal("deleted key should be gone")
	}
}

func TestManagerCleanAll(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	a := NewLRUCacheWithClock[int](10, time.Minute, clock.Now)
	b := NewLRUCacheWithClock[int](10, time.Hour, clock.Now)
	a.Set("x", 1)
	b.Set("y", 2)

	m := NewManager(applog.Discard())
	m.Register(a)
	m.Register(b)

	clock.t = clock.t.Add(2 * time.Minute)
	if n := m.CleanAll(); n != 1 {
		t.Fatalf("expected 1 entry cleaned, got %d", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
