package cache

import (
	"testing"
	"time"
)

// fakeClock lets tests step time forward deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newWithClock[K comparable, V any](ttl time.Duration) (*Store[K, V], *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := New[K, V](ttl)
	s.now = clk.now
	return s, clk
}

func TestGetBeforeExpiry(t *testing.T) {
	s, clk := newWithClock[string, string](10 * time.Second)
	s.Put("k", "v")

	clk.advance(9 * time.Second)
	got, ok := s.Get("k")
	if !ok || got != "v" {
		t.Errorf("Get = (%q, %v), want (v, true)", got, ok)
	}
}

func TestGetAtExpiryBoundary(t *testing.T) {
	s, clk := newWithClock[string, int](10 * time.Second)
	s.Put("k", 1)

	// Exactly at T+ttl the entry is logically absent.
	clk.advance(10 * time.Second)
	if _, ok := s.Get("k"); ok {
		t.Error("entry should be a miss at exactly T+ttl")
	}
}

func TestGetMissing(t *testing.T) {
	s := New[string, string](time.Minute)
	if _, ok := s.Get("nope"); ok {
		t.Error("missing key should be a miss")
	}
}

func TestPutResetsWindow(t *testing.T) {
	s, clk := newWithClock[string, string](10 * time.Second)
	s.Put("k", "old")
	clk.advance(8 * time.Second)
	s.Put("k", "new")
	clk.advance(8 * time.Second)

	got, ok := s.Get("k")
	if !ok || got != "new" {
		t.Errorf("Get = (%q, %v), want (new, true): overwrite must reset storedAt", got, ok)
	}
}

func TestNegativeResultIsCached(t *testing.T) {
	s, _ := newWithClock[string, string](time.Minute)
	s.Put("no-avatar", "")

	got, ok := s.Get("no-avatar")
	if !ok || got != "" {
		t.Errorf("cached empty value should still be a hit, got (%q, %v)", got, ok)
	}
}

func TestGetStale(t *testing.T) {
	s, clk := newWithClock[string, string](time.Second)
	s.Put("k", "stale-ok")
	clk.advance(time.Hour)

	if _, ok := s.Get("k"); ok {
		t.Fatal("entry should be expired for Get")
	}
	got, ok := s.GetStale("k")
	if !ok || got != "stale-ok" {
		t.Errorf("GetStale = (%q, %v), want (stale-ok, true)", got, ok)
	}
	if _, ok := s.GetStale("missing"); ok {
		t.Error("GetStale of absent key should miss")
	}
}

func TestLazyEvictionKeepsPhysicalEntry(t *testing.T) {
	s, clk := newWithClock[string, string](time.Second)
	s.Put("k", "v")
	clk.advance(time.Minute)

	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1: no background sweep", s.Len())
	}
}
