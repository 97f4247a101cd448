package querycache

import (
	"testing"
	"time"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New(10, 0)
	c.Put("k1", 42)
	v, ok := c.Get("k1")
	if !ok || v.(int) != 42 {
		t.Fatalf("Get(k1) = (%v, %v), want (42, true)", v, ok)
	}
}

func TestGetMissingKey(t *testing.T) {
	c := New(10, 0)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(2, 0)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a", the least recently used
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected 'a' to be evicted once capacity was exceeded")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("'b' should still be present")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(10, 1*time.Millisecond)
	c.Put("k", "v")
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to expire after its TTL")
	}
}

func TestStats(t *testing.T) {
	c := New(10, 0)
	c.Put("k", 1)
	c.Get("k")
	c.Get("missing")
	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("Stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func TestQueryKeyDeterministic(t *testing.T) {
	q := []float32{1, 2, 3}
	k1 := QueryKey("lsh", q, 5, 0, 0)
	k2 := QueryKey("lsh", q, 5, 0, 0)
	if k1 != k2 {
		t.Fatalf("QueryKey not deterministic: %q vs %q", k1, k2)
	}
	k3 := QueryKey("lsh", q, 6, 0, 0)
	if k1 == k3 {
		t.Fatal("QueryKey should differ when N differs")
	}
}

func TestClearResetsState(t *testing.T) {
	c := New(10, 0)
	c.Put("k", 1)
	c.Get("k")
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", c.Size())
	}
	stats := c.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Fatalf("Stats after Clear = %+v, want zeroed", stats)
	}
}
