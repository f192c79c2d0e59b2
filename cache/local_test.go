package cache

import (
	"testing"
	"time"
)

func TestLocalCache_SetGet(t *testing.T) {
	c := NewLocalCache()

	c.Set("key", []byte("value"), nil, time.Minute, 0)

	val, ok := c.Get("key")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(val) != "value" {
		t.Errorf("value = %q, want %q", val, "value")
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestLocalCache_Expiry(t *testing.T) {
	c := NewLocalCache()

	c.Set("key", []byte("value"), nil, 20*time.Millisecond, 0)

	if _, ok := c.Get("key"); !ok {
		t.Fatal("expected fresh hit")
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("key"); ok {
		t.Error("expected miss after TTL with no stale window")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be evicted, Len = %d", c.Len())
	}
}

func TestLocalCache_StaleWindow(t *testing.T) {
	c := NewLocalCache()

	c.Set("key", []byte("value"), nil, 20*time.Millisecond, 200*time.Millisecond)

	value, fresh, ok := c.GetStale("key")
	if !ok || !fresh {
		t.Fatalf("expected fresh hit, fresh=%v ok=%v", fresh, ok)
	}
	if string(value) != "value" {
		t.Errorf("value = %q", value)
	}

	time.Sleep(40 * time.Millisecond)

	// Past TTL but within the stale window: servable, not fresh
	value, fresh, ok = c.GetStale("key")
	if !ok {
		t.Fatal("expected stale hit")
	}
	if fresh {
		t.Error("entry should be stale")
	}
	if string(value) != "value" {
		t.Errorf("stale value = %q", value)
	}

	// Get hides stale entries
	if _, ok := c.Get("key"); ok {
		t.Error("Get should miss on stale entries")
	}
}

func TestLocalCache_PastStaleWindow(t *testing.T) {
	c := NewLocalCache()

	c.Set("key", []byte("value"), nil, 10*time.Millisecond, 10*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	if _, _, ok := c.GetStale("key"); ok {
		t.Error("entry past its stale window should be absent")
	}
	if c.Len() != 0 {
		t.Errorf("entry should be evicted, Len = %d", c.Len())
	}
}

func TestLocalCache_ZeroTTLNotStored(t *testing.T) {
	c := NewLocalCache()

	c.Set("key", []byte("value"), nil, 0, 0)

	if c.Len() != 0 {
		t.Errorf("non-positive ttl and stale window should store nothing, Len = %d", c.Len())
	}
}

func TestLocalCache_Delete(t *testing.T) {
	c := NewLocalCache()

	c.Set("a", []byte("1"), nil, time.Minute, 0)
	c.Set("b", []byte("2"), nil, time.Minute, 0)

	c.Delete("a", "missing")

	if _, ok := c.Get("a"); ok {
		t.Error("deleted key should miss")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("other keys should survive")
	}
}

func TestLocalCache_DeleteByTags(t *testing.T) {
	c := NewLocalCache()

	c.Set("es1", []byte("1"), []string{"lang:es_ES"}, time.Minute, 0)
	c.Set("es2", []byte("2"), []string{"lang:es_ES", "page:home"}, time.Minute, 0)
	c.Set("de1", []byte("3"), []string{"lang:de_DE"}, time.Minute, 0)
	c.Set("untagged", []byte("4"), nil, time.Minute, 0)

	removed := c.DeleteByTags([]string{"lang:es_ES"})
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	if _, ok := c.Get("es1"); ok {
		t.Error("es1 should be gone")
	}
	if _, ok := c.Get("es2"); ok {
		t.Error("es2 should be gone")
	}
	if _, ok := c.Get("de1"); !ok {
		t.Error("de1 should survive")
	}
	if _, ok := c.Get("untagged"); !ok {
		t.Error("untagged should survive")
	}
}

func TestLocalCache_DeleteByPattern(t *testing.T) {
	c := NewLocalCache()

	c.Set("tr:abc:es_ES", []byte("1"), nil, time.Minute, 0)
	c.Set("tr:abc:de_DE", []byte("2"), nil, time.Minute, 0)
	c.Set("tr:xyz:es_ES", []byte("3"), nil, time.Minute, 0)

	removed := c.DeleteByPattern("tr:abc:*")
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := c.Get("tr:xyz:es_ES"); !ok {
		t.Error("non-matching key should survive")
	}
}

func TestLocalCache_Clear(t *testing.T) {
	c := NewLocalCache()

	c.Set("a", []byte("1"), nil, time.Minute, 0)
	c.Set("b", []byte("2"), nil, time.Minute, 0)

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0 after Clear", c.Len())
	}
}
