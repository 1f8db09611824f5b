package lru

import (
	"fmt"
	"testing"
)

func counter(v int) func() int {
	return func() int { return v }
}

func TestCache_GetOrCreate(t *testing.T) {
	cache := New[string, int](10, nil)

	val, created := cache.GetOrCreate("a", counter(42))
	if val != 42 || !created {
		t.Errorf("Expected (42, true), got (%d, %v)", val, created)
	}
	val, created = cache.GetOrCreate("a", counter(100))
	if val != 42 || created {
		t.Errorf("Expected (42, false) from cache, got (%d, %v)", val, created)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected length 1, got %d", cache.Len())
	}
}

func TestCache_NotFound(t *testing.T) {
	cache := New[string, int](10, nil)

	if _, ok := cache.Get("nonexistent"); ok {
		t.Error("Expected not found")
	}
	if _, ok := cache.Peek("nonexistent"); ok {
		t.Error("Expected not found on peek")
	}
	if _, ok := cache.Oldest(); ok {
		t.Error("Expected no oldest key in empty cache")
	}
}

func TestCache_Eviction(t *testing.T) {
	var evicted []string
	cache := New[string, int](3, func(k string, _ int) { evicted = append(evicted, k) })

	cache.GetOrCreate("a", counter(1))
	cache.GetOrCreate("b", counter(2))
	cache.GetOrCreate("c", counter(3))
	cache.GetOrCreate("d", counter(4))

	if cache.Contains("a") {
		t.Error("Expected 'a' to be evicted")
	}
	for _, k := range []string{"b", "c", "d"} {
		if !cache.Contains(k) {
			t.Errorf("Expected '%s' to exist", k)
		}
	}
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Errorf("Expected eviction hook for 'a', got %v", evicted)
	}
	if cache.Evictions() != 1 {
		t.Errorf("Expected 1 eviction, got %d", cache.Evictions())
	}
	if cache.Len() != 3 {
		t.Errorf("Expected length 3, got %d", cache.Len())
	}
}

func TestCache_LRUOrder(t *testing.T) {
	cache := New[string, int](3, nil)

	cache.GetOrCreate("a", counter(1))
	cache.GetOrCreate("b", counter(2))
	cache.GetOrCreate("c", counter(3))

	cache.Get("a")

	cache.GetOrCreate("d", counter(4))

	if !cache.Contains("a") {
		t.Error("Expected 'a' to exist (was accessed recently)")
	}
	if cache.Contains("b") {
		t.Error("Expected 'b' to be evicted (LRU)")
	}
}

func TestCache_GetOrCreateRefreshesRecency(t *testing.T) {
	cache := New[string, int](2, nil)

	cache.GetOrCreate("a", counter(1))
	cache.GetOrCreate("b", counter(2))
	cache.GetOrCreate("a", counter(0))
	cache.GetOrCreate("c", counter(3))

	if !cache.Contains("a") || cache.Contains("b") {
		t.Errorf("Expected 'b' evicted and 'a' kept, keys=%v", cache.Keys())
	}
}

func TestCache_PeekDoesNotTouchRecency(t *testing.T) {
	cache := New[string, int](2, nil)

	cache.GetOrCreate("a", counter(1))
	cache.GetOrCreate("b", counter(2))
	if v, ok := cache.Peek("a"); !ok || v != 1 {
		t.Fatalf("Expected peek a=1, got %d (ok=%v)", v, ok)
	}
	cache.GetOrCreate("c", counter(3))

	if cache.Contains("a") {
		t.Error("Expected 'a' to be evicted despite peek")
	}
}

func TestCache_Keys(t *testing.T) {
	cache := New[string, int](10, nil)

	cache.GetOrCreate("a", counter(1))
	cache.GetOrCreate("b", counter(2))
	cache.GetOrCreate("c", counter(3))
	cache.Get("a")

	keys := cache.Keys()
	want := []string{"a", "c", "b"}
	if len(keys) != len(want) {
		t.Fatalf("Expected %d keys, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Expected keys %v, got %v", want, keys)
			break
		}
	}
	if oldest, _ := cache.Oldest(); oldest != "b" {
		t.Errorf("Expected oldest 'b', got %s", oldest)
	}
}

func TestCache_Range(t *testing.T) {
	cache := New[int, int](10, nil)
	for i := 0; i < 5; i++ {
		cache.GetOrCreate(i, counter(i*10))
	}

	sum := 0
	visited := 0
	cache.Range(func(_ int, v int) bool {
		sum += v
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("Expected range to stop after 3, visited %d", visited)
	}
	if sum != 40+30+20 {
		t.Errorf("Expected most recent three values, sum=%d", sum)
	}
}

func TestCache_SingleSlot(t *testing.T) {
	cache := New[string, int](1, nil)

	cache.GetOrCreate("a", counter(1))
	cache.GetOrCreate("b", counter(2))

	if cache.Contains("a") || !cache.Contains("b") || cache.Len() != 1 {
		t.Errorf("Expected only 'b', keys=%v", cache.Keys())
	}
}

func TestCache_SlotReuseStaysBounded(t *testing.T) {
	cache := New[string, int](100, nil)

	for i := 0; i < 10000; i++ {
		cache.GetOrCreate(fmt.Sprintf("client-%d", i), counter(i))
	}

	if cache.Len() != 100 {
		t.Errorf("Expected length 100, got %d", cache.Len())
	}
	if len(cache.slots) != 100 {
		t.Errorf("Expected arena of 100 slots, got %d", len(cache.slots))
	}
	if !cache.Contains("client-9999") || cache.Contains("client-9899") {
		t.Error("Expected only the 100 most recent clients to remain")
	}
	if oldest, _ := cache.Oldest(); oldest != "client-9900" {
		t.Errorf("Expected oldest client-9900, got %s", oldest)
	}
}

func TestCache_Capacity(t *testing.T) {
	cache := New[string, int](50, nil)

	if cache.Capacity() != 50 {
		t.Errorf("Expected capacity 50, got %d", cache.Capacity())
	}
}

func TestCache_DefaultCapacity(t *testing.T) {
	cache := New[string, int](0, nil)

	if cache.Capacity() != DefaultCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultCapacity, cache.Capacity())
	}
}

func BenchmarkCache_GetOrCreate(b *testing.B) {
	cache := New[int, int](10000, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.GetOrCreate(i%20000, counter(i))
	}
}
