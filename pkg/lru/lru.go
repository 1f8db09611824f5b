// Package lru implements a bounded Least Recently Used (LRU) map backed by
// a slot arena.
//
// Entries live in a contiguous slice of slots. Recency is tracked by an
// intrusive doubly linked list whose links are slot indices rather than
// pointers, so the structure allocates once per slot and never produces
// per-entry garbage after warm-up. When the cache is full, the slot of the
// least recently used entry is reused for the new entry.
//
// Features:
//   - O(1) GetOrCreate, Get, Peek and eviction
//   - Generic types for key and value
//   - Optional eviction hook
//   - Deterministic eviction order (strict recency list, no ties)
//
// Thread Safety: NOT safe for concurrent use. Callers must serialize access,
// typically by holding the lock of the structure that owns the cache.
package lru

// nilSlot marks the absence of a neighbour in the recency list.
const nilSlot int32 = -1

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 1000

// Cache is a generic bounded LRU map.
//
// Type Parameters:
//   - K: Key type (must be comparable)
//   - V: Value type (any)
type Cache[K comparable, V any] struct {
	capacity int          // Maximum entries before eviction
	slots    []slot[K, V] // Arena; len(slots) only grows up to capacity
	index    map[K]int32  // Key -> slot index
	head     int32        // Most recently used slot
	tail     int32        // Least recently used slot
	onEvict  func(K, V)   // Called after an entry is evicted (may be nil)
	evicted  uint64       // Total evictions since creation
}

// slot holds one entry plus its recency links.
type slot[K comparable, V any] struct {
	key   K
	value V
	prev  int32 // towards head (more recent)
	next  int32 // towards tail (less recent)
}

// New creates an LRU cache with the given capacity.
//
// Parameters:
//   - capacity: Maximum entries before eviction (DefaultCapacity if <= 0)
//   - onEvict: Optional hook invoked with each evicted entry
//
// Returns:
//   - Empty Cache ready for use
func New[K comparable, V any](capacity int, onEvict func(K, V)) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	initial := capacity
	if initial > 1024 {
		initial = 1024
	}
	return &Cache[K, V]{
		capacity: capacity,
		slots:    make([]slot[K, V], 0, initial),
		index:    make(map[K]int32, initial),
		head:     nilSlot,
		tail:     nilSlot,
		onEvict:  onEvict,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	i, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(i)
	return c.slots[i].value, true
}

// Peek returns the value for key without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	i, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	return c.slots[i].value, true
}

// Contains reports whether key is present without touching its recency.
func (c *Cache[K, V]) Contains(key K) bool {
	_, ok := c.index[key]
	return ok
}

// GetOrCreate returns the value for key, marking it most recently used, or
// inserts factory() as the most recently used entry.
//
// When the cache is full the least recently used entry is evicted before
// the insertion, so Len never exceeds Capacity.
//
// Returns:
//   - The existing or new value
//   - true if the value was created by this call
func (c *Cache[K, V]) GetOrCreate(key K, factory func() V) (V, bool) {
	if i, ok := c.index[key]; ok {
		c.moveToFront(i)
		return c.slots[i].value, false
	}

	var i int32
	if len(c.slots) >= c.capacity {
		i = c.evictTail()
	} else {
		c.slots = append(c.slots, slot[K, V]{})
		i = int32(len(c.slots) - 1)
	}

	value := factory()
	c.slots[i] = slot[K, V]{key: key, value: value, prev: nilSlot, next: nilSlot}
	c.index[key] = i
	c.pushFront(i)
	return value, true
}

// evictTail unlinks the least recently used entry and returns its slot.
func (c *Cache[K, V]) evictTail() int32 {
	i := c.tail
	victim := c.slots[i]
	c.unlink(i)
	delete(c.index, victim.key)
	c.slots[i] = slot[K, V]{}
	c.evicted++
	if c.onEvict != nil {
		c.onEvict(victim.key, victim.value)
	}
	return i
}

func (c *Cache[K, V]) pushFront(i int32) {
	c.slots[i].prev = nilSlot
	c.slots[i].next = c.head
	if c.head != nilSlot {
		c.slots[c.head].prev = i
	}
	c.head = i
	if c.tail == nilSlot {
		c.tail = i
	}
}

func (c *Cache[K, V]) unlink(i int32) {
	s := &c.slots[i]
	if s.prev != nilSlot {
		c.slots[s.prev].next = s.next
	} else {
		c.head = s.next
	}
	if s.next != nilSlot {
		c.slots[s.next].prev = s.prev
	} else {
		c.tail = s.prev
	}
	s.prev, s.next = nilSlot, nilSlot
}

func (c *Cache[K, V]) moveToFront(i int32) {
	if c.head == i {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}

// Len returns the current number of entries.
func (c *Cache[K, V]) Len() int {
	return len(c.index)
}

// Capacity returns the maximum number of entries.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Evictions returns the number of entries evicted since creation.
func (c *Cache[K, V]) Evictions() uint64 {
	return c.evicted
}

// Oldest returns the least recently used key without touching recency.
func (c *Cache[K, V]) Oldest() (K, bool) {
	if c.tail == nilSlot {
		var zero K
		return zero, false
	}
	return c.slots[c.tail].key, true
}

// Keys returns all keys in recency order (most recent first).
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.index))
	for i := c.head; i != nilSlot; i = c.slots[i].next {
		keys = append(keys, c.slots[i].key)
	}
	return keys
}

// Range calls fn for each entry from most to least recently used until fn
// returns false. It does not change recency; fn must not modify the cache.
func (c *Cache[K, V]) Range(fn func(key K, value V) bool) {
	for i := c.head; i != nilSlot; i = c.slots[i].next {
		if !fn(c.slots[i].key, c.slots[i].value) {
			return
		}
	}
}
