// Package cache provides the bounded recency cache for temperature readings.
//
// The cache is the hot tier of the read path: recent readings are mirrored
// into it on ingestion, and the analytics aggregator consults it before
// touching durable storage. Eviction is least-recently-used, where "used"
// means touched by Get or Put - recency order is insertion/access order,
// not the chronological order of the readings' timestamps. The two diverge
// when readings arrive out of timestamp order, and callers of Recent see
// that divergence on purpose.
package cache

import (
	"container/list"
	"sync"

	"github.com/xtxerr/weatherd/internal/reading"
)

// Cache is a fixed-capacity LRU store mapping cache keys to readings.
//
// All operations are safe for concurrent use. A single mutex serializes
// every call; each operation is O(1) in-memory work (Recent is O(n)), so
// the lock is never held across I/O.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // front = most recently used
	entries  map[string]*list.Element // key -> element in order

	stats Stats
}

// Stats holds cache counters. Snapshot via Cache.Stats.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Inserts   int64
	Updates   int64
}

// entry is the value stored in each list element.
type entry struct {
	key string
	val reading.Reading
}

// New creates a cache with the given capacity. Capacity must be positive;
// values < 1 are clamped to 1 so the cache can always hold something.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Get returns the reading stored under key. On a hit the entry is
// repositioned as most recently used; a miss leaves the order untouched.
func (c *Cache) Get(key string) (reading.Reading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return reading.Reading{}, false
	}

	c.order.MoveToFront(el)
	c.stats.Hits++
	return el.Value.(*entry).val, true
}

// Put stores a reading under key with upsert semantics. An existing key is
// updated in place and repositioned as most recently used. A new key at
// full capacity first evicts the least recently used entry, so the size
// never exceeds capacity.
func (c *Cache) Put(key string, val reading.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).val = val
		c.order.MoveToFront(el)
		c.stats.Updates++
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	el := c.order.PushFront(&entry{key: key, val: val})
	c.entries[key] = el
	c.stats.Inserts++
}

// evictOldest removes the entry at the back of the recency order.
// Caller must hold c.mu.
func (c *Cache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.order.Remove(back)
	delete(c.entries, back.Value.(*entry).key)
	c.stats.Evictions++
}

// Recent returns a snapshot of cached readings ordered most-recent-first.
// A limit <= 0 returns all entries. Unlike Get, Recent does not alter the
// recency order: repeated calls with no intervening Put or Get return the
// same sequence.
func (c *Cache) Recent(limit int) []reading.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.order.Len()
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]reading.Reading, 0, n)
	for el := c.order.Front(); el != nil && len(out) < n; el = el.Next() {
		out = append(out, el.Value.(*entry).val)
	}
	return out
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the configured capacity.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Clear removes all entries and resets the size to zero. Intended for
// reset paths and test teardown, not normal operation. Counters survive.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element, c.capacity)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
