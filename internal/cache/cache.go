// Package cache provides a bounded in-memory cache with per-entry expiry.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

type stamp[K comparable] struct {
	key     K
	expires time.Time
}

// TTL holds at most capacity entries, each valid for ttl after it was set.
// The oldest insertions are evicted first once capacity is exceeded.
type TTL[K comparable, V any] struct {
	mu       sync.Mutex
	items    map[K]entry[V]
	order    []stamp[K]
	capacity int
	ttl      time.Duration
	now      func() time.Time

	hits, misses uint64
}

func New[K comparable, V any](capacity int, ttl time.Duration) *TTL[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TTL[K, V]{
		items:    make(map[K]entry[V], capacity),
		order:    make([]stamp[K], 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || !now.Before(e.expires) {
		if ok {
			delete(c.items, key)
		}
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

func (c *TTL[K, V]) Set(key K, value V) {
	now := c.now()
	expires := now.Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[V]{value: value, expires: expires}
	c.order = append(c.order, stamp[K]{key: key, expires: expires})
	c.compact(now)
}

func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]entry[V], c.capacity)
	c.order = c.order[:0]
}

// Stats reports the live entry count and the hit/miss counters.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

func (c *TTL[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.items), Hits: c.hits, Misses: c.misses}
}

// compact drops stamps that are expired or that push the map over capacity.
// A stamp only removes its key when it still matches the live entry.
func (c *TTL[K, V]) compact(now time.Time) {
	for len(c.order) > 0 && (len(c.items) > c.capacity || !now.Before(c.order[0].expires)) {
		oldest := c.order[0]
		c.order = c.order[1:]
		if e, ok := c.items[oldest.key]; ok && e.expires.Equal(oldest.expires) {
			delete(c.items, oldest.key)
		}
	}
}
