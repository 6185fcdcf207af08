// Package ttlcache is a small time-bounded key/value map. Entries past their
// expiry read as misses and are evicted on access. There is no size bound.
package ttlcache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache holds values of type V keyed by K.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[K]entry[V]
	now     func() time.Time
}

// New creates a cache whose entries live for ttl.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *Cache[K, V]) WithClock(now func() time.Time) *Cache[K, V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Get returns the live value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Update rewrites a live entry in place, keeping its expiry. It reports
// whether the key was present.
func (c *Cache[K, V]) Update(key K, fn func(V) V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return false
	}
	e.value = fn(e.value)
	c.entries[key] = e
	return true
}

// Delete drops key.
func (c *Cache[K, V]) Delete(keys ...K) {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
}

// Len counts stored entries, including ones that have expired but were not
// read since.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops everything.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}
