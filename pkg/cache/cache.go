// Package cache provides a generic, thread-safe cache with built-in
// statistics. The propagation engine stores computed effective label
// sets in it, one cache per snapshot, so invalidation on reload is the
// snapshot swap itself.
package cache

import (
	"sync"
)

// Cache is a generic key/value cache. All implementations are safe for
// concurrent use.
type Cache[V any] interface {
	// Get retrieves a value by key.
	Get(key string) (V, bool)

	// Set stores a value with the given key. Returns true if a new
	// entry was created, false if an existing one was updated.
	Set(key string, value V) bool

	// Delete removes an entry by key, reporting whether it existed.
	Delete(key string) bool

	// Clear removes all entries.
	Clear()

	// Len returns the current number of entries.
	Len() int

	// Keys returns a slice of all keys currently in the cache.
	Keys() []string

	// Stats returns the cache statistics tracker.
	Stats() *Statistics
}

// simple is a thread-safe cache with no eviction policy. Entries live
// until explicitly deleted or cleared; at home-automation scale the
// subject universe is small enough that eviction never pays for itself.
type simple[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	stats *Statistics
}

// NewSimple creates a cache with no eviction policy.
func NewSimple[V any]() Cache[V] {
	return &simple[V]{
		items: make(map[string]V),
		stats: NewStatistics(),
	}
}

// Get retrieves a value by key.
func (c *simple[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	value, exists := c.items[key]
	c.mu.RUnlock()

	if exists {
		c.stats.Hit()
	} else {
		c.stats.Miss()
	}
	return value, exists
}

// Set stores a value with the given key.
func (c *simple[V]) Set(key string, value V) bool {
	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = value
	size := len(c.items)
	c.mu.Unlock()

	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	return !exists
}

// Delete removes an entry by key.
func (c *simple[V]) Delete(key string) bool {
	c.mu.Lock()
	_, exists := c.items[key]
	if exists {
		delete(c.items, key)
	}
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.stats.Delete()
		c.stats.UpdateSize(int64(size))
	}
	return exists
}

// Clear removes all entries.
func (c *simple[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]V)
	c.mu.Unlock()

	c.stats.UpdateSize(0)
}

// Len returns the current number of entries.
func (c *simple[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns a slice of all keys currently in the cache.
func (c *simple[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	return keys
}

// Stats returns the cache statistics tracker.
func (c *simple[V]) Stats() *Statistics {
	return c.stats
}
