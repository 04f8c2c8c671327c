// Package cache holds immutable framework-version data close to the service:
// a generic in-process LRU, and a byte cache that is either process-local or
// shared through Redis.
package cache

import "sync"

// LRU is a thread-safe least-recently-used cache.
type LRU[V any] struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]V
	order   []string // oldest first
}

// NewLRU creates a cache with the given maximum number of entries.
// If maxSize <= 0, it defaults to 64.
func NewLRU[V any](maxSize int) *LRU[V] {
	if maxSize <= 0 {
		maxSize = 64
	}
	return &LRU[V]{
		maxSize: maxSize,
		entries: make(map[string]V),
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	if ok {
		c.moveToEnd(key)
	}
	return v, ok
}

// Put adds a value, evicting the oldest entry if full.
func (c *LRU[V]) Put(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = v
		c.moveToEnd(key)
		return
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = v
	c.order = append(c.order, key)
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRU[V]) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}
