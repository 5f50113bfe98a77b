// Package cache provides a read-through memo cache for store queries.
// Dashboard reads hit the same collections repeatedly; entries live until
// a write invalidates them.
package cache

import (
	"sync"
)

// Cache memoizes loader results by key. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]any
}

// New creates an empty cache
func New() *Cache {
	return &Cache{entries: make(map[string]any)}
}

// GetOrLoad returns the cached value for key, calling load on a miss and
// storing its result. Loader errors are not cached.
func GetOrLoad[T any](c *Cache, key string, load func() (T, error)) (T, error) {
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached.(T), nil
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	c.mu.Lock()
	c.entries[key] = value
	c.mu.Unlock()
	return value, nil
}

// Invalidate removes one key
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll empties the cache. Called after any write.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]any)
	c.mu.Unlock()
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
