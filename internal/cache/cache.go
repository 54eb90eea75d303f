// Package cache is an explicit content-addressed store for per-session
// intermediate results (feature tables, importance results), keyed by
// fingerprints from domain/core.
package cache

import (
	"context"
	"fmt"
	"sync"

	"floodcv/domain/core"

	"golang.org/x/sync/singleflight"
)

// Stats counts lookups.
type Stats struct {
	Entries int `json:"entries"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// Cache maps content hashes to values. Concurrent GetOrCompute calls for the
// same key share one computation.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[core.Hash]V
	hits    int
	misses  int
	flight  singleflight.Group
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[core.Hash]V)}
}

// Get looks up key.
func (c *Cache[V]) Get(key core.Hash) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Put stores v under key, replacing any previous value.
func (c *Cache[V]) Put(key core.Hash, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
}

// Delete removes key.
func (c *Cache[V]) Delete(key core.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the entry and lookup counts.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// GetOrCompute returns the cached value for key or stores the result of
// compute. Errors are not cached.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key core.Hash, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	res, err, _ := c.flight.Do(string(key), func() (interface{}, error) {
		c.mu.RLock()
		v, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, fmt.Errorf("compute %s: %w", key.Short(), err)
	}
	return res.(V), nil
}
