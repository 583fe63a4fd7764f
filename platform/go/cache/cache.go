// Package cache is a small typed TTL cache backed by ristretto.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// DefaultTTL is used when a cache is created with a zero TTL.
const DefaultTTL = 5 * time.Minute

// TTLCache stores values of type V for a fixed TTL. Every entry costs 1, so
// maxItems bounds the number of entries.
type TTLCache[V any] struct {
	c   *ristretto.Cache[string, V]
	ttl time.Duration
}

// New creates a cache holding up to maxItems entries.
func New[V any](maxItems int64, ttl time.Duration) (*TTLCache[V], error) {
	if maxItems <= 0 {
		maxItems = 10_000
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: maxItems * 10, // ~10x expected items
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &TTLCache[V]{c: c, ttl: ttl}, nil
}

// Get returns the cached value, if present and not expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	return c.c.Get(key)
}

// Set stores value under key. Writes are buffered by ristretto; Set waits for
// them to be applied so a following Get observes the value.
func (c *TTLCache[V]) Set(key string, value V) {
	c.c.SetWithTTL(key, value, 1, c.ttl)
	c.c.Wait()
}

// Delete removes key.
func (c *TTLCache[V]) Delete(key string) {
	c.c.Del(key)
}

// Clear drops every entry.
func (c *TTLCache[V]) Clear() {
	c.c.Clear()
}

// Close releases the cache goroutines.
func (c *TTLCache[V]) Close() {
	c.c.Close()
}
