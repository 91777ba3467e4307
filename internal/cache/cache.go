// Package cache provides a small TTL read cache with request collapsing
// for hot aggregate queries.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Loader produces a fresh value on cache miss.
type Loader[V any] func(ctx context.Context) (V, error)

// TTL is an expiring LRU in front of a loader. Concurrent misses on the
// same key collapse into one loader call.
type TTL[V any] struct {
	lru   *expirable.LRU[string, V]
	group singleflight.Group
}

// NewTTL builds a cache holding up to size entries for ttl each.
func NewTTL[V any](size int, ttl time.Duration) *TTL[V] {
	if size <= 0 {
		size = 128
	}
	return &TTL[V]{
		lru: expirable.NewLRU[string, V](size, nil, ttl),
	}
}

// GetOrLoad returns the cached value for key, running loader once to fill
// a miss. Loader errors are returned and never cached.
func (c *TTL[V]) GetOrLoad(ctx context.Context, key string, loader Loader[V]) (V, error) {
	if value, ok := c.lru.Get(key); ok {
		return value, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent caller may have filled the entry while this one
		// waited on the flight group.
		if value, ok := c.lru.Get(key); ok {
			return value, nil
		}
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Invalidate drops one key.
func (c *TTL[V]) Invalidate(key string) {
	c.lru.Remove(key)
}

// Purge drops every cached entry.
func (c *TTL[V]) Purge() {
	c.lru.Purge()
}

// Len reports the number of live entries.
func (c *TTL[V]) Len() int {
	return c.lru.Len()
}
