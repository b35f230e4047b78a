package main

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache stores values by key for a caller-supplied time-to-live. Failed
// fetches are never stored, and an expired entry is never served again.
// There is no size bound.
type TTLCache[V any] struct {
	mu      sync.Mutex
	entries map[string]cacheEntry[V]
	group   singleflight.Group
	now     func() time.Time
	// fetchTimeout bounds a shared fetch, which outlives its callers.
	fetchTimeout time.Duration
}

func NewTTLCache[V any]() *TTLCache[V] {
	return &TTLCache[V]{
		entries:      make(map[string]cacheEntry[V]),
		now:          time.Now,
		fetchTimeout: 30 * time.Second,
	}
}

// GetOrFetch returns the cached value for key if it is younger than ttl,
// otherwise calls fetch and stores its result. Concurrent misses on the same
// key share a single fetch.
func (c *TTLCache[V]) GetOrFetch(key string, ttl time.Duration, fetch func() (V, error)) (V, error) {
	return c.GetOrFetchContext(context.Background(), key, ttl, func(context.Context) (V, error) {
		return fetch()
	})
}

// GetOrFetchContext is GetOrFetch for context-aware fetches. The shared
// fetch runs detached from any one caller's cancellation, bounded by the
// cache's fetch timeout; a caller whose ctx ends stops waiting and gets
// ctx.Err() while the others still receive the result.
func (c *TTLCache[V]) GetOrFetchContext(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (V, error)) (V, error) {
	var zero V
	if v, ok := c.lookup(key, ttl); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if v, ok := c.lookup(key, ttl); ok {
			return v, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry[V]{value: v, storedAt: c.now()}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

func (c *TTLCache[V]) lookup(key string, ttl time.Duration) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(ent.storedAt) >= ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return ent.value, true
}

// Delete drops one entry.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry[V])
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
