package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long cached responses stay fresh.
	DefaultTTL = 60 * time.Second

	// fetchTimeout bounds a shared fetch once it no longer follows any
	// single caller's context.
	fetchTimeout = 2 * time.Minute
)

// FetchFunc loads the value for a key.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Options tunes a single cache lookup.
type Options struct {
	TTL          time.Duration // zero uses the cache default
	ForceRefresh bool
}

type entry struct {
	value     interface{}
	fetchedAt time.Time
	expiresAt time.Time
}

// Entry is a cached value as returned by Peek.
type Entry struct {
	Value     interface{}
	FetchedAt time.Time
	Expired   bool
}

// Cache memoizes fetch results per key for a TTL and coalesces concurrent
// misses for the same key into one fetch.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	group      singleflight.Group
	now        func() time.Time
}

// NewCache creates a cache. A non-positive ttl uses DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: ttl,
		now:        time.Now,
	}
}

// GetOrFetch returns the cached value for key or runs fetch. Errors are not
// cached; every caller waiting on a failed fetch gets the same error. A caller
// whose ctx ends stops waiting without failing the others.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc, opts Options) (interface{}, error) {
	if !opts.ForceRefresh {
		if v, ok := c.fresh(key); ok {
			return v, nil
		}
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.DefaultTTL()
	}

	// the fetch keeps the first caller's values but not its cancellation
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// another caller may have filled the entry while we queued
		if !opts.ForceRefresh {
			if v, ok := c.fresh(key); ok {
				return v, nil
			}
		}
		ctx, cancel := context.WithTimeout(fetchCtx, fetchTimeout)
		defer cancel()
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		now := c.now()
		c.mu.Lock()
		c.entries[key] = entry{value: value, fetchedAt: now, expiresAt: now.Add(ttl)}
		c.mu.Unlock()
		return value, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) fresh(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Peek returns the entry for key even when it has expired.
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		Value:     e.value,
		FetchedAt: e.fetchedAt,
		Expired:   !c.now().Before(e.expiresAt),
	}, true
}

// Clear drops one key.
func (c *Cache) Clear(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// ClearPrefix drops every key starting with prefix.
func (c *Cache) ClearPrefix(prefix string) {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// ClearAll drops every key.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// SetDefaultTTL changes the TTL used by later lookups without an explicit TTL.
func (c *Cache) SetDefaultTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.defaultTTL = ttl
	c.mu.Unlock()
}

// DefaultTTL returns the current default TTL.
func (c *Cache) DefaultTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultTTL
}

// Fetch is the typed form of GetOrFetch.
func Fetch[T any](ctx context.Context, c *Cache, key string, fetch func(ctx context.Context) (T, error), opts Options) (T, error) {
	v, err := c.GetOrFetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		return fetch(ctx)
	}, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}
