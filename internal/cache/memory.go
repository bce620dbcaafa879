package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kyleking/hr-insight/internal/types"
)

// MemoryCache keeps responses in process. Expiry is judged by the
// injected clock; go-cache only reclaims memory.
type MemoryCache struct {
	items      *gocache.Cache
	clock      Clock
	defaultTTL time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

// MemoryOption configures a MemoryCache
type MemoryOption func(*MemoryCache)

// WithClock replaces the wall clock, mainly for tests
func WithClock(clock Clock) MemoryOption {
	return func(c *MemoryCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewMemoryCache creates an in-process cache
func NewMemoryCache(defaultTTL, cleanupFreq time.Duration, opts ...MemoryOption) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	c := &MemoryCache{
		items:      gocache.New(defaultTTL, cleanupFreq),
		clock:      SystemClock,
		defaultTTL: defaultTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns a copy of the stored response
func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*types.Response, bool) {
	raw, found := c.items.Get(fingerprint)
	if !found {
		c.misses.Add(1)
		return nil, false
	}

	entry := raw.(*Entry)
	if entry.expired(c.clock.Now()) {
		c.items.Delete(fingerprint)
		c.misses.Add(1)

		return nil, false
	}

	c.hits.Add(1)

	return clonePayload(entry.Payload), true
}

// Put stores a copy of payload, replacing any previous entry
func (c *MemoryCache) Put(_ context.Context, fingerprint string, payload *types.Response, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := c.clock.Now()
	c.items.Set(fingerprint, &Entry{
		Fingerprint: fingerprint,
		Payload:     clonePayload(payload),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, ttl)

	return nil
}

// Clear removes all entries and resets counters
func (c *MemoryCache) Clear(_ context.Context) error {
	c.items.Flush()
	c.hits.Store(0)
	c.misses.Store(0)

	return nil
}

// GetStats returns cache statistics
func (c *MemoryCache) GetStats(_ context.Context) (*Stats, error) {
	stats := &Stats{
		Backend:      "memory",
		TotalEntries: int64(c.items.ItemCount()),
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
	}
	stats.computeRates()

	return stats, nil
}

// Close is a no-op; go-cache's janitor stops when the cache is collected
func (c *MemoryCache) Close() error {
	return nil
}
