package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kyleking/hr-insight/internal/logging"
	"github.com/kyleking/hr-insight/internal/types"
)

// redisClient is the subset of *redis.Client the cache uses
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Close() error
}

// RedisCache shares responses between processes through Redis. Entries
// expire through Redis' own TTL.
type RedisCache struct {
	client     redisClient
	prefix     string
	defaultTTL time.Duration
	logger     *logging.Logger
	hits       atomic.Int64
	misses     atomic.Int64
}

// RedisOptions configures a RedisCache
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	KeyPrefix  string
	DefaultTTL time.Duration
	Logger     *logging.Logger
}

// NewRedisCache connects lazily to the configured server
func NewRedisCache(opts RedisOptions) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	return newRedisCache(client, opts)
}

func newRedisCache(client redisClient, opts RedisOptions) *RedisCache {
	c := &RedisCache{
		client:     client,
		prefix:     opts.KeyPrefix,
		defaultTTL: opts.DefaultTTL,
		logger:     opts.Logger,
	}

	if c.defaultTTL <= 0 {
		c.defaultTTL = DefaultTTL
	}

	if c.logger == nil {
		c.logger = logging.NewNopLogger()
	}

	return c
}

func (c *RedisCache) key(fingerprint string) string {
	return c.prefix + fingerprint
}

// Get returns the stored response. Connection failures are logged and
// treated as misses.
func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*types.Response, bool) {
	data, err := c.client.Get(ctx, c.key(fingerprint)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Warn("Redis cache lookup failed")
		}

		c.misses.Add(1)

		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Payload == nil {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)

	return entry.Payload, true
}

// Put stores payload with a Redis TTL
func (c *RedisCache) Put(ctx context.Context, fingerprint string, payload *types.Response, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()

	data, err := json.Marshal(Entry{
		Fingerprint: fingerprint,
		Payload:     payload,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := c.client.Set(ctx, c.key(fingerprint), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write redis cache entry: %w", err)
	}

	return nil
}

// Clear deletes every key under the configured prefix
func (c *RedisCache) Clear(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete redis cache entries: %w", err)
		}
	}

	c.hits.Store(0)
	c.misses.Store(0)

	return nil
}

// GetStats counts keys under the prefix
func (c *RedisCache) GetStats(ctx context.Context) (*Stats, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Backend:      "redis",
		TotalEntries: int64(len(keys)),
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
	}
	stats.computeRates()

	return stats, nil
}

// Close releases the connection pool
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) keys(ctx context.Context) ([]string, error) {
	var (
		all    []string
		cursor uint64
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan redis cache keys: %w", err)
		}

		all = append(all, keys...)

		if next == 0 {
			return all, nil
		}

		cursor = next
	}
}
