// Package projcache stores derived session projections in Redis.
//
// Entries are keyed by the fingerprint of the event set they were built from,
// so a new event produces a new key instead of a stale hit. TTL only bounds
// memory; it is never relied on for freshness.
package projcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"rankrent/internal/pkg/metrics"
	"rankrent/internal/timeframe"
)

const keyPrefix = "rankrent:proj:"

// Key identifies one cached projection.
type Key struct {
	Kind        string
	SiteID      uint
	Range       timeframe.Range
	Fingerprint string
}

func (k Key) String() string {
	rng := k.Range.UTC()
	return fmt.Sprintf("%s%s:%d:%d:%d:%s", keyPrefix, k.Kind, k.SiteID,
		rng.From.Unix(), rng.To.Unix(), k.Fingerprint)
}

// Cache is a projection store. Implementations must treat a miss and a
// backend failure alike from the caller's point of view: Load reports false.
type Cache interface {
	Load(ctx context.Context, key Key, dst any) bool
	Store(ctx context.Context, key Key, value any)
}

// Client wraps go-redis for projection caching.
type Client struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Connect creates a Redis client and verifies connectivity.
func Connect(url string, ttl time.Duration, logger *slog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(rdb, ttl, logger), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{rdb: rdb, ttl: ttl, logger: logger}
}

// Raw returns the underlying redis.Client.
func (c *Client) Raw() *redis.Client { return c.rdb }

func (c *Client) Close() error { return c.rdb.Close() }

// Load decodes the entry at key into dst and reports whether it was found.
func (c *Client) Load(ctx context.Context, key Key, dst any) bool {
	raw, err := c.rdb.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ProjectionCache.WithLabelValues("miss").Inc()
		return false
	}
	if err != nil {
		c.logger.Warn("Projection cache read failed", slog.String("key", key.String()), slog.Any("error", err))
		metrics.ProjectionCache.WithLabelValues("error").Inc()
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("Projection cache entry unreadable", slog.String("key", key.String()), slog.Any("error", err))
		metrics.ProjectionCache.WithLabelValues("error").Inc()
		return false
	}
	metrics.ProjectionCache.WithLabelValues("hit").Inc()
	return true
}

// Store writes value at key. Failures are logged; the caller already has the value.
func (c *Client) Store(ctx context.Context, key Key, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Projection cache encode failed", slog.String("key", key.String()), slog.Any("error", err))
		return
	}
	if err := c.rdb.Set(ctx, key.String(), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Projection cache write failed", slog.String("key", key.String()), slog.Any("error", err))
	}
}

// Noop never hits. It is used when no Redis URL is configured.
type Noop struct{}

func (Noop) Load(context.Context, Key, any) bool { return false }
func (Noop) Store(context.Context, Key, any)     {}
