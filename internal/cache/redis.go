// Package cache provides the Redis access layer: auth context caching,
// bookmark read-through caching and rate limiting.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolOptions size the Redis connection pool.
type PoolOptions struct {
	Size        int
	MinIdle     int
	Timeout     time.Duration
	MaxIdleTime time.Duration
}

// DefaultPoolOptions matches the PostgreSQL pool size.
var DefaultPoolOptions = PoolOptions{
	Size:        10,
	MinIdle:     2,
	Timeout:     4 * time.Second,
	MaxIdleTime: 5 * time.Minute,
}

// Cache wraps a Redis client shared by every cache concern.
type Cache struct {
	client *redis.Client
}

// New connects with DefaultPoolOptions.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	return Connect(ctx, redisURL, DefaultPoolOptions)
}

// Connect parses redisURL, applies pool and verifies the server answers.
func Connect(ctx context.Context, redisURL string, pool PoolOptions) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if pool.Size > 0 {
		opt.PoolSize = pool.Size
	}
	opt.MinIdleConns = pool.MinIdle
	opt.PoolTimeout = pool.Timeout
	opt.ConnMaxIdleTime = pool.MaxIdleTime

	c := NewFromClient(redis.NewClient(opt))
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// NewFromClient wraps an existing client. Close closes it.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping reports whether Redis is reachable. It backs /readyz.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the client to the event stream, which shares the pool.
func (c *Cache) Client() *redis.Client {
	return c.client
}
