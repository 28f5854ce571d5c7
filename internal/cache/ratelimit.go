package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrincipalPrefix = "ratelimit:principal:"
	rateLimitIPPrefix        = "ratelimit:ip:"
	rateLimitPrincipalTTL    = 120 * time.Second
	rateLimitIPTTL           = 10 * time.Second
)

// RateLimitResult is the outcome of taking one token from a bucket.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// bucket is a token bucket stored as a Redis hash.
type bucket struct {
	key      string
	perSec   float64
	capacity int
	ttl      time.Duration
}

// takeToken refills by elapsed seconds, then spends one token if it can.
// KEYS[1] bucket; ARGV rate/s, capacity, now (unix s), ttl (s).
// Returns {allowed, retry_after_s, tokens_left}.
var takeToken = redis.NewScript(`
local rate, capacity = tonumber(ARGV[1]), tonumber(ARGV[2])
local now, ttl = tonumber(ARGV[3]), tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last_update')
local tokens = tonumber(state[1]) or capacity
local since = tonumber(state[2]) or now
tokens = math.min(capacity, tokens + (now - since) * rate)

local allowed, wait = 0, 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, wait, math.floor(tokens)}
`)

// CheckPrincipalRateLimit takes a token from the bucket of an authenticated
// principal. ratePerMinute 0 disables the check.
func (c *Cache) CheckPrincipalRateLimit(ctx context.Context, principalKey string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute <= 0 {
		return unlimited(burst), nil
	}
	return c.take(ctx, bucket{
		key:      rateLimitPrincipalPrefix + principalKey,
		perSec:   float64(ratePerMinute) / 60,
		capacity: burst,
		ttl:      rateLimitPrincipalTTL,
	})
}

// CheckIPRateLimit takes a token from the bucket of a client address. Only
// a hash of the address is written to Redis.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return unlimited(burst), nil
	}
	return c.take(ctx, bucket{
		key:      rateLimitIPPrefix + hashIP(ip),
		perSec:   float64(ratePerSecond),
		capacity: burst,
		ttl:      rateLimitIPTTL,
	})
}

// take returns an error when Redis cannot answer; callers decide whether to
// let the request through.
func (c *Cache) take(ctx context.Context, b bucket) (*RateLimitResult, error) {
	now := time.Now()
	reply, err := takeToken.Run(ctx, c.client, []string{b.key},
		b.perSec, b.capacity, now.Unix(), int(b.ttl.Seconds()),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", b.key, err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply %v", b.key, reply)
	}

	return &RateLimitResult{
		Allowed:    reply[0] == 1,
		Remaining:  reply[2],
		ResetAt:    now.Add(time.Duration(float64(time.Second) / b.perSec)),
		RetryAfter: time.Duration(reply[1]) * time.Second,
	}, nil
}

func unlimited(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   time.Now().Add(time.Minute),
	}
}

// hashIP keeps the first 8 bytes of the SHA-256 of ip, hex encoded.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
