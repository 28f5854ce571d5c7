package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookmarks/bookmarks/internal/model"
)

const (
	authCachePrefix = "auth:ctx:"
	authKeyIndex    = "auth:key:"
	authCacheTTL    = 5 * time.Minute
)

// GetAuthContext retrieves a cached auth context by cache key.
// A miss, or an unreadable entry, returns nil without error.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var auth model.AuthContext
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, nil //nolint:nilerr
	}
	return &auth, nil
}

// SetAuthContext caches an auth context. API key principals are also indexed
// by key id so that revocation can evict them.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, authCachePrefix+cacheKey, data, authCacheTTL)
		if auth.KeyID != "" {
			pipe.Set(ctx, authKeyIndex+auth.KeyID, cacheKey, authCacheTTL)
		}
		return nil
	})
	return err
}

// DeleteAuthContext removes a cached auth context.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	return c.client.Del(ctx, authCachePrefix+cacheKey).Err()
}

// InvalidateAPIKey evicts the cached principal of an API key, if any.
// Called when a key is revoked or rotated.
func (c *Cache) InvalidateAPIKey(ctx context.Context, keyID string) error {
	cacheKey, err := c.client.GetDel(ctx, authKeyIndex+keyID).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup auth index: %w", err)
	}
	return c.DeleteAuthContext(ctx, cacheKey)
}
