package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bookmarks/bookmarks/internal/metrics"
	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	bookmarkKeyPrefix = "bookmark:"

	// DefaultBookmarkTTL is the TTL for cached bookmarks.
	DefaultBookmarkTTL = 24 * time.Hour
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

func bookmarkKey(id int64) string {
	return bookmarkKeyPrefix + strconv.FormatInt(id, 10)
}

// GetBookmark reads a cached bookmark. Returns ErrCacheMiss when absent.
func (c *Cache) GetBookmark(ctx context.Context, id int64) (*model.Bookmark, error) {
	var cached model.CachedBookmark
	res := c.client.HGetAll(ctx, bookmarkKey(id))
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(res.Val()) == 0 {
		return nil, ErrCacheMiss
	}
	if err := res.Scan(&cached); err != nil {
		return nil, fmt.Errorf("scan cached bookmark: %w", err)
	}
	if !cached.Complete() {
		return nil, ErrCacheMiss
	}
	return cached.ToBookmark(id), nil
}

// SetBookmark caches b for DefaultBookmarkTTL.
func (c *Cache) SetBookmark(ctx context.Context, b *model.Bookmark) error {
	key := bookmarkKey(b.ID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, model.NewCachedBookmark(b))
		pipe.Expire(ctx, key, DefaultBookmarkTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache bookmark: %w", err)
	}
	return nil
}

// BookmarkStore is the persistence contract the cache decorates.
type BookmarkStore interface {
	SaveBookmark(ctx context.Context, draft model.BookmarkDraft) (*model.Bookmark, error)
	FindBookmarkByID(ctx context.Context, id int64) (*model.Bookmark, error)
	FindBookmarksByOwnerUsername(ctx context.Context, username string) ([]*model.Bookmark, error)
}

// bookmarkCache is the part of Cache the decorator uses.
type bookmarkCache interface {
	GetBookmark(ctx context.Context, id int64) (*model.Bookmark, error)
	SetBookmark(ctx context.Context, b *model.Bookmark) error
}

// CachedBookmarkStore reads single bookmarks through Redis and writes new
// ones through to it. Listings always go to the underlying store. Redis
// errors are logged and the underlying store answers instead. A cached read
// equals what the underlying store returned.
type CachedBookmarkStore struct {
	next    BookmarkStore
	cache   bookmarkCache
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewCachedBookmarkStore wraps next with a Redis cache.
func NewCachedBookmarkStore(next BookmarkStore, c *Cache, logger *slog.Logger, recorder metrics.Recorder) *CachedBookmarkStore {
	return newCachedBookmarkStore(next, c, logger, recorder)
}

func newCachedBookmarkStore(next BookmarkStore, c bookmarkCache, logger *slog.Logger, recorder metrics.Recorder) *CachedBookmarkStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedBookmarkStore{
		next:    next,
		cache:   c,
		logger:  logger,
		metrics: metrics.OrNoop(recorder),
	}
}

// SaveBookmark persists the draft, then caches the result.
func (s *CachedBookmarkStore) SaveBookmark(ctx context.Context, draft model.BookmarkDraft) (*model.Bookmark, error) {
	b, err := s.next.SaveBookmark(ctx, draft)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetBookmark(ctx, b); err != nil {
		s.logger.Warn("bookmark cache write failed", "bookmark_id", b.ID, "error", err)
	}
	return b, nil
}

// FindBookmarkByID serves from cache when possible.
func (s *CachedBookmarkStore) FindBookmarkByID(ctx context.Context, id int64) (*model.Bookmark, error) {
	b, err := s.cache.GetBookmark(ctx, id)
	if err == nil {
		s.metrics.IncBookmarkCacheHit()
		return b, nil
	}
	s.metrics.IncBookmarkCacheMiss()
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("bookmark cache read failed", "bookmark_id", id, "error", err)
	}

	b, err = s.next.FindBookmarkByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetBookmark(ctx, b); err != nil {
		s.logger.Warn("bookmark cache fill failed", "bookmark_id", id, "error", err)
	}
	return b, nil
}

// FindBookmarksByOwnerUsername delegates to the underlying store.
func (s *CachedBookmarkStore) FindBookmarksByOwnerUsername(ctx context.Context, username string) ([]*model.Bookmark, error) {
	return s.next.FindBookmarksByOwnerUsername(ctx, username)
}
