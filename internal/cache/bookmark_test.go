package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookmarks/bookmarks/internal/metrics"
	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/bookmarks/bookmarks/internal/repository/memory"
)

// hashCache keeps bookmarks the way Redis does: as flat string hashes that
// are scanned back with the redis struct tags.
type hashCache struct {
	mu      sync.Mutex
	hashes  map[int64]map[string]string
	readErr error
}

func newHashCache() *hashCache {
	return &hashCache{hashes: map[int64]map[string]string{}}
}

func (c *hashCache) GetBookmark(_ context.Context, id int64) (*model.Bookmark, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readErr != nil {
		return nil, c.readErr
	}
	fields, ok := c.hashes[id]
	if !ok {
		return nil, ErrCacheMiss
	}
	var cached model.CachedBookmark
	if err := redis.NewMapStringStringResult(fields, nil).Scan(&cached); err != nil {
		return nil, err
	}
	if !cached.Complete() {
		return nil, ErrCacheMiss
	}
	return cached.ToBookmark(id), nil
}

func (c *hashCache) SetBookmark(_ context.Context, b *model.Bookmark) error {
	cached := model.NewCachedBookmark(b)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes[b.ID] = map[string]string{
		"uri":                 cached.URI,
		"description":         cached.Description,
		"created_at_ns":       cached.CreatedAt,
		"owner_id":            cached.OwnerID,
		"owner_username":      cached.OwnerUsername,
		"owner_created_at_ns": cached.OwnerCreatedAt,
	}
	return nil
}

func newTestCachedStore(t *testing.T) (*CachedBookmarkStore, *memory.Store, *hashCache, *metrics.InMemoryRecorder) {
	t.Helper()

	store := memory.New()
	hc := newHashCache()
	rec := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newCachedBookmarkStore(store, hc, logger, rec), store, hc, rec
}

func createOwner(t *testing.T, store *memory.Store, username string) *model.Account {
	t.Helper()

	account := &model.Account{Username: username, Password: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA"}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	found, err := store.FindAccountByUsername(context.Background(), username)
	require.NoError(t, err)
	return found
}

func TestCachedBookmarkStore_ReadAfterSaveEqualsSaved(t *testing.T) {
	ctx := context.Background()
	s, store, hc, rec := newTestCachedStore(t)
	owner := createOwner(t, store, "jlong")

	saved, err := s.SaveBookmark(ctx, model.BookmarkDraft{Owner: owner, URI: "http://bookmark.com/jlong", Description: "A description"})
	require.NoError(t, err)
	require.Contains(t, hc.hashes, saved.ID, "save writes through to the cache")

	got, err := s.FindBookmarkByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
	assert.Empty(t, got.Owner.Password)
	assert.Equal(t, uint64(1), rec.Snapshot().BookmarkCacheHits)
}

func TestCachedBookmarkStore_MissFillsCache(t *testing.T) {
	ctx := context.Background()
	s, store, hc, rec := newTestCachedStore(t)
	owner := createOwner(t, store, "dsyer")

	direct, err := store.SaveBookmark(ctx, model.BookmarkDraft{Owner: owner, URI: "http://bookmark.com/dsyer"})
	require.NoError(t, err)

	first, err := s.FindBookmarkByID(ctx, direct.ID)
	require.NoError(t, err)
	assert.Equal(t, direct, first)
	assert.Contains(t, hc.hashes, direct.ID)

	second, err := s.FindBookmarkByID(ctx, direct.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	snap := rec.Snapshot()
	assert.Equal(t, uint64(1), snap.BookmarkCacheMisses)
	assert.Equal(t, uint64(1), snap.BookmarkCacheHits)
}

func TestCachedBookmarkStore_OldLayoutIsAMiss(t *testing.T) {
	ctx := context.Background()
	s, store, hc, _ := newTestCachedStore(t)
	owner := createOwner(t, store, "pwebb")

	saved, err := store.SaveBookmark(ctx, model.BookmarkDraft{Owner: owner, URI: "http://bookmark.com/pwebb"})
	require.NoError(t, err)
	hc.hashes[saved.ID] = map[string]string{
		"uri":            saved.URI,
		"owner_id":       "1",
		"owner_username": "pwebb",
		"created_at":     "1700000000",
	}

	got, err := s.FindBookmarkByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestCachedBookmarkStore_RedisDownFallsBack(t *testing.T) {
	ctx := context.Background()
	s, store, hc, _ := newTestCachedStore(t)
	owner := createOwner(t, store, "jhoeller")

	saved, err := s.SaveBookmark(ctx, model.BookmarkDraft{Owner: owner, URI: "http://bookmark.com/jhoeller"})
	require.NoError(t, err)

	hc.readErr = errors.New("connection refused")
	got, err := s.FindBookmarkByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}
