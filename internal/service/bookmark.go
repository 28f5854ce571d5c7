// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookmarks/bookmarks/internal/metrics"
	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/bookmarks/bookmarks/internal/repository"
)

// Service errors.
var (
	ErrUnknownUser      = errors.New("unknown user")
	ErrBookmarkNotFound = errors.New("bookmark not found")
	ErrStoreFailure     = errors.New("store failure")
)

// AccountStore resolves accounts by username.
type AccountStore interface {
	FindAccountByUsername(ctx context.Context, username string) (*model.Account, error)
}

// BookmarkStore persists bookmarks. Returned bookmarks carry a populated owner.
type BookmarkStore interface {
	SaveBookmark(ctx context.Context, draft model.BookmarkDraft) (*model.Bookmark, error)
	FindBookmarkByID(ctx context.Context, id int64) (*model.Bookmark, error)
	FindBookmarksByOwnerUsername(ctx context.Context, username string) ([]*model.Bookmark, error)
}

// EventPublisher is notified after a bookmark is created. Implementations
// must not block the caller.
type EventPublisher interface {
	PublishCreatedAsync(b *model.Bookmark)
}

// BookmarkService owns the bookmark lifecycle and the ownership rules.
// It keeps no per-request state.
type BookmarkService struct {
	accounts  AccountStore
	bookmarks BookmarkStore
	events    EventPublisher
	metrics   metrics.Recorder
}

// NewBookmarkService creates a new BookmarkService. events and recorder may be nil.
func NewBookmarkService(accounts AccountStore, bookmarks BookmarkStore, events EventPublisher, recorder metrics.Recorder) *BookmarkService {
	return &BookmarkService{
		accounts:  accounts,
		bookmarks: bookmarks,
		events:    events,
		metrics:   metrics.OrNoop(recorder),
	}
}

// CreateBookmark stores a bookmark owned by ownerUsername. Nothing is written
// unless the account lookup succeeds first.
func (s *BookmarkService) CreateBookmark(ctx context.Context, ownerUsername, uri, description string) (*model.Bookmark, error) {
	owner, err := s.accounts.FindAccountByUsername(ctx, ownerUsername)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownUser, ownerUsername)
		}
		return nil, fmt.Errorf("%w: failed to resolve account: %w", ErrStoreFailure, err)
	}

	bookmark, err := s.bookmarks.SaveBookmark(ctx, model.BookmarkDraft{
		Owner:       owner,
		URI:         uri,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to save bookmark: %w", ErrStoreFailure, err)
	}

	s.metrics.IncBookmarkCreated()
	if s.events != nil {
		s.events.PublishCreatedAsync(bookmark)
	}

	return bookmark, nil
}

// GetBookmark returns a bookmark by id regardless of who owns it.
func (s *BookmarkService) GetBookmark(ctx context.Context, id int64) (*model.Bookmark, error) {
	bookmark, err := s.bookmarks.FindBookmarkByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookmarkNotFound) {
			return nil, ErrBookmarkNotFound
		}
		return nil, fmt.Errorf("%w: failed to get bookmark: %w", ErrStoreFailure, err)
	}
	return bookmark, nil
}

// GetBookmarkForOwner returns a bookmark only if ownerUsername owns it. A
// bookmark owned by someone else is reported as not found.
func (s *BookmarkService) GetBookmarkForOwner(ctx context.Context, ownerUsername string, id int64) (*model.Bookmark, error) {
	bookmark, err := s.GetBookmark(ctx, id)
	if err != nil {
		return nil, err
	}
	if bookmark.OwnerUsername() != ownerUsername {
		return nil, ErrBookmarkNotFound
	}
	return bookmark, nil
}

// ListBookmarks returns all bookmarks owned by ownerUsername in store order.
// An owner without bookmarks, or an unknown owner, yields an empty slice.
func (s *BookmarkService) ListBookmarks(ctx context.Context, ownerUsername string) ([]*model.Bookmark, error) {
	bookmarks, err := s.bookmarks.FindBookmarksByOwnerUsername(ctx, ownerUsername)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list bookmarks: %w", ErrStoreFailure, err)
	}
	if bookmarks == nil {
		bookmarks = []*model.Bookmark{}
	}
	return bookmarks, nil
}
