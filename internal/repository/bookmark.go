package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for bookmark repository operations.
var (
	ErrBookmarkNotFound = errors.New("bookmark not found")
	ErrOwnerRequired    = errors.New("bookmark owner is required")
)

// bookmarkColumns leaves out the owner's password hash.
const bookmarkColumns = `
	b.id, b.uri, b.description, b.created_at,
	a.id, a.username, a.created_at
`

// SaveBookmark inserts a bookmark and returns it with its assigned id. The
// returned owner is the draft's owner as Account.AsOwner shapes it.
func (r *Repository) SaveBookmark(ctx context.Context, draft model.BookmarkDraft) (*model.Bookmark, error) {
	if draft.Owner == nil {
		return nil, ErrOwnerRequired
	}

	query := `
		INSERT INTO bookmarks (account_id, uri, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	b := &model.Bookmark{
		Owner:       draft.Owner.AsOwner(),
		URI:         draft.URI,
		Description: draft.Description,
	}
	err := r.pool.QueryRow(ctx, query, draft.Owner.ID, draft.URI, draft.Description).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save bookmark: %w", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()

	return b, nil
}

// FindBookmarkByID retrieves a bookmark together with its owner.
func (r *Repository) FindBookmarkByID(ctx context.Context, id int64) (*model.Bookmark, error) {
	query := `
		SELECT ` + bookmarkColumns + `
		FROM bookmarks b
		JOIN accounts a ON a.id = b.account_id
		WHERE b.id = $1
	`

	b, err := scanBookmark(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrBookmarkNotFound, "get bookmark by ID")
	}

	return b, nil
}

// FindBookmarksByOwnerUsername lists all bookmarks owned by username in
// creation order. An unknown username yields an empty slice.
func (r *Repository) FindBookmarksByOwnerUsername(ctx context.Context, username string) ([]*model.Bookmark, error) {
	query := `
		SELECT ` + bookmarkColumns + `
		FROM bookmarks b
		JOIN accounts a ON a.id = b.account_id
		WHERE a.username = $1
		ORDER BY b.id
	`

	rows, err := r.pool.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}

	bookmarks := []*model.Bookmark{}
	bookmarks, err = pgx.AppendRows(bookmarks, rows, func(row pgx.CollectableRow) (*model.Bookmark, error) {
		return scanBookmark(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmarks: %w", err)
	}
	return bookmarks, nil
}

// scanBookmark reads one bookmark joined with its owner.
func scanBookmark(row pgx.Row) (*model.Bookmark, error) {
	var b model.Bookmark
	var owner model.Account

	err := row.Scan(
		&b.ID,
		&b.URI,
		&b.Description,
		&b.CreatedAt,
		&owner.ID,
		&owner.Username,
		&owner.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt = b.CreatedAt.UTC()
	owner.CreatedAt = owner.CreatedAt.UTC()

	b.Owner = &owner
	return &b, nil
}
