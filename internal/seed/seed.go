// Package seed creates demo accounts, each with one bookmark.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookmarks/bookmarks/internal/auth"
	"github.com/bookmarks/bookmarks/internal/middleware"
	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/bookmarks/bookmarks/internal/repository"
)

// DemoDescription is the description of every seeded bookmark.
const DemoDescription = "A description"

// AccountStore creates and resolves accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	FindAccountByUsername(ctx context.Context, username string) (*model.Account, error)
}

// BookmarkStore saves bookmarks.
type BookmarkStore interface {
	SaveBookmark(ctx context.Context, draft model.BookmarkDraft) (*model.Bookmark, error)
}

// HashFunc turns a plaintext password into the stored hash.
type HashFunc func(password string) (string, error)

type options struct {
	hash HashFunc
}

// Option configures Run.
type Option func(*options)

// WithHashFunc replaces auth.HashPassword.
func WithHashFunc(fn HashFunc) Option {
	return func(o *options) { o.hash = fn }
}

// DemoURI returns the seeded bookmark URI for username.
func DemoURI(username string) string {
	return "http://bookmark.com/" + username
}

// Run creates an account for every username with the given password and a
// bookmark pointing at DemoURI. Accounts that already exist are left
// untouched, so Run is safe to repeat. It returns the accounts it created.
func Run(ctx context.Context, accounts AccountStore, bookmarks BookmarkStore, usernames []string, password string, opts ...Option) ([]*model.Account, error) {
	o := options{hash: auth.HashPassword}
	for _, opt := range opts {
		opt(&o)
	}

	var created []*model.Account
	for _, username := range usernames {
		account, err := EnsureAccount(ctx, accounts, username, password, o.hash)
		if err != nil {
			return created, err
		}
		if account == nil {
			continue
		}

		if _, err := bookmarks.SaveBookmark(ctx, model.BookmarkDraft{
			Owner:       account,
			URI:         DemoURI(username),
			Description: DemoDescription,
		}); err != nil {
			return created, fmt.Errorf("seed bookmark for %s: %w", username, err)
		}
		created = append(created, account)
	}
	return created, nil
}

// EnsureAccount creates username unless it exists. It returns nil when the
// account was already there. Usernames that /{userId}/bookmarks could not
// route to are rejected, so every account's self links resolve.
func EnsureAccount(ctx context.Context, accounts AccountStore, username, password string, hash HashFunc) (*model.Account, error) {
	if err := middleware.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("account %q: %w", username, err)
	}

	_, err := accounts.FindAccountByUsername(ctx, username)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("lookup account %s: %w", username, err)
	}

	if hash == nil {
		hash = auth.HashPassword
	}
	hashed, err := hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password for %s: %w", username, err)
	}

	account := &model.Account{Username: username, Password: hashed}
	if err := accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			// Created concurrently by another instance.
			return nil, nil
		}
		return nil, fmt.Errorf("create account %s: %w", username, err)
	}
	return account, nil
}
