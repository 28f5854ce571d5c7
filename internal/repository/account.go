package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookmarks/bookmarks/internal/model"
)

// Common errors for account repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrUsernameExists  = errors.New("username already exists")
)

// CreateAccount inserts a new account. ID and CreatedAt are assigned by the
// database and written back to account.
func (r *Repository) CreateAccount(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (username, password)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, account.Username, account.Password).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// FindAccountByUsername retrieves an account by its username.
func (r *Repository) FindAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	query := `
		SELECT id, username, password, created_at
		FROM accounts
		WHERE username = $1
	`

	var account model.Account
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&account.ID,
		&account.Username,
		&account.Password,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, ErrAccountNotFound, "get account by username")
	}

	return &account, nil
}
