// Package repository stores accounts, bookmarks and API keys in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions bound the pgx connection pool.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

// DefaultPoolOptions serve a single API instance.
var DefaultPoolOptions = PoolOptions{MaxConns: 10, MinConns: 2}

// Repository is the PostgreSQL implementation of the account, bookmark and
// API key stores.
type Repository struct {
	pool *pgxpool.Pool
}

// New connects with DefaultPoolOptions.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	return Open(ctx, databaseURL, DefaultPoolOptions)
}

// Open builds a pool from databaseURL and checks that the database answers.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	repo := NewFromPool(pool)
	if err := repo.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// NewFromPool wraps a pool the caller already owns.
func NewFromPool(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping backs the readiness check.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func (r *Repository) Close() {
	r.pool.Close()
}

// Pool is for migrations and test fixtures.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// notFound maps pgx.ErrNoRows to sentinel and wraps anything else with op.
func notFound(err error, sentinel error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// isUniqueViolation reports a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
