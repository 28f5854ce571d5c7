package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/bookmarks/bookmarks/internal/model"
)

var ErrAPIKeyNotFound = errors.New("API key not found")

// selectAPIKeys joins the owning account so keys carry their username.
const selectAPIKeys = `
	SELECT k.id, k.account_id, a.username, k.key_hash, k.key_prefix, k.scopes,
	       k.rate_limit_tier, k.name, k.revoked_at, k.last_used_at, k.created_at
	FROM api_keys k
	JOIN accounts a ON a.id = k.account_id
`

// CreateAPIKey stores key. Scopes are written as a text[] column.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_keys (id, account_id, key_hash, key_prefix, scopes, rate_limit_tier, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.AccountID, key.KeyHash, key.KeyPrefix,
		pq.Array(key.Scopes), key.RateLimitTier, key.Name, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}
	return nil
}

// GetAPIKeyByID returns the key whether or not it is revoked.
func (r *Repository) GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error) {
	key, err := scanAPIKey(r.pool.QueryRow(ctx, selectAPIKeys+`WHERE k.id = $1`, id))
	if err != nil {
		return nil, notFound(err, ErrAPIKeyNotFound, "get API key")
	}
	return key, nil
}

// GetAPIKeysByPrefix returns the active keys sharing prefix. The caller
// verifies the secret against each hash.
func (r *Repository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	return r.collectAPIKeys(ctx, selectAPIKeys+`WHERE k.key_prefix = $1 AND k.revoked_at IS NULL`, prefix)
}

// ListAPIKeysByAccountID returns every key of an account, newest first.
func (r *Repository) ListAPIKeysByAccountID(ctx context.Context, accountID int64) ([]*model.APIKey, error) {
	return r.collectAPIKeys(ctx, selectAPIKeys+`WHERE k.account_id = $1 ORDER BY k.created_at DESC`, accountID)
}

// RevokeAPIKey stamps revoked_at. Revoking a missing or already revoked key
// returns ErrAPIKeyNotFound.
func (r *Repository) RevokeAPIKey(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

func (r *Repository) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update API key last used: %w", err)
	}
	return nil
}

func (r *Repository) collectAPIKeys(ctx context.Context, query string, arg any) ([]*model.APIKey, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query API keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.APIKey, error) {
		return scanAPIKey(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read API keys: %w", err)
	}
	return keys, nil
}

func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	key := &model.APIKey{}
	if err := row.Scan(
		&key.ID, &key.AccountID, &key.Username, &key.KeyHash, &key.KeyPrefix,
		pq.Array(&key.Scopes), &key.RateLimitTier, &key.Name,
		&key.RevokedAt, &key.LastUsedAt, &key.CreatedAt,
	); err != nil {
		return nil, err
	}
	return key, nil
}
