//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/bookmarks/bookmarks/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestIntegrationMigration_Tables(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	schema := map[string][]string{
		"accounts":  {"id", "username", "password", "created_at"},
		"bookmarks": {"id", "account_id", "uri", "description", "created_at"},
		"api_keys": {
			"id", "account_id", "key_hash", "key_prefix", "scopes",
			"rate_limit_tier", "name", "revoked_at", "last_used_at", "created_at",
		},
	}

	for table, columns := range schema {
		t.Run(table, func(t *testing.T) {
			for _, col := range columns {
				exists, err := columnExists(ctx, pool, table, col)
				if err != nil {
					t.Fatalf("columnExists failed: %v", err)
				}
				if !exists {
					t.Errorf("Column %q should exist in %s table", col, table)
				}
			}
		})
	}
}

func TestIntegrationMigration_BookmarkRequiresAccount(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	_, err := pool.Exec(ctx, `INSERT INTO bookmarks (account_id, uri) VALUES (424242, 'http://example.com')`)
	if err == nil {
		t.Error("Expected foreign key violation for unknown account_id")
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	names, err := testutil.MigrationNames()
	if err != nil {
		t.Fatalf("MigrationNames failed: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("found %d migrations, want 3: %v", len(names), names)
	}
	for _, name := range names {
		if err := testutil.ApplyMigration(ctx, pool, name, "up"); err != nil {
			t.Fatalf("second apply of %s should not fail: %v", name, err)
		}
	}
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	ctx, repo := newRepositoryTestEnv(t)
	return ctx, repo.Pool()
}
