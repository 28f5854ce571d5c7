// Package testutil holds fixtures for the integration tests, which run
// against real PostgreSQL and Redis under the integration build tag.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bookmarks/bookmarks/internal/model"
)

// RequireEnv returns the value of key, skipping t when it is unset.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		t.Skipf("%s not set; skipping integration test", key)
	}
	return v
}

// dbLockKey serializes test packages that share one database.
const dbLockKey int64 = 730117

// AcquireDBLock holds a session advisory lock on a dedicated connection
// until the returned func is called.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", dbLockKey); err != nil {
		conn.Release()
		return nil, fmt.Errorf("lock database: %w", err)
	}

	return func() error {
		defer conn.Release()
		_, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", dbLockKey)
		if err != nil {
			return fmt.Errorf("unlock database: %w", err)
		}
		return nil
	}, nil
}

// MigrationNames lists migrations/*.up.sql without the suffix, oldest first.
func MigrationNames() ([]string, error) {
	dir, err := migrationsDir()
	if err != nil {
		return nil, err
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(filepath.Base(f), ".up.sql"))
	}
	slices.Sort(names)
	return names, nil
}

// ResetSchema runs every down migration newest first, then every up.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := MigrationNames()
	if err != nil {
		return err
	}
	for i := len(names) - 1; i >= 0; i-- {
		if err := ApplyMigration(ctx, pool, names[i], "down"); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := ApplyMigration(ctx, pool, name, "up"); err != nil {
			return err
		}
	}
	return nil
}

// ApplyMigration executes migrations/<name>.<direction>.sql.
func ApplyMigration(ctx context.Context, pool *pgxpool.Pool, name, direction string) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	sql, err := os.ReadFile(filepath.Join(dir, name+"."+direction+".sql"))
	if err != nil {
		return fmt.Errorf("read migration %s %s: %w", name, direction, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("migrate %s %s: %w", name, direction, err)
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("cannot locate testutil source")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations"), nil
}

func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

var nameSeq atomic.Int64

// UniqueName returns prefix with a suffix no other call in this process
// returns.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), nameSeq.Add(1))
}

// NewTestAccount returns an unsaved account. Its password is not a hash
// that any password verifies against.
func NewTestAccount(t testing.TB, prefix string) *model.Account {
	t.Helper()
	return &model.Account{
		Username: UniqueName(prefix),
		Password: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
	}
}

// NewTestAPIKey returns an unsaved read/write key on the free tier.
func NewTestAPIKey(t testing.TB, accountID int64) *model.APIKey {
	t.Helper()
	return &model.APIKey{
		ID:            ulid.Make().String(),
		AccountID:     accountID,
		KeyHash:       UniqueName("hash"),
		KeyPrefix:     "a1b2c3",
		Scopes:        []string{model.ScopeRead, model.ScopeWrite},
		RateLimitTier: model.TierFree,
		Name:          "integration",
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}
