//go:build integration

package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/bookmarks/bookmarks/internal/testutil"
)

func TestIntegrationAPIKeyRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newRepositoryTestEnv(t)

	account := mustCreateAccount(t, ctx, repo, "keys")
	key := testutil.NewTestAPIKey(t, account.ID)

	if err := repo.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	retrieved, err := repo.GetAPIKeyByID(ctx, key.ID)
	if err != nil {
		t.Fatalf("GetAPIKeyByID failed: %v", err)
	}
	if retrieved.AccountID != account.ID {
		t.Errorf("AccountID mismatch: got %d, want %d", retrieved.AccountID, account.ID)
	}
	if retrieved.Username != account.Username {
		t.Errorf("Username mismatch: got %q, want %q", retrieved.Username, account.Username)
	}
	if retrieved.KeyHash != key.KeyHash {
		t.Errorf("KeyHash mismatch: got %q, want %q", retrieved.KeyHash, key.KeyHash)
	}
	if len(retrieved.Scopes) != 2 {
		t.Errorf("Scopes mismatch: got %v", retrieved.Scopes)
	}
}

func TestIntegrationAPIKeyRepository_GetByID_NotFound(t *testing.T) {
	ctx, repo := newRepositoryTestEnv(t)

	_, err := repo.GetAPIKeyByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	if !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("Expected ErrAPIKeyNotFound, got: %v", err)
	}
}

func TestIntegrationAPIKeyRepository_GetByPrefix_ExcludesRevoked(t *testing.T) {
	ctx, repo := newRepositoryTestEnv(t)

	account := mustCreateAccount(t, ctx, repo, "prefix")
	key1 := testutil.NewTestAPIKey(t, account.ID)
	key2 := testutil.NewTestAPIKey(t, account.ID)

	for _, k := range []*model.APIKey{key1, key2} {
		if err := repo.CreateAPIKey(ctx, k); err != nil {
			t.Fatalf("CreateAPIKey failed: %v", err)
		}
	}

	if err := repo.RevokeAPIKey(ctx, key1.ID); err != nil {
		t.Fatalf("RevokeAPIKey failed: %v", err)
	}

	keys, err := repo.GetAPIKeysByPrefix(ctx, key1.KeyPrefix)
	if err != nil {
		t.Fatalf("GetAPIKeysByPrefix failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("Expected 1 active key, got %d", len(keys))
	}
	if keys[0].ID != key2.ID {
		t.Errorf("Expected key2, got key %s", keys[0].ID)
	}
}

func TestIntegrationAPIKeyRepository_ListByAccountID(t *testing.T) {
	ctx, repo := newRepositoryTestEnv(t)

	account := mustCreateAccount(t, ctx, repo, "list")
	other := mustCreateAccount(t, ctx, repo, "other")

	for i := 0; i < 3; i++ {
		if err := repo.CreateAPIKey(ctx, testutil.NewTestAPIKey(t, account.ID)); err != nil {
			t.Fatalf("CreateAPIKey (%d) failed: %v", i, err)
		}
		time.Sleep(time.Millisecond)
	}
	if err := repo.CreateAPIKey(ctx, testutil.NewTestAPIKey(t, other.ID)); err != nil {
		t.Fatalf("CreateAPIKey (other) failed: %v", err)
	}

	keys, err := repo.ListAPIKeysByAccountID(ctx, account.ID)
	if err != nil {
		t.Fatalf("ListAPIKeysByAccountID failed: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("Expected 3 keys, got %d", len(keys))
	}
	for _, k := range keys {
		if k.AccountID != account.ID {
			t.Errorf("AccountID mismatch: got %d, want %d", k.AccountID, account.ID)
		}
	}
}

func TestIntegrationAPIKeyRepository_DoubleRevoke(t *testing.T) {
	ctx, repo := newRepositoryTestEnv(t)

	account := mustCreateAccount(t, ctx, repo, "revoke")
	key := testutil.NewTestAPIKey(t, account.ID)
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	if err := repo.RevokeAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("RevokeAPIKey (first) failed: %v", err)
	}
	retrieved, err := repo.GetAPIKeyByID(ctx, key.ID)
	if err != nil {
		t.Fatalf("GetAPIKeyByID failed: %v", err)
	}
	if !retrieved.IsRevoked() {
		t.Error("IsRevoked() should return true")
	}

	err = repo.RevokeAPIKey(ctx, key.ID)
	if !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("Expected ErrAPIKeyNotFound on double revoke, got: %v", err)
	}
}

func TestIntegrationAPIKeyRepository_UpdateLastUsed(t *testing.T) {
	ctx, repo := newRepositoryTestEnv(t)

	account := mustCreateAccount(t, ctx, repo, "lastused")
	key := testutil.NewTestAPIKey(t, account.ID)
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	if err := repo.UpdateAPIKeyLastUsed(ctx, key.ID); err != nil {
		t.Fatalf("UpdateAPIKeyLastUsed failed: %v", err)
	}

	retrieved, err := repo.GetAPIKeyByID(ctx, key.ID)
	if err != nil {
		t.Fatalf("GetAPIKeyByID failed: %v", err)
	}
	if retrieved.LastUsedAt == nil {
		t.Error("LastUsedAt should be set after update")
	}
}
