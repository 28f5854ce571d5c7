package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/bookmarks/bookmarks/internal/auth"
	"github.com/bookmarks/bookmarks/internal/middleware"
	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/bookmarks/bookmarks/internal/repository"
)

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error)
	ListAPIKeysByAccountID(ctx context.Context, accountID int64) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// KeyInvalidator evicts cached principals of a revoked key.
type KeyInvalidator interface {
	InvalidateAPIKey(ctx context.Context, keyID string) error
}

// APIKeyHandler handles API key management endpoints.
type APIKeyHandler struct {
	logger      *slog.Logger
	store       APIKeyStore
	invalidator KeyInvalidator
	keyEnv      string
}

// NewAPIKeyHandler creates a new APIKeyHandler. invalidator may be nil.
// keyEnv is auth.EnvLive or auth.EnvTest.
func NewAPIKeyHandler(logger *slog.Logger, store APIKeyStore, invalidator KeyInvalidator, keyEnv string) *APIKeyHandler {
	return &APIKeyHandler{
		logger:      logger,
		store:       store,
		invalidator: invalidator,
		keyEnv:      keyEnv,
	}
}

// CreateAPIKey handles POST /api-keys. The key belongs to the caller's account.
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustAuthFromContext(ctx)

	var req model.APIKeyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if err := middleware.ValidateAPIKeyName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	for _, scope := range req.Scopes {
		if !model.IsValidScope(scope) {
			writeError(w, http.StatusBadRequest, "INVALID_SCOPE",
				"Invalid scope: "+scope+". Valid scopes: "+strings.Join(model.ValidScopes, ", "))
			return
		}
	}
	if len(req.Scopes) == 0 {
		req.Scopes = []string{model.ScopeRead}
	}

	generated, err := auth.GenerateAPIKey(h.keyEnv)
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate API key")
		return
	}

	key := &model.APIKey{
		ID:            ulid.Make().String(),
		AccountID:     principal.AccountID,
		Username:      principal.Username,
		KeyHash:       generated.Hash,
		KeyPrefix:     generated.Prefix,
		Scopes:        req.Scopes,
		RateLimitTier: model.TierFree,
		Name:          req.Name,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.store.CreateAPIKey(ctx, key); err != nil {
		h.logger.Error("failed to create API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create API key")
		return
	}

	h.logger.Info("API key created",
		slog.String("key_id", key.ID),
		slog.String("key_prefix", key.KeyPrefix),
		slog.String("username", principal.Username),
	)

	writeJSON(w, http.StatusCreated, createResponse(key, generated.Plaintext))
}

// ListAPIKeys handles GET /api-keys.
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustAuthFromContext(r.Context())

	keys, err := h.store.ListAPIKeysByAccountID(r.Context(), principal.AccountID)
	if err != nil {
		h.logger.Error("failed to list API keys", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list API keys")
		return
	}

	responses := make([]model.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		responses = append(responses, key.ToResponse())
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": responses})
}

// RevokeAPIKey handles DELETE /api-keys/{keyId}.
func (h *APIKeyHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustAuthFromContext(ctx)

	key, ok := h.ownedActiveKey(w, r, principal)
	if !ok {
		return
	}

	if err := h.store.RevokeAPIKey(ctx, key.ID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			writeKeyNotFound(w)
			return
		}
		h.logger.Error("failed to revoke API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke API key")
		return
	}
	h.invalidate(ctx, key.ID)

	h.logger.Info("API key revoked",
		slog.String("key_id", key.ID),
		slog.String("username", principal.Username),
	)
	w.WriteHeader(http.StatusNoContent)
}

// RotateAPIKey handles POST /api-keys/{keyId}/rotate. The replacement keeps
// the name, scopes and tier; the old key is revoked.
func (h *APIKeyHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.MustAuthFromContext(ctx)

	oldKey, ok := h.ownedActiveKey(w, r, principal)
	if !ok {
		return
	}

	generated, err := auth.GenerateAPIKey(h.keyEnv)
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate API key")
		return
	}

	now := time.Now().UTC()
	newKey := &model.APIKey{
		ID:            ulid.Make().String(),
		AccountID:     oldKey.AccountID,
		Username:      oldKey.Username,
		KeyHash:       generated.Hash,
		KeyPrefix:     generated.Prefix,
		Scopes:        oldKey.Scopes,
		RateLimitTier: oldKey.RateLimitTier,
		Name:          oldKey.Name,
		CreatedAt:     now,
	}

	// Create first so a failed revoke never leaves the account without a key.
	if err := h.store.CreateAPIKey(ctx, newKey); err != nil {
		h.logger.Error("failed to create rotated API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rotate API key")
		return
	}
	if err := h.store.RevokeAPIKey(ctx, oldKey.ID); err != nil {
		h.logger.Error("failed to revoke old API key during rotation",
			slog.String("key_id", oldKey.ID),
			slog.String("error", err.Error()),
		)
	}
	h.invalidate(ctx, oldKey.ID)

	h.logger.Info("API key rotated",
		slog.String("old_key_id", oldKey.ID),
		slog.String("new_key_id", newKey.ID),
		slog.String("username", principal.Username),
	)

	writeJSON(w, http.StatusCreated, model.APIKeyRotateResponse{
		OldKeyID:        oldKey.ID,
		OldKeyRevokedAt: now,
		NewKey:          createResponse(newKey, generated.Plaintext),
	})
}

// ownedActiveKey loads {keyId}. Keys of other accounts, and revoked keys,
// are reported as not found to prevent enumeration.
func (h *APIKeyHandler) ownedActiveKey(w http.ResponseWriter, r *http.Request, principal *model.AuthContext) (*model.APIKey, bool) {
	keyID := chi.URLParam(r, "keyId")
	if keyID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Key ID is required")
		return nil, false
	}

	key, err := h.store.GetAPIKeyByID(r.Context(), keyID)
	if err != nil {
		if !errors.Is(err, repository.ErrAPIKeyNotFound) {
			h.logger.Error("failed to load API key", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load API key")
			return nil, false
		}
		writeKeyNotFound(w)
		return nil, false
	}
	if key.AccountID != principal.AccountID || key.IsRevoked() {
		writeKeyNotFound(w)
		return nil, false
	}
	return key, true
}

func (h *APIKeyHandler) invalidate(ctx context.Context, keyID string) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.InvalidateAPIKey(ctx, keyID); err != nil {
		// The cached principal expires with its TTL.
		h.logger.Warn("failed to evict cached API key",
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
	}
}

func createResponse(key *model.APIKey, plaintext string) model.APIKeyCreateResponse {
	return model.APIKeyCreateResponse{
		ID:            key.ID,
		Key:           plaintext,
		Name:          key.Name,
		KeyPrefix:     key.KeyPrefix,
		Scopes:        key.Scopes,
		RateLimitTier: key.RateLimitTier,
		CreatedAt:     key.CreatedAt,
	}
}

func writeKeyNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found or already revoked")
}
