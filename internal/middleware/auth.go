package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bookmarks/bookmarks/internal/auth"
	"github.com/bookmarks/bookmarks/internal/metrics"
	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/bookmarks/bookmarks/internal/repository"
)

// defaultMinAuthDuration is the minimum time to spend on auth to prevent timing attacks.
const defaultMinAuthDuration = 200 * time.Millisecond

// Auth attempt outcomes reported to metrics.
const (
	authOutcomeSuccess = "success"
	authOutcomeCached  = "cached"
	authOutcomeFailure = "failure"
	authOutcomeError   = "error"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errMissingCredentials = fmt.Errorf("%w: none supplied", errInvalidCredentials)
)

// KeyStore looks up API keys for authentication.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AccountLookup resolves accounts for HTTP Basic authentication.
type AccountLookup interface {
	FindAccountByUsername(ctx context.Context, username string) (*model.Account, error)
}

// AuthCache caches resolved principals keyed by a hash of the credential.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Keys     KeyStore
	Accounts AccountLookup
	// Cache is optional.
	Cache   AuthCache
	Metrics metrics.Recorder
	// MinDuration defaults to 200ms.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests.
// It accepts an API key (Authorization: Bearer or X-API-Key) or HTTP Basic
// account credentials, and injects the resolved principal into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	minDuration := cfg.MinDuration
	if minDuration <= 0 {
		minDuration = defaultMinAuthDuration
	}
	recorder := metrics.OrNoop(cfg.Metrics)
	a := &authenticator{cfg: cfg}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			// Ensure consistent timing regardless of outcome
			defer func() {
				if elapsed := time.Since(startTime); elapsed < minDuration {
					time.Sleep(minDuration - elapsed)
				}
			}()

			method, authCtx, cached, err := a.authenticate(r)
			if err != nil {
				outcome := authOutcomeFailure
				if !errors.Is(err, errInvalidCredentials) {
					outcome = authOutcomeError
					cfg.Logger.Error("credential lookup failed",
						slog.String("method", method),
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				recorder.IncAuthAttempt(method, outcome)

				cfg.Logger.Warn("authentication failed",
					slog.String("method", method),
					slog.String("reason", failureReason(err)),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			outcome := authOutcomeSuccess
			if cached {
				outcome = authOutcomeCached
			}
			recorder.IncAuthAttempt(method, outcome)

			cfg.Logger.Info("authentication successful",
				slog.String("method", method),
				slog.String("username", authCtx.Username),
				slog.String("key_prefix", authCtx.KeyPrefix),
				slog.String("ip", r.RemoteAddr),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Bool("cache_hit", cached),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			setLogPrincipal(r.Context(), authCtx.Username)
			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type authenticator struct {
	cfg AuthConfig
}

func (a *authenticator) authenticate(r *http.Request) (string, *model.AuthContext, bool, error) {
	if key := extractAPIKey(r); key != "" {
		authCtx, cached, err := a.authenticateAPIKey(r.Context(), key)
		return model.AuthMethodAPIKey, authCtx, cached, err
	}
	if username, password, ok := r.BasicAuth(); ok {
		authCtx, cached, err := a.authenticateBasic(r.Context(), username, password)
		return model.AuthMethodBasic, authCtx, cached, err
	}
	return "none", nil, false, errMissingCredentials
}

func (a *authenticator) authenticateAPIKey(ctx context.Context, key string) (*model.AuthContext, bool, error) {
	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, false, errInvalidCredentials
	}

	cacheKey := auth.QuickHash(key)
	if authCtx := a.cached(ctx, cacheKey); authCtx != nil {
		return authCtx, true, nil
	}

	keys, err := a.cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		return nil, false, err
	}

	// Verify against each candidate key (handles prefix collisions)
	var matched *model.APIKey
	for _, k := range keys {
		if ok, err := auth.VerifyPassword(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, false, errInvalidCredentials
	}

	authCtx := &model.AuthContext{
		KeyID:         matched.ID,
		KeyPrefix:     matched.KeyPrefix,
		AccountID:     matched.AccountID,
		Username:      matched.Username,
		Scopes:        matched.Scopes,
		RateLimitTier: matched.RateLimitTier,
		Method:        model.AuthMethodAPIKey,
	}
	a.store(ctx, cacheKey, authCtx)

	// The request context is cancelled once the response is written.
	go func(ctx context.Context, id string) {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := a.cfg.Keys.UpdateAPIKeyLastUsed(ctx, id); err != nil {
			a.cfg.Logger.Debug("update last_used_at failed",
				slog.String("key_id", id),
				slog.String("error", err.Error()),
			)
		}
	}(context.WithoutCancel(ctx), matched.ID)

	return authCtx, false, nil
}

func (a *authenticator) authenticateBasic(ctx context.Context, username, password string) (*model.AuthContext, bool, error) {
	if username == "" || password == "" || a.cfg.Accounts == nil {
		return nil, false, errInvalidCredentials
	}

	cacheKey := auth.QuickHash("basic:" + username + ":" + password)
	if authCtx := a.cached(ctx, cacheKey); authCtx != nil {
		return authCtx, true, nil
	}

	account, err := a.cfg.Accounts.FindAccountByUsername(ctx, username)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, false, errInvalidCredentials
	}
	if err != nil {
		return nil, false, err
	}

	ok, err := auth.VerifyPassword(password, account.Password)
	if err != nil || !ok {
		return nil, false, errInvalidCredentials
	}

	authCtx := &model.AuthContext{
		AccountID:     account.ID,
		Username:      account.Username,
		Scopes:        []string{model.ScopeRead, model.ScopeWrite},
		RateLimitTier: model.TierFree,
		Method:        model.AuthMethodBasic,
	}
	a.store(ctx, cacheKey, authCtx)
	return authCtx, false, nil
}

func (a *authenticator) cached(ctx context.Context, cacheKey string) *model.AuthContext {
	if a.cfg.Cache == nil {
		return nil
	}
	authCtx, _ := a.cfg.Cache.GetAuthContext(ctx, cacheKey)
	return authCtx
}

func (a *authenticator) store(ctx context.Context, cacheKey string, authCtx *model.AuthContext) {
	if a.cfg.Cache == nil {
		return
	}
	if err := a.cfg.Cache.SetAuthContext(ctx, cacheKey, authCtx); err != nil {
		a.cfg.Logger.Warn("failed to cache auth context", slog.String("error", err.Error()))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, errMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, errInvalidCredentials):
		return "invalid_credentials"
	default:
		return "lookup_error"
	}
}

// extractAPIKey extracts the API key from the request.
// Supports both "Authorization: Bearer <key>" and "X-API-Key: <key>" headers.
func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Basic realm="bookmarks"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing credentials"}}`))
}
