package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bookmarks/bookmarks/internal/auth"
	"github.com/bookmarks/bookmarks/internal/metrics"
	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/bookmarks/bookmarks/internal/repository/memory"
)

const (
	testAPIKey   = "pk_test_a1b2c3_0123456789abcdef0123456789abcdef"
	testPassword = "password"
)

var fastParams = auth.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type mapAuthCache struct {
	mu      sync.Mutex
	entries map[string]*model.AuthContext
}

func newMapAuthCache() *mapAuthCache {
	return &mapAuthCache{entries: make(map[string]*model.AuthContext)}
}

func (c *mapAuthCache) GetAuthContext(_ context.Context, key string) (*model.AuthContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *mapAuthCache) SetAuthContext(_ context.Context, key string, a *model.AuthContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = a
	return nil
}

type failingKeys struct{}

func (failingKeys) GetAPIKeysByPrefix(context.Context, string) ([]*model.APIKey, error) {
	return nil, errors.New("connection refused")
}

func (failingKeys) UpdateAPIKeyLastUsed(context.Context, string) error { return nil }

type authFixture struct {
	store    *memory.Store
	cache    *mapAuthCache
	recorder *metrics.InMemoryRecorder
	handler  http.Handler
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	passwordHash, err := auth.HashWithParams(testPassword, fastParams)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account := &model.Account{Username: "jlong", Password: passwordHash}
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}

	keyHash, err := auth.HashWithParams(testAPIKey, fastParams)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	if err := store.CreateAPIKey(ctx, &model.APIKey{
		ID:            "01HZZZZZZZZZZZZZZZZZZZZZZZ",
		AccountID:     account.ID,
		KeyHash:       keyHash,
		KeyPrefix:     "a1b2c3",
		Scopes:        []string{model.ScopeRead},
		RateLimitTier: model.TierPro,
		Name:          "test",
		CreatedAt:     time.Now(),
	}); err != nil {
		t.Fatalf("create key: %v", err)
	}

	f := &authFixture{store: store, cache: newMapAuthCache(), recorder: metrics.NewInMemory()}
	mw := Auth(AuthConfig{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Keys:        store,
		Accounts:    store,
		Cache:       f.cache,
		Metrics:     f.recorder,
		MinDuration: time.Millisecond,
	})
	f.handler = mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(auth.MustAuthFromContext(r.Context()))
	}))
	return f
}

func (f *authFixture) do(t *testing.T, setup func(*http.Request)) (*httptest.ResponseRecorder, *model.AuthContext) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/bookmarks", nil)
	setup(req)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		return rec, nil
	}
	var got model.AuthContext
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode principal: %v", err)
	}
	return rec, &got
}

func TestAuth_APIKey(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+testAPIKey) }},
		{"x-api-key", func(r *http.Request) { r.Header.Set("X-API-Key", testAPIKey) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			rec, got := f.do(t, tt.setup)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if got.Username != "jlong" || got.Method != model.AuthMethodAPIKey {
				t.Errorf("principal = %+v", got)
			}
			if got.KeyPrefix != "a1b2c3" || got.RateLimitTier != model.TierPro {
				t.Errorf("principal = %+v", got)
			}
			if !got.HasScope(model.ScopeRead) || got.HasScope(model.ScopeWrite) {
				t.Errorf("scopes = %v", got.Scopes)
			}
		})
	}
}

func TestAuth_APIKeyCachedOnSecondRequest(t *testing.T) {
	f := newAuthFixture(t)
	setup := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+testAPIKey) }

	f.do(t, setup)
	rec, got := f.do(t, setup)
	if rec.Code != http.StatusOK || got.Username != "jlong" {
		t.Fatalf("status = %d, principal = %+v", rec.Code, got)
	}

	snap := f.recorder.Snapshot()
	if snap.AuthAttempts["api_key/success"] != 1 || snap.AuthAttempts["api_key/cached"] != 1 {
		t.Errorf("auth attempts = %v", snap.AuthAttempts)
	}
}

func TestAuth_Basic(t *testing.T) {
	f := newAuthFixture(t)
	rec, got := f.do(t, func(r *http.Request) { r.SetBasicAuth("jlong", testPassword) })
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got.Username != "jlong" || got.Method != model.AuthMethodBasic || got.KeyID != "" {
		t.Errorf("principal = %+v", got)
	}
	if !got.HasScope(model.ScopeRead) || !got.HasScope(model.ScopeWrite) || got.HasScope(model.ScopeAdmin) {
		t.Errorf("scopes = %v", got.Scopes)
	}
}

func TestAuth_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*http.Request)
		wantMetric string
	}{
		{"no credentials", func(r *http.Request) {}, "none/failure"},
		{"malformed key", func(r *http.Request) { r.Header.Set("X-API-Key", "not-a-key") }, "api_key/failure"},
		{"unknown prefix", func(r *http.Request) {
			r.Header.Set("X-API-Key", "pk_test_ffffff_0123456789abcdef0123456789abcdef")
		}, "api_key/failure"},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("X-API-Key", "pk_test_a1b2c3_ffffffffffffffffffffffffffffffff")
		}, "api_key/failure"},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("jlong", "nope") }, "basic/failure"},
		{"unknown user", func(r *http.Request) { r.SetBasicAuth("nobody", testPassword) }, "basic/failure"},
		{"empty password", func(r *http.Request) { r.SetBasicAuth("jlong", "") }, "basic/failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			rec, _ := f.do(t, tt.setup)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			want := `{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing credentials"}}`
			if rec.Body.String() != want {
				t.Errorf("body = %s", rec.Body.String())
			}
			if rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
			}
			if got := f.recorder.Snapshot().AuthAttempts[tt.wantMetric]; got != 1 {
				t.Errorf("AuthAttempts[%s] = %d", tt.wantMetric, got)
			}
		})
	}
}

func TestAuth_StoreErrorIsUnauthorized(t *testing.T) {
	recorder := metrics.NewInMemory()
	mw := Auth(AuthConfig{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Keys:        failingKeys{},
		Metrics:     recorder,
		MinDuration: time.Millisecond,
	})

	req := httptest.NewRequest(http.MethodGet, "/bookmarks", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if got := recorder.Snapshot().AuthAttempts["api_key/error"]; got != 1 {
		t.Errorf("AuthAttempts[api_key/error] = %d", got)
	}
}

func TestAuth_MinimumDuration(t *testing.T) {
	mw := Auth(AuthConfig{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Keys:        failingKeys{},
		MinDuration: 30 * time.Millisecond,
	})

	start := time.Now()
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookmarks", nil))

	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("auth returned after %v, want at least 30ms", elapsed)
	}
}

func TestExtractAPIKey(t *testing.T) {
	testCases := []struct {
		name         string
		authHeader   string
		apiKeyHeader string
		want         string
	}{
		{name: "Bearer token", authHeader: "Bearer pk_live_abc123_secret", want: "pk_live_abc123_secret"},
		{name: "X-API-Key header", apiKeyHeader: "pk_live_abc123_secret", want: "pk_live_abc123_secret"},
		{name: "Bearer takes precedence", authHeader: "Bearer bearer_key", apiKeyHeader: "apikey_header", want: "bearer_key"},
		{name: "Basic is not a key", authHeader: "Basic amxvbmc6cGFzc3dvcmQ=", want: ""},
		{name: "No key", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			if tc.apiKeyHeader != "" {
				req.Header.Set("X-API-Key", tc.apiKeyHeader)
			}
			if got := extractAPIKey(req); got != tc.want {
				t.Errorf("extractAPIKey() = %q, want %q", got, tc.want)
			}
		})
	}
}
