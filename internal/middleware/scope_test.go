package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bookmarks/bookmarks/internal/auth"
	"github.com/bookmarks/bookmarks/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(authCtx *model.AuthContext) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/bookmarks", nil)
	if authCtx != nil {
		req = req.WithContext(auth.ContextWithAuth(req.Context(), authCtx))
	}
	return req
}

func TestRequireScope(t *testing.T) {
	testCases := []struct {
		name          string
		scopes        []string
		requiredScope string
		wantStatus    int
	}{
		{"read scope allows read", []string{model.ScopeRead}, model.ScopeRead, http.StatusOK},
		{"write scope allows write", []string{model.ScopeWrite}, model.ScopeWrite, http.StatusOK},
		{"admin allows read", []string{model.ScopeAdmin}, model.ScopeRead, http.StatusOK},
		{"admin allows write", []string{model.ScopeAdmin}, model.ScopeWrite, http.StatusOK},
		{"admin allows admin", []string{model.ScopeAdmin}, model.ScopeAdmin, http.StatusOK},
		{"multiple scopes work", []string{model.ScopeRead, model.ScopeWrite}, model.ScopeWrite, http.StatusOK},
		{"read cannot access write", []string{model.ScopeRead}, model.ScopeWrite, http.StatusForbidden},
		{"read cannot access admin", []string{model.ScopeRead}, model.ScopeAdmin, http.StatusForbidden},
		{"write cannot access admin", []string{model.ScopeWrite}, model.ScopeAdmin, http.StatusForbidden},
		{"no scopes", nil, model.ScopeRead, http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			authCtx := &model.AuthContext{
				KeyID:     "key123",
				KeyPrefix: "abc123",
				AccountID: 1,
				Username:  "jlong",
				Scopes:    tc.scopes,
			}

			rec := httptest.NewRecorder()
			RequireScope(tc.requiredScope)(okHandler()).ServeHTTP(rec, requestAs(authCtx))

			if rec.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestRequireScope_ForbiddenBody(t *testing.T) {
	rec := httptest.NewRecorder()
	authCtx := &model.AuthContext{Username: "jlong", Scopes: []string{model.ScopeRead}}
	RequireWrite()(okHandler()).ServeHTTP(rec, requestAs(authCtx))

	want := `{"error":{"code":"FORBIDDEN","message":"Insufficient permissions. Required scope: write"}}`
	if rec.Body.String() != want {
		t.Errorf("body = %s, want %s", rec.Body.String(), want)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestRequireScope_NoAuthContext(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireScope(model.ScopeRead)(okHandler()).ServeHTTP(rec, requestAs(nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestConvenienceMiddleware(t *testing.T) {
	authCtx := &model.AuthContext{
		KeyID:    "key123",
		Username: "jlong",
		Scopes:   []string{model.ScopeAdmin},
	}

	testCases := []struct {
		name       string
		middleware func() func(http.Handler) http.Handler
	}{
		{"RequireRead", RequireRead},
		{"RequireWrite", RequireWrite},
		{"RequireAdmin", RequireAdmin},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.middleware()(okHandler()).ServeHTTP(rec, requestAs(authCtx))

			// Admin should pass all
			if rec.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
		})
	}
}

func TestRequireScope_AnyOf(t *testing.T) {
	guard := RequireScope(model.ScopeWrite, model.ScopeAdmin)

	rec := httptest.NewRecorder()
	guard(okHandler()).ServeHTTP(rec, requestAs(&model.AuthContext{Username: "jlong", Scopes: []string{model.ScopeWrite}}))
	if rec.Code != http.StatusOK {
		t.Errorf("write holder status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	guard(okHandler()).ServeHTTP(rec, requestAs(&model.AuthContext{Username: "dsyer", Scopes: []string{model.ScopeRead}}))
	want := `{"error":{"code":"FORBIDDEN","message":"Insufficient permissions. Required scope: write or admin"}}`
	if rec.Code != http.StatusForbidden || rec.Body.String() != want {
		t.Errorf("got %d %s, want 403 %s", rec.Code, rec.Body.String(), want)
	}
}
