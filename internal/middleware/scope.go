package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/bookmarks/bookmarks/internal/auth"
	"github.com/bookmarks/bookmarks/internal/model"
)

// RequireScope admits principals holding any one of scopes; admin holds
// them all. It must run after Auth.
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	missing := "Insufficient permissions. Required scope: " + strings.Join(scopes, " or ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.AuthFromContext(r.Context())
			switch {
			case principal == nil:
				writeScopeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			case slices.ContainsFunc(scopes, principal.HasScope):
				next.ServeHTTP(w, r)
			default:
				writeScopeError(w, http.StatusForbidden, "FORBIDDEN", missing)
			}
		})
	}
}

// RequireRead guards bookmark and key listings.
func RequireRead() func(http.Handler) http.Handler { return RequireScope(model.ScopeRead) }

// RequireWrite guards bookmark creation.
func RequireWrite() func(http.Handler) http.Handler { return RequireScope(model.ScopeWrite) }

// RequireAdmin guards key management and acting for other users.
func RequireAdmin() func(http.Handler) http.Handler { return RequireScope(model.ScopeAdmin) }

func writeScopeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%q,"message":%q}}`, code, message)
}
