package auth

import (
	"context"

	"github.com/bookmarks/bookmarks/internal/model"
)

type contextKey struct{}

// ContextWithAuth adds the authenticated principal to the context.
func ContextWithAuth(ctx context.Context, auth *model.AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, auth)
}

// AuthFromContext returns the principal, or nil if the request is anonymous.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	auth, _ := ctx.Value(contextKey{}).(*model.AuthContext)
	return auth
}

// MustAuthFromContext returns the principal and panics if there is none.
// Only call it behind the auth middleware.
func MustAuthFromContext(ctx context.Context) *model.AuthContext {
	auth := AuthFromContext(ctx)
	if auth == nil {
		panic("auth context not found - ensure auth middleware is applied")
	}
	return auth
}

// UsernameFromContext returns the principal's username, or "" if anonymous.
func UsernameFromContext(ctx context.Context) string {
	if auth := AuthFromContext(ctx); auth != nil {
		return auth.Username
	}
	return ""
}

// KeyIDFromContext returns the API key id, or "" for anonymous and basic
// auth requests.
func KeyIDFromContext(ctx context.Context) string {
	if auth := AuthFromContext(ctx); auth != nil {
		return auth.KeyID
	}
	return ""
}
