package middleware

import (
	"errors"
	"regexp"
	"strings"
)

// Validation limits.
const (
	MaxBookmarkURILength = 2048
	MaxDescriptionLength = 4096
	MaxUsernameLength    = 64
	MaxAPIKeyNameLength  = 100
)

// Validation errors.
var (
	ErrURIRequired        = errors.New("uri is required")
	ErrURITooLong         = errors.New("uri exceeds maximum length")
	ErrDescriptionTooLong = errors.New("description exceeds maximum length")
	ErrUsernameInvalid    = errors.New("username contains invalid characters")
	ErrUsernameReserved   = errors.New("username is reserved")
	ErrAPIKeyNameTooLong  = errors.New("api key name exceeds maximum length")
)

// ReservedUsernames collide with top-level routes, so /{userId}/bookmarks
// could never address them.
var ReservedUsernames = map[string]bool{
	"bookmarks": true,
	"api-keys":  true,
	"healthz":   true,
	"readyz":    true,
	"metrics":   true,
	"admin":     true,
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateBookmarkURI checks a bookmark uri at the HTTP boundary. The uri is
// otherwise opaque: no scheme or syntax check is made. Values come from
// encoding/json, which already replaces invalid UTF-8 with U+FFFD.
func ValidateBookmarkURI(uri string) error {
	if strings.TrimSpace(uri) == "" {
		return ErrURIRequired
	}
	if len(uri) > MaxBookmarkURILength {
		return ErrURITooLong
	}
	return nil
}

// ValidateDescription checks a bookmark description. Empty is allowed.
func ValidateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// ValidateUsername checks a username taken from a path segment or seed list.
func ValidateUsername(username string) error {
	if username == "" || len(username) > MaxUsernameLength || !usernamePattern.MatchString(username) {
		return ErrUsernameInvalid
	}
	if ReservedUsernames[strings.ToLower(username)] {
		return ErrUsernameReserved
	}
	return nil
}

// ValidateAPIKeyName checks the optional label of an API key.
func ValidateAPIKeyName(name string) error {
	if len(name) > MaxAPIKeyNameLength {
		return ErrAPIKeyNameTooLong
	}
	return nil
}
