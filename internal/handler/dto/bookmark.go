// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/bookmarks/bookmarks/internal/middleware"
)

// CreateBookmarkRequest is the body of POST /bookmarks and
// POST /{userId}/bookmarks. Unknown fields are ignored.
type CreateBookmarkRequest struct {
	URI         string `json:"uri"`
	Description string `json:"description"`
}

// Validate applies the boundary limits. The service treats both fields as
// opaque.
func (r CreateBookmarkRequest) Validate() error {
	if err := middleware.ValidateBookmarkURI(r.URI); err != nil {
		return err
	}
	return middleware.ValidateDescription(r.Description)
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
