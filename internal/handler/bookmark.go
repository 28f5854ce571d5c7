package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bookmarks/bookmarks/internal/auth"
	"github.com/bookmarks/bookmarks/internal/handler/dto"
	"github.com/bookmarks/bookmarks/internal/middleware"
	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/bookmarks/bookmarks/internal/resource"
	"github.com/bookmarks/bookmarks/internal/service"
)

// BookmarkHandler handles HTTP requests for bookmark operations.
type BookmarkHandler struct {
	svc       *service.BookmarkService
	assembler *resource.Assembler
	logger    *slog.Logger
	// strictOwnership scopes GET /bookmarks/{bookmarkId} to the caller.
	strictOwnership bool
}

// NewBookmarkHandler creates a new BookmarkHandler.
func NewBookmarkHandler(svc *service.BookmarkService, assembler *resource.Assembler, logger *slog.Logger, strictOwnership bool) *BookmarkHandler {
	return &BookmarkHandler{
		svc:             svc,
		assembler:       assembler,
		logger:          logger,
		strictOwnership: strictOwnership,
	}
}

// Create handles POST /bookmarks for the authenticated principal.
func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, auth.MustAuthFromContext(r.Context()).Username)
}

// CreateForUser handles POST /{userId}/bookmarks.
func (h *BookmarkHandler) CreateForUser(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	h.create(w, r, owner)
}

// List handles GET /bookmarks for the authenticated principal.
func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, auth.MustAuthFromContext(r.Context()).Username)
}

// ListForUser handles GET /{userId}/bookmarks.
func (h *BookmarkHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	h.list(w, r, owner)
}

// Get handles GET /bookmarks/{bookmarkId}. Any authenticated principal may
// read any bookmark unless strict ownership is enabled.
func (h *BookmarkHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookmarkID(w, r)
	if !ok {
		return
	}

	var (
		bookmark *model.Bookmark
		err      error
	)
	if h.strictOwnership {
		bookmark, err = h.svc.GetBookmarkForOwner(r.Context(), auth.MustAuthFromContext(r.Context()).Username, id)
	} else {
		bookmark, err = h.svc.GetBookmark(r.Context(), id)
	}
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.assembler.Assemble(bookmark))
}

// GetForUser handles GET /{userId}/bookmarks/{bookmarkId}. A bookmark owned
// by someone else is reported as not found.
func (h *BookmarkHandler) GetForUser(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	id, ok := h.bookmarkID(w, r)
	if !ok {
		return
	}

	bookmark, err := h.svc.GetBookmarkForOwner(r.Context(), owner, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.assembler.Assemble(bookmark))
}

func (h *BookmarkHandler) create(w http.ResponseWriter, r *http.Request, owner string) {
	var req dto.CreateBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BOOKMARK", err.Error())
		return
	}

	bookmark, err := h.svc.CreateBookmark(r.Context(), owner, req.URI, req.Description)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("bookmark_created",
		slog.Int64("bookmark_id", bookmark.ID),
		slog.String("owner", bookmark.OwnerUsername()),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	w.Header().Set("Location", h.assembler.Assemble(bookmark).Links.Self.Href)
	w.WriteHeader(http.StatusCreated)
}

func (h *BookmarkHandler) list(w http.ResponseWriter, r *http.Request, owner string) {
	bookmarks, err := h.svc.ListBookmarks(r.Context(), owner)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.assembler.AssembleAll(bookmarks))
}

// pathUser returns the {userId} segment once the principal is allowed to act
// for it: itself, or any user with admin scope.
func (h *BookmarkHandler) pathUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userId")
	if err := middleware.ValidateUsername(userID); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_USER", err.Error())
		return "", false
	}

	principal := auth.MustAuthFromContext(r.Context())
	if principal.Username != userID && !principal.HasScope(model.ScopeAdmin) {
		h.logger.Warn("path user mismatch",
			slog.String("principal", principal.Username),
			slog.String("path_user", userID),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Cannot access another user's bookmarks")
		return "", false
	}
	return userID, true
}

func (h *BookmarkHandler) bookmarkID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "bookmarkId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Bookmark ID must be a positive integer")
		return 0, false
	}
	return id, true
}

// handleServiceError maps service errors to HTTP responses.
func (h *BookmarkHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
	case errors.Is(err, service.ErrBookmarkNotFound):
		writeError(w, http.StatusNotFound, "BOOKMARK_NOT_FOUND", "Bookmark not found")
	default:
		h.logger.Error("internal_error",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
