// Package httpapi holds the HTTP handlers for the library API and the OAuth
// login flow.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"bookkin/internal/entity"
	"bookkin/internal/httpx"
	"bookkin/internal/library"
)

// LibraryService is what the handlers need from the library layer.
type LibraryService interface {
	AddBook(ctx context.Context, ownerDID string, in library.AddBookInput) (*entity.LibraryEntry, error)
	ListLibrary(ctx context.Context, ownerDID string) ([]entity.LibraryEntry, error)
	DeleteBook(ctx context.Context, ownerDID, id string) error
}

type BookHandler struct {
	service LibraryService
	logger  *log.Logger
}

func NewBookHandler(service LibraryService, logger *log.Logger) *BookHandler {
	return &BookHandler{service: service, logger: logger}
}

type addBookRequest struct {
	ISBN10        string   `json:"isbn10" validate:"omitempty,isbn"`
	ISBN13        string   `json:"isbn13" validate:"omitempty,isbn"`
	Title         string   `json:"title" validate:"omitempty,max=512"`
	Authors       []string `json:"authors" validate:"omitempty,dive,max=256"`
	Description   string   `json:"description" validate:"omitempty,max=4096"`
	CoverImageURL string   `json:"coverImageUrl" validate:"omitempty,url"`
}

// AddBook handles POST /api/books: resolve the input against the canonical
// catalog and link the result to the caller's library.
func (h *BookHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	ownerDID := httpx.UserDIDFrom(r)
	if ownerDID == "" {
		httpx.JSONError(r, w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	var req addBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(r, w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}

	if details := ValidateStruct(req); details != nil {
		h.logger.Warn("add book validation failed", "did", ownerDID)
		httpx.JSONError(r, w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid request body", details)
		return
	}
	if req.ISBN10 == "" && req.ISBN13 == "" && req.Title == "" {
		httpx.JSONError(r, w, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid request body", []httpx.ErrorDetail{
			{Field: "title", Message: "one of isbn10, isbn13 or title is required"},
		})
		return
	}

	entry, err := h.service.AddBook(r.Context(), ownerDID, library.AddBookInput{
		ISBN10:        req.ISBN10,
		ISBN13:        req.ISBN13,
		Title:         req.Title,
		Authors:       req.Authors,
		Description:   req.Description,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, library.ErrUnresolvable):
			httpx.JSONError(r, w, http.StatusNotFound, "NOT_FOUND", "Book metadata could not be found or created", nil)
		case errors.Is(err, library.ErrAlreadyInLibrary):
			httpx.JSONError(r, w, http.StatusConflict, "ALREADY_EXISTS", "Book already exists in your library", nil)
		default:
			h.logger.Error("add book failed", "did", ownerDID, "err", err)
			httpx.JSONError(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		}
		return
	}

	httpx.JSONSuccessCreated(r, w, entry)
}

// MyLibrary handles GET /api/my-library.
func (h *BookHandler) MyLibrary(w http.ResponseWriter, r *http.Request) {
	ownerDID := httpx.UserDIDFrom(r)
	if ownerDID == "" {
		httpx.JSONError(r, w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	entries, err := h.service.ListLibrary(r.Context(), ownerDID)
	if err != nil {
		h.logger.Error("list library failed", "did", ownerDID, "err", err)
		httpx.JSONError(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		return
	}
	if entries == nil {
		entries = []entity.LibraryEntry{}
	}

	httpx.JSONSuccess(r, w, entries)
}

// DeleteBook handles DELETE /api/books/{id}. A nonexistent entry and one
// owned by another user are both 404.
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	ownerDID := httpx.UserDIDFrom(r)
	if ownerDID == "" {
		httpx.JSONError(r, w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httpx.JSONError(r, w, http.StatusBadRequest, "BAD_REQUEST", "Book ID parameter is required", nil)
		return
	}

	if err := h.service.DeleteBook(r.Context(), ownerDID, id); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			httpx.JSONError(r, w, http.StatusNotFound, "NOT_FOUND", "Book not found in your library", nil)
			return
		}
		h.logger.Error("delete book failed", "did", ownerDID, "id", id, "err", err)
		httpx.JSONError(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		return
	}

	httpx.JSONSuccessNoContent(w)
}
