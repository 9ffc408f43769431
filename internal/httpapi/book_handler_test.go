package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookkin/internal/entity"
	"bookkin/internal/httpx"
	"bookkin/internal/library"
	"bookkin/internal/testutil"
)

type fakeLibraryService struct {
	addEntry  *entity.LibraryEntry
	addErr    error
	lastInput library.AddBookInput

	listEntries []entity.LibraryEntry
	listErr     error

	deleteErr error
	deletedID string
}

func (f *fakeLibraryService) AddBook(_ context.Context, _ string, in library.AddBookInput) (*entity.LibraryEntry, error) {
	f.lastInput = in
	if f.addErr != nil {
		return nil, f.addErr
	}
	return f.addEntry, nil
}

func (f *fakeLibraryService) ListLibrary(context.Context, string) ([]entity.LibraryEntry, error) {
	return f.listEntries, f.listErr
}

func (f *fakeLibraryService) DeleteBook(_ context.Context, _ string, id string) error {
	f.deletedID = id
	return f.deleteErr
}

func authedRequest(method, path string, body interface{}) *http.Request {
	r := testutil.NewRequest(method, path, body)
	return r.WithContext(httpx.ContextWithUserDID(r.Context(), testutil.TestDID))
}

func newBookHandler(svc *fakeLibraryService) *BookHandler {
	return NewBookHandler(svc, log.New(io.Discard))
}

func TestAddBookHandler(t *testing.T) {
	entry := &entity.LibraryEntry{
		LibraryBook: entity.LibraryBook{
			ID:              "a4f8f8d4-2222-4f7c-9c38-000000000002",
			OwnerDID:        testutil.TestDID,
			CanonicalBookID: testutil.TestBook.ID,
			Status:          entity.StatusAvailable,
		},
		Book: testutil.TestBook,
	}

	tests := []struct {
		name       string
		body       interface{}
		svc        *fakeLibraryService
		wantStatus int
		wantCode   string
	}{
		{
			name:       "created",
			body:       map[string]string{"isbn13": "9780123456789"},
			svc:        &fakeLibraryService{addEntry: entry},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid isbn",
			body:       map[string]string{"isbn13": "notanisbn"},
			svc:        &fakeLibraryService{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "no identifiers and no title",
			body:       map[string]string{"description": "nothing to match on"},
			svc:        &fakeLibraryService{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unresolvable",
			body:       map[string]string{"isbn13": "9780123456789"},
			svc:        &fakeLibraryService{addErr: library.ErrUnresolvable},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "already in library",
			body:       map[string]string{"isbn13": "9780123456789"},
			svc:        &fakeLibraryService{addErr: library.ErrAlreadyInLibrary},
			wantStatus: http.StatusConflict,
			wantCode:   "ALREADY_EXISTS",
		},
		{
			name:       "internal error",
			body:       map[string]string{"isbn13": "9780123456789"},
			svc:        &fakeLibraryService{addErr: errors.New("db down")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newBookHandler(tt.svc).AddBook(w, authedRequest(http.MethodPost, "/api/books", tt.body))

			assert.Equal(t, tt.wantStatus, w.Code)
			body := testutil.DecodeBody(w)
			if tt.wantCode != "" {
				errBody, ok := body["error"].(map[string]interface{})
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, errBody["code"])
			} else {
				assert.Equal(t, true, body["success"])
			}
		})
	}
}

func TestAddBookHandlerUnauthenticated(t *testing.T) {
	w := httptest.NewRecorder()
	r := testutil.NewRequest(http.MethodPost, "/api/books", map[string]string{"isbn13": "9780123456789"})
	newBookHandler(&fakeLibraryService{}).AddBook(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddBookHandlerMalformedBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/books", nil)
	r = r.WithContext(httpx.ContextWithUserDID(r.Context(), testutil.TestDID))
	newBookHandler(&fakeLibraryService{}).AddBook(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddBookHandlerForwardsInput(t *testing.T) {
	svc := &fakeLibraryService{addEntry: &entity.LibraryEntry{Book: testutil.TestBook}}
	w := httptest.NewRecorder()
	newBookHandler(svc).AddBook(w, authedRequest(http.MethodPost, "/api/books", map[string]interface{}{
		"isbn13":  "9780123456789",
		"title":   "A Title",
		"authors": []string{"Someone"},
	}))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "9780123456789", svc.lastInput.ISBN13)
	assert.Equal(t, "A Title", svc.lastInput.Title)
	assert.Equal(t, []string{"Someone"}, svc.lastInput.Authors)
}

func TestMyLibraryHandler(t *testing.T) {
	t.Run("empty library is an empty array", func(t *testing.T) {
		w := httptest.NewRecorder()
		newBookHandler(&fakeLibraryService{}).MyLibrary(w, authedRequest(http.MethodGet, "/api/my-library", nil))

		require.Equal(t, http.StatusOK, w.Code)
		body := testutil.DecodeBody(w)
		data, ok := body["data"].([]interface{})
		require.True(t, ok, "data must be a JSON array, not null")
		assert.Empty(t, data)
	})

	t.Run("entries include canonical data", func(t *testing.T) {
		svc := &fakeLibraryService{listEntries: []entity.LibraryEntry{{
			LibraryBook: entity.LibraryBook{ID: "e1", OwnerDID: testutil.TestDID, Status: entity.StatusAvailable},
			Book:        testutil.TestBook,
		}}}
		w := httptest.NewRecorder()
		newBookHandler(svc).MyLibrary(w, authedRequest(http.MethodGet, "/api/my-library", nil))

		require.Equal(t, http.StatusOK, w.Code)
		body := testutil.DecodeBody(w)
		data := body["data"].([]interface{})
		require.Len(t, data, 1)
		first := data[0].(map[string]interface{})
		book := first["book"].(map[string]interface{})
		assert.Equal(t, testutil.TestBook.Title, book["title"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		newBookHandler(&fakeLibraryService{}).MyLibrary(w, testutil.NewRequest(http.MethodGet, "/api/my-library", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestDeleteBookHandler(t *testing.T) {
	newMux := func(svc *fakeLibraryService) *http.ServeMux {
		mux := http.NewServeMux()
		mux.HandleFunc("DELETE /api/books/{id}", newBookHandler(svc).DeleteBook)
		return mux
	}

	t.Run("deleted", func(t *testing.T) {
		svc := &fakeLibraryService{}
		w := httptest.NewRecorder()
		newMux(svc).ServeHTTP(w, authedRequest(http.MethodDelete, "/api/books/abc-123", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "abc-123", svc.deletedID)
	})

	t.Run("not found", func(t *testing.T) {
		svc := &fakeLibraryService{deleteErr: library.ErrNotFound}
		w := httptest.NewRecorder()
		newMux(svc).ServeHTTP(w, authedRequest(http.MethodDelete, "/api/books/abc-123", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("internal error", func(t *testing.T) {
		svc := &fakeLibraryService{deleteErr: errors.New("db down")}
		w := httptest.NewRecorder()
		newMux(svc).ServeHTTP(w, authedRequest(http.MethodDelete, "/api/books/abc-123", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
