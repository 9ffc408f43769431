// Package testutil provides shared helpers for handler and service tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bookkin/internal/auth"
	"bookkin/internal/entity"
)

// TestDID is the DID used for the authenticated user in tests.
const TestDID = "did:plc:testuser123"

// TestBook is a canonical record used across tests.
var TestBook = entity.CanonicalBook{
	ID:        "7b00a2f1-1111-4f7c-9c38-000000000001",
	Title:     "Test Book Title",
	Authors:   []string{"Test Author"},
	ISBN13:    "9780123456789",
	Publisher: "Test Publisher",
	CreatedAt: time.Now(),
	UpdatedAt: time.Now(),
}

// GenerateTestToken returns a valid app token for the given DID.
func GenerateTestToken(secret, did string) string {
	token, _ := auth.GenerateToken(secret, did, time.Hour)
	return token
}

// GenerateExpiredToken returns a token that expired an hour ago.
func GenerateExpiredToken(secret, did string) string {
	c := auth.Claims{
		DID: did,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	token, _ := t.SignedString([]byte(secret))
	return token
}

// NewRequest creates a JSON HTTP request for testing.
func NewRequest(method, path string, body interface{}) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	bodyBytes, _ := json.Marshal(body)
	r := httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// NewRequestWithAuth creates a JSON HTTP request with a bearer token.
func NewRequestWithAuth(method, path string, body interface{}, token string) *http.Request {
	r := NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// DecodeBody decodes a recorded response body into a generic map.
func DecodeBody(w *httptest.ResponseRecorder) map[string]interface{} {
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, _ := io.ReadAll(result.Body)
	var bodyMap map[string]interface{}
	if len(bodyBytes) > 0 {
		_ = json.Unmarshal(bodyBytes, &bodyMap)
	}
	return bodyMap
}
