package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"

	"bookkin/internal/testutil"
)

const testSecret = "middleware-test-secret"

func TestAuthMiddleware(t *testing.T) {
	var seenDID string
	handler := AuthMiddleware(testSecret, log.New(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenDID = UserDIDFrom(r)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantCode   string
		wantDID    string
	}{
		{
			name:       "valid token",
			token:      testutil.GenerateTestToken(testSecret, testutil.TestDID),
			wantStatus: http.StatusOK,
			wantDID:    testutil.TestDID,
		},
		{
			name:       "missing token",
			token:      "",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "expired token",
			token:      testutil.GenerateExpiredToken(testSecret, testutil.TestDID),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "TOKEN_EXPIRED",
		},
		{
			name:       "wrong secret",
			token:      testutil.GenerateTestToken("some-other-secret", testutil.TestDID),
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "garbage token",
			token:      "not.a.jwt",
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenDID = ""
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, testutil.NewRequestWithAuth(http.MethodGet, "/api/my-library", nil, tt.token))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantDID, seenDID)
			if tt.wantCode != "" {
				body := testutil.DecodeBody(w)
				errBody := body["error"].(map[string]interface{})
				assert.Equal(t, tt.wantCode, errBody["code"])
			}
		})
	}
}
