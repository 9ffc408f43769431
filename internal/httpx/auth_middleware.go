package httpx

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"bookkin/internal/auth"
)

// AuthMiddleware verifies the app bearer token and attaches the caller's DID
// to the request context. Expired tokens get 401, invalid ones 403, matching
// what the mobile client expects for its refresh logic.
func AuthMiddleware(secret string, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				logger.Warn("auth: no token provided", "path", r.URL.Path)
				JSONError(r, w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized: Token required", nil)
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				logger.Warn("auth: token verification failed", "err", err)
				if auth.IsExpired(err) {
					JSONError(r, w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Unauthorized: Token expired", nil)
					return
				}
				JSONError(r, w, http.StatusForbidden, "FORBIDDEN", "Forbidden: Invalid token", nil)
				return
			}

			ctx := ContextWithUserDID(r.Context(), claims.DID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
