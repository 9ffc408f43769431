// Package httpx carries the HTTP middleware chain and the JSON response
// envelope shared by all handlers.
package httpx

import (
	"context"
	"net/http"
)

type contextKey string

const (
	userDIDKey   contextKey = "userDID"
	requestIDKey contextKey = "requestID"
)

// UserDIDFrom retrieves the authenticated user's DID from the request
// context, or "" when the request is unauthenticated.
func UserDIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(userDIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithUserDID returns a new context carrying the authenticated DID.
func ContextWithUserDID(ctx context.Context, did string) context.Context {
	return context.WithValue(ctx, userDIDKey, did)
}

// RequestIDFrom retrieves the request id from the request context.
func RequestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithRequestID returns a new context carrying the request id.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
