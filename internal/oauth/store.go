// Package oauth implements the AT Protocol OAuth login flow: authorization
// redirect with PKCE, code exchange, profile fetch, and the Postgres-backed
// state and session stores the flow persists through.
package oauth

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// StateTTL is how long a pending login flow stays valid.
const StateTTL = time.Hour

// State is the per-login-flow record stored between the authorize redirect
// and the callback.
type State struct {
	Handle       string    `json:"handle"`
	PKCEVerifier string    `json:"pkce_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the per-user record persisted after a successful callback.
// It holds the upstream token set keyed by the user's DID.
type Session struct {
	DID    string        `json:"did"`
	Handle string        `json:"handle"`
	Token  *oauth2.Token `json:"token"`
}

// StateStore persists pending login flows keyed by an opaque state key.
// Get returns (nil, nil) for a missing or expired entry.
type StateStore interface {
	Set(ctx context.Context, key string, st *State) error
	Get(ctx context.Context, key string) (*State, error)
	Del(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionStore persists sessions keyed by DID; Set replaces any existing
// session for the same DID. Get returns (nil, nil) when absent.
type SessionStore interface {
	Set(ctx context.Context, did string, s *Session) error
	Get(ctx context.Context, did string) (*Session, error)
	Del(ctx context.Context, did string) error
}
