package oauth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStateStore struct {
	states map[string]*State
}

func newMemStateStore() *memStateStore {
	return &memStateStore{states: map[string]*State{}}
}

func (m *memStateStore) Set(_ context.Context, key string, st *State) error {
	m.states[key] = st
	return nil
}

func (m *memStateStore) Get(_ context.Context, key string) (*State, error) {
	return m.states[key], nil
}

func (m *memStateStore) Del(_ context.Context, key string) error {
	delete(m.states, key)
	return nil
}

func (m *memStateStore) DeleteExpired(context.Context) (int64, error) { return 0, nil }

type memSessionStore struct {
	sessions map[string]*Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[string]*Session{}}
}

func (m *memSessionStore) Set(_ context.Context, did string, s *Session) error {
	m.sessions[did] = s
	return nil
}

func (m *memSessionStore) Get(_ context.Context, did string) (*Session, error) {
	return m.sessions[did], nil
}

func (m *memSessionStore) Del(_ context.Context, did string) error {
	delete(m.sessions, did)
	return nil
}

func newTestClient(srvURL string, states StateStore, sessions SessionStore) *Client {
	return NewClient(Config{
		ClientID:     "https://bookkin.example/client-metadata.json",
		ClientSecret: "shh",
		ClientName:   "Bookkin",
		ClientURI:    "https://bookkin.example",
		AuthURL:      srvURL + "/oauth/authorize",
		TokenURL:     srvURL + "/oauth/token",
		RedirectURL:  "https://bookkin.example/oauth/callback",
		ProfileURL:   srvURL + "/xrpc/app.bsky.actor.getProfile",
		Scopes:       []string{"atproto"},
	}, states, sessions, log.New(io.Discard))
}

func TestAuthorizeStoresStateAndBuildsURL(t *testing.T) {
	states := newMemStateStore()
	c := newTestClient("https://auth.example", states, newMemSessionStore())

	authURL, err := c.Authorize(context.Background(), "alice.bsky.social")
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()

	stateKey := q.Get("state")
	require.NotEmpty(t, stateKey)
	assert.Equal(t, "alice.bsky.social", q.Get("login_hint"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))

	st := states.states[stateKey]
	require.NotNil(t, st, "pending state must be persisted under the state key")
	assert.Equal(t, "alice.bsky.social", st.Handle)
	assert.NotEmpty(t, st.PKCEVerifier)
}

func TestCallbackExchangesCodeAndStoresSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "good-code", r.FormValue("code"))
			assert.NotEmpty(t, r.FormValue("code_verifier"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token": "upstream-token", "token_type": "Bearer"}`))
		case "/xrpc/app.bsky.actor.getProfile":
			assert.Equal(t, "alice.bsky.social", r.URL.Query().Get("actor"))
			assert.Equal(t, "Bearer upstream-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"did": "did:plc:alice123", "handle": "alice.bsky.social", "displayName": "Alice"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	states := newMemStateStore()
	sessions := newMemSessionStore()
	states.states["state-1"] = &State{Handle: "alice.bsky.social", PKCEVerifier: "verifier-123"}

	c := newTestClient(srv.URL, states, sessions)
	sess, profile, err := c.Callback(context.Background(), "good-code", "state-1")
	require.NoError(t, err)

	assert.Equal(t, "did:plc:alice123", sess.DID)
	assert.Equal(t, "alice.bsky.social", sess.Handle)
	assert.Equal(t, "upstream-token", sess.Token.AccessToken)
	assert.Equal(t, "Alice", profile.DisplayName)

	assert.Nil(t, states.states["state-1"], "state is one-shot")
	require.NotNil(t, sessions.sessions["did:plc:alice123"])
}

func TestCallbackUnknownState(t *testing.T) {
	c := newTestClient("https://auth.example", newMemStateStore(), newMemSessionStore())

	_, _, err := c.Callback(context.Background(), "code", "never-issued")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestCallbackRejectsProfileWithoutDID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token": "t", "token_type": "Bearer"}`))
		default:
			_, _ = w.Write([]byte(`{"handle": "alice.bsky.social"}`))
		}
	}))
	defer srv.Close()

	states := newMemStateStore()
	states.states["state-1"] = &State{Handle: "alice.bsky.social", PKCEVerifier: "v"}
	c := newTestClient(srv.URL, states, newMemSessionStore())

	_, _, err := c.Callback(context.Background(), "code", "state-1")
	assert.Error(t, err)
}

func TestLogoutDropsSession(t *testing.T) {
	sessions := newMemSessionStore()
	sessions.sessions["did:plc:alice123"] = &Session{DID: "did:plc:alice123"}
	c := newTestClient("https://auth.example", newMemStateStore(), sessions)

	require.NoError(t, c.Logout(context.Background(), "did:plc:alice123"))
	assert.Empty(t, sessions.sessions)
}
