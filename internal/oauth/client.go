package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"bookkin/internal/entity"
)

// ErrStateNotFound means the callback carried a state key with no pending
// (unexpired) login flow behind it.
var ErrStateNotFound = errors.New("oauth: unknown or expired state")

// Config holds everything the flow needs; constructed once at startup.
type Config struct {
	ClientID     string
	ClientSecret string
	ClientName   string
	ClientURI    string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	ProfileURL   string
	Scopes       []string
}

// Client drives the authorization-code + PKCE flow against an AT Protocol
// authorization server. Construct one per process and share it.
type Client struct {
	conf     *oauth2.Config
	cfg      Config
	states   StateStore
	sessions SessionStore
	logger   *log.Logger
}

func NewClient(cfg Config, states StateStore, sessions SessionStore, logger *log.Logger) *Client {
	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		cfg:      cfg,
		states:   states,
		sessions: sessions,
		logger:   logger,
	}
}

// Metadata is the client metadata document served at /client-metadata.json.
func (c *Client) Metadata() map[string]any {
	return map[string]any{
		"client_id":                  c.cfg.ClientID,
		"client_name":                c.cfg.ClientName,
		"client_uri":                 c.cfg.ClientURI,
		"redirect_uris":              []string{c.cfg.RedirectURL},
		"grant_types":                []string{"authorization_code", "refresh_token"},
		"response_types":             []string{"code"},
		"application_type":           "web",
		"token_endpoint_auth_method": "client_secret_basic",
		"scope":                      "atproto",
	}
}

// Authorize starts a login flow for the given handle: it stores the pending
// state (PKCE verifier included) and returns the authorization redirect URL.
func (c *Client) Authorize(ctx context.Context, handle string) (string, error) {
	verifier := oauth2.GenerateVerifier()
	stateKey := uuid.NewString()

	if err := c.states.Set(ctx, stateKey, &State{
		Handle:       handle,
		PKCEVerifier: verifier,
	}); err != nil {
		return "", err
	}

	authURL := c.conf.AuthCodeURL(stateKey,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("login_hint", handle),
	)
	c.logger.Info("initiating login", "handle", handle, "state", stateKey)
	return authURL, nil
}

// Callback completes the flow: validates and consumes the state, exchanges
// the code, fetches the user's profile and persists the session by DID.
func (c *Client) Callback(ctx context.Context, code, stateKey string) (*Session, *entity.UserProfile, error) {
	st, err := c.states.Get(ctx, stateKey)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return nil, nil, ErrStateNotFound
	}
	// One-shot state: consume it before the exchange.
	if err := c.states.Del(ctx, stateKey); err != nil {
		c.logger.Warn("failed to delete consumed oauth state", "state", stateKey, "err", err)
	}

	token, err := c.conf.Exchange(ctx, code, oauth2.VerifierOption(st.PKCEVerifier))
	if err != nil {
		return nil, nil, fmt.Errorf("oauth exchange: %w", err)
	}

	profile, err := c.fetchProfile(ctx, token, st.Handle)
	if err != nil {
		return nil, nil, err
	}
	if profile.DID == "" || profile.Handle == "" {
		return nil, nil, errors.New("oauth: profile missing did or handle")
	}

	sess := &Session{
		DID:    profile.DID,
		Handle: profile.Handle,
		Token:  token,
	}
	if err := c.sessions.Set(ctx, profile.DID, sess); err != nil {
		return nil, nil, err
	}

	c.logger.Info("user authenticated", "did", profile.DID, "handle", profile.Handle)
	return sess, profile, nil
}

// Logout drops the persisted session for a DID.
func (c *Client) Logout(ctx context.Context, did string) error {
	return c.sessions.Del(ctx, did)
}

func (c *Client) fetchProfile(ctx context.Context, token *oauth2.Token, actor string) (*entity.UserProfile, error) {
	u := fmt.Sprintf("%s?actor=%s", c.cfg.ProfileURL, url.QueryEscape(actor))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.conf.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch profile: unexpected status code: %d", resp.StatusCode)
	}

	var profile entity.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}
