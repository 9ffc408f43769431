package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"

	"bookkin/internal/auth"
	"bookkin/internal/entity"
	"bookkin/internal/httpx"
	"bookkin/internal/oauth"
)

// OAuthFlow is what the handlers need from the OAuth client.
type OAuthFlow interface {
	Metadata() map[string]any
	Authorize(ctx context.Context, handle string) (string, error)
	Callback(ctx context.Context, code, state string) (*oauth.Session, *entity.UserProfile, error)
	Logout(ctx context.Context, did string) error
}

type OAuthHandler struct {
	flow        OAuthFlow
	jwtSecret   string
	appDeepLink string
	logger      *log.Logger
}

func NewOAuthHandler(flow OAuthFlow, jwtSecret, appDeepLink string, logger *log.Logger) *OAuthHandler {
	return &OAuthHandler{
		flow:        flow,
		jwtSecret:   jwtSecret,
		appDeepLink: appDeepLink,
		logger:      logger,
	}
}

// ClientMetadata serves GET /client-metadata.json.
func (h *OAuthHandler) ClientMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.flow.Metadata())
}

// Login handles GET /oauth/login?handle=... and redirects to the
// authorization server.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	handle := r.URL.Query().Get("handle")
	if handle == "" {
		httpx.JSONError(r, w, http.StatusBadRequest, "BAD_REQUEST", "Handle query parameter is required", nil)
		return
	}

	authURL, err := h.flow.Authorize(r.Context(), handle)
	if err != nil {
		h.logger.Error("login initiation failed", "handle", handle, "err", err)
		httpx.JSONError(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /oauth/callback: completes the code exchange, issues
// the app token and redirects back into the mobile app via deep link.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		httpx.JSONError(r, w, http.StatusBadRequest, "BAD_REQUEST", "Missing code or state in callback", nil)
		return
	}

	sess, profile, err := h.flow.Callback(r.Context(), code, state)
	if err != nil {
		if errors.Is(err, oauth.ErrStateNotFound) {
			httpx.JSONError(r, w, http.StatusBadRequest, "BAD_REQUEST", "Unknown or expired login state", nil)
			return
		}
		h.logger.Error("oauth callback failed", "err", err)
		httpx.JSONError(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, sess.DID, auth.TokenTTL)
	if err != nil {
		h.logger.Error("app token signing failed", "did", sess.DID, "err", err)
		httpx.JSONError(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		return
	}

	http.Redirect(w, r, h.deepLinkURL(token, profile), http.StatusFound)
}

// Logout handles POST /oauth/logout for an authenticated caller.
func (h *OAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	did := httpx.UserDIDFrom(r)
	if did == "" {
		httpx.JSONError(r, w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	if err := h.flow.Logout(r.Context(), did); err != nil {
		h.logger.Error("logout failed", "did", did, "err", err)
		httpx.JSONError(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		return
	}

	httpx.JSONSuccessNoContent(w)
}

// deepLinkURL builds the redirect back into the app, token first, then every
// profile field that is present.
func (h *OAuthHandler) deepLinkURL(token string, profile *entity.UserProfile) string {
	params := url.Values{}
	params.Set("token", token)

	if profile.DisplayName != "" {
		params.Set("displayName", profile.DisplayName)
	}
	if profile.Avatar != "" {
		params.Set("avatar", profile.Avatar)
	}
	if profile.Description != "" {
		params.Set("description", profile.Description)
	}
	if profile.Banner != "" {
		params.Set("banner", profile.Banner)
	}
	if profile.Handle != "" {
		params.Set("handle", profile.Handle)
	}
	if profile.DID != "" {
		params.Set("did", profile.DID)
	}

	return h.appDeepLink + "?" + params.Encode()
}
