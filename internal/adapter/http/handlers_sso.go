package adapthttp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"todolist/internal/app"
	"todolist/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const stateCookieName = "todolist_oauth_state"

// SSOConfig holds the OpenID Connect client used for single sign-on.
type SSOConfig struct {
	OAuth2Config oauth2.Config
	Verifier     *oidc.IDTokenVerifier
}

// NewSSOConfig discovers the issuer and builds the OAuth2 client.
func NewSSOConfig(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*SSOConfig, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return &SSOConfig{
		OAuth2Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		Verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if s.sso == nil {
		s.handleNotFound(w, r)
		return
	}
	state, err := generateState()
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/users/sso",
		HttpOnly: true,
		Secure:   s.cookie.secure,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.sso.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if s.sso == nil {
		s.handleNotFound(w, r)
		return
	}

	state, err := r.Cookie(stateCookieName)
	if err != nil || state.Value == "" || !app.ConstantTimeCompare(r.URL.Query().Get("state"), state.Value) {
		s.ssoFailed(w, r, "state mismatch", err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/users/sso", MaxAge: -1})

	token, err := s.sso.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.ssoFailed(w, r, "code exchange failed", err)
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		s.ssoFailed(w, r, "no id_token in response", nil)
		return
	}
	idToken, err := s.sso.Verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		s.ssoFailed(w, r, "id token verification failed", err)
		return
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		s.ssoFailed(w, r, "parse claims", err)
		return
	}
	if claims.Email == "" || (claims.EmailVerified != nil && !*claims.EmailVerified) {
		s.ssoFailed(w, r, "no verified email claim", nil)
		return
	}

	user, err := s.auth.ProvisionExternalUser(r.Context(), claims.Email, claims.Name)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if err := s.startUserSession(w, r, user); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.metrics.LoginsTotal.WithLabelValues("sso", "success").Inc()
	http.Redirect(w, r, "/", http.StatusFound)
}

// ssoFailed sends the user back to the login page with a generic message.
func (s *Server) ssoFailed(w http.ResponseWriter, r *http.Request, reason string, err error) {
	s.metrics.LoginsTotal.WithLabelValues("sso", "failure").Inc()
	s.logger.WarnContext(r.Context(), "sso login failed", "reason", reason, "error", err)
	if err := s.flash(w, r, domain.FlashError, "Single sign-on failed. Please try again."); err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/users/login", http.StatusFound)
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
