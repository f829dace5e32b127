package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/smart-bookmarks/internal/auth"
	"github.com/sakif/smart-bookmarks/internal/model"
	"github.com/sakif/smart-bookmarks/internal/service"
)

const (
	DefaultAfterLogin = "/bookmarks"

	msgNoCode       = "No authorization code received. Check OAuth configuration."
	msgAuthFailed   = "Authentication failed. Please try again."
	msgVerifyFailed = "Session verification failed. Please try again."
	loginPath       = "/login"
)

// Authenticator is the part of service.AuthService the HTTP layer uses.
type Authenticator interface {
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (*service.AuthResult, error)
	VerifySession(ctx context.Context, token string) (*model.User, error)
	SessionTTL() time.Duration
}

// AuthHandler runs the OAuth login flow and the session endpoints.
type AuthHandler struct {
	auth         Authenticator
	cookieSecure bool
	logger       *slog.Logger
}

func NewAuthHandler(authn Authenticator, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         authn,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// HandleLogin redirects to the provider.
//
// HTTP: GET /auth/login?next=/bookmarks
//
// A random state goes into a short-lived cookie and the provider echoes it
// back; the callback rejects a mismatch. A safe next path is kept in a
// second cookie because the provider's redirect URL is fixed.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	auth.SetFlowCookie(w, auth.StateCookie, state, h.cookieSecure)

	if next := auth.SafeRedirectPath(r.URL.Query().Get("next"), ""); next != "" {
		auth.SetFlowCookie(w, auth.NextCookie, next, h.cookieSecure)
	}

	http.Redirect(w, r, h.auth.LoginURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth flow.
//
// HTTP: GET /auth/callback?code=...&state=...[&next=...]
//
// Every outcome is a redirect. Failures land on the login page with a
// message that is safe to display; provider and storage detail is logged.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Single-use flow cookies are consumed whatever the outcome.
	expectedState := auth.TakeFlowCookie(w, r, auth.StateCookie, h.cookieSecure)
	next := auth.TakeFlowCookie(w, r, auth.NextCookie, h.cookieSecure)
	if qn := q.Get("next"); qn != "" {
		next = qn
	}

	if errParam := q.Get("error"); errParam != "" {
		desc := q.Get("error_description")
		h.logger.Warn("auth callback: provider returned an error",
			slog.String("error", errParam),
			slog.String("description", desc),
		)
		if desc == "" {
			desc = errParam
		}
		h.redirectToLogin(w, r, desc)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.logger.Warn("auth callback: no authorization code")
		h.redirectToLogin(w, r, msgNoCode)
		return
	}

	if expectedState == "" || q.Get("state") != expectedState {
		h.logger.Warn("auth callback: state mismatch",
			slog.Bool("cookie_present", expectedState != ""),
		)
		h.redirectToLogin(w, r, msgAuthFailed)
		return
	}

	result, err := h.auth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: session exchange failed", slog.String("error", err.Error()))
		h.redirectToLogin(w, r, msgAuthFailed)
		return
	}

	user, err := h.auth.VerifySession(r.Context(), result.Token)
	if err != nil {
		h.logger.Error("auth callback: session established but user not found", slog.String("error", err.Error()))
		auth.ClearSessionCookie(w, h.cookieSecure)
		h.redirectToLogin(w, r, msgVerifyFailed)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.auth.SessionTTL(), h.cookieSecure)

	target := auth.SafeRedirectPath(next, DefaultAfterLogin)
	h.logger.Info("auth callback: signed in",
		slog.String("user_id", user.ID),
		slog.String("redirect", target),
	)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// Sessions are stateless, so logging out only removes the cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieSecure)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/me (behind RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.VerifySession(r.Context(), auth.SessionToken(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":          user.ID,
		"email":       user.Email,
		"name":        user.Name,
		"avatarUrl":   user.AvatarURL,
		"displayName": user.DisplayName(),
	})
}

func (h *AuthHandler) redirectToLogin(w http.ResponseWriter, r *http.Request, message string) {
	v := url.Values{}
	v.Set("error", message)
	http.Redirect(w, r, loginPath+"?"+v.Encode(), http.StatusSeeOther)
}
