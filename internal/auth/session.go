package auth

import (
	"net/http"
	"time"
)

const (
	SessionCookie = "session"
	StateCookie   = "oauth_state"
	NextCookie    = "oauth_next"

	// flowCookieTTL covers the round trip to the provider's consent screen.
	flowCookieTTL = 10 * time.Minute
)

// SetSessionCookie stores the session token in an HttpOnly cookie so page
// scripts cannot read it. SameSite=Lax still sends it on the top-level
// redirect back from the provider.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	clearCookie(w, SessionCookie, "/", secure)
}

// SessionToken returns the raw session token, or "" when the cookie is absent.
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetFlowCookie stores a value needed only until the OAuth callback (state,
// post-login path). Scoped to /auth.
func SetFlowCookie(w http.ResponseWriter, name, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth",
		MaxAge:   int(flowCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TakeFlowCookie reads a flow cookie and expires it in the same response.
func TakeFlowCookie(w http.ResponseWriter, r *http.Request, name string, secure bool) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	clearCookie(w, name, "/auth", secure)
	return c.Value
}

func clearCookie(w http.ResponseWriter, name, path string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
