package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"

	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubUserInfoURL = "https://api.github.com/user"
)

// Identity is the provider profile normalised to the fields the app stores.
// Subject is the provider's stable account id, never the email.
type Identity struct {
	Provider  string
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// OAuthConfig selects a provider and carries the registered app credentials.
// Endpoint and UserInfoURL override the provider defaults; tests point them at
// an httptest server.
type OAuthConfig struct {
	Provider     string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	Endpoint    *oauth2.Endpoint
	UserInfoURL string
}

// OAuthProvider wraps golang.org/x/oauth2 for the Authorization Code flow.
//
// The code-for-token exchange happens server-to-server using the client
// secret, so the provider's access token never reaches the browser.
type OAuthProvider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
}

// NewOAuthProvider builds a provider client for "google" or "github".
func NewOAuthProvider(cfg OAuthConfig) (*OAuthProvider, error) {
	var (
		endpoint    oauth2.Endpoint
		scopes      []string
		userInfoURL string
	)

	switch cfg.Provider {
	case ProviderGoogle:
		endpoint = endpoints.Google
		scopes = []string{"openid", "email", "profile"}
		userInfoURL = googleUserInfoURL
	case ProviderGitHub:
		endpoint = endpoints.GitHub
		scopes = []string{"read:user", "user:email"}
		userInfoURL = githubUserInfoURL
	default:
		return nil, fmt.Errorf("auth: unsupported OAuth provider %q", cfg.Provider)
	}

	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	if cfg.UserInfoURL != "" {
		userInfoURL = cfg.UserInfoURL
	}

	return &OAuthProvider{
		name: cfg.Provider,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
	}, nil
}

// Name is the provider key stored on the user row.
func (p *OAuthProvider) Name() string {
	return p.name
}

// AuthURL returns the provider's consent URL. state is echoed back on the
// callback and checked against the state cookie.
func (p *OAuthProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the signed-in account's identity.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The returned client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling %s userinfo: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: %s userinfo returned status %d", p.name, resp.StatusCode)
	}

	switch p.name {
	case ProviderGitHub:
		return decodeGitHubUser(resp)
	default:
		return decodeGoogleUser(resp)
	}
}

// googleUser is the OpenID Connect userinfo response.
type googleUser struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func decodeGoogleUser(resp *http.Response) (*Identity, error) {
	var u googleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("auth: decoding google userinfo: %w", err)
	}
	if u.Sub == "" {
		return nil, fmt.Errorf("auth: google returned a profile without a subject")
	}
	return &Identity{
		Provider:  ProviderGoogle,
		Subject:   u.Sub,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.Picture,
	}, nil
}

// githubUser is the portion of GitHub's /user response we keep. The numeric id
// is stable; login can be renamed.
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func decodeGitHubUser(resp *http.Response) (*Identity, error) {
	var u githubUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}
	return &Identity{
		Provider:  ProviderGitHub,
		Subject:   strconv.FormatInt(u.ID, 10),
		Email:     u.Email,
		Name:      name,
		AvatarURL: u.AvatarURL,
	}, nil
}
