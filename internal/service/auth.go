package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/smart-bookmarks/internal/apperror"
	"github.com/sakif/smart-bookmarks/internal/auth"
	"github.com/sakif/smart-bookmarks/internal/model"
	"github.com/sakif/smart-bookmarks/internal/repository"
)

// IdentityProvider is the OAuth side of sign-in. *auth.OAuthProvider
// implements it; tests substitute a fake.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Identity, error)
}

// AuthService turns a provider callback into a local session.
type AuthService struct {
	provider IdentityProvider
	users    repository.UserRepository
	tokens   *auth.TokenService
	logger   *slog.Logger
}

func NewAuthService(
	provider IdentityProvider,
	users repository.UserRepository,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		provider: provider,
		users:    users,
		tokens:   tokens,
		logger:   logger,
	}
}

// AuthResult bundles the user and the session token so the handler can set
// the cookie and redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginURL returns the provider consent URL carrying state.
func (s *AuthService) LoginURL(state string) string {
	return s.provider.AuthURL(state)
}

// Exchange trades an authorization code for a session: provider exchange,
// user upsert keyed on (provider, subject), then a signed session token.
func (s *AuthService) Exchange(ctx context.Context, code string) (*AuthResult, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "No authorization code received")
	}

	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("service/auth: exchanging code: %w", err)
	}

	user := &model.User{
		Provider:  identity.Provider,
		Subject:   identity.Subject,
		Email:     identity.Email,
		Name:      identity.Name,
		AvatarURL: identity.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user %s/%s: %w", identity.Provider, identity.Subject, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("user_id", user.ID),
		slog.String("provider", user.Provider),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// VerifySession resolves a session token to its user. Every failure is
// reported as apperror.ErrUnauthorized so callers cannot tell an expired
// session from a missing one.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized()
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized()
		}
		return nil, fmt.Errorf("service/auth: loading user %s: %w", userID, err)
	}
	return user, nil
}

// SessionTTL is how long issued sessions stay valid.
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.SessionTTL()
}
