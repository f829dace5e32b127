// Package auth holds the identity pieces of the bookmark manager: the OAuth
// provider client, signed session and confirmation tokens, cookie helpers,
// request middleware and redirect sanitising.
//
// SESSION FLOW:
//  1. User visits /auth/login → redirected to the provider
//  2. The provider calls back /auth/callback with a code
//  3. Server exchanges the code for a profile, upserts the user in the DB
//  4. Server issues a session JWT and stores it in an HttpOnly cookie
//  5. RequireAuth reads the cookie on every API call and puts the user id in
//     the request context
//
// TOKEN KEYS:
// The configured secret is never used to sign directly. Each token purpose
// gets its own HMAC key derived with HKDF-SHA256, and the purpose is also
// written as the "aud" claim. A delete-confirmation token therefore fails
// validation as a session and vice versa.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	issuer = "smart-bookmarks"

	purposeSession = "session"
	purposeConfirm = "confirm-delete"

	// DefaultSessionTTL applies when the configured TTL is zero.
	DefaultSessionTTL = 7 * 24 * time.Hour

	// ConfirmTTL bounds the window between asking to delete and committing.
	ConfirmTTL = 2 * time.Minute
)

// ErrTokenExpired is returned by Validate and ValidateBound for tokens past
// their expiry.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and verifies HS256 tokens.
type TokenService struct {
	sessionKey []byte
	confirmKey []byte
	sessionTTL time.Duration
}

// NewTokenService derives the per-purpose keys from secret.
// The secret must be at least 16 characters.
func NewTokenService(secret string, sessionTTL time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}

	sessionKey, err := deriveKey(secret, purposeSession)
	if err != nil {
		return nil, err
	}
	confirmKey, err := deriveKey(secret, purposeConfirm)
	if err != nil {
		return nil, err
	}

	return &TokenService{
		sessionKey: sessionKey,
		confirmKey: confirmKey,
		sessionTTL: sessionTTL,
	}, nil
}

func deriveKey(secret, purpose string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(issuer), []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("auth: deriving %s key: %w", purpose, err)
	}
	return key, nil
}

// SessionTTL is the lifetime of tokens issued by Generate. The session cookie
// uses the same value as its Max-Age.
func (s *TokenService) SessionTTL() time.Duration {
	return s.sessionTTL
}

type claims struct {
	// Object is the resource a confirmation token is bound to. Empty for sessions.
	Object string `json:"obj,omitempty"`
	jwt.RegisteredClaims
}

// Generate issues a session token for userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.sessionTTL)
}

// GenerateWithDuration issues a session token with a custom lifetime.
// Tests use negative durations to produce expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	return s.sign(s.sessionKey, purposeSession, userID, "", d)
}

// Validate verifies a session token and returns the user id in its "sub" claim.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	c, err := s.parse(s.sessionKey, purposeSession, tokenStr)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// GenerateBound issues a short-lived confirmation token tying subject (the
// owner) to object (the bookmark id).
func (s *TokenService) GenerateBound(subject, object string) (string, error) {
	if object == "" {
		return "", errors.New("auth: bound token needs an object")
	}
	return s.sign(s.confirmKey, purposeConfirm, subject, object, ConfirmTTL)
}

// ValidateBound succeeds only for an unexpired confirmation token issued for
// exactly this subject and object.
func (s *TokenService) ValidateBound(tokenStr, subject, object string) error {
	c, err := s.parse(s.confirmKey, purposeConfirm, tokenStr)
	if err != nil {
		return err
	}
	if c.Subject != subject || c.Object != object {
		return errors.New("auth: token bound to a different resource")
	}
	return nil
}

func (s *TokenService) sign(key []byte, audience, subject, object string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Object: object,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// parse pins the algorithm to HS256 so a token claiming "none" or an
// asymmetric method is rejected before the key is consulted.
func (s *TokenService) parse(key []byte, audience, tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}

	return c, nil
}
