package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-at-least-16-chars!!"

// newTestTokenService creates a TokenService with a fixed secret so tests are
// deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", 0)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
	if ts.SessionTTL() != DefaultSessionTTL {
		t.Errorf("SessionTTL() = %v, want %v", ts.SessionTTL(), DefaultSessionTTL)
	}
}

// =========================================================================
// SESSION TOKEN TESTS
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := strings.Count(token, "."); got != 2 {
		t.Errorf("Generate() token doesn't look like a JWT (expected 2 dots, got %d)", got)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-abc-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "user-abc-123" {
		t.Errorf("Validate() userID = %q, want %q", got, "user-abc-123")
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("user-123", -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	_, err = ts.Validate(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Validate() error = %v, want ErrTokenExpired", err)
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate("user-123")
	tampered := token[:len(token)-3] + "xxx"

	if _, err := ts.Validate(tampered); err == nil {
		t.Fatal("Validate() should return an error for a tampered token")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!", time.Hour)
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)

	token, _ := ts1.Generate("user-123")

	if _, err := ts2.Validate(token); err == nil {
		t.Fatal("Validate() should fail when using a different secret")
	}
}

func TestValidate_Garbage(t *testing.T) {
	ts := newTestTokenService(t)

	for _, in := range []string{"", "not.a.jwt.token", "abc"} {
		if _, err := ts.Validate(in); err == nil {
			t.Errorf("Validate(%q) should return an error", in)
		}
	}
}

// =========================================================================
// BOUND (CONFIRMATION) TOKEN TESTS
// =========================================================================

func TestValidateBound_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateBound("owner-1", "bookmark-9")
	if err != nil {
		t.Fatalf("GenerateBound() error = %v", err)
	}
	if err := ts.ValidateBound(token, "owner-1", "bookmark-9"); err != nil {
		t.Fatalf("ValidateBound() error = %v", err)
	}
}

func TestValidateBound_WrongObject(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.GenerateBound("owner-1", "bookmark-9")

	if err := ts.ValidateBound(token, "owner-1", "bookmark-10"); err == nil {
		t.Error("ValidateBound() accepted a token for another bookmark")
	}
	if err := ts.ValidateBound(token, "owner-2", "bookmark-9"); err == nil {
		t.Error("ValidateBound() accepted a token for another owner")
	}
}

func TestGenerateBound_RequiresObject(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.GenerateBound("owner-1", ""); err == nil {
		t.Fatal("GenerateBound() should reject an empty object")
	}
}

// A confirmation token must never work as a session and the reverse.
func TestTokens_PurposesAreNotInterchangeable(t *testing.T) {
	ts := newTestTokenService(t)

	confirm, _ := ts.GenerateBound("owner-1", "bookmark-9")
	if _, err := ts.Validate(confirm); err == nil {
		t.Error("Validate() accepted a confirmation token as a session")
	}

	session, _ := ts.Generate("owner-1")
	if err := ts.ValidateBound(session, "owner-1", ""); err == nil {
		t.Error("ValidateBound() accepted a session token")
	}
}
