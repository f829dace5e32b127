package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/smart-bookmarks/internal/apperror"
	"github.com/sakif/smart-bookmarks/internal/model"
)

// newTestDB returns a fresh in-memory database that is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser upserts a google account with the given subject.
func createTestUser(t *testing.T, db *DB, subject string) *model.User {
	t.Helper()
	user := &model.User{
		Provider:  "google",
		Subject:   subject,
		Email:     subject + "@example.com",
		Name:      "User " + subject,
		AvatarURL: "https://example.com/" + subject + ".png",
	}
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestUserUpsert_NewUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Provider: "github",
		Subject:  "4242",
		Email:    "new@example.com",
		Name:     "New User",
	}

	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() (new) error = %v", err)
	}

	if user.ID == "" {
		t.Error("Upsert() did not set user.ID for new user")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Upsert() did not set user.CreatedAt for new user")
	}
	if user.UpdatedAt.IsZero() {
		t.Error("Upsert() did not set user.UpdatedAt for new user")
	}

	found, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() after Upsert: %v", err)
	}
	if found.Subject != "4242" || found.Provider != "github" {
		t.Errorf("identity = %s/%s, want github/4242", found.Provider, found.Subject)
	}
}

func TestUserUpsert_ExistingUser_UpdatesProfile(t *testing.T) {
	db := newTestDB(t)

	first := &model.User{Provider: "google", Subject: "sub-1", Email: "old@example.com", Name: "Old"}
	if err := db.Upsert(context.Background(), first); err != nil {
		t.Fatalf("Upsert() first login: %v", err)
	}
	originalID := first.ID
	originalCreatedAt := first.CreatedAt

	second := &model.User{Provider: "google", Subject: "sub-1", Email: "new@example.com", Name: "New"}
	if err := db.Upsert(context.Background(), second); err != nil {
		t.Fatalf("Upsert() second login: %v", err)
	}

	// Same account, same internal ID: bookmarks stay attached.
	if second.ID != originalID {
		t.Errorf("Upsert() changed user ID: got %q, want %q", second.ID, originalID)
	}
	if !second.CreatedAt.Equal(originalCreatedAt) {
		t.Errorf("Upsert() changed CreatedAt: got %v, want %v", second.CreatedAt, originalCreatedAt)
	}

	found, err := db.GetUserByID(context.Background(), originalID)
	if err != nil {
		t.Fatalf("GetUserByID() after second Upsert: %v", err)
	}
	if found.Email != "new@example.com" {
		t.Errorf("Email after upsert = %q, want %q", found.Email, "new@example.com")
	}
	if found.Name != "New" {
		t.Errorf("Name after upsert = %q, want %q", found.Name, "New")
	}
}

func TestUserUpsert_SameSubjectDifferentProvider(t *testing.T) {
	db := newTestDB(t)

	g := &model.User{Provider: "google", Subject: "123"}
	h := &model.User{Provider: "github", Subject: "123"}
	if err := db.Upsert(context.Background(), g); err != nil {
		t.Fatalf("Upsert(google): %v", err)
	}
	if err := db.Upsert(context.Background(), h); err != nil {
		t.Fatalf("Upsert(github): %v", err)
	}

	if g.ID == h.ID {
		t.Error("accounts from different providers must not share an ID")
	}
}

// =========================================================================
// GET BY ID TESTS
// =========================================================================

func TestUserGetByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "lookup")

	found, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.Email != "lookup@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "lookup@example.com")
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nonexistent-id")
	if err == nil {
		t.Fatal("GetUserByID() should have returned an error for nonexistent ID")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}
