package handler_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/smart-bookmarks/internal/apperror"
	"github.com/sakif/smart-bookmarks/internal/model"
	"github.com/sakif/smart-bookmarks/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAuthenticator records exchange calls so tests can assert none happened.
type fakeAuthenticator struct {
	mu            sync.Mutex
	exchangeCalls []string
	exchangeErr   error
	verifyErr     error
	user          *model.User
}

func newFakeAuthenticator() *fakeAuthenticator {
	return &fakeAuthenticator{
		user: &model.User{ID: "user-1", Email: "ada@example.com", Name: "Ada"},
	}
}

func (f *fakeAuthenticator) LoginURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (f *fakeAuthenticator) Exchange(_ context.Context, code string) (*service.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeCalls = append(f.exchangeCalls, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &service.AuthResult{User: f.user, Token: "session-token"}, nil
}

func (f *fakeAuthenticator) VerifySession(_ context.Context, token string) (*model.User, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if token == "" {
		return nil, apperror.Unauthorized()
	}
	return f.user, nil
}

func (f *fakeAuthenticator) SessionTTL() time.Duration { return time.Hour }

func (f *fakeAuthenticator) exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.exchangeCalls)
}

// fakeBookmarks is an owner-scoped in-memory store that mirrors the
// service's observable behaviour.
type fakeBookmarks struct {
	mu      sync.Mutex
	rows    []model.Bookmark
	nextID  int
	listErr error
	addErr  error
}

func (f *fakeBookmarks) Add(_ context.Context, ownerID, title, rawURL string) (*model.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return nil, f.addErr
	}
	if title == "" {
		return nil, apperror.ValidationFailed("title", "Title is required")
	}
	f.nextID++
	b := model.Bookmark{ID: fmt.Sprintf("bm-%d", f.nextID), Title: title, URL: rawURL, OwnerID: ownerID, CreatedAt: time.Now()}
	f.rows = append([]model.Bookmark{b}, f.rows...)
	return &b, nil
}

func (f *fakeBookmarks) List(_ context.Context, ownerID string) ([]model.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Bookmark{}
	for _, b := range f.rows {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookmarks) RequestDelete(_ context.Context, ownerID, id string) (string, error) {
	return "confirm:" + ownerID + ":" + id, nil
}

func (f *fakeBookmarks) ConfirmDelete(_ context.Context, ownerID, id, token string) error {
	if token != "confirm:"+ownerID+":"+id {
		return apperror.Forbidden("Delete confirmation expired or invalid. Please try again.")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.rows {
		if b.ID == id && b.OwnerID == ownerID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			break
		}
	}
	return nil
}

var errUpstream = errors.New("sqlite: database is locked")
