package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sakif/smart-bookmarks/internal/apperror"
	"github.com/sakif/smart-bookmarks/internal/auth"
	"github.com/sakif/smart-bookmarks/internal/model"
)

// Hand-written fakes for the service dependencies. They keep data in memory
// and count calls so tests can assert that validation failures never reach
// storage.

type fakeBookmarkRepo struct {
	mu          sync.Mutex
	rows        map[string]model.Bookmark
	nextID      int
	insertCalls int
	deleteCalls int
	failWith    error
}

func newFakeBookmarkRepo() *fakeBookmarkRepo {
	return &fakeBookmarkRepo{rows: make(map[string]model.Bookmark)}
}

func (f *fakeBookmarkRepo) Insert(_ context.Context, b *model.Bookmark) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	b.ID = fmt.Sprintf("bm-%d", f.nextID)
	b.CreatedAt = time.Now()
	f.rows[b.ID] = *b
	return nil
}

func (f *fakeBookmarkRepo) DeleteOwned(_ context.Context, id, ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.failWith != nil {
		return 0, f.failWith
	}
	b, ok := f.rows[id]
	if !ok || b.OwnerID != ownerID {
		return 0, nil
	}
	delete(f.rows, id)
	return 1, nil
}

func (f *fakeBookmarkRepo) ListByOwner(_ context.Context, ownerID string) ([]model.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []model.Bookmark{}
	for _, b := range f.rows {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookmarkRepo) countFor(ownerID string) int {
	rows, _ := f.ListByOwner(context.Background(), ownerID)
	return len(rows)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.ChangeEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e model.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) published() []model.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ChangeEvent(nil), f.events...)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // keyed by provider/subject
	byID  map[string]*model.User
	err   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), byID: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Upsert(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	key := u.Provider + "/" + u.Subject
	if existing, ok := f.users[key]; ok {
		u.ID = existing.ID
		u.CreatedAt = existing.CreatedAt
	} else {
		u.ID = fmt.Sprintf("user-%d", len(f.users)+1)
		u.CreatedAt = time.Now()
	}
	u.UpdatedAt = time.Now()
	stored := *u
	f.users[key] = &stored
	f.byID[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

type fakeProvider struct {
	identity *auth.Identity
	err      error
	calls    int
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*auth.Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

var errDatabaseDown = errors.New("database is locked")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}
