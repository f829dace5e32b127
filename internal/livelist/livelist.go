// Package livelist keeps one owner's bookmark list in sync with the change feed.
//
// A List is seeded from a newest-first repository snapshot and then patched by
// insert and delete events. Reconciliation is keyed on bookmark id: an insert
// for an id already present replaces that entry in place, so a redelivered
// event never produces a duplicate row.
package livelist

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/sakif/smart-bookmarks/internal/feed"
	"github.com/sakif/smart-bookmarks/internal/model"
)

// State is what the UI should render.
type State string

const (
	// StateLoading: not attached, or the feed has not confirmed the subscription.
	StateLoading State = "loading"
	// StateEmpty: attached and confirmed, no bookmarks.
	StateEmpty State = "empty"
	StateReady State = "ready"
)

// View is an immutable snapshot of a List.
type View struct {
	State     State            `json:"state"`
	Bookmarks []model.Bookmark `json:"bookmarks"`
}

// List is safe for concurrent use. OnChange, if set, is called with the new
// View after every change, outside the list's lock, from whichever goroutine
// made the change.
type List struct {
	subscriber feed.Subscriber
	logger     *slog.Logger
	onChange   func(View)
	resync     Loader

	mu         sync.Mutex
	generation uint64
	ownerID    string
	attached   bool
	confirmed  bool
	items      []model.Bookmark
	sub        feed.Subscription
	cancel     context.CancelFunc
}

// Loader reads the owner's current bookmarks, newest first.
type Loader func(ctx context.Context, ownerID string) ([]model.Bookmark, error)

// Option configures a List.
type Option func(*List)

// WithResync makes the list reload its contents once the feed confirms a
// subscription, before any event is applied. Rows committed between the
// caller's snapshot and the confirmation are then not lost. Events queued
// meanwhile are applied on top; inserts and deletes are idempotent by id.
func WithResync(load Loader) Option {
	return func(l *List) { l.resync = load }
}

// New creates a detached List. onChange may be nil.
func New(subscriber feed.Subscriber, logger *slog.Logger, onChange func(View), opts ...Option) *List {
	l := &List{
		subscriber: subscriber,
		logger:     logger,
		onChange:   onChange,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Attach switches the list to ownerID.
//
// Any previous subscription is released and all local state is discarded
// before snapshot is applied, so records of a previous owner never show up
// under the new one. The list stays in StateLoading until the feed confirms
// the new subscription.
func (l *List) Attach(ctx context.Context, ownerID string, snapshot []model.Bookmark) error {
	if ownerID == "" {
		return fmt.Errorf("livelist: attach requires an owner")
	}

	l.mu.Lock()
	l.teardownLocked()
	l.generation++
	gen := l.generation
	l.ownerID = ownerID
	l.attached = true
	l.items = ownedBy(snapshot, ownerID)
	view := l.viewLocked()
	l.mu.Unlock()
	l.notify(view)

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := l.subscriber.Subscribe(subCtx, ownerID)
	if err != nil {
		cancel()
		l.mu.Lock()
		if gen == l.generation {
			l.attached = false
		}
		l.mu.Unlock()
		return fmt.Errorf("livelist: subscribing for %s: %w", ownerID, err)
	}

	l.mu.Lock()
	if gen != l.generation {
		// Superseded by another Attach or a Detach while subscribing.
		l.mu.Unlock()
		cancel()
		sub.Close()
		return nil
	}
	l.sub = sub
	l.cancel = cancel
	l.mu.Unlock()

	go l.consume(subCtx, gen, ownerID, sub)
	return nil
}

// Detach releases the subscription. No event applies after it returns.
func (l *List) Detach() {
	l.mu.Lock()
	l.teardownLocked()
	l.generation++
	l.attached = false
	l.ownerID = ""
	l.items = nil
	view := l.viewLocked()
	l.mu.Unlock()
	l.notify(view)
}

// Apply reconciles one event against the current owner's list. Events for
// another owner and malformed events are ignored.
func (l *List) Apply(event model.ChangeEvent) {
	l.mu.Lock()
	gen := l.generation
	l.mu.Unlock()
	l.applyGeneration(gen, event)
}

// View returns a copy of the current state.
func (l *List) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewLocked()
}

// consume waits for the feed to confirm the subscription before applying any
// event, so a resync never overwrites an event that was already applied.
func (l *List) consume(ctx context.Context, gen uint64, ownerID string, sub feed.Subscription) {
	select {
	case <-sub.Ready():
	case <-ctx.Done():
		return
	}

	snapshot, reseed := l.reload(ctx, ownerID)
	l.confirm(gen, snapshot, reseed)

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			l.applyGeneration(gen, event)
		}
	}
}

func (l *List) reload(ctx context.Context, ownerID string) ([]model.Bookmark, bool) {
	if l.resync == nil {
		return nil, false
	}
	snapshot, err := l.resync(ctx, ownerID)
	if err != nil {
		l.logger.Warn("livelist: resync failed, keeping snapshot",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return snapshot, true
}

func (l *List) confirm(gen uint64, snapshot []model.Bookmark, reseed bool) {
	l.mu.Lock()
	if gen != l.generation || !l.attached {
		l.mu.Unlock()
		return
	}
	if reseed {
		l.items = ownedBy(snapshot, l.ownerID)
	}
	l.confirmed = true
	view := l.viewLocked()
	l.mu.Unlock()
	l.notify(view)
}

func (l *List) applyGeneration(gen uint64, event model.ChangeEvent) {
	if err := feed.Validate(event); err != nil {
		l.logger.Warn("ignoring invalid change event", slog.String("error", err.Error()))
		return
	}

	l.mu.Lock()
	if gen != l.generation || !l.attached || event.OwnerID != l.ownerID {
		l.mu.Unlock()
		return
	}

	idx := slices.IndexFunc(l.items, func(b model.Bookmark) bool { return b.ID == event.ID })
	switch event.Type {
	case model.EventInsert:
		if idx >= 0 {
			l.items[idx] = *event.Bookmark
		} else {
			// Events arrive in creation order, so prepending keeps newest first.
			l.items = slices.Insert(l.items, 0, *event.Bookmark)
		}
	case model.EventDelete:
		if idx < 0 {
			l.mu.Unlock()
			return
		}
		l.items = slices.Delete(l.items, idx, idx+1)
	}
	view := l.viewLocked()
	l.mu.Unlock()
	l.notify(view)
}

func ownedBy(snapshot []model.Bookmark, ownerID string) []model.Bookmark {
	items := make([]model.Bookmark, 0, len(snapshot))
	for _, b := range snapshot {
		if b.OwnerID == ownerID {
			items = append(items, b)
		}
	}
	return items
}

func (l *List) teardownLocked() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.sub != nil {
		l.sub.Close()
		l.sub = nil
	}
	l.confirmed = false
}

func (l *List) viewLocked() View {
	v := View{State: StateLoading, Bookmarks: slices.Clone(l.items)}
	if v.Bookmarks == nil {
		v.Bookmarks = []model.Bookmark{}
	}
	if l.attached && l.confirmed {
		if len(l.items) == 0 {
			v.State = StateEmpty
		} else {
			v.State = StateReady
		}
	}
	return v
}

func (l *List) notify(view View) {
	if l.onChange != nil {
		l.onChange(view)
	}
}
