package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/smart-bookmarks/internal/model"
)

// MemoryBroker fans events out inside a single process.
//
// Publish never blocks: a subscriber whose buffer is full loses the event and
// a warning is logged. It can recover by re-attaching with a fresh snapshot.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	buffer int
	logger *slog.Logger
}

var _ Broker = (*MemoryBroker)(nil)

// NewMemoryBroker creates a broker whose subscriptions buffer up to buffer
// events. A non-positive buffer uses DefaultBuffer.
func NewMemoryBroker(buffer int, logger *slog.Logger) *MemoryBroker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &MemoryBroker{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Publish delivers event to every current subscriber of its owner.
func (b *MemoryBroker) Publish(ctx context.Context, event model.ChangeEvent) error {
	if err := Validate(event); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[event.OwnerID] {
		select {
		case sub.events <- event:
		default:
			b.logger.Warn("dropping change event for slow subscriber",
				slog.String("owner_id", event.OwnerID),
				slog.String("event", string(event.Type)),
				slog.String("bookmark_id", event.ID),
			)
		}
	}
	return nil
}

// Subscribe attaches to ownerID's events. The subscription is ready at once
// and ends when ctx is cancelled or Close is called.
func (b *MemoryBroker) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	sub := &memorySubscription{
		broker:  b,
		ownerID: ownerID,
		events:  make(chan model.ChangeEvent, b.buffer),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	close(sub.ready)

	b.mu.Lock()
	if b.subs[ownerID] == nil {
		b.subs[ownerID] = make(map[*memorySubscription]struct{})
	}
	b.subs[ownerID][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Subscribers reports how many live subscriptions ownerID has.
func (b *MemoryBroker) Subscribers(ownerID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[ownerID])
}

func (b *MemoryBroker) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	owned := b.subs[sub.ownerID]
	delete(owned, sub)
	if len(owned) == 0 {
		delete(b.subs, sub.ownerID)
	}
	// Closed under the write lock so no Publish can be sending concurrently.
	close(sub.events)
}

type memorySubscription struct {
	broker  *MemoryBroker
	ownerID string
	events  chan model.ChangeEvent
	ready   chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (s *memorySubscription) Events() <-chan model.ChangeEvent { return s.events }
func (s *memorySubscription) Ready() <-chan struct{}           { return s.ready }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.broker.remove(s)
	})
	return nil
}
