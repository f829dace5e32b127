package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/smart-bookmarks/internal/model"
)

const channelPrefix = "bookmarks:owner:"

// ChannelName is the pub/sub channel carrying ownerID's events.
func ChannelName(ownerID string) string {
	return channelPrefix + ownerID
}

// RedisBroker publishes events over Redis pub/sub so every server instance
// sharing the Redis sees every owner's changes.
type RedisBroker struct {
	client *redis.Client
	buffer int
	logger *slog.Logger
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(client *redis.Client, buffer int, logger *slog.Logger) *RedisBroker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &RedisBroker{client: client, buffer: buffer, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, event model.ChangeEvent) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, ChannelName(event.OwnerID), data).Err(); err != nil {
		return fmt.Errorf("feed: publishing to redis: %w", err)
	}
	return nil
}

// Subscribe opens a Redis subscription for ownerID and waits, bounded by
// ctx, for Redis to acknowledge the SUBSCRIBE. A subscription that cannot be
// confirmed is an error, so Ready is already closed on the one returned.
func (b *RedisBroker) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, ChannelName(ownerID))

	// The first reply on a fresh PubSub is the subscription confirmation.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("feed: subscribing to redis for %s: %w", ownerID, err)
	}

	sub := &redisSubscription{
		ps:      ps,
		ownerID: ownerID,
		events:  make(chan model.ChangeEvent, b.buffer),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		logger:  b.logger,
	}
	close(sub.ready)
	go sub.run(ctx)

	return sub, nil
}

// Close releases the underlying client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	ps      *redis.PubSub
	ownerID string
	events  chan model.ChangeEvent
	ready   chan struct{}
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

func (s *redisSubscription) Events() <-chan model.ChangeEvent { return s.events }
func (s *redisSubscription) Ready() <-chan struct{}           { return s.ready }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *redisSubscription) run(ctx context.Context) {
	defer close(s.events)

	messages := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			event, err := Decode([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn("discarding malformed change event",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			if event.OwnerID != s.ownerID {
				continue
			}
			select {
			case s.events <- event:
			default:
				s.logger.Warn("dropping change event for slow subscriber",
					slog.String("owner_id", s.ownerID),
					slog.String("bookmark_id", event.ID),
				)
			}
		}
	}
}
