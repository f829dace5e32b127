// Package feed carries bookmark change events from writers to live subscribers.
//
// A Broker fans events out per owner: a subscriber for owner A never receives
// owner B's events. Delivery is best effort and has no replay, so a subscriber
// that attaches late must seed itself from a repository snapshot first.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sakif/smart-bookmarks/internal/model"
)

// DefaultBuffer is the per-subscription event buffer when none is configured.
const DefaultBuffer = 64

// Publisher is the write side used by the service layer.
type Publisher interface {
	Publish(ctx context.Context, event model.ChangeEvent) error
}

// Subscriber is the read side used by live lists.
type Subscriber interface {
	Subscribe(ctx context.Context, ownerID string) (Subscription, error)
}

// Broker is both sides of the feed.
type Broker interface {
	Publisher
	Subscriber
}

// Subscription is one live attachment to an owner's change stream.
//
// Ready is closed once the transport has confirmed the attachment; events
// published before that may be missed. Events is closed when the
// subscription ends, either through Close or because ctx was cancelled.
type Subscription interface {
	Events() <-chan model.ChangeEvent
	Ready() <-chan struct{}
	Close() error
}

var ErrInvalidEvent = errors.New("feed: invalid event")

// Validate checks that an event is well formed before it is published or applied.
func Validate(event model.ChangeEvent) error {
	if event.OwnerID == "" || event.ID == "" {
		return fmt.Errorf("%w: owner and id are required", ErrInvalidEvent)
	}
	switch event.Type {
	case model.EventInsert:
		if event.Bookmark == nil || event.Bookmark.ID != event.ID {
			return fmt.Errorf("%w: insert must carry the bookmark row", ErrInvalidEvent)
		}
	case model.EventDelete:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, event.Type)
	}
	return nil
}

// Encode serialises an event for transports that carry bytes.
func Encode(event model.ChangeEvent) ([]byte, error) {
	if err := Validate(event); err != nil {
		return nil, err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("feed: encoding event: %w", err)
	}
	return data, nil
}

// Decode parses and validates an encoded event.
func Decode(data []byte) (model.ChangeEvent, error) {
	var event model.ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("feed: decoding event: %w", err)
	}
	if err := Validate(event); err != nil {
		return model.ChangeEvent{}, err
	}
	return event, nil
}

// InsertEvent builds the event announcing a newly stored bookmark.
func InsertEvent(b model.Bookmark) model.ChangeEvent {
	return model.ChangeEvent{Type: model.EventInsert, OwnerID: b.OwnerID, ID: b.ID, Bookmark: &b}
}

// DeleteEvent builds the event announcing a removed bookmark.
func DeleteEvent(ownerID, id string) model.ChangeEvent {
	return model.ChangeEvent{Type: model.EventDelete, OwnerID: ownerID, ID: id}
}
