// Package model defines the data structures used throughout the application.
package model

import "time"

// Bookmark is a saved link owned by exactly one user.
//
// OwnerID is set from the session at insert time and never changes; it is not
// accepted from client input. CreatedAt is the only sort key (newest first).
// There is no UpdatedAt: bookmarks are created and deleted, never edited.
type Bookmark struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventType names a row-level change delivered by the change feed.
type EventType string

const (
	EventInsert EventType = "insert"
	EventDelete EventType = "delete"
)

// ChangeEvent is one insert or delete notification for a single owner's collection.
//
// For inserts Bookmark carries the new row. For deletes only ID is meaningful,
// matching what a change-data-capture feed knows about a removed row.
type ChangeEvent struct {
	Type     EventType `json:"type"`
	OwnerID  string    `json:"ownerId"`
	ID       string    `json:"id"`
	Bookmark *Bookmark `json:"bookmark,omitempty"`
}
