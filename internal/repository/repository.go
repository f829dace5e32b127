// Package repository declares the storage interfaces the service layer depends on.
//
// Every bookmark operation takes the owner id explicitly; implementations must
// scope reads and writes by it so one user can never see or remove another
// user's rows.
package repository

import (
	"context"

	"github.com/sakif/smart-bookmarks/internal/model"
)

type BookmarkRepository interface {
	// Insert assigns ID and CreatedAt and stores the bookmark.
	Insert(ctx context.Context, bookmark *model.Bookmark) error
	// DeleteOwned removes the row matching both id and ownerID and reports how
	// many rows were removed (0 or 1).
	DeleteOwned(ctx context.Context, id, ownerID string) (int64, error)
	// ListByOwner returns the owner's bookmarks, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Bookmark, error)
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}
