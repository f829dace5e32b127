package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/smart-bookmarks/internal/apperror"
	"github.com/sakif/smart-bookmarks/internal/model"
	"github.com/sakif/smart-bookmarks/internal/repository"
)

var _ repository.BookmarkRepository = (*DB)(nil)

// Insert stores a new bookmark, filling in ID and CreatedAt.
//
// xid ids are 20 URL-safe characters and sort by creation time, which makes
// them a stable tie-break when two rows share a timestamp.
func (db *DB) Insert(ctx context.Context, bookmark *model.Bookmark) error {
	bookmark.ID = xid.New().String()
	bookmark.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO bookmarks (id, title, url, owner_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		bookmark.ID,
		bookmark.Title,
		bookmark.URL,
		bookmark.OwnerID,
		bookmark.CreatedAt,
	)
	if err != nil {
		// The owner row is gone: the session outlived its user.
		if isForeignKeyViolation(err) {
			return apperror.Unauthorized()
		}
		return fmt.Errorf("sqlite: inserting bookmark: %w", err)
	}

	return nil
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *sqlitedrv.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// DeleteOwned removes a bookmark only when both id and owner match.
//
// A row owned by someone else simply isn't matched: the caller gets 0 rows
// affected and no hint about whether the id exists.
func (db *DB) DeleteOwned(ctx context.Context, id, ownerID string) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting bookmark %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// ListByOwner returns every bookmark for ownerID, newest first.
func (db *DB) ListByOwner(ctx context.Context, ownerID string) ([]model.Bookmark, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, url, owner_id, created_at
		 FROM bookmarks
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := make([]model.Bookmark, 0)
	for rows.Next() {
		var b model.Bookmark
		if err := rows.Scan(&b.ID, &b.Title, &b.URL, &b.OwnerID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning bookmark row: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating bookmarks: %w", err)
	}

	return bookmarks, nil
}
