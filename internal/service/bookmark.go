// Package service contains the business rules of the bookmark manager.
//
//	Handler (HTTP) → Service (rules, owner scoping) → Repository (SQL)
//	                                                ↘ feed.Publisher (live sync)
//
// Services accept primitives and return apperror values; they know nothing
// about HTTP. The owner id always comes from the caller's verified session,
// never from request bodies.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/sakif/smart-bookmarks/internal/apperror"
	"github.com/sakif/smart-bookmarks/internal/auth"
	"github.com/sakif/smart-bookmarks/internal/feed"
	"github.com/sakif/smart-bookmarks/internal/model"
	"github.com/sakif/smart-bookmarks/internal/repository"
)

const (
	MaxTitleLength = 200
	MaxURLLength   = 2048
)

// BookmarkService handles adding, listing and deleting one owner's bookmarks.
type BookmarkService struct {
	repo      repository.BookmarkRepository
	publisher feed.Publisher
	tokens    *auth.TokenService
	logger    *slog.Logger
}

func NewBookmarkService(
	repo repository.BookmarkRepository,
	publisher feed.Publisher,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *BookmarkService {
	return &BookmarkService{
		repo:      repo,
		publisher: publisher,
		tokens:    tokens,
		logger:    logger,
	}
}

// Add validates and stores a bookmark for ownerID.
//
// Input is validated before the session is checked, and a validation failure
// never reaches the repository.
func (s *BookmarkService) Add(ctx context.Context, ownerID, title, rawURL string) (*model.Bookmark, error) {
	title, normalized, err := validateBookmark(title, rawURL)
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, apperror.Unauthorized()
	}

	bookmark := &model.Bookmark{
		Title:   title,
		URL:     normalized,
		OwnerID: ownerID,
	}
	if err := s.repo.Insert(ctx, bookmark); err != nil {
		return nil, fmt.Errorf("service/bookmark: adding bookmark for %s: %w", ownerID, err)
	}

	s.logger.Info("bookmark added",
		slog.String("bookmark_id", bookmark.ID),
		slog.String("owner_id", ownerID),
	)

	s.publish(ctx, feed.InsertEvent(*bookmark))
	return bookmark, nil
}

// Delete removes id if ownerID owns it.
//
// An id that does not exist or belongs to someone else deletes nothing and is
// still reported as success, so callers learn nothing about other users' rows.
func (s *BookmarkService) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return apperror.Unauthorized()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "Missing id")
	}

	removed, err := s.repo.DeleteOwned(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("service/bookmark: deleting %s: %w", id, err)
	}

	if removed == 0 {
		s.logger.Debug("delete matched no rows",
			slog.String("bookmark_id", id),
			slog.String("owner_id", ownerID),
		)
		return nil
	}

	s.logger.Info("bookmark deleted",
		slog.String("bookmark_id", id),
		slog.String("owner_id", ownerID),
	)
	s.publish(ctx, feed.DeleteEvent(ownerID, id))
	return nil
}

// List returns ownerID's bookmarks, newest first.
func (s *BookmarkService) List(ctx context.Context, ownerID string) ([]model.Bookmark, error) {
	if ownerID == "" {
		return nil, apperror.Unauthorized()
	}
	bookmarks, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/bookmark: listing for %s: %w", ownerID, err)
	}
	return bookmarks, nil
}

// RequestDelete is the first step of a delete: it returns a short-lived
// token that ConfirmDelete must present for the same owner and id.
func (s *BookmarkService) RequestDelete(_ context.Context, ownerID, id string) (string, error) {
	if ownerID == "" {
		return "", apperror.Unauthorized()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperror.ValidationFailed("id", "Missing id")
	}

	token, err := s.tokens.GenerateBound(ownerID, id)
	if err != nil {
		return "", fmt.Errorf("service/bookmark: issuing delete confirmation: %w", err)
	}
	return token, nil
}

// ConfirmDelete commits a delete requested with RequestDelete.
func (s *BookmarkService) ConfirmDelete(ctx context.Context, ownerID, id, token string) error {
	if ownerID == "" {
		return apperror.Unauthorized()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "Missing id")
	}
	if token == "" {
		return apperror.ValidationFailed("confirm", "Confirm the delete first")
	}
	if err := s.tokens.ValidateBound(token, ownerID, id); err != nil {
		s.logger.Debug("delete confirmation rejected",
			slog.String("bookmark_id", id),
			slog.String("error", err.Error()),
		)
		return apperror.Forbidden("Delete confirmation expired or invalid. Please try again.")
	}

	return s.Delete(ctx, ownerID, id)
}

// publish is fire and forget: the row is already committed, and a subscriber
// that misses the event catches up from the next snapshot.
func (s *BookmarkService) publish(ctx context.Context, event model.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("publishing change event",
			slog.String("event", string(event.Type)),
			slog.String("bookmark_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}

// validateBookmark trims both fields and checks the URL is an absolute
// http(s) URL with a host. It returns the trimmed title and URL.
func validateBookmark(title, rawURL string) (string, string, error) {
	title = strings.TrimSpace(title)
	rawURL = strings.TrimSpace(rawURL)

	if title == "" {
		return "", "", apperror.ValidationFailed("title", "Title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", apperror.ValidationFailed("title",
			fmt.Sprintf("Title must be %d characters or less", MaxTitleLength))
	}
	if rawURL == "" {
		return "", "", apperror.ValidationFailed("url", "URL is required")
	}
	if len(rawURL) > MaxURLLength {
		return "", "", apperror.ValidationFailed("url",
			fmt.Sprintf("URL must be %d characters or less", MaxURLLength))
	}

	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return "", "", apperror.ValidationFailed("url", "Invalid URL")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", apperror.ValidationFailed("url", "URL must start with http(s)")
	}
	if u.Host == "" {
		return "", "", apperror.ValidationFailed("url", "Invalid URL")
	}

	return title, rawURL, nil
}
