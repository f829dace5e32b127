package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/smart-bookmarks/internal/apperror"
	"github.com/sakif/smart-bookmarks/internal/auth"
	"github.com/sakif/smart-bookmarks/internal/feed"
	"github.com/sakif/smart-bookmarks/internal/livelist"
	"github.com/sakif/smart-bookmarks/internal/model"
)

const (
	// ConfirmHeader carries the token from POST /api/bookmarks/{id}/confirm.
	ConfirmHeader = "X-Confirm-Token"

	maxBodyBytes    = 16 << 10
	streamHeartbeat = 25 * time.Second
)

// Bookmarks is the part of service.BookmarkService the HTTP layer uses.
type Bookmarks interface {
	Add(ctx context.Context, ownerID, title, rawURL string) (*model.Bookmark, error)
	List(ctx context.Context, ownerID string) ([]model.Bookmark, error)
	RequestDelete(ctx context.Context, ownerID, id string) (string, error)
	ConfirmDelete(ctx context.Context, ownerID, id, token string) error
}

// BookmarkHandler serves /api/bookmarks. All routes sit behind RequireAuth,
// and the owner always comes from the session, never from the request.
type BookmarkHandler struct {
	bookmarks  Bookmarks
	subscriber feed.Subscriber
	logger     *slog.Logger
}

func NewBookmarkHandler(bookmarks Bookmarks, subscriber feed.Subscriber, logger *slog.Logger) *BookmarkHandler {
	return &BookmarkHandler{
		bookmarks:  bookmarks,
		subscriber: subscriber,
		logger:     logger,
	}
}

type addBookmarkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type confirmResponse struct {
	ConfirmToken string `json:"confirmToken"`
	ExpiresIn    int    `json:"expiresIn"` // seconds
}

// HandleList returns the caller's bookmarks, newest first.
//
// HTTP: GET /api/bookmarks
func (h *BookmarkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	bookmarks, err := h.bookmarks.List(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bookmarks": bookmarks})
}

// HandleAdd creates a bookmark from a JSON or form body.
//
// HTTP: POST /api/bookmarks  {"title": "...", "url": "https://..."}
func (h *BookmarkHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	req, err := decodeAddRequest(w, r)
	if err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("body", "Invalid request body"))
		return
	}

	bookmark, err := h.bookmarks.Add(r.Context(), userID, req.Title, req.URL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, ActionResult{OK: true, Bookmark: bookmark})
}

// HandleConfirm is the first step of a delete. Nothing is removed; the
// response carries the token the second step must present.
//
// HTTP: POST /api/bookmarks/{id}/confirm
func (h *BookmarkHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	token, err := h.bookmarks.RequestDelete(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, confirmResponse{
		ConfirmToken: token,
		ExpiresIn:    int(auth.ConfirmTTL.Seconds()),
	})
}

// HandleDelete commits a confirmed delete.
//
// HTTP: DELETE /api/bookmarks/{id}  (X-Confirm-Token: <token>)
//
// Deleting an id that is gone or owned by someone else reports success.
func (h *BookmarkHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	err := h.bookmarks.ConfirmDelete(r.Context(), userID, chi.URLParam(r, "id"), r.Header.Get(ConfirmHeader))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ActionResult{OK: true})
}

// HandleStream pushes the caller's live list as Server-Sent Events.
//
// HTTP: GET /api/bookmarks/stream
//
// Each "view" event carries a livelist.View as JSON: the state
// (loading, empty or ready) and the full list. A comment line is sent
// periodically so proxies keep the connection open.
func (h *BookmarkHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)

	snapshot, err := h.bookmarks.List(ctx, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// onChange only signals; the loop below always renders the latest View.
	changed := make(chan struct{}, 1)
	// The first frame renders snapshot; the list re-reads the repository once
	// the subscription is confirmed to pick up writes made in between.
	list := livelist.New(h.subscriber, h.logger, func(livelist.View) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, livelist.WithResync(h.bookmarks.List))
	if err := list.Attach(ctx, userID, snapshot); err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer list.Detach()

	rc := http.NewResponseController(w)
	// The server's WriteTimeout would otherwise cut the stream.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("stream: cannot clear write deadline", slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func() error {
		data, err := json.Marshal(list.View())
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: view\ndata: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			if err := send(); err != nil {
				h.logger.Debug("stream: client went away", slog.String("error", err.Error()))
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func decodeAddRequest(w http.ResponseWriter, r *http.Request) (addBookmarkRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return addBookmarkRequest{}, err
		}
		return addBookmarkRequest{Title: r.PostFormValue("title"), URL: r.PostFormValue("url")}, nil
	default:
		var req addBookmarkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return addBookmarkRequest{}, err
		}
		return req, nil
	}
}
