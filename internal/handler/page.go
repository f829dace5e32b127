// Package handler contains the HTTP handlers: the OAuth flow, the bookmark
// API with its live stream, and the server-rendered pages.
//
// Handlers parse requests and write responses; rules live in the service
// package. Each handler takes its collaborators as small interfaces so tests
// can substitute fakes.
package handler

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/smart-bookmarks/internal/auth"
	"github.com/sakif/smart-bookmarks/internal/model"
)

// PageHandler renders the HTML pages. Templates are parsed once at startup.
type PageHandler struct {
	pages     map[string]*template.Template
	auth      Authenticator
	bookmarks Bookmarks
	provider  string
	logger    *slog.Logger
}

type pageData struct {
	Title     string
	User      *model.User
	Error     string
	Next      string
	Provider  string
	Bookmarks []model.Bookmark
}

// NewPageHandler parses base.html together with each page so every page can
// define its own "content" block.
func NewPageHandler(templates fs.FS, authn Authenticator, bookmarks Bookmarks, provider string, logger *slog.Logger) (*PageHandler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"home", "login", "bookmarks"} {
		tmpl, err := template.ParseFS(templates, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &PageHandler{
		pages:     pages,
		auth:      authn,
		bookmarks: bookmarks,
		provider:  provider,
		logger:    logger,
	}, nil
}

// HandleHome serves the landing page, or sends signed-in users to their list.
//
// HTTP: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, DefaultAfterLogin, http.StatusSeeOther)
		return
	}
	h.render(w, "home", pageData{Title: "Smart Bookmarks"})
}

// HandleLogin shows the sign-in button and any error passed in ?error=.
//
// HTTP: GET /login?error=...&next=...
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if _, ok := auth.UserIDFromContext(r.Context()); ok && q.Get("error") == "" {
		http.Redirect(w, r, auth.SafeRedirectPath(q.Get("next"), DefaultAfterLogin), http.StatusSeeOther)
		return
	}

	h.render(w, "login", pageData{
		Title:    "Sign in · Smart Bookmarks",
		Error:    q.Get("error"),
		Next:     auth.SafeRedirectPath(q.Get("next"), DefaultAfterLogin),
		Provider: providerLabel(h.provider),
	})
}

// HandleBookmarks renders the signed-in user's list server side; the page
// script then keeps it live through the stream endpoint.
//
// HTTP: GET /bookmarks
func (h *PageHandler) HandleBookmarks(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.VerifySession(r.Context(), auth.SessionToken(r))
	if err != nil {
		http.Redirect(w, r, "/login?next=/bookmarks", http.StatusSeeOther)
		return
	}

	bookmarks, err := h.bookmarks.List(r.Context(), user.ID)
	data := pageData{Title: "Bookmarks · Smart Bookmarks", User: user, Bookmarks: bookmarks}
	if err != nil {
		h.logger.Error("loading bookmarks page", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		data.Error = genericErrorMessage
		data.Bookmarks = nil
	}

	h.render(w, "bookmarks", data)
}

func (h *PageHandler) render(w http.ResponseWriter, page string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.pages[page].ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func providerLabel(provider string) string {
	switch provider {
	case auth.ProviderGitHub:
		return "GitHub"
	default:
		return "Google"
	}
}
