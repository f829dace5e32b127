// Package server is the composition root: it opens the database, picks a
// change feed, builds the services and handlers, and mounts the routes.
//
// Nothing below this package reaches for a global. Every collaborator is
// created here and passed down explicitly.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/smart-bookmarks/internal/auth"
	"github.com/sakif/smart-bookmarks/internal/config"
	"github.com/sakif/smart-bookmarks/internal/feed"
	"github.com/sakif/smart-bookmarks/internal/handler"
	"github.com/sakif/smart-bookmarks/internal/middleware"
	sqliteRepo "github.com/sakif/smart-bookmarks/internal/repository/sqlite"
	"github.com/sakif/smart-bookmarks/internal/service"
	"github.com/sakif/smart-bookmarks/web"
)

const shutdownTimeout = 30 * time.Second

// broker is the change feed as the server owns it: publish, subscribe and
// release on shutdown.
type broker interface {
	feed.Broker
	Close() error
}

// memoryBroker adapts MemoryBroker, which holds nothing to release.
type memoryBroker struct{ *feed.MemoryBroker }

func (memoryBroker) Close() error { return nil }

// Server owns the database and the change feed; both are closed when Start
// returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	feed   broker
	tokens *auth.TokenService

	// streams is cancelled when shutdown begins. Only event streams derive
	// from it; ordinary requests keep their context and drain.
	streams     context.Context
	stopStreams context.CancelFunc
}

// New wires every dependency:
//
//	sqlite.DB ──▶ BookmarkService ◀── TokenService
//	    │               │
//	    ▼               ▼
//	AuthService     feed (redis or memory) ──▶ livelist per stream
//
// A Redis address in the config selects the Redis feed, which lets several
// instances share change events. Without one the feed stays in-process.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	b, err := newBroker(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		feed:   b,
		tokens: tokens,
	}
	s.streams, s.stopStreams = context.WithCancel(context.Background())

	if err := s.setupRoutes(); err != nil {
		s.close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func newBroker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (broker, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("change feed: in-process")
		return memoryBroker{feed.NewMemoryBroker(feed.DefaultBuffer, logger)}, nil
	}

	client, err := feed.Connect(ctx, feed.DefaultConnectOptions(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB), logger)
	if err != nil {
		return nil, fmt.Errorf("connecting change feed: %w", err)
	}
	logger.Info("change feed: redis", slog.String("addr", cfg.Redis.Addr))
	return feed.NewRedisBroker(client, feed.DefaultBuffer, logger), nil
}

// Routes:
//
//	GET    /healthz
//	GET    /                              landing page
//	GET    /login                         sign-in page
//	GET    /bookmarks                     live list page
//	GET    /auth/login                    redirect to provider
//	GET    /auth/callback                 OAuth callback
//	POST   /auth/logout
//	GET    /api/me
//	GET    /api/bookmarks
//	POST   /api/bookmarks
//	GET    /api/bookmarks/stream          Server-Sent Events
//	POST   /api/bookmarks/{id}/confirm    delete, step one
//	DELETE /api/bookmarks/{id}            delete, step two
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	provider, err := auth.NewOAuthProvider(auth.OAuthConfig{
		Provider:     s.config.OAuth.Provider,
		ClientID:     s.config.OAuth.ClientID,
		ClientSecret: s.config.OAuth.ClientSecret,
		RedirectURL:  s.config.OAuth.RedirectURL,
	})
	if err != nil {
		return err
	}

	authService := service.NewAuthService(provider, s.db, s.tokens, s.logger)
	bookmarkService := service.NewBookmarkService(s.db, s.feed, s.tokens, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.config.Session.CookieSecure, s.logger)
	bookmarkHandler := handler.NewBookmarkHandler(bookmarkService, s.feed, s.logger)
	pageHandler, err := handler.NewPageHandler(web.Templates, authService, bookmarkService, provider.Name(), s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	s.router.Get("/healthz", handler.HandleHealth(s.db, s.logger))

	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(s.tokens))
		r.Get("/", pageHandler.HandleHome)
		r.Get("/login", pageHandler.HandleLogin)
		r.Get("/bookmarks", pageHandler.HandleBookmarks)
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/login", authHandler.HandleLogin)
		r.Get("/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.tokens))

		r.Get("/me", authHandler.HandleMe)
		r.Get("/bookmarks", bookmarkHandler.HandleList)
		r.Post("/bookmarks", bookmarkHandler.HandleAdd)
		r.With(s.streamScope).Get("/bookmarks/stream", bookmarkHandler.HandleStream)
		r.Post("/bookmarks/{id}/confirm", bookmarkHandler.HandleConfirm)
		r.Delete("/bookmarks/{id}", bookmarkHandler.HandleDelete)
	})

	return nil
}

// streamScope ends a long-lived request when shutdown begins, so Shutdown
// does not wait out open event streams.
func (s *Server) streamScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(s.streams, cancel)
		defer stop()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains
// in-flight requests and closes the feed and the database.
func (s *Server) Start(ctx context.Context) error {
	defer s.close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second, // the stream handler lifts this per request
		IdleTimeout:  60 * time.Second,
	}
	srv.RegisterOnShutdown(s.stopStreams)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) close() {
	s.stopStreams()
	if err := s.feed.Close(); err != nil {
		s.logger.Warn("closing change feed", slog.String("error", err.Error()))
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}
