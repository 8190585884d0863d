// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides:
// - Which store backs the accounts (SQLite or Postgres)
// - Which URL patterns map to which handler functions
// - Which middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and passes it to New, which builds:
//
//	store (sqlite | postgres) ─┐
//	PasswordService (bcrypt) ──┼─→ AccountService ─→ UserHandler / PageHandler
//	picture.Store (optional) ──┘                         ↑
//	TokenService (JWT) ──────────────────────────────────┘
//
// Everything is assembled here and nowhere else (the "composition root").
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

	"github.com/sakif/colab/internal/auth"
	"github.com/sakif/colab/internal/config"
	"github.com/sakif/colab/internal/handler"
	"github.com/sakif/colab/internal/middleware"
	"github.com/sakif/colab/internal/picture"
	"github.com/sakif/colab/internal/repository"
	pgRepo "github.com/sakif/colab/internal/repository/postgres"
	sqliteRepo "github.com/sakif/colab/internal/repository/sqlite"
	"github.com/sakif/colab/internal/service"
)

// shutdownTimeout is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. Start closes it after shutdown; callers that
// never Start (tests) call Close themselves.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
	tokens *auth.TokenService
}

// New opens the store and wires every layer on top of it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		tokens: tokens,
	}

	if err := s.setupRoutes(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openStore picks the repository implementation from DB_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return pgRepo.Open(ctx, cfg.DatabaseDSN)
	case config.DriverSQLite, "":
		if cfg.DBPath != ":memory:" {
			// os.MkdirAll is `mkdir -p`: a fresh checkout has no data/ yet.
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		return sqliteRepo.New(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}
}

// newPictureStore returns nil when no bucket is configured; AccountService
// then reports uploads as unavailable.
func newPictureStore(ctx context.Context, cfg *config.Config) (service.PictureStore, error) {
	if !cfg.PicturesEnabled() {
		return nil, nil
	}
	store, err := picture.New(ctx, picture.Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz              → liveness probe
// POST   /user/new             → create account (JSON)
// POST   /user/login           → log in, sets the token cookie (JSON)
// GET    /user/                → current user            [auth]
// PATCH  /user/                → rename current user     [auth]
// GET    /user/logout          → log out                 [auth]
// GET    /user/all             → list users              [auth]
// GET    /user/profile         → current user's profile  [auth]
// POST   /user/images          → add picture URL         [auth]
// POST   /user/images/upload   → presigned S3 upload     [auth]
// GET    /, /signup, /profile  → pages (HTML)
// POST   /login, /signup, /logout → page form submits
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns the id the logger prints
// 2. RealIP: extracts the client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Recoverer: turns a panic into a 500, inside Logger so the 500 is logged
func (s *Server) setupRoutes(ctx context.Context) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	pictures, err := newPictureStore(ctx, s.config)
	if err != nil {
		return fmt.Errorf("creating picture store: %w", err)
	}

	// s.store implements both UserRepository and ImageRepository.
	accounts := service.NewAccountService(
		s.store,
		s.store,
		auth.NewPasswordService(s.config.BcryptCost),
		pictures,
		s.logger,
	)

	users := handler.NewUserHandler(accounts, s.tokens, s.config.CookieSecure, s.logger)
	pages, err := handler.NewPageHandler(accounts, s.tokens, s.config.CookieSecure, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	s.router.Get("/healthz", handler.HandleHealth)

	// === API Routes ===
	s.router.Route("/user", func(r chi.Router) {
		r.Post("/new", users.HandleCreate)
		r.Post("/login", users.HandleLogin)

		// r.Group shares the prefix but gets its own middleware stack,
		// so only these routes sit behind the auth gate.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens))
			r.Get("/", users.HandleCurrent)
			r.Patch("/", users.HandleRename)
			r.Get("/logout", users.HandleLogout)
			r.Get("/all", users.HandleList)
			r.Get("/profile", users.HandleProfile)
			r.Post("/images", users.HandleAddImage)
			r.Post("/images/upload", users.HandlePresignImage)
		})
	})

	// === Page Routes ===
	// OptionalAuth: pages render for everyone but redirect on a session.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(s.tokens))
		r.Get("/", pages.HandleHome)
		r.Get("/signup", pages.HandleSignupPage)
		r.Post("/signup", pages.HandleSignup)
		r.Post("/login", pages.HandleLogin)
		r.Get("/profile", pages.HandleProfile)
		r.Post("/logout", pages.HandleLogout)
	})

	return nil
}

// Handler exposes the router, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the store (flushes the SQLite WAL / releases the Postgres pool)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("driver", s.config.DBDriver),
			slog.Bool("pictures", s.config.PicturesEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
