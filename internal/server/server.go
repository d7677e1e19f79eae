// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer — the composition root where the
// repository, services, handlers and middleware are assembled and bound to
// URL patterns. main.go stays minimal: it reads config, builds the
// pluggable backends (upload store, mailer) and calls New + Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/spillr/internal/auth"
	"github.com/sakif/spillr/internal/handler"
	"github.com/sakif/spillr/internal/mail"
	"github.com/sakif/spillr/internal/middleware"
	sqliteRepo "github.com/sakif/spillr/internal/repository/sqlite"
	"github.com/sakif/spillr/internal/service"
	"github.com/sakif/spillr/internal/storage"
)

// Rate limit policies. Auth and sensitive settings are failures-only
// (correct requests never throttle); theme updates are a hard cap.
const (
	authLimitEvents   = 5
	authLimitInterval = 15 * time.Minute

	settingsLimitEvents   = 5
	settingsLimitInterval = 15 * time.Minute

	themeLimitEvents   = 5
	themeLimitInterval = time.Minute
)

// Config holds everything the server needs that comes from the
// environment. Collected into a struct so main.go can load it in one
// place and new options don't ripple through function signatures.
type Config struct {
	Port       int
	DBPath     string
	Production bool

	JWTSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	// FrontendURL is where OAuth callbacks and deletion emails send the
	// browser, e.g. https://spillr.app (no trailing slash).
	FrontendURL string

	// LocalUploadDir is set when uploads are stored on disk; the server
	// then serves them under /uploads/. Empty when S3 is in use.
	LocalUploadDir string
}

// Server owns the router, the database connection and the config. The DB
// is closed during graceful shutdown to flush the WAL.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	cookies auth.Cookies
}

// New assembles the full dependency chain:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// The upload store and mailer are injected: main.go picks S3 vs local
// disk and SMTP vs log-only based on the environment, and the rest of the
// app never knows which it got.
func New(cfg Config, logger *slog.Logger, uploads storage.UploadStore, mailer mail.Mailer) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		cookies: auth.Cookies{Production: cfg.Production},
	}

	if err := s.setupRoutes(uploads, mailer); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /api/auth/register                 → create account        (rate limited, failures only)
//	POST   /api/auth/login                    → password login        (rate limited, failures only)
//	GET    /api/auth/google                   → start OAuth flow
//	GET    /api/auth/google/callback          → complete OAuth flow
//	POST   /api/auth/logout                   → clear session cookie
//	GET    /api/auth/me                       → own profile           [auth]
//
//	POST   /api/walls                         → create wall           [auth]
//	GET    /api/walls/{slug}                  → wall by slug
//	PUT    /api/walls/{slug}/theme            → update theme          [auth, rate limited]
//	POST   /api/walls/{slug}/feedback         → submit feedback (anonymous)
//	GET    /api/walls/{slug}/feedback         → public feed (answered only)
//	GET    /api/walls/id/{wallId}/feedback    → owner dashboard page  [auth]
//
//	PUT    /api/feedback/{id}/answer          → answer                [auth]
//	PUT    /api/feedback/{id}/archive         → archive/unarchive     [auth]
//	POST   /api/feedback/{id}/reactions       → add reaction (anonymous)
//
//	PUT    /api/settings/profile              → profile update        [auth]
//	POST   /api/settings/picture              → picture upload        [auth]
//	PUT    /api/settings/notifications        → notification prefs    [auth]
//	PUT    /api/settings/password             → change password       [auth, rate limited, failures only]
//	POST   /api/settings/blocked-users        → block a user          [auth, rate limited, failures only]
//	DELETE /api/settings/blocked-users        → unblock a user        [auth, rate limited, failures only]
//	POST   /api/settings/blocked-ips          → block an IP           [auth, rate limited, failures only]
//	DELETE /api/settings/blocked-ips          → unblock an IP         [auth, rate limited, failures only]
//	POST   /api/settings/delete-account       → request deletion      [auth, rate limited, failures only]
//	POST   /api/settings/delete-account/confirm → confirm via emailed token
//
// MIDDLEWARE ORDER: RequestID → RealIP → Recoverer → request logging.
// RealIP must precede anything that keys on the client address (rate
// limiting, blocked-IP checks).
func (s *Server) setupRoutes(uploads storage.UploadStore, mailer mail.Mailer) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === AUTH PLUMBING ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.GoogleCallbackURL,
	)
	gate := auth.NewGate(tokens, s.db.Users(), s.cookies)

	// === SERVICES ===
	authService := service.NewAuthService(s.db.Users(), tokens, passwords, s.logger)
	wallService := service.NewWallService(s.db.Walls(), s.logger)
	feedbackService := service.NewFeedbackService(s.db.Feedback(), s.db.Walls(), s.db.Users(), mailer, s.logger)
	settingsService := service.NewSettingsService(s.db.Users(), uploads, mailer, passwords, s.logger)

	// === HANDLERS ===
	authHandler := handler.NewAuthHandler(authService, google, s.cookies, s.config.FrontendURL, s.logger)
	wallHandler := handler.NewWallHandler(wallService, s.cookies, s.logger)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService, s.cookies, s.logger)
	settingsHandler := handler.NewSettingsHandler(settingsService, s.cookies, s.config.FrontendURL, s.logger)

	// === RATE LIMITERS ===
	authLimiter := middleware.NewRateLimiter(authLimitEvents, authLimitInterval)
	settingsLimiter := middleware.NewRateLimiter(settingsLimitEvents, settingsLimitInterval)
	themeLimiter := middleware.NewRateLimiter(themeLimitEvents, themeLimitInterval)

	// === LOCAL UPLOADS ===
	// Only when uploads live on disk; S3 serves its own URLs.
	if s.config.LocalUploadDir != "" {
		fileServer := http.FileServer(http.Dir(s.config.LocalUploadDir))
		s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter.LimitFailures).Post("/register", authHandler.HandleRegister)
			r.With(authLimiter.LimitFailures).Post("/login", authHandler.HandleLogin)
			r.Get("/google", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(gate.Require).Get("/me", authHandler.HandleMe)
		})

		r.Route("/walls", func(r chi.Router) {
			r.With(gate.Require).Post("/", wallHandler.HandleCreate)
			r.Get("/{slug}", wallHandler.HandleGet)
			r.With(gate.Require, themeLimiter.Limit).Put("/{slug}/theme", wallHandler.HandleUpdateTheme)
			r.Post("/{slug}/feedback", feedbackHandler.HandleSubmit)
			r.Get("/{slug}/feedback", feedbackHandler.HandlePublicFeed)
			r.With(gate.Require).Get("/id/{wallId}/feedback", feedbackHandler.HandleList)
		})

		r.Route("/feedback", func(r chi.Router) {
			r.With(gate.Require).Put("/{id}/answer", feedbackHandler.HandleAnswer)
			r.With(gate.Require).Put("/{id}/archive", feedbackHandler.HandleArchive)
			r.Post("/{id}/reactions", feedbackHandler.HandleReact)
		})

		r.Route("/settings", func(r chi.Router) {
			// Confirm is token-authenticated via the emailed link, not the gate.
			r.Post("/delete-account/confirm", settingsHandler.HandleConfirmDeletion)

			r.Group(func(r chi.Router) {
				r.Use(gate.Require)
				r.Put("/profile", settingsHandler.HandleUpdateProfile)
				r.Post("/picture", settingsHandler.HandleUpdatePicture)
				r.Put("/notifications", settingsHandler.HandleUpdateNotifications)

				// Password changes, moderation, and deletion requests are
				// guessing targets; like login, only failures count.
				r.Group(func(r chi.Router) {
					r.Use(settingsLimiter.LimitFailures)
					r.Put("/password", settingsHandler.HandleChangePassword)
					r.Post("/blocked-users", settingsHandler.HandleBlockUser)
					r.Delete("/blocked-users", settingsHandler.HandleUnblockUser)
					r.Post("/blocked-ips", settingsHandler.HandleBlockIP)
					r.Delete("/blocked-ips", settingsHandler.HandleUnblockIP)
					r.Post("/delete-account", settingsHandler.HandleRequestDeletion)
				})
			})
		})
	})

	return nil
}

// Router exposes the assembled handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds, close the database (flushes the WAL, releases the file lock).
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.Bool("production", s.config.Production),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
