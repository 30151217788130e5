// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects the session store, the
// remote-API gateway, the services, handlers, middleware and routes, and
// decides:
// - Which URL patterns map to which handler functions
// - Which guard protects which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and builds the logger, then calls New, which
// creates:
//
//	sqlite.DB (session rows)  ─┐
//	gateway.Client (remote API)─┼→ session.Resolver → guards, AuthHandler
//	                            └→ Account/Member/AdminService → handlers
//
// This is the "composition root" pattern: every dependency is wired here,
// rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/config"
	"github.com/sakif/matrimony-portal/internal/gateway"
	"github.com/sakif/matrimony-portal/internal/guard"
	"github.com/sakif/matrimony-portal/internal/handler"
	"github.com/sakif/matrimony-portal/internal/middleware"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/ratelimit"
	sqliteRepo "github.com/sakif/matrimony-portal/internal/repository/sqlite"
	"github.com/sakif/matrimony-portal/internal/service"
	"github.com/sakif/matrimony-portal/internal/session"
	"github.com/sakif/matrimony-portal/internal/validator"
	"github.com/sakif/matrimony-portal/web"
)

// Housekeeping intervals.
const (
	sweepInterval = 10 * time.Minute
	// resolverIdle is how long a browser's in-memory session state is kept
	// without a request. Dropped state is rebuilt from the store on demand.
	resolverIdle = time.Hour
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the session database. Start closes it on shutdown so
// pending writes are flushed and the file lock released.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	resolver *session.Resolver
	accounts *service.AccountService
	now      func() time.Time
}

// New creates a Server from cfg.
//
// WIRING ORDER:
//  1. Open the session database
//  2. Build the gateway, then the resolver on top of it
//  3. Point the gateway's 401 hook at the resolver (the hook is set after
//     construction because the resolver depends on the gateway)
//  4. Build services and handlers, then routes
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	gw, err := gateway.New(gateway.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.RequestTimeout}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	resolver := session.NewResolver(gw, db, cfg.SessionTTL, logger)
	gw.OnUnauthorized(func(c model.Caller) {
		resolver.Expire(c.SessionID)
	})

	v := validator.New()
	accounts := service.NewAccountService(gw, v, ratelimit.NewKeyed(service.ResetBurst, service.ResetRefill), logger)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		resolver: resolver,
		accounts: accounts,
		now:      time.Now,
	}

	deps := routeDeps{
		cookies:  auth.CookieConfig{TTL: cfg.SessionTTL, Secure: cfg.CookieSecure},
		validate: v,
		members:  service.NewMemberService(gw, v, logger),
		admins:   service.NewAdminService(gw, logger),
	}
	if err := s.setupRoutes(deps); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// routeDeps are the pieces setupRoutes needs beyond the Server fields.
type routeDeps struct {
	cookies  auth.CookieConfig
	validate *validator.Validator
	members  *service.MemberService
	admins   *service.AdminService
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	pages  (HTML shells)     /, /about, /login, /register, /reset-password
//	member pages (guarded)   /search, /matches, /profile, /profile/{id}, /notifications, /settings
//	admin pages (guarded)    /admin, /admin/update-user/{id}, /profile-views, /contact-query
//	/api/auth/*, /api/contact   public JSON API
//	/api/...                    member JSON API (member guard)
//	/api/admin/...              admin JSON API (admin guard)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request
// 2. RealIP: takes the client IP from proxy headers (the forgot-password limit keys on it)
// 3. Recoverer: turns panics into 500s
// 4. Logger: one line per request
// 5. LoadSession: attaches the browser's sid session, if it has one
func (s *Server) setupRoutes(d routeDeps) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Static Files ===
	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	pages, err := handler.NewPageHandler(web.Templates, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	authHandler := handler.NewAuthHandler(s.resolver, s.accounts, d.validate, d.cookies, s.logger)
	memberHandler := handler.NewMemberHandler(d.members, d.cookies, s.logger)
	adminHandler := handler.NewAdminHandler(d.admins, d.cookies, s.logger)

	requireMember := guard.RequireMember(s.resolver)
	requireAdmin := guard.RequireAdmin(s.resolver)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.LoadSession(s.db, d.cookies, s.logger))

		// === Public pages ===
		r.Get("/", pages.Page("home", "", ""))
		r.Get("/about", pages.Page("about", "About", ""))
		r.Get("/login", pages.Page("login", "Sign in", ""))
		r.Get("/register", pages.Page("register", "Register", ""))
		r.Get("/reset-password", pages.Page("reset-password", "Reset password", ""))

		// === Member pages ===
		r.Group(func(r chi.Router) {
			r.Use(requireMember)
			r.Get("/search", pages.Page("search", "Search", ""))
			r.Get("/matches", pages.Page("matches", "Matches", ""))
			r.Get("/profile", pages.Page("my-profile", "My profile", ""))
			r.Get("/profile/{id}", pages.Page("profile", "Profile", "id"))
			r.Get("/notifications", pages.Page("notifications", "Notifications", ""))
			r.Get("/settings", pages.Page("settings", "Settings", ""))
		})

		// === Admin pages ===
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/admin", pages.Page("admin", "Admin", ""))
			r.Get("/admin/update-user/{id}", pages.Page("admin-update-user", "Update user", "id"))
			r.Get("/profile-views", pages.Page("admin-profile-views", "Profile views", ""))
			r.Get("/contact-query", pages.Page("admin-contact-queries", "Contact queries", ""))
		})

		r.Route("/api", func(r chi.Router) {
			// === Public API ===
			r.Get("/auth/session", authHandler.HandleSession)
			r.Post("/auth/login", authHandler.HandleLogin)
			r.Post("/auth/logout", authHandler.HandleLogout)
			r.Post("/auth/register", authHandler.HandleRegister)
			r.Post("/auth/forgot-password", authHandler.HandleForgotPassword)
			r.Post("/auth/reset-password", authHandler.HandleResetPassword)
			r.Post("/auth/password-strength", authHandler.HandlePasswordStrength)
			r.Post("/contact", authHandler.HandleContact)

			// === Member API ===
			r.Group(func(r chi.Router) {
				r.Use(requireMember)
				r.Get("/profiles/{id}", memberHandler.HandleProfile)
				r.Post("/profiles/{id}/like", memberHandler.HandleToggleLike)
				r.Post("/profiles/{id}/interest", memberHandler.HandleSendInterest)
				r.Get("/matches", memberHandler.HandleMatches)
				r.Get("/search", memberHandler.HandleSearch)
				r.Get("/notifications", memberHandler.HandleNotifications)
				r.Put("/notifications/{id}/read", memberHandler.HandleMarkNotificationRead)
				r.Delete("/notifications/{id}", memberHandler.HandleDeleteNotification)
				r.Get("/me/profile", memberHandler.HandleMyProfile)
				r.Put("/me/profile", memberHandler.HandleUpdateMyProfile)
				r.Post("/me/gallery", memberHandler.HandleUploadPhoto)
				r.Delete("/me/gallery/{index}", memberHandler.HandleDeletePhoto)
			})

			// === Admin API ===
			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/register", authHandler.HandleAdminRegister)
				r.Get("/users", adminHandler.HandleUsers)
				r.Get("/users/{id}", adminHandler.HandleProfile)
				r.Put("/users/{id}", adminHandler.HandleEditUser)
				r.Delete("/users/{id}", adminHandler.HandleDeleteUser)
				r.Post("/users/{id}/photos", adminHandler.HandleUploadPhoto)
				r.Delete("/users/{id}/photos", adminHandler.HandleDeletePhoto)
				r.Post("/users/{id}/member-id", adminHandler.HandleGenerateMemberID)
				r.Get("/notifications", adminHandler.HandleNotifications)
				r.Delete("/likes/{senderId}/{receiverId}", adminHandler.HandleRemoveLike)
				r.Get("/member-ids/stats", adminHandler.HandleMemberIDStats)
				r.Get("/member-ids/missing", adminHandler.HandleUsersWithoutMemberID)
				r.Get("/member-ids/{memberId}/validate", adminHandler.HandleValidateMemberID)
				r.Post("/member-ids/migrate", adminHandler.HandleMigrateMemberIDs)
				r.Get("/contact-queries", adminHandler.HandleContactQueries)
				r.Put("/contact-queries/{id}/status", adminHandler.HandleUpdateContactStatus)
				r.Delete("/contact-queries/{id}", adminHandler.HandleDeleteContactQuery)
			})
		})
	})

	return nil
}

// sweep drops expired session rows, idle resolver state, and refilled
// rate-limit buckets.
func (s *Server) sweep(ctx context.Context) {
	now := s.now()
	rows, err := s.db.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error("failed to delete expired sessions", slog.String("error", err.Error()))
	}
	states := s.resolver.Prune(now.Add(-resolverIdle))
	buckets := s.accounts.PruneLimits()
	if rows > 0 || states > 0 || buckets > 0 {
		s.logger.Debug("sweep finished",
			slog.Int64("session_rows", rows),
			slog.Int("session_states", states),
			slog.Int("rate_buckets", buckets),
		)
	}
}

func (s *Server) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the sweeper and close the database
func (s *Server) Start() error {
	defer s.db.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go s.runSweeper(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("api", s.config.APIBaseURL),
			slog.String("database", s.config.DBPath),
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the database. Start does this itself; Close is for
// servers that were built but never started.
func (s *Server) Close() error {
	return s.db.Close()
}
