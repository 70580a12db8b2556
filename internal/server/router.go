package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/notekeep/apiserver/config"
	"github.com/notekeep/apiserver/internal/handlers"
	"github.com/notekeep/apiserver/internal/ratelimit"
	"github.com/notekeep/apiserver/internal/services"
)

// Deps is everything the router serves. Exports and the limiters may be nil.
type Deps struct {
	Config  config.Config
	Logger  *slog.Logger
	DB      handlers.Pinger
	Users   *services.UserService
	Auth    *services.AuthService
	Notes   *services.NoteService
	AI      *services.AIService
	Exports *services.ExportService

	LoginLimiter *ratelimit.RateLimiter
	AILimiter    *ratelimit.RateLimiter
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(d Deps) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if d.Config.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(
		middleware.Recoverer,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
			NoColor: true,
		}),
		middleware.Timeout(requestTimeout(d.Config)),
	)

	requireAuth := handlers.RequireAuth(d.Auth, d.Config.Auth.CookieName)

	var loginLimit, aiLimit func(http.Handler) http.Handler
	if d.LoginLimiter != nil {
		loginLimit = handlers.RateLimit(d.LoginLimiter, handlers.ClientIP)
	}
	if d.AILimiter != nil {
		aiLimit = handlers.RateLimit(d.AILimiter, handlers.SessionUser)
	}

	router.Get("/healthz", handlers.Healthz(d.DB, logger))
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(d.Users, d.Auth, d.Config.Auth, logger), loginLimit)
	})
	router.Route("/notes", func(r chi.Router) {
		r.Use(requireAuth)
		handlers.NoteRouter(r, handlers.NewNoteHandler(d.Notes, d.Exports, logger))
	})
	router.Route("/ai", func(r chi.Router) {
		r.Use(requireAuth)
		handlers.AIRouter(r, handlers.NewAIHandler(d.AI, logger), aiLimit)
	})

	return router
}

// requestTimeout leaves room for a full AI call inside one request.
func requestTimeout(cfg config.Config) time.Duration {
	timeout := 60 * time.Second
	if t := cfg.AI.Timeout + 10*time.Second; t > timeout {
		timeout = t
	}
	return timeout
}
