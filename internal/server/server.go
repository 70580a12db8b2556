package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/notekeep/apiserver/config"
	"github.com/notekeep/apiserver/internal/ai"
	"github.com/notekeep/apiserver/internal/mq"
	"github.com/notekeep/apiserver/internal/ratelimit"
	"github.com/notekeep/apiserver/internal/services"
	"github.com/notekeep/apiserver/internal/session"
	"github.com/notekeep/apiserver/internal/storage"
)

const limiterCleanupInterval = 10 * time.Minute

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger
	closers    []func() error
	stop       context.CancelFunc
}

// New wires the configured backends into an HTTP server. Only Redis is
// contacted eagerly; the database connects on first use.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{logger: logger}
	ok := false
	defer func() {
		if !ok {
			s.closeAll()
		}
	}()

	backend, err := OpenBackend(cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, backend.Close)

	var sessions services.SessionStore
	if cfg.Redis.URL != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, redisStore.Close)
		sessions = redisStore
	}

	gen, err := ai.NewGeminiClient(ctx, cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	noteOpts := []services.NoteOption{services.WithLogger(logger)}
	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	if broker != nil {
		s.closers = append(s.closers, broker.Close)
		noteOpts = append(noteOpts, services.WithEvents(broker, cfg.MQ.EventsChannel))
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open object storage: %w", err)
	}

	users := services.NewUserService(backend.Users)
	notes := services.NewNoteService(backend.Notes, noteOpts...)
	deps := Deps{
		Config:       cfg,
		Logger:       logger,
		DB:           backend,
		Users:        users,
		Auth:         services.NewAuthService(users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, sessions),
		Notes:        notes,
		AI:           services.NewAIService(gen, cfg.AI.Timeout),
		LoginLimiter: ratelimit.NewRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
		AILimiter:    ratelimit.NewRateLimiter(cfg.RateLimit.AIPerMinute, cfg.RateLimit.AIBurst),
	}
	if objects != nil {
		s.closers = append(s.closers, objects.Close)
		deps.Exports = services.NewExportService(notes, objects)
	}

	workerCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = stop
	go deps.LoginLimiter.StartCleanupWorker(workerCtx, limiterCleanupInterval)
	go deps.AILimiter.StartCleanupWorker(workerCtx, limiterCleanupInterval)

	// In-process events never leave this server, so it tags them itself.
	if _, inProcess := broker.(*mq.MemoryBroker); inProcess {
		tagger := NewWorkerWith(broker, backend, gen, cfg, logger)
		go func() {
			if err := tagger.Run(workerCtx); err != nil && !errors.Is(err, mq.ErrBrokerClosed) {
				logger.Error("in-process tagger stopped", "error", err)
			}
		}()
	}

	s.router = NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      requestTimeout(cfg) + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server configured",
		"port", port,
		"store", cfg.Store.Backend,
		"model", gen.Model(),
		"sessions", sessions != nil,
		"events", broker != nil,
		"exports", objects != nil,
	)

	ok = true
	return s, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeAll()
	return err
}

func (s *Server) closeAll() {
	if s.stop != nil {
		s.stop()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close backend", "error", err)
		}
	}
	s.closers = nil
}
