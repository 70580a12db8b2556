package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/notekeep/apiserver/config"
	"github.com/notekeep/apiserver/internal/ai"
	"github.com/notekeep/apiserver/internal/mq"
	"github.com/notekeep/apiserver/internal/services"
)

// Worker consumes note events and auto-tags new notes.
type Worker struct {
	broker  mq.Backend
	backend *Backend
	tagger  *services.Tagger
	channel string
	logger  *slog.Logger
}

// NewWorker connects to the configured broker. A broker is required.
func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	if broker == nil {
		return nil, errors.New("MQ_BACKEND is required to run the worker")
	}
	if _, inProcess := broker.(*mq.MemoryBroker); inProcess {
		_ = broker.Close()
		return nil, errors.New("the memory broker is served by the API server, not a separate worker")
	}

	backend, err := OpenBackend(cfg)
	if err != nil {
		_ = broker.Close()
		return nil, err
	}

	gen, err := ai.NewGeminiClient(ctx, cfg.AI)
	if err != nil {
		_ = backend.Close()
		_ = broker.Close()
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	return NewWorkerWith(broker, backend, gen, cfg, logger), nil
}

// NewWorkerWith assembles a worker from already opened dependencies.
func NewWorkerWith(broker mq.Backend, backend *Backend, gen services.TextGenerator, cfg config.Config, logger *slog.Logger) *Worker {
	// Tag updates are not re-published; the worker only reacts to creations.
	notes := services.NewNoteService(backend.Notes, services.WithLogger(logger))
	return &Worker{
		broker:  broker,
		backend: backend,
		tagger:  services.NewTagger(notes, services.NewAIService(gen, cfg.AI.Timeout), logger),
		channel: cfg.MQ.EventsChannel,
		logger:  logger,
	}
}

// Run consumes events until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker consuming", "channel", w.channel)
	err := w.broker.Subscribe(ctx, w.channel, w.tagger.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) Close() error {
	return errors.Join(w.broker.Close(), w.backend.Close())
}
