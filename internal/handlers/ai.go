package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/notekeep/apiserver/internal/services"
)

// AIHandler exposes the note transformation endpoints.
type AIHandler struct {
	ai     *services.AIService
	logger *slog.Logger
}

func NewAIHandler(ai *services.AIService, logger *slog.Logger) *AIHandler {
	return &AIHandler{ai: ai, logger: logger}
}

// AIRouter registers AI routes. Callers must install RequireAuth; limit may be nil.
func AIRouter(r chi.Router, h *AIHandler, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/summary", h.transform(services.AISummarize))
		r.Post("/improve", h.transform(services.AIImprove))
		r.Post("/tags", h.transform(services.AITags))
	})
	r.Get("/health", h.Health)
}

func (h *AIHandler) transform(kind services.AIKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AIRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}

		res, err := h.ai.Transform(r.Context(), kind, req.Content)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, AIResponse{AIResponse: res.Value()})
	}
}

// Health checks that the model answers a trivial prompt.
func (h *AIHandler) Health(w http.ResponseWriter, r *http.Request) {
	reply, err := h.ai.Ping(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

type AIRequest struct {
	Content string `json:"content"`
}

type AIResponse struct {
	AIResponse any `json:"aiResponse"`
}
