package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/notekeep/apiserver/internal/services"
	"github.com/notekeep/apiserver/types"
)

// NoteHandler provides HTTP handlers for a user's notes.
type NoteHandler struct {
	notes   *services.NoteService
	exports *services.ExportService
	logger  *slog.Logger
}

// NewNoteHandler constructs a NoteHandler. exports may be nil.
func NewNoteHandler(notes *services.NoteService, exports *services.ExportService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, exports: exports, logger: logger}
}

// NoteRouter registers note routes. Callers must install RequireAuth.
func NoteRouter(r chi.Router, h *NoteHandler) {
	r.Get("/", h.ListNotes)
	r.Post("/", h.CreateNote)
	if h.exports != nil {
		r.Post("/export", h.ExportNotes)
	}
	r.Route("/{noteID}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Put("/", h.UpdateNote)
		r.Delete("/", h.DeleteNote)
	})
}

func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	notes, err := h.notes.List(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	note, err := h.notes.Create(r.Context(), userID, req.Title, req.Content, req.Tags)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	note, err := h.notes.Get(r.Context(), userID, chi.URLParam(r, "noteID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var patch types.NotePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	note, err := h.notes.Update(r.Context(), userID, chi.URLParam(r, "noteID"), patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.notes.Delete(r.Context(), userID, chi.URLParam(r, "noteID")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Deleted successfully"})
}

// ExportNotes uploads the user's notes to object storage.
func (h *NoteHandler) ExportNotes(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	export, err := h.exports.Export(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, export)
}

type CreateNoteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}
