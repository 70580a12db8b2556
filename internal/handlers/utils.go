package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/notekeep/apiserver/internal/services"
	"github.com/notekeep/apiserver/types"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextSessionKey contextKey = "session"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a simple acknowledgement payload.
type MessageResponse struct {
	Message string `json:"message"`
}

func withSession(ctx context.Context, sess types.Session) context.Context {
	return context.WithValue(ctx, contextSessionKey, sess)
}

// SessionFromContext returns the session stored by RequireAuth.
func SessionFromContext(ctx context.Context) (types.Session, bool) {
	sess, ok := ctx.Value(contextSessionKey).(types.Session)
	if !ok || sess.UserID == "" {
		return types.Session{}, false
	}
	return sess, true
}

func userIDFromContext(ctx context.Context) (string, error) {
	sess, ok := SessionFromContext(ctx)
	if !ok {
		return "", errors.New("missing subject")
	}
	return sess.UserID, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeServiceError maps service errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, services.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid id")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusBadRequest, "user already exists")
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrUpstream):
		logger.Error("upstream request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "AI service failed")
	default:
		logger.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
