package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/notekeep/apiserver/internal/logging"
	"github.com/notekeep/apiserver/internal/ratelimit"
	"github.com/notekeep/apiserver/internal/services"
	"github.com/notekeep/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFunc func(ctx context.Context, token string) (types.Session, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (types.Session, error) {
	return f(ctx, token)
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

func TestRequireAuth(t *testing.T) {
	authn := authFunc(func(ctx context.Context, token string) (types.Session, error) {
		switch token {
		case "good":
			return types.Session{UserID: "u1"}, nil
		case "broken":
			return types.Session{}, errors.New("redis down")
		default:
			return types.Session{}, services.ErrUnauthorized
		}
	})
	h := RequireAuth(authn, "sid")(http.HandlerFunc(echoUser))

	cases := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"bearer", "Bearer good", "", http.StatusOK},
		{"lowercase scheme", "bearer good", "", http.StatusOK},
		{"cookie", "", "good", http.StatusOK},
		{"header wins over cookie", "Bearer bad", "good", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", "", http.StatusUnauthorized},
		{"empty bearer", "Bearer  ", "", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", "", http.StatusUnauthorized},
		{"authenticator failure", "Bearer broken", "", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "sid", Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":"u1"}`, rec.Body.String())
			}
		})
	}
}

func TestWriteServiceError(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{&services.ValidationError{Message: "title is required"}, http.StatusBadRequest, "title is required"},
		{services.ErrInvalidID, http.StatusBadRequest, "invalid id"},
		{services.ErrConflict, http.StatusBadRequest, "user already exists"},
		{services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("get note: %w", services.ErrNotFound), http.StatusNotFound, "not found"},
		{fmt.Errorf("%w: timeout", services.ErrUpstream), http.StatusInternalServerError, "AI service failed"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/notes", nil)
		rec := httptest.NewRecorder()
		writeServiceError(rec, req, logging.Discard(), tc.err)

		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tc.message), rec.Body.String())
	}
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(1, 1)
	h := RateLimit(limiter, ClientIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5678"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1234"))
}

func TestSessionUserKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:80"
	assert.Equal(t, "10.0.0.9", SessionUser(req))

	req = req.WithContext(withSession(req.Context(), types.Session{UserID: "u1"}))
	assert.Equal(t, "user:u1", SessionUser(req))
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	var v CreateNoteRequest
	require.NoError(t, decodeJSON(httptest.NewRecorder(), req, &v))
	assert.Empty(t, v.Title)
}
