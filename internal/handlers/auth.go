package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/notekeep/apiserver/config"
	"github.com/notekeep/apiserver/internal/services"
	"github.com/notekeep/apiserver/types"
)

// Authenticator turns a bearer or cookie token into a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (types.Session, error)
}

// AuthHandler provides registration, login and session endpoints.
type AuthHandler struct {
	users  *services.UserService
	auth   *services.AuthService
	cookie config.AuthConfig
	logger *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users *services.UserService, auth *services.AuthService, cookie config.AuthConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		auth:   auth,
		cookie: cookie,
		logger: logger,
	}
}

// AuthRouter registers auth routes on the given router. loginLimit may be nil.
func AuthRouter(r chi.Router, h *AuthHandler, loginLimit func(http.Handler) http.Handler) {
	r.Post("/register", h.Register)
	if loginLimit != nil {
		r.With(loginLimit).Post("/login", h.Login)
	} else {
		r.Post("/login", h.Login)
	}
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.auth, h.cookie.CookieName))
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
}

// RequireAuth rejects requests without a valid session and stores the
// session in the request context. The token is read from the
// Authorization header, then from cookieName.
func RequireAuth(authn Authenticator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := requestToken(r, cookieName)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			sess, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, services.ErrUnauthorized) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to authenticate")
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
		})
	}
}

// Register creates a new user account. No session is issued.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if _, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "User registered successfully"})
}

// Login authenticates a user, returns a token and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.setCookie(w, res.Token, res.ExpiresAt)
	h.logger.Info("user logged in",
		"request_id", middleware.GetReqID(r.Context()),
		"user_id", res.User.ID,
	)
	writeJSON(w, http.StatusOK, AuthResponse{Token: res.Token, User: res.User})
}

// Logout revokes the current session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.auth.Logout(r.Context(), sess); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.setCookie(w, "", time.Unix(0, 0))
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.auth.Me(r.Context(), sess)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

func requestToken(r *http.Request, cookieName string) (string, error) {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		return bearerToken(auth)
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", errors.New("missing authorization")
}

func bearerToken(auth string) (string, error) {
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
