package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/notekeep/apiserver/internal/session"
	"github.com/notekeep/apiserver/types"
)

// SessionStore registers issued session ids so they can be revoked.
type SessionStore interface {
	Save(ctx context.Context, sessionID, userID string, expiresAt time.Time) error
	Lookup(ctx context.Context, sessionID string) (string, error)
	Revoke(ctx context.Context, sessionID string) error
}

// Claims is the JWT payload of a session token.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      types.User
}

// AuthService issues and verifies session tokens.
type AuthService struct {
	users    *UserService
	secret   []byte
	ttl      time.Duration
	sessions SessionStore
	now      func() time.Time
}

// NewAuthService builds an AuthService. sessions may be nil, in which case
// tokens are stateless and logout only clears the client cookie.
func NewAuthService(users *UserService, secret string, ttl time.Duration, sessions SessionStore) *AuthService {
	return &AuthService{
		users:    users,
		secret:   []byte(secret),
		ttl:      ttl,
		sessions: sessions,
		now:      time.Now,
	}
}

// Login verifies credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.VerifyCredentials(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	token, sess, err := s.issue(user)
	if err != nil {
		return LoginResult{}, err
	}
	if s.sessions != nil {
		if err := s.sessions.Save(ctx, sess.SessionID, user.ID, sess.ExpiresAt); err != nil {
			return LoginResult{}, fmt.Errorf("register session: %w", err)
		}
	}

	return LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, User: user}, nil
}

func (s *AuthService) issue(user types.User) (string, types.Session, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", types.Session{}, fmt.Errorf("sign token: %w", err)
	}
	return token, types.Session{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		SessionID: claims.ID,
		ExpiresAt: expiresAt,
	}, nil
}

// Authenticate validates a token and returns the session it represents.
func (s *AuthService) Authenticate(ctx context.Context, token string) (types.Session, error) {
	if token == "" {
		return types.Session{}, ErrUnauthorized
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return types.Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return types.Session{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	if s.sessions != nil {
		owner, err := s.sessions.Lookup(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return types.Session{}, fmt.Errorf("%w: session revoked", ErrUnauthorized)
			}
			return types.Session{}, fmt.Errorf("lookup session: %w", err)
		}
		if owner != claims.Subject {
			return types.Session{}, fmt.Errorf("%w: session owner mismatch", ErrUnauthorized)
		}
	}

	sess := types.Session{
		UserID:    claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		SessionID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// Logout revokes the session. It is a no-op without a session store.
func (s *AuthService) Logout(ctx context.Context, sess types.Session) error {
	if s.sessions == nil || sess.SessionID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sess.SessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Me returns the profile of the session's user.
func (s *AuthService) Me(ctx context.Context, sess types.Session) (types.User, error) {
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.User{}, ErrUnauthorized
		}
		return types.User{}, err
	}
	return user, nil
}
