package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"github.com/notekeep/apiserver/internal/store"
	"github.com/notekeep/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates registration and credential checks.
type UserService struct {
	repo      UserRepository
	hashCost  int
	dummyOnce sync.Once
	dummyHash []byte
}

// UserOption configures a UserService.
type UserOption func(*UserService)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) UserOption {
	return func(s *UserService) {
		s.hashCost = cost
	}
}

func NewUserService(repo UserRepository, opts ...UserOption) *UserService {
	s := &UserService{repo: repo, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates an account. No session is issued.
func (s *UserService) Register(ctx context.Context, name, email, password string) (types.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return types.User{}, invalid("all fields required")
	}
	// Only a bare address is accepted, so one mailbox maps to one account.
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return types.User{}, invalid("invalid email")
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return types.User{}, invalid("password is too long")
		}
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

// VerifyCredentials returns the user owning email when password matches.
// Every mismatch yields ErrUnauthorized so callers cannot tell which part
// was wrong.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (types.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same time as a real comparison.
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return types.User{}, ErrUnauthorized
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrUnauthorized
	}
	return user, nil
}

func (s *UserService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("notekeep-placeholder"), s.hashCost)
	})
	return s.dummyHash
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
