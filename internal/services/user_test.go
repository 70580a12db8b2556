package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegister_NormalizesAndHashes(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "  Ann ", " Ann@Example.COM ", "pw-123")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Ann", user.Name)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.NotEqual(t, "pw-123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw-123")))
}

func TestRegister_MissingFields(t *testing.T) {
	svc, _ := newTestUserService()

	cases := []struct{ name, email, password string }{
		{"", "a@x.io", "pw"},
		{"A", "", "pw"},
		{"A", "a@x.io", ""},
		{"   ", "a@x.io", "pw"},
	}
	for _, tc := range cases {
		_, err := svc.Register(context.Background(), tc.name, tc.email, tc.password)
		require.ErrorIs(t, err, ErrValidation)
		assert.EqualError(t, err, "all fields required")
	}
}

func TestRegister_InvalidEmail(t *testing.T) {
	svc, _ := newTestUserService()

	_, err := svc.Register(context.Background(), "A", "not-an-email", "pw")
	require.ErrorIs(t, err, ErrValidation)
}

func TestRegister_RejectsDisplayNameForm(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	for _, email := range []string{"Eve <a@x.com>", "<a@x.com>", "a@x.com (Eve)"} {
		_, err := svc.Register(ctx, "Eve", email, "pw")
		require.ErrorIs(t, err, ErrValidation, email)
		assert.EqualError(t, err, "invalid email")
	}

	user, err := svc.Register(ctx, "Eve", "a@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	svc, _ := newTestUserService()

	_, err := svc.Register(context.Background(), "A", "a@x.io", strings.Repeat("p", 73))
	require.ErrorIs(t, err, ErrValidation)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "A", "a@x.io", "pw")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "B", "A@X.io", "other")
	require.ErrorIs(t, err, ErrConflict)
	assert.EqualError(t, err, "user already exists")
}

func TestVerifyCredentials(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "A", "a@x.io", "pw")
	require.NoError(t, err)

	user, err := svc.VerifyCredentials(ctx, "A@x.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = svc.VerifyCredentials(ctx, "a@x.io", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.VerifyCredentials(ctx, "nobody@x.io", "pw")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.VerifyCredentials(ctx, "", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
