package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/notekeep/apiserver/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T, withSessions bool) (*AuthService, *UserService) {
	t.Helper()

	users, _ := newTestUserService()
	var sessions SessionStore
	if withSessions {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		sessions = session.NewRedisStoreWithClient(client)
	}
	return NewAuthService(users, "test-secret", time.Hour, sessions), users
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	auth, users := newAuthFixture(t, false)
	ctx := context.Background()

	user, err := users.Register(ctx, "Ann", "ann@x.io", "pw")
	require.NoError(t, err)

	res, err := auth.Login(ctx, "ann@x.io", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, user.ID, res.User.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, 5*time.Second)

	sess, err := auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID)
	assert.Equal(t, "Ann", sess.Name)
	assert.Equal(t, "ann@x.io", sess.Email)
	assert.NotEmpty(t, sess.SessionID)

	me, err := auth.Me(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	auth, users := newAuthFixture(t, false)
	ctx := context.Background()

	_, err := users.Register(ctx, "Ann", "ann@x.io", "pw")
	require.NoError(t, err)

	_, err = auth.Login(ctx, "ann@x.io", "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = auth.Login(ctx, "ghost@x.io", "pw")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	auth, _ := newAuthFixture(t, false)
	ctx := context.Background()

	_, err := auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = auth.Authenticate(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrUnauthorized)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "someone",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = auth.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, ErrUnauthorized)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "someone"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = auth.Authenticate(ctx, noExpiry)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate_Expired(t *testing.T) {
	auth, users := newAuthFixture(t, false)
	ctx := context.Background()

	_, err := users.Register(ctx, "Ann", "ann@x.io", "pw")
	require.NoError(t, err)
	res, err := auth.Login(ctx, "ann@x.io", "pw")
	require.NoError(t, err)

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = auth.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogout_RevokesSession(t *testing.T) {
	auth, users := newAuthFixture(t, true)
	ctx := context.Background()

	_, err := users.Register(ctx, "Ann", "ann@x.io", "pw")
	require.NoError(t, err)
	res, err := auth.Login(ctx, "ann@x.io", "pw")
	require.NoError(t, err)

	sess, err := auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, sess))

	_, err = auth.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogout_StatelessIsNoop(t *testing.T) {
	auth, users := newAuthFixture(t, false)
	ctx := context.Background()

	_, err := users.Register(ctx, "Ann", "ann@x.io", "pw")
	require.NoError(t, err)
	res, err := auth.Login(ctx, "ann@x.io", "pw")
	require.NoError(t, err)
	sess, err := auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, sess))
	_, err = auth.Authenticate(ctx, res.Token)
	assert.NoError(t, err)
}
