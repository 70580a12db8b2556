package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/notekeep/apiserver/internal/db"
	"github.com/notekeep/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "name", "email", "password_hash", "created_at", "updated_at"}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewUserRepository(db.Ready(sqlDB)), mock
}

func TestUserRepository_Create(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "A", "a@x.com", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := repo.Create(context.Background(), types.User{Name: "A", Email: "a@x.com", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), types.User{Name: "A", Email: "a@x.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE email = $1")).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("u1", "A", "a@x.com", "hash", now, now))

	user, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "hash", user.PasswordHash)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
