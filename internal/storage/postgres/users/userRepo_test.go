package users

import (
	"context"
	"errors"
	"geoauth/domain/entity"
	"geoauth/pkg/customerrors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*UserRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepo(mock, nil), mock
}

func TestCreateUser_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	id := uuid.New()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(id, "a@b.com", "hash", []string{}).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	got, err := repo.CreateUser(context.Background(), entity.User{ID: id, Email: "a@b.com", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, id, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "a@b.com", "hash", []string{}).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.CreateUser(context.Background(), entity.User{ID: uuid.New(), Email: "a@b.com", PasswordHash: "hash"})
	assert.True(t, errors.Is(err, customerrors.ErrDuplicateEmail))
}

func TestGetUserByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT id, email, password_hash, tokens, created_at, updated_at FROM users WHERE email`).
		WithArgs("a@b.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "tokens", "created_at", "updated_at"}).
			AddRow(id, "a@b.com", "hash", []string{"t1", "t2"}, now, now))

	got, err := repo.GetUserByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, []string{"t1", "t2"}, got.Tokens)
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM users WHERE id`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetUserByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, customerrors.ErrUserNotFound))
}

func TestAddToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE users SET tokens = array_append`).
		WithArgs(id, "tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.AddToken(context.Background(), id, "tok"))

	mock.ExpectExec(`UPDATE users SET tokens = array_append`).
		WithArgs(id, "tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.True(t, errors.Is(repo.AddToken(context.Background(), id, "tok"), customerrors.ErrUserNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveToken_Idempotent(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE users SET tokens = array_remove`).
		WithArgs(id, "tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users SET tokens = array_remove`).
		WithArgs(id, "tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.RemoveToken(context.Background(), id, "tok"))
	require.NoError(t, repo.RemoveToken(context.Background(), id, "tok"))
	require.NoError(t, mock.ExpectationsWereMet())
}
