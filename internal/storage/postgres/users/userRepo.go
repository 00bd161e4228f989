package users

import (
	"context"
	"errors"
	"fmt"
	"geoauth/domain/entity"
	metrics "geoauth/internal/metrics"
	"geoauth/internal/storage/postgres"
	"geoauth/pkg/customerrors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepo struct {
	db      postgres.DB
	Metrics *metrics.Metrics
}

func NewUserRepo(db postgres.DB, metrics *metrics.Metrics) *UserRepo {
	return &UserRepo{
		db:      db,
		Metrics: metrics,
	}
}

const userColumns = `id, email, password_hash, tokens, created_at, updated_at`

// CreateUser inserts a user. The unique index on email turns a second
// registration of the same address into ErrDuplicateEmail.
func (r *UserRepo) CreateUser(ctx context.Context, user entity.User) (_ entity.User, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_user", start, err)
	}(time.Now())

	if user.Tokens == nil {
		user.Tokens = []string{}
	}
	err = r.db.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, tokens) VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
		user.ID, user.Email, user.PasswordHash, user.Tokens,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return entity.User{}, customerrors.ErrDuplicateEmail
		}
		return entity.User{}, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetUserByEmail looks a user up by normalized email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (user entity.User, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_user_by_email", start, err)
	}(time.Now())

	user, err = scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
	return user, err
}

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (user entity.User, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_user_by_id", start, err)
	}(time.Now())

	user, err = scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	return user, err
}

// AddToken appends a token to the user's active set.
func (r *UserRepo) AddToken(ctx context.Context, id uuid.UUID, token string) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("append_token", start, err)
	}(time.Now())

	tag, err := r.db.Exec(ctx,
		`UPDATE users SET tokens = array_append(tokens, $2), updated_at = now() WHERE id = $1`, id, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() != 1 {
		err = customerrors.ErrUserNotFound
		return err
	}
	return nil
}

// RemoveToken drops a token from the active set. Removing an absent token is not an error.
func (r *UserRepo) RemoveToken(ctx context.Context, id uuid.UUID, token string) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("remove_token", start, err)
	}(time.Now())

	_, err = r.db.Exec(ctx,
		`UPDATE users SET tokens = array_remove(tokens, $2), updated_at = now() WHERE id = $1`, id, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (entity.User, error) {
	var u entity.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Tokens, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.User{}, customerrors.ErrUserNotFound
		}
		return entity.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}
