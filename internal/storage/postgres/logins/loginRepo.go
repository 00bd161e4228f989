package logins

import (
	"context"
	"encoding/json"
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

type LoginRepo struct {
	db      postgres.DB
	Metrics *metrics.Metrics
}

func NewLoginRepo(db postgres.DB, metrics *metrics.Metrics) *LoginRepo {
	return &LoginRepo{
		db:      db,
		Metrics: metrics,
	}
}

// InsertCurrent stores event as the user's current login. Within one transaction
// it locks the owner row, so concurrent logins of the same user serialize, clears
// is_current on earlier events and inserts the new one with is_current set.
func (r *LoginRepo) InsertCurrent(ctx context.Context, event entity.LoginEvent) (_ entity.LoginEvent, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_current_login", start, err)
	}(time.Now())

	location, err := json.Marshal(event.Location)
	if err != nil {
		return entity.LoginEvent{}, fmt.Errorf("encode location: %w", err)
	}
	event.IsCurrent = true

	err = postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var owner uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, event.UserID).Scan(&owner); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return customerrors.ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE user_logins SET is_current = false WHERE user_id = $1 AND is_current`, event.UserID); err != nil {
			return fmt.Errorf("clear current: %w", err)
		}

		sql := `INSERT INTO user_logins (id, user_id, ip_address, user_agent, device, location, is_current)
				VALUES ($1, $2, $3, $4, $5, $6, true)
				RETURNING created_at`
		if err := tx.QueryRow(ctx, sql,
			event.ID, event.UserID, event.IPAddress, event.UserAgent, event.Device, location,
		).Scan(&event.CreatedAt); err != nil {
			return fmt.Errorf("insert login: %w", err)
		}
		return nil
	})
	if err != nil {
		return entity.LoginEvent{}, err
	}
	return event, nil
}

// ListByUser returns the user's login events, newest first.
func (r *LoginRepo) ListByUser(ctx context.Context, userID uuid.UUID) (events []entity.LoginEvent, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_logins_by_user", start, err)
	}(time.Now())

	sql := `SELECT id, user_id, ip_address, user_agent, device, location, is_current, created_at
			FROM user_logins WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	events = []entity.LoginEvent{}
	for rows.Next() {
		var (
			e        entity.LoginEvent
			location []byte
		)
		if err = rows.Scan(&e.ID, &e.UserID, &e.IPAddress, &e.UserAgent, &e.Device, &location, &e.IsCurrent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(location) > 0 {
			if err = json.Unmarshal(location, &e.Location); err != nil {
				return nil, fmt.Errorf("decode location: %w", err)
			}
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return events, nil
}
