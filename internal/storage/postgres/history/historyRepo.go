package history

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

type HistoryRepo struct {
	db      postgres.DB
	Metrics *metrics.Metrics
}

func NewHistoryRepo(db postgres.DB, metrics *metrics.Metrics) *HistoryRepo {
	return &HistoryRepo{
		db:      db,
		Metrics: metrics,
	}
}

// Upsert stores the lookup of ip by userID. The (user_id, ip) unique key makes a
// repeated lookup overwrite geo_data and updated_at instead of adding a row.
func (r *HistoryRepo) Upsert(ctx context.Context, userID uuid.UUID, ip string, geo entity.GeoRecord) (rec entity.HistoryRecord, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("upsert_history", start, err)
	}(time.Now())

	payload, err := geo.Payload()
	if err != nil {
		return entity.HistoryRecord{}, fmt.Errorf("encode geo payload: %w", err)
	}

	sql := `INSERT INTO history (id, user_id, ip, geo_data)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, ip) DO UPDATE SET geo_data = EXCLUDED.geo_data, updated_at = now()
			RETURNING id, user_id, ip, geo_data, created_at, updated_at`

	rec, err = scanRecord(r.db.QueryRow(ctx, sql, uuid.New(), userID, ip, payload))
	return rec, err
}

// ListByUser returns the user's records, newest first, without the geo payload.
func (r *HistoryRepo) ListByUser(ctx context.Context, userID uuid.UUID) (items []entity.HistorySummary, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_history_by_user", start, err)
	}(time.Now())

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, ip, created_at, updated_at FROM history WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items = []entity.HistorySummary{}
	for rows.Next() {
		var s entity.HistorySummary
		if err = rows.Scan(&s.ID, &s.UserID, &s.IP, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

// GetByID returns the record only when userID owns it.
func (r *HistoryRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (rec entity.HistoryRecord, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_history_by_id", start, err)
	}(time.Now())

	rec, err = scanRecord(r.db.QueryRow(ctx,
		`SELECT id, user_id, ip, geo_data, created_at, updated_at FROM history WHERE id = $1 AND user_id = $2`, id, userID))
	return rec, err
}

// Delete removes one owned record and reports how many rows went away.
func (r *HistoryRepo) Delete(ctx context.Context, userID, id uuid.UUID) (n int64, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("delete_history", start, err)
	}(time.Now())

	tag, err := r.db.Exec(ctx, `DELETE FROM history WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteMany removes the owned records among ids.
func (r *HistoryRepo) DeleteMany(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (n int64, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("delete_many_history", start, err)
	}(time.Now())

	tag, err := r.db.Exec(ctx, `DELETE FROM history WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (entity.HistoryRecord, error) {
	var (
		rec     entity.HistoryRecord
		payload []byte
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.IP, &payload, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.HistoryRecord{}, customerrors.ErrNotFound
		}
		return entity.HistoryRecord{}, fmt.Errorf("db error: %w", err)
	}
	if rec.Geo, err = entity.ParseGeoRecord(payload); err != nil {
		return entity.HistoryRecord{}, fmt.Errorf("decode geo payload: %w", err)
	}
	return rec, nil
}
