// Package history records IP lookups, one row per (user, ip). Repeating a
// lookup refreshes the stored geo payload instead of adding a row.
package history

import (
	"context"
	"log/slog"
	"strings"

	"geoauth/domain/entity"
	"geoauth/internal/metrics"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
)

type Repo interface {
	Upsert(ctx context.Context, userID uuid.UUID, ip string, geo entity.GeoRecord) (entity.HistoryRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.HistorySummary, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (entity.HistoryRecord, error)
	Delete(ctx context.Context, userID, id uuid.UUID) (int64, error)
	DeleteMany(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type Ledger struct {
	repo    Repo
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewLedger(repo Repo, logger *slog.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{repo: repo, logger: logger, metrics: m}
}

// RecordLookup upserts a lookup made on behalf of userID. It never fails the
// caller: on error it logs and returns nil.
func (l *Ledger) RecordLookup(ctx context.Context, userID uuid.UUID, ip string, geo entity.GeoRecord) *entity.HistoryRecord {
	rec, err := l.repo.Upsert(ctx, userID, ip, geo)
	if err != nil {
		l.logger.Error("Failed to record lookup in history",
			slog.String("user_id", userID.String()),
			slog.String("ip", ip),
			slog.Any("error", err),
		)
		l.metrics.CountError("history_record")
		return nil
	}
	return &rec
}

// Save is the explicit save-search path; here the upsert is the primary result.
func (l *Ledger) Save(ctx context.Context, userID uuid.UUID, ip string, geo entity.GeoRecord) (entity.HistoryRecord, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" || geo.IsEmpty() {
		return entity.HistoryRecord{}, customerrors.ErrMissingFields
	}
	return l.repo.Upsert(ctx, userID, ip, geo)
}

func (l *Ledger) List(ctx context.Context, userID uuid.UUID) ([]entity.HistorySummary, error) {
	return l.repo.ListByUser(ctx, userID)
}

// Get returns one record owned by userID. A malformed id is reported as not found.
func (l *Ledger) Get(ctx context.Context, userID uuid.UUID, id string) (entity.HistoryRecord, error) {
	recID, err := uuid.Parse(id)
	if err != nil {
		return entity.HistoryRecord{}, customerrors.ErrNotFound
	}
	return l.repo.GetByID(ctx, userID, recID)
}

func (l *Ledger) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	recID, err := uuid.Parse(id)
	if err != nil {
		return customerrors.ErrNotFound
	}
	n, err := l.repo.Delete(ctx, userID, recID)
	if err != nil {
		return err
	}
	if n == 0 {
		return customerrors.ErrNotFound
	}
	return nil
}

// DeleteMany removes the records among ids that userID owns and returns how
// many went. Ids that are not UUIDs cannot match anything and are skipped.
func (l *Ledger) DeleteMany(ctx context.Context, userID uuid.UUID, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, customerrors.ErrEmptyIDs
	}

	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if recID, err := uuid.Parse(id); err == nil {
			parsed = append(parsed, recID)
		}
	}
	if len(parsed) == 0 {
		return 0, customerrors.ErrNoneMatched
	}

	n, err := l.repo.DeleteMany(ctx, userID, parsed)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, customerrors.ErrNoneMatched
	}
	return n, nil
}
