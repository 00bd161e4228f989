package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"geoauth/domain/entity"
	"geoauth/internal/testutil"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger() (*Ledger, *testutil.FakeHistoryRepo) {
	repo := testutil.NewFakeHistoryRepo()
	return NewLedger(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), nil), repo
}

func TestRecordLookup_UpsertsPerUserAndIP(t *testing.T) {
	l, repo := newLedger()
	ctx := context.Background()
	user := uuid.New()

	first := l.RecordLookup(ctx, user, "8.8.8.8", testutil.GeoFixture("Old City", "US"))
	require.NotNil(t, first)
	second := l.RecordLookup(ctx, user, "8.8.8.8", testutil.GeoFixture("New City", "US"))
	require.NotNil(t, second)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.Count(user))

	rec, err := l.Get(ctx, user, first.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "New City", rec.Geo.City)
	assert.False(t, rec.UpdatedAt.Before(first.UpdatedAt))

	// Another user looking up the same IP gets their own record.
	require.NotNil(t, l.RecordLookup(ctx, uuid.New(), "8.8.8.8", testutil.GeoFixture("New City", "US")))
	assert.Equal(t, 1, repo.Count(user))
}

func TestRecordLookup_SwallowsFailure(t *testing.T) {
	l, repo := newLedger()
	repo.Err = errors.New("connection refused")

	assert.Nil(t, l.RecordLookup(context.Background(), uuid.New(), "8.8.8.8", testutil.GeoFixture("X", "Y")))
}

func TestSave(t *testing.T) {
	l, repo := newLedger()
	ctx := context.Background()
	user := uuid.New()

	_, err := l.Save(ctx, user, "", testutil.GeoFixture("X", "Y"))
	assert.ErrorIs(t, err, customerrors.ErrMissingFields)

	_, err = l.Save(ctx, user, "8.8.8.8", entity.GeoRecord{})
	assert.ErrorIs(t, err, customerrors.ErrMissingFields)

	rec, err := l.Save(ctx, user, " 8.8.8.8 ", testutil.GeoFixture("X", "Y"))
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", rec.IP)

	repo.Err = errors.New("boom")
	_, err = l.Save(ctx, user, "1.1.1.1", testutil.GeoFixture("X", "Y"))
	assert.Error(t, err)
}

func TestList_NewestFirst(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	user := uuid.New()

	for _, ip := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		require.NotNil(t, l.RecordLookup(ctx, user, ip, testutil.GeoFixture("C", "X")))
	}

	items, err := l.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "3.3.3.3", items[0].IP)
	assert.Equal(t, "1.1.1.1", items[2].IP)

	empty, err := l.List(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestGet_Ownership(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	owner := uuid.New()
	rec := l.RecordLookup(ctx, owner, "8.8.8.8", testutil.GeoFixture("C", "X"))
	require.NotNil(t, rec)

	_, err := l.Get(ctx, uuid.New(), rec.ID.String())
	assert.ErrorIs(t, err, customerrors.ErrNotFound)

	_, err = l.Get(ctx, owner, "not-a-uuid")
	assert.ErrorIs(t, err, customerrors.ErrNotFound)
}

func TestDelete(t *testing.T) {
	l, repo := newLedger()
	ctx := context.Background()
	owner := uuid.New()
	rec := l.RecordLookup(ctx, owner, "8.8.8.8", testutil.GeoFixture("C", "X"))
	require.NotNil(t, rec)

	assert.ErrorIs(t, l.Delete(ctx, uuid.New(), rec.ID.String()), customerrors.ErrNotFound)
	assert.ErrorIs(t, l.Delete(ctx, owner, "nope"), customerrors.ErrNotFound)

	require.NoError(t, l.Delete(ctx, owner, rec.ID.String()))
	assert.Equal(t, 0, repo.Count(owner))
	assert.ErrorIs(t, l.Delete(ctx, owner, rec.ID.String()), customerrors.ErrNotFound)
}

func TestDeleteMany(t *testing.T) {
	l, repo := newLedger()
	ctx := context.Background()
	owner := uuid.New()
	stranger := uuid.New()

	a := l.RecordLookup(ctx, owner, "1.1.1.1", testutil.GeoFixture("C", "X"))
	b := l.RecordLookup(ctx, owner, "2.2.2.2", testutil.GeoFixture("C", "X"))
	theirs := l.RecordLookup(ctx, stranger, "3.3.3.3", testutil.GeoFixture("C", "X"))
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, theirs)

	_, err := l.DeleteMany(ctx, owner, nil)
	assert.ErrorIs(t, err, customerrors.ErrEmptyIDs)

	_, err = l.DeleteMany(ctx, owner, []string{"junk", theirs.ID.String()})
	assert.ErrorIs(t, err, customerrors.ErrNoneMatched)
	assert.Equal(t, customerrors.KindNotFound, customerrors.KindOf(err))

	n, err := l.DeleteMany(ctx, owner, []string{a.ID.String(), b.ID.String(), "junk", theirs.ID.String()})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 0, repo.Count(owner))
	assert.Equal(t, 1, repo.Count(stranger))
}
