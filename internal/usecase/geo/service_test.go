package geo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"geoauth/internal/testutil"
	"geoauth/internal/usecase/history"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() (*Service, *testutil.StubGeo, *testutil.FakeHistoryRepo) {
	stub := testutil.NewStubGeo()
	stub.Records["8.8.8.8"] = testutil.GeoFixture("Mountain View", "United States")
	stub.Records["1.1.1.1"] = testutil.GeoFixture("Sydney", "Australia")
	repo := testutil.NewFakeHistoryRepo()
	ledger := history.NewLedger(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	return NewService(stub, ledger, ""), stub, repo
}

func TestValidateIPv4(t *testing.T) {
	valid := []string{"0.0.0.0", "8.8.8.8", "255.255.255.255", "192.168.001.001"}
	for _, ip := range valid {
		assert.NoError(t, ValidateIPv4(ip), ip)
	}

	invalid := []string{"", "999.999.999.999", "256.1.1.1", "1.2.3", "1.2.3.4.5", "a.b.c.d", "::1", "1.2.3.4 ", "1234.1.1.1"}
	for _, ip := range invalid {
		assert.ErrorIs(t, ValidateIPv4(ip), customerrors.ErrInvalidIPFormat, ip)
	}
}

func TestLookup(t *testing.T) {
	s, stub, repo := newService()
	ctx := context.Background()
	user := uuid.New()

	t.Run("invalid address never reaches the provider", func(t *testing.T) {
		_, err := s.Lookup(ctx, user, "999.999.999.999")
		assert.ErrorIs(t, err, customerrors.ErrInvalidIPFormat)
		assert.Empty(t, stub.Calls())
	})

	t.Run("success records history", func(t *testing.T) {
		rec, err := s.Lookup(ctx, user, "8.8.8.8")
		require.NoError(t, err)
		assert.Equal(t, "Mountain View", rec.City)
		assert.Equal(t, 1, repo.Count(user))
	})

	t.Run("repeat lookup keeps one history row", func(t *testing.T) {
		_, err := s.Lookup(ctx, user, "8.8.8.8")
		require.NoError(t, err)
		assert.Equal(t, 1, repo.Count(user))
	})

	t.Run("provider failure is upstream", func(t *testing.T) {
		_, err := s.Lookup(ctx, user, "10.0.0.1")
		assert.ErrorIs(t, err, customerrors.ErrProvider)
		assert.Equal(t, customerrors.KindUpstream, customerrors.KindOf(err))
		assert.Equal(t, 1, repo.Count(user))
	})

	t.Run("history failure does not fail the lookup", func(t *testing.T) {
		repo.Err = errors.New("store down")
		defer func() { repo.Err = nil }()

		rec, err := s.Lookup(ctx, user, "1.1.1.1")
		require.NoError(t, err)
		assert.Equal(t, "Sydney", rec.City)
	})
}

func TestMyLocation(t *testing.T) {
	s, stub, _ := newService()
	ctx := context.Background()

	for _, caller := range []string{"", "127.0.0.1", "::1", "unknown"} {
		ip, rec, err := s.MyLocation(ctx, uuid.New(), caller)
		require.NoError(t, err, caller)
		assert.Equal(t, DefaultFallbackIP, ip)
		assert.Equal(t, "Mountain View", rec.City)
	}

	ip, rec, err := s.MyLocation(ctx, uuid.New(), "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.1", ip)
	assert.Equal(t, "Sydney", rec.City)
	assert.Equal(t, "1.1.1.1", stub.Calls()[len(stub.Calls())-1])
}

func TestSaveSearch(t *testing.T) {
	s, _, repo := newService()
	user := uuid.New()

	_, err := s.SaveSearch(context.Background(), user, "", testutil.GeoFixture("X", "Y"))
	assert.ErrorIs(t, err, customerrors.ErrMissingFields)

	rec, err := s.SaveSearch(context.Background(), user, "4.4.4.4", testutil.GeoFixture("X", "Y"))
	require.NoError(t, err)
	assert.Equal(t, "4.4.4.4", rec.IP)
	assert.Equal(t, 1, repo.Count(user))
}
