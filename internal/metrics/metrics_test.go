package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDB_Statuses(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveDB("select_user", time.Now(), nil)
	m.ObserveDB("select_user", time.Now(), pgx.ErrNoRows)
	m.ObserveDB("select_user", time.Now(), errors.New("boom"))

	assert.Equal(t, 3, testutil.CollectAndCount(m.DbQueryDuration))
}

func TestCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.CountLogin("success")
	m.CountLogin("success")
	m.CountLogin("invalid_credentials")
	m.CountError("login_record")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TotalErrors.WithLabelValues("login_record")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDB("q", time.Now(), nil)
		m.ObserveGeo("ok", time.Now())
		m.CountError("x")
		m.CountLogin("success")
	})
}
