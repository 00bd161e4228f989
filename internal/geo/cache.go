package geo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"geoauth/domain/entity"
	"geoauth/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// GeoLocationPrefix namespaces cached lookups in redis.
const GeoLocationPrefix = "geo:"

type Lookuper interface {
	Lookup(ctx context.Context, ip string) (entity.GeoRecord, error)
}

// CachedLookup keeps successful lookups in redis for ttl. Redis failures are
// logged and the provider is asked directly.
type CachedLookup struct {
	next    Lookuper
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewCachedLookup(next Lookuper, client *redis.Client, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *CachedLookup {
	return &CachedLookup{
		next:    next,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

func (c *CachedLookup) Lookup(ctx context.Context, ip string) (entity.GeoRecord, error) {
	key := GeoLocationPrefix + ip
	start := time.Now()

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if rec, perr := entity.ParseGeoRecord(data); perr == nil {
			c.metrics.ObserveGeo("cache_hit", start)
			return rec, nil
		}
		c.logger.Warn("Dropping undecodable cached geolocation", slog.String("ip", ip))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Geolocation cache read failed", slog.String("ip", ip), slog.Any("error", err))
	}

	rec, err := c.next.Lookup(ctx, ip)
	if err != nil {
		return entity.GeoRecord{}, err
	}

	payload, err := rec.Payload()
	if err == nil {
		err = c.client.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("Failed to cache geolocation", slog.String("ip", ip), slog.Any("error", err))
	}
	return rec, nil
}
