package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"geoauth/domain/entity"
	"geoauth/internal/config"
	"geoauth/internal/delivery/http/reqctx"
	"geoauth/internal/metrics"
	"geoauth/pkg/clientip"
	"geoauth/pkg/customerrors"
	errHandler "geoauth/pkg/error_handler"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

type AuthUsecase interface {
	// VerifyUser validates the bearer token and returns its owner.
	VerifyUser(ctx context.Context, token string) (entity.User, error)
}

func AuthMiddleware(authUsecase AuthUsecase) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return customerrors.ErrUnauthenticated
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			user, err := authUsecase.VerifyUser(c.Request().Context(), token)
			if err != nil {
				return err
			}

			reqctx.SetSession(c, user, token)
			return next(c)
		}
	}
}

// RateLimitMiddleware counts requests per client address and endpoint in redis
// with a fixed window. Redis failures let the request through.
func RateLimitMiddleware(client *redis.Client, cfg *config.RateLimiterConfig, endpoint string, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := clientip.Forwarded(reqctx.Client(c))
			key := "ratelimit:" + ip + ":" + endpoint
			ctx := c.Request().Context()

			count, err := client.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn("Rate limiter unavailable", slog.String("key", key), slog.Any("error", err))
				return next(c)
			}
			if count == 1 {
				if err := client.Expire(ctx, key, cfg.Window).Err(); err != nil {
					logger.Warn("Failed to set rate limit window", slog.String("key", key), slog.Any("error", err))
				}
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			if count > int64(cfg.Limit) {
				ttl, err := client.TTL(ctx, key).Result()
				if err != nil || ttl <= 0 {
					ttl = cfg.Window
				}
				header.Set("X-RateLimit-Remaining", "0")
				header.Set("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
				logger.Warn("Rate limit exceeded", slog.String("ip", ip), slog.String("endpoint", endpoint))
				return customerrors.ErrTooManyRequests
			}
			header.Set("X-RateLimit-Remaining", strconv.FormatInt(int64(cfg.Limit)-count, 10))
			return next(c)
		}
	}
}

// MetricsMiddleware observes request duration by route and final status.
// Errors are still unhandled at this point, so the status is derived from them.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = errHandler.StatusOf(customerrors.KindOf(err))
				}
				m.CountError(customerrors.KindOf(err).String())
			}
			if m != nil {
				m.RequestDuration.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).
					Observe(time.Since(start).Seconds())
			}
			return err
		}
	}
}

func healthHandler(checks map[string]HealthCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		failed := []string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed = append(failed, name)
			}
		}
		if len(failed) > 0 {
			sort.Strings(failed)
			return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
