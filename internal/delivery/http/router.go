package http

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"geoauth/internal/config"
	authHandler "geoauth/internal/delivery/http/auth_handler"
	geoHandler "geoauth/internal/delivery/http/geo_handler"
	historyHandler "geoauth/internal/delivery/http/history_handler"
	loginsHandler "geoauth/internal/delivery/http/logins_handler"
	"geoauth/internal/metrics"

	"github.com/labstack/echo/v4"
	middleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// DefaultOrigin is always allowed by CORS; it is where the web client runs in development.
const DefaultOrigin = "http://localhost:3000"

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	Auth    *authHandler.AuthHandler
	Geo     *geoHandler.GeoHandler
	History *historyHandler.HistoryHandler
	Logins  *loginsHandler.LoginsHandler
}

type Deps struct {
	AuthUsecase AuthUsecase
	Logger      *slog.Logger
	RateLimiter config.RateLimiterConfig
	CORS        config.CORSConfig
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Redis       *redis.Client
	Health      map[string]HealthCheck
}

func MapRoutes(e *echo.Echo, h Handlers, d Deps) {
	logger := d.Logger

	// Middlewares
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowedOrigins(d.CORS.AllowedOrigins),
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:   func(c echo.Context) bool { return c.Path() == "/metrics" },
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Error("HTTP request error",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"error", v.Error,
				)
				return nil
			}

			logger.Info("HTTP request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	}))

	mw := MetricsMiddleware(d.Metrics)
	authed := AuthMiddleware(d.AuthUsecase)

	// service routes
	e.GET("/health", healthHandler(d.Health))
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api", mw)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	if d.Redis != nil {
		authGroup.POST("/login", h.Auth.Login, RateLimitMiddleware(d.Redis, &d.RateLimiter, "login", logger))
	} else {
		authGroup.POST("/login", h.Auth.Login)
	}
	authGroup.GET("/me", h.Auth.Me, authed)
	authGroup.POST("/logout", h.Auth.Logout, authed)

	geoGroup := api.Group("/geo", authed)
	geoGroup.GET("/lookup", h.Geo.Lookup)
	geoGroup.GET("/my-location", h.Geo.MyLocation)
	geoGroup.POST("/save-search", h.Geo.SaveSearch)

	historyGroup := api.Group("/history", authed)
	historyGroup.GET("", h.History.List)
	historyGroup.DELETE("", h.History.DeleteMany)
	historyGroup.GET("/:id", h.History.Get)
	historyGroup.DELETE("/:id", h.History.Delete)

	loginsGroup := api.Group("/user-logins", authed)
	loginsGroup.GET("", h.Logins.List)
	loginsGroup.POST("/track", h.Logins.Track)
	api.GET("/login-history", h.Logins.LegacyList, authed)

	logger.Info("HTTP routes mapped successfully")
}

func allowedOrigins(configured []string) []string {
	origins := []string{DefaultOrigin}
	for _, o := range configured {
		if o != "" && !slices.Contains(origins, o) {
			origins = append(origins, o)
		}
	}
	return origins
}
