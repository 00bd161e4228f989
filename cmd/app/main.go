package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"geoauth/internal/background"
	"geoauth/internal/config"
	grpcDelivery "geoauth/internal/delivery/grpc"
	routes "geoauth/internal/delivery/http"
	httpAuthHandler "geoauth/internal/delivery/http/auth_handler"
	httpGeoHandler "geoauth/internal/delivery/http/geo_handler"
	httpHistoryHandler "geoauth/internal/delivery/http/history_handler"
	httpLoginsHandler "geoauth/internal/delivery/http/logins_handler"
	"geoauth/internal/geo"
	"geoauth/internal/metrics"
	psql "geoauth/internal/storage/postgres"
	historyRepo "geoauth/internal/storage/postgres/history"
	loginRepo "geoauth/internal/storage/postgres/logins"
	userRepo "geoauth/internal/storage/postgres/users"
	authUs "geoauth/internal/usecase/auth"
	"geoauth/internal/usecase/credentials"
	geoUs "geoauth/internal/usecase/geo"
	historyUs "geoauth/internal/usecase/history"
	loginsUs "geoauth/internal/usecase/logins"
	"geoauth/internal/usecase/tokens"
	errHandler "geoauth/pkg/error_handler"
	"geoauth/pkg/jwt"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
)

func main() {
	config := config.LoadConfig()
	logger := setupLogger(config.Env)
	slog.SetDefault(logger)
	logger.Info("Application started", "env", config.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize Postgres connection
	pool, err := psql.NewPostgresConnection(config.PostgresConfig.DSN(), config.PostgresConfig.MaxConns)
	if err != nil {
		logger.Error("Failed to connect to the database", "error", err)
		return
	}
	defer pool.Close()
	if err := psql.EnsureSchema(ctx, pool); err != nil {
		logger.Error("Failed to prepare the database schema", "error", err)
		return
	}
	logger.Info("Connected to the database successfully")

	// Initialize Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.RedisConfig.Addr,
		Password: config.RedisConfig.Password,
		DB:       config.RedisConfig.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Rate limiting and the geolocation cache both fail open.
		logger.Warn("Redis is unreachable, continuing without it", "error", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	jwtManager := jwt.NewJWTManager(config.JWTConfig.Secret, config.JWTConfig.ExpirationMinutes)
	geoProvider := geo.NewCachedLookup(
		geo.NewClient(config.GeoConfig.BaseURL, config.GeoConfig.Timeout, m),
		redisClient,
		config.GeoConfig.CacheTTL,
		logger,
		m,
	)
	runner := background.NewRunner(config.SecurityConfig.BestEffortTimeout, background.LogFailures(logger, m.CountError))

	// Initialize repositories
	users := userRepo.NewUserRepo(pool, m)
	histories := historyRepo.NewHistoryRepo(pool, m)
	loginEvents := loginRepo.NewLoginRepo(pool, m)

	// Initialize use cases
	historyLedger := historyUs.NewLedger(histories, logger, m)
	loginLedger := loginsUs.NewLedger(loginEvents, geoProvider, logger)
	authUsecase := authUs.NewGateway(
		credentials.NewStore(users, config.SecurityConfig.BcryptCost),
		tokens.NewService(users, jwtManager),
		loginLedger,
		runner,
		logger,
		m,
	)
	geoUsecase := geoUs.NewService(geoProvider, historyLedger, config.GeoConfig.FallbackIP)

	checks := map[string]func(context.Context) error{
		"postgres": pool.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}
	httpChecks := make(map[string]routes.HealthCheck, len(checks))
	grpcChecks := make(map[string]grpcDelivery.Check, len(checks))
	for name, check := range checks {
		httpChecks[name] = check
		grpcChecks[name] = check
	}

	// Initialize Echo, handlers and routes
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errHandler.HandleError
	routes.MapRoutes(e, routes.Handlers{
		Auth:    httpAuthHandler.NewAuthHandler(authUsecase),
		Geo:     httpGeoHandler.NewGeoHandler(geoUsecase),
		History: httpHistoryHandler.NewHistoryHandler(historyLedger),
		Logins:  httpLoginsHandler.NewLoginsHandler(loginLedger),
	}, routes.Deps{
		AuthUsecase: authUsecase,
		Logger:      logger,
		RateLimiter: config.RateLimiterConfig,
		CORS:        config.CORSConfig,
		Metrics:     m,
		Gatherer:    registry,
		Redis:       redisClient,
		Health:      httpChecks,
	})

	httpAddr := net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port))
	serverParams := &http.Server{
		Addr:         httpAddr,
		Handler:      e,
		ReadTimeout:  config.Server.Timeout,
		WriteTimeout: config.Server.Timeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	healthServer := health.NewServer()
	grpcServer := grpcDelivery.NewServer(logger, healthServer)
	reporter := grpcDelivery.NewHealthReporter(healthServer, grpcChecks, logger)

	// Run the HTTP and gRPC servers until interrupted, then drain both and
	// wait for best-effort tasks before closing the pools they use.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		grpcAddr := net.JoinHostPort(config.GrpcServer.Host, strconv.Itoa(config.GrpcServer.Port))
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return err
		}
		logger.Info("gRPC server is starting", slog.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("addr", httpAddr))
		if err := serverParams.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reporter.Run(gCtx, 15*time.Second)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down servers...")

		shutDownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			if err := serverParams.Shutdown(shutDownCtx); err != nil {
				logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
			}
		}()

		go func() {
			defer wg.Done()
			grpcServer.GracefulStop()
		}()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			logger.Info("All servers stopped gracefully")
		case <-shutDownCtx.Done():
			logger.Warn("Shutdown timeout exceeded, forcing stop")
			grpcServer.Stop()
		}

		runner.Wait()
		return nil
	})

	// Wait for all goroutines to finish and check for errors
	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("Application stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// setupLogger configures the logger based on the environment (production, development, local).
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case "production":
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "development", "local":
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return log
}
