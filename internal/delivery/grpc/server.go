// Package grpc exposes the standard grpc.health.v1 service so orchestrators
// can probe the process over gRPC as well as over /health.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health entry that reflects the geoauth dependencies.
const ServiceName = "geoauth"

type Check func(ctx context.Context) error

// NewServer builds a gRPC server with health and reflection registered.
func NewServer(logger *slog.Logger, hs *health.Server) *grpc.Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(logger)))
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv
}

// LoggingInterceptor logs every unary call with its duration and status code.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		attrs := []any{
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Error("gRPC request error", append(attrs, slog.Any("error", err))...)
		} else {
			logger.Debug("gRPC request", attrs...)
		}
		return resp, err
	}
}

// HealthReporter runs dependency checks and publishes the result on a health server.
type HealthReporter struct {
	server *health.Server
	checks map[string]Check
	logger *slog.Logger
}

func NewHealthReporter(server *health.Server, checks map[string]Check, logger *slog.Logger) *HealthReporter {
	return &HealthReporter{server: server, checks: checks, logger: logger}
}

// Update runs every check once. Any failure marks ServiceName NOT_SERVING.
func (r *HealthReporter) Update(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			r.logger.Warn("Health check failed", slog.String("check", name), slog.Any("error", err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	r.server.SetServingStatus(ServiceName, st)
	return st
}

// Run updates the status every interval until ctx is done, then marks
// everything NOT_SERVING.
func (r *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.Update(ctx)
	for {
		select {
		case <-ctx.Done():
			r.server.Shutdown()
			return
		case <-ticker.C:
			r.Update(ctx)
		}
	}
}
