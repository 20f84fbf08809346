package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServiceName is the gRPC health service name reported next to the overall "" status.
const HealthServiceName = "articlematcher.v1.Matcher"

// NewGRPCServer returns a gRPC server exposing the standard health service and reflection.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_SERVING)
	return gs, hs
}

// MonitorHealth pings the store every interval and flips the health status until ctx is done.
func MonitorHealth(ctx context.Context, hs *health.Server, store Pinger, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, interval/2)
		defer cancel()
		status := healthpb.HealthCheckResponse_SERVING
		if err := store.Ping(pctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("grpc.health.not_serving", "err", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(HealthServiceName, status)
	}

	check()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			check()
		}
	}
}
