package grpc

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type ServerOptions struct {
	RequestTimeout time.Duration
	Verifier       tokenVerifier
	Limiter        *PeerLimiter
	Log            *slog.Logger
}

// NewServer builds a gRPC server with the booking service and the standard
// health service registered. Calls are traced through the global
// OpenTelemetry provider. The health status starts as SERVING.
func NewServer(srv BookingServiceServer, opts ServerOptions) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestTimeout(opts.RequestTimeout),
			RateLimit(opts.Limiter, opts.Log),
			OperatorAuth(opts.Verifier, opts.Log),
		),
	)
	RegisterBookingServiceServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return s, hs
}
