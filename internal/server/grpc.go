// Package server assembles the HTTP and gRPC servers.
package server

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"collabhub/backend/internal/server/interceptors"
)

// Health service methods callable without a token.
const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthListMethod  = "/grpc.health.v1.Health/List"
)

// PublicMethods are the gRPC methods that may run anonymously; they are also not logged.
var PublicMethods = map[string]bool{
	healthCheckMethod: true,
	healthListMethod:  true,
}

// NewGRPCServer returns a gRPC server with the shared interceptor chain: logging, recovery,
// tenant resolution, then authentication.
func NewGRPCServer(logger zerolog.Logger, auth *interceptors.Authenticator, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(logger, PublicMethods),
			interceptors.RecoveryUnary(),
			interceptors.TenantUnary(),
			interceptors.AuthUnary(auth, PublicMethods),
		),
	}, opts...)
	return grpc.NewServer(opts...)
}

// RegisterServices registers the gRPC services with s.
func RegisterServices(s grpc.ServiceRegistrar, hs *grpchealth.Server) {
	healthpb.RegisterHealthServer(s, hs)
}
