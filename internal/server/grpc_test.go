package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"collabhub/backend/internal/security"
	"collabhub/backend/internal/server/interceptors"
	sessionrepo "collabhub/backend/internal/session/repository"
	sessionservice "collabhub/backend/internal/session/service"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	services []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.services = append(m.services, desc.ServiceName)
}

func TestRegisterServices(t *testing.T) {
	reg := &mockServiceRegistrar{}
	RegisterServices(reg, grpchealth.NewServer())
	if len(reg.services) != 1 || reg.services[0] != "grpc.health.v1.Health" {
		t.Errorf("registered %v", reg.services)
	}
}

func newTestAuthenticator() *interceptors.Authenticator {
	return interceptors.NewAuthenticator(security.NewTestTokenIssuer(), sessionservice.NewRegistry(sessionrepo.NewMemoryRepository()))
}

func TestGRPCServer_HealthIsPublic(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := NewGRPCServer(zerolog.Nop(), newTestAuthenticator())
	hs := grpchealth.NewServer()
	RegisterServices(s, hs)
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("anonymous Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}

	var header metadata.MD
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer not.a.jwt")
	if _, err := client.Check(ctx, &healthpb.HealthCheckRequest{}, grpc.Header(&header)); err != nil {
		t.Fatalf("Check with bad token: %v", err)
	}
	if got := header.Get("x-auth-error"); len(got) != 1 || got[0] != string(security.ReasonMalformed) {
		t.Errorf("x-auth-error = %v, want [malformed]", got)
	}
}
