// server runs the HTTP API and the gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	grpchealth "google.golang.org/grpc/health"

	"collabhub/backend/internal/cleanup"
	"collabhub/backend/internal/config"
	"collabhub/backend/internal/db"
	"collabhub/backend/internal/health"
	identityhandler "collabhub/backend/internal/identity/handler"
	identityrepo "collabhub/backend/internal/identity/repository"
	identityservice "collabhub/backend/internal/identity/service"
	"collabhub/backend/internal/lockout"
	"collabhub/backend/internal/logging"
	loginattemptrepo "collabhub/backend/internal/loginattempt/repository"
	membershiprepo "collabhub/backend/internal/membership/repository"
	mfarepo "collabhub/backend/internal/mfa/repository"
	"collabhub/backend/internal/notify"
	"collabhub/backend/internal/platform/rbac"
	projectrepo "collabhub/backend/internal/project/repository"
	"collabhub/backend/internal/ratelimit"
	"collabhub/backend/internal/security"
	"collabhub/backend/internal/server"
	"collabhub/backend/internal/server/interceptors"
	sessionhandler "collabhub/backend/internal/session/handler"
	sessionrepo "collabhub/backend/internal/session/repository"
	sessionservice "collabhub/backend/internal/session/service"
	"collabhub/backend/internal/telemetry"
	telemetryotel "collabhub/backend/internal/telemetry/otel"
	"collabhub/backend/internal/telemetry/producer"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthCheckInterval = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is configured from cfg, so fall back to a bare one here.
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: cfg.ServiceName})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	otelEvents, err := telemetryotel.NewEventEmitter(providers.LoggerProvider, providers.MeterProvider)
	if err != nil {
		return err
	}
	events := otelEvents
	if kp := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic); kp != nil {
		defer kp.Close()
		events = telemetry.Fanout(otelEvents, kp)
		logger.Info().Str("topic", cfg.TelemetryKafkaTopic).Msg("publishing security events to kafka")
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	tokens, err := security.NewTokenIssuer(cfg.JWTSecretBytes, cfg.JWTIssuer)
	if err != nil {
		return err
	}
	eval, err := rbac.NewOPAEvaluator(ctx)
	if err != nil {
		return err
	}

	identities := identityrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)
	sessions := sessionservice.NewRegistry(sessionrepo.NewPostgresRepository(conn))
	limiter := ratelimit.New(cfg.RateLimitConfig())
	guard := rbac.NewGuard(memberships, projectrepo.NewPostgresRepository(conn), identities, eval)

	var (
		sender notify.Sender = notify.NewLogSender(logger)
		outbox *notify.Outbox
	)
	switch {
	case cfg.DevOutboxEnabled:
		outbox = notify.NewOutbox(logger)
		sender = outbox
	case cfg.NotifyWebhookURL != "":
		sender = notify.NewWebhookSender(cfg.NotifyWebhookURL, cfg.NotifyWebhookAPIKey)
	}

	auth := identityservice.NewAuthService(identityservice.Deps{
		Identities:      identities,
		Memberships:     memberships,
		Challenges:      mfarepo.NewPostgresRepository(conn),
		Attempts:        loginattemptrepo.NewPostgresRepository(conn),
		Sessions:        sessions,
		Lock:            lockout.NewGuard(identities, cfg.LockoutPolicy()),
		Limiter:         limiter,
		Tokens:          tokens,
		Hasher:          security.NewHasher(cfg.BcryptCost),
		Notifier:        sender,
		Events:          events,
		Authz:           guard,
		AccessTTL:       cfg.AccessTTL(),
		RefreshTTL:      cfg.RefreshTTL(),
		SecondFactorTTL: cfg.SecondFactorTTL(),
	})

	authHandler := identityhandler.NewAuthHandler(auth, guard)
	if outbox != nil {
		authHandler.WithDevOutbox(outbox)
		logger.Warn().Msg("dev outbox enabled: notifications are served from GET /dev/outbox")
	}

	authenticator := interceptors.NewAuthenticator(tokens, sessions)
	checker := health.NewChecker(conn, eval)
	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewHTTPHandler(server.HTTPDeps{
			Logger:   logger,
			Auth:     authenticator,
			Health:   checker,
			Handlers: []server.Routable{authHandler, sessionhandler.NewSessionHandler(auth)},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := server.NewGRPCServer(logger, authenticator)
	hs := grpchealth.NewServer()
	server.RegisterServices(grpcSrv, hs)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	// Entries are also swept lazily on Check and Record; this catches idle processes.
	sweeper, err := cleanup.NewRunner(cleanup.RunnerOptions{
		Limiter:  limiter,
		Interval: cfg.CleanupEvery(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.GRPCAddr).Msg("grpc server listening")
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		checker.Watch(logger.WithContext(gctx), hs, healthCheckInterval)
		return nil
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		hs.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		grpcSrv.GracefulStop()
		return err
	})
	return g.Wait()
}
