// worker runs scheduled cleanup of sessions, second-factor challenges and login attempts, and
// when KAFKA_BROKERS is set writes the security event stream to the log as an audit trail.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"collabhub/backend/internal/cleanup"
	"collabhub/backend/internal/config"
	"collabhub/backend/internal/db"
	"collabhub/backend/internal/logging"
	loginattemptrepo "collabhub/backend/internal/loginattempt/repository"
	mfarepo "collabhub/backend/internal/mfa/repository"
	organizationrepo "collabhub/backend/internal/organization/repository"
	sessionrepo "collabhub/backend/internal/session/repository"
	sessionservice "collabhub/backend/internal/session/service"
	"collabhub/backend/internal/telemetry/consumer"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: cfg.ServiceName + "-worker"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("worker")
	}
	logger.Info().Msg("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	runner, err := cleanup.NewRunner(cleanup.RunnerOptions{
		Sessions:         sessionservice.NewRegistry(sessionrepo.NewPostgresRepository(conn)),
		Organizations:    organizationrepo.NewPostgresRepository(conn),
		Attempts:         loginattemptrepo.NewPostgresRepository(conn),
		Challenges:       mfarepo.NewPostgresRepository(conn),
		Interval:         cfg.CleanupEvery(),
		AttemptRetention: cfg.AttemptRetention(),
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })

	if c := consumer.NewKafkaConsumer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic, consumer.DefaultGroupID, logger); c != nil {
		defer c.Close()
		logger.Info().Str("topic", cfg.TelemetryKafkaTopic).Msg("worker: consuming security events")
		g.Go(func() error { return c.Run(gctx, consumer.LogHandler(logger.With().Str("stream", "security").Logger())) })
	}
	return g.Wait()
}
