// migrate applies the embedded SQL migrations: go run ./cmd/migrate -direction up
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"collabhub/backend/internal/config"
	"collabhub/backend/internal/db/migrate"
	"collabhub/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.LoadWorker()
	if err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "migrate"})

	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	if err := migrate.Run(cfg.DatabaseURL, dir); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	logger.Info().Str("direction", string(dir)).Msg("migrations applied")
}
