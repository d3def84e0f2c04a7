package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender records that a message would be sent. Used when no webhook is configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{log: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Warn().Str("to", msg.To).Str("kind", string(msg.Kind)).Msg("no mail webhook configured; notification dropped")
	return nil
}
