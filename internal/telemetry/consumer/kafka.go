// Package consumer reads security events back from Kafka.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"collabhub/backend/internal/telemetry/domain"
)

// DefaultGroupID is the consumer group of the worker's audit log.
const DefaultGroupID = "collabhub-security-audit"

// Read error backoff bounds.
const (
	minReadBackoff = 200 * time.Millisecond
	maxReadBackoff = 30 * time.Second
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *domain.SecurityEvent) error

// KafkaConsumer reads SecurityEvent JSON messages from a topic.
type KafkaConsumer struct {
	reader messageReader
	log    zerolog.Logger

	// Zero values take minReadBackoff, maxReadBackoff and sleepCtx.
	minBackoff time.Duration
	maxBackoff time.Duration
	wait       func(ctx context.Context, d time.Duration) error
}

// NewKafkaConsumer returns a consumer in groupID. It returns nil when brokers or topic are
// empty so callers can treat Kafka as optional.
func NewKafkaConsumer(brokers []string, topic, groupID string, logger zerolog.Logger) *KafkaConsumer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if groupID == "" {
		groupID = DefaultGroupID
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	return &KafkaConsumer{reader: reader, log: logger}
}

// Run reads until ctx is cancelled or the reader is closed. Undecodable messages and handler
// errors are logged and skipped; events are best-effort. Consecutive read errors back off
// exponentially up to maxBackoff.
func (c *KafkaConsumer) Run(ctx context.Context, handle Handler) error {
	var failures int
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			failures++
			d := c.backoff(failures)
			c.log.Warn().Err(err).Int("failures", failures).Dur("retry_in", d).Msg("consumer: kafka read failed")
			if c.sleep(ctx, d) != nil {
				return nil
			}
			continue
		}
		failures = 0
		var ev domain.SecurityEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Warn().Err(err).Int64("offset", msg.Offset).Msg("consumer: undecodable event")
			continue
		}
		if err := handle(ctx, &ev); err != nil {
			c.log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("consumer: handler failed")
		}
	}
}

func (c *KafkaConsumer) backoff(failures int) time.Duration {
	lo, hi := c.minBackoff, c.maxBackoff
	if lo <= 0 {
		lo = minReadBackoff
	}
	if hi <= 0 {
		hi = maxReadBackoff
	}
	d := lo
	for i := 1; i < failures && d < hi; i++ {
		d *= 2
	}
	if d > hi {
		d = hi
	}
	return d
}

func (c *KafkaConsumer) sleep(ctx context.Context, d time.Duration) error {
	if c.wait != nil {
		return c.wait(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close closes the reader. Safe on a nil consumer.
func (c *KafkaConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// LogHandler writes each event to logger as one structured line.
func LogHandler(logger zerolog.Logger) Handler {
	return func(_ context.Context, ev *domain.SecurityEvent) error {
		e := logger.Info()
		switch ev.Type {
		case domain.EventAccountLocked, domain.EventRateLimited, domain.EventSecondFactorFailed:
			e = logger.Warn()
		}
		e.Str("event_type", string(ev.Type)).
			Str("identity_id", ev.IdentityID).
			Int64("organization_id", ev.OrgID).
			Str("session_id", ev.SessionID).
			Str("ip", ev.IP).
			Str("reason", ev.Reason).
			Str("source", ev.Source).
			Time("occurred_at", ev.OccurredAt).
			Msg("security event")
		return nil
	}
}
