package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"collabhub/backend/internal/telemetry"
	"collabhub/backend/internal/telemetry/domain"
)

const instrumentationName = "collabhub.security"

// SecurityEventsCounter is the name of the counter incremented once per emitted event.
const SecurityEventsCounter = "collabhub.security.events"

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via provider and
// counts them on a meter from mp. If provider is nil, returns a no-op emitter. mp may be nil.
func NewEventEmitter(provider *sdklog.LoggerProvider, mp otelmetric.MeterProvider) (telemetry.EventEmitter, error) {
	if provider == nil {
		return noopEmitter{}, nil
	}
	e := &otelEmitter{logger: provider.Logger(instrumentationName)}
	if mp != nil {
		counter, err := mp.Meter(instrumentationName).Int64Counter(SecurityEventsCounter,
			otelmetric.WithDescription("Security events emitted by the authentication core"),
			otelmetric.WithUnit("{event}"),
		)
		if err != nil {
			return nil, err
		}
		e.counter = counter
	}
	return e, nil
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.SecurityEvent) error { return nil }

type otelEmitter struct {
	logger  otellog.Logger
	counter otelmetric.Int64Counter
}

// Emit converts the event to an OTel log record, emits it, and increments the event counter.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.SecurityEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(severityFor(event.Type))
	rec.SetBody(otellog.StringValue(string(event.Type)))
	rec.AddAttributes(otellog.String("event_type", string(event.Type)))
	if event.IdentityID != "" {
		rec.AddAttributes(otellog.String("identity_id", event.IdentityID))
	}
	if event.OrgID != 0 {
		rec.AddAttributes(otellog.Int64("organization_id", event.OrgID))
	}
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.Email != "" {
		rec.AddAttributes(otellog.String("email", event.Email))
	}
	if event.IP != "" {
		rec.AddAttributes(otellog.String("client_ip", event.IP))
	}
	if event.Reason != "" {
		rec.AddAttributes(otellog.String("reason", event.Reason))
	}
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	e.logger.Emit(ctx, rec)
	if e.counter != nil {
		e.counter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("event_type", string(event.Type))))
	}
	return nil
}

func severityFor(t domain.EventType) otellog.Severity {
	switch t {
	case domain.EventAccountLocked, domain.EventRateLimited:
		return otellog.SeverityWarn
	case domain.EventLoginFailed, domain.EventSecondFactorFailed:
		return otellog.SeverityInfo2
	default:
		return otellog.SeverityInfo
	}
}
