package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"collabhub/backend/internal/telemetry/domain"
)

// recordingExporter implements sdklog.Exporter and keeps exported records.
type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em, err := NewEventEmitter(nil, nil)
	if err != nil {
		t.Fatalf("NewEventEmitter: %v", err)
	}
	if err := em.Emit(context.Background(), &domain.SecurityEvent{Type: domain.EventLoginFailed}); err != nil {
		t.Errorf("noop Emit = %v", err)
	}
}

func TestEmit_RecordAndCounter(t *testing.T) {
	ctx := context.Background()
	exp := &recordingExporter{}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	em, err := NewEventEmitter(lp, mp)
	if err != nil {
		t.Fatalf("NewEventEmitter: %v", err)
	}
	when := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	ev := &domain.SecurityEvent{
		Type:       domain.EventAccountLocked,
		IdentityID: "u1",
		OrgID:      7,
		Email:      "a@example.com",
		IP:         "10.0.0.1",
		Reason:     "threshold",
		OccurredAt: when,
	}
	if err := em.Emit(ctx, ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := em.Emit(ctx, nil); err != nil {
		t.Fatalf("Emit(nil): %v", err)
	}

	exp.mu.Lock()
	defer exp.mu.Unlock()
	if len(exp.records) != 1 {
		t.Fatalf("exported %d records, want 1", len(exp.records))
	}
	rec := exp.records[0]
	if !rec.Timestamp().Equal(when) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), when)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want WARN", rec.Severity())
	}
	attrs := map[string]otellog.Value{}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	if attrs["event_type"].AsString() != "account_locked" {
		t.Errorf("event_type = %v", attrs["event_type"])
	}
	if attrs["organization_id"].AsInt64() != 7 {
		t.Errorf("organization_id = %v", attrs["organization_id"])
	}
	if attrs["identity_id"].AsString() != "u1" || attrs["client_ip"].AsString() != "10.0.0.1" {
		t.Errorf("attributes = %v", attrs)
	}
	if _, ok := attrs["session_id"]; ok {
		t.Error("empty session_id should not be set")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != SecurityEventsCounter {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("counter data = %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 1 {
		t.Errorf("counter total = %d, want 1", total)
	}
}
