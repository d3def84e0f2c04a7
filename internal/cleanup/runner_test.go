package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	loginattemptdomain "collabhub/backend/internal/loginattempt/domain"
	loginattemptrepo "collabhub/backend/internal/loginattempt/repository"
	mfadomain "collabhub/backend/internal/mfa/domain"
	mfarepo "collabhub/backend/internal/mfa/repository"
	"collabhub/backend/internal/ratelimit"
	sessionrepo "collabhub/backend/internal/session/repository"
	sessionservice "collabhub/backend/internal/session/service"
	"collabhub/backend/internal/tenant"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type staticOrgs struct {
	ids []int64
	err error
}

func (s staticOrgs) ListIDs(context.Context) ([]int64, error) { return s.ids, s.err }

// tenantRecorder records the tenant seen by each CleanupTenant call.
type tenantRecorder struct {
	mu      sync.Mutex
	seen    []int64
	failOrg int64
}

func (r *tenantRecorder) Cleanup(context.Context, time.Time) (int64, error) { return 0, nil }

func (r *tenantRecorder) CleanupTenant(ctx context.Context, _ time.Time) (int64, error) {
	id, err := tenant.Require(ctx)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.seen = append(r.seen, id)
	r.mu.Unlock()
	if id == r.failOrg {
		return 0, errors.New("db down")
	}
	return 1, nil
}

func record(t *testing.T, reg *sessionservice.Registry, id string, orgID int64, expires time.Time) {
	t.Helper()
	if err := reg.Record(context.Background(), sessionservice.RecordParams{
		IdentityID: "user-" + id, TokenID: id, OrgID: orgID, IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: expires,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	reg := sessionservice.NewRegistry(sessionrepo.NewMemoryRepository()).WithClock(func() time.Time { return now })
	record(t, reg, "expired-org7", 7, now.Add(-time.Minute))
	record(t, reg, "live-org7", 7, now.Add(time.Hour))
	record(t, reg, "revoked-org9", 9, now.Add(time.Hour))
	record(t, reg, "expired-none", 0, now.Add(-time.Minute))
	record(t, reg, "live-none", 0, now.Add(time.Hour))
	if err := reg.Revoke(ctx, "revoked-org9"); err != nil {
		t.Fatal(err)
	}

	attempts := loginattemptrepo.NewMemoryRepository()
	_ = attempts.Create(ctx, &loginattemptdomain.Attempt{ID: "old", Email: "a@example.com", AttemptedAt: now.Add(-31 * 24 * time.Hour)})
	_ = attempts.Create(ctx, &loginattemptdomain.Attempt{ID: "new", Email: "a@example.com", AttemptedAt: now.Add(-time.Hour)})

	challenges := mfarepo.NewMemoryRepository()
	_ = challenges.Create(ctx, &mfadomain.Challenge{ID: "c1", IdentityID: "user-1", ExpiresAt: now.Add(-time.Second)})
	_ = challenges.Create(ctx, &mfadomain.Challenge{ID: "c2", IdentityID: "user-1", ExpiresAt: now.Add(time.Minute)})

	limiter := ratelimit.New(ratelimit.Config{
		Rules:           map[string]ratelimit.Rule{ratelimit.ActionSecondFactor: {MaxAttempts: 5, Window: 5 * time.Minute}},
		EvictionHorizon: 2 * time.Hour,
		Now:             func() time.Time { return now.Add(-3 * time.Hour) },
	})
	limiter.Record(ratelimit.ActionSecondFactor, "user-1")

	r, err := NewRunner(RunnerOptions{
		Sessions:      reg,
		Organizations: staticOrgs{ids: []int64{7, 9}},
		Attempts:      attempts,
		Challenges:    challenges,
		Limiter:       limiter,
		Interval:      time.Hour,
		Logger:        zerolog.Nop(),
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}
	st, err := r.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	want := Stats{TenantSessions: 2, Sessions: 1, Attempts: 1, Challenges: 1, RateLimitEntries: 1}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}

	for _, id := range []string{"live-org7", "live-none"} {
		if s, _ := reg.Get(ctx, id); s == nil {
			t.Errorf("live session %s was removed", id)
		}
	}
	for _, id := range []string{"expired-org7", "revoked-org9", "expired-none"} {
		if s, _ := reg.Get(ctx, id); s != nil {
			t.Errorf("session %s survived cleanup", id)
		}
	}
	if c, _ := challenges.GetByID(ctx, "c2"); c == nil {
		t.Error("live challenge was removed")
	}
}

func TestRunOnce_TenantFailureDoesNotStopOthers(t *testing.T) {
	rec := &tenantRecorder{failOrg: 2}
	r, err := NewRunner(RunnerOptions{
		Sessions:      rec,
		Organizations: staticOrgs{ids: []int64{1, 2, 3}},
		Interval:      time.Hour,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	st, err := r.RunOnce(context.Background())
	if err == nil {
		t.Fatal("want joined error for organization 2")
	}
	if st.TenantSessions != 2 {
		t.Errorf("tenant sessions = %d, want 2", st.TenantSessions)
	}
	if len(rec.seen) != 3 || rec.seen[0] != 1 || rec.seen[1] != 2 || rec.seen[2] != 3 {
		t.Errorf("tenants visited = %v", rec.seen)
	}
}

func TestNewRunner_Validation(t *testing.T) {
	if _, err := NewRunner(RunnerOptions{}); err == nil {
		t.Error("zero interval should be rejected")
	}
	if _, err := NewRunner(RunnerOptions{Interval: time.Minute, Sessions: &tenantRecorder{}}); err == nil {
		t.Error("sessions without organizations should be rejected")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	rec := &tenantRecorder{}
	r, _ := NewRunner(RunnerOptions{
		Sessions:      rec,
		Organizations: staticOrgs{ids: []int64{1}},
		Interval:      time.Hour,
		Logger:        zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		rec.mu.Lock()
		n := len(rec.seen)
		rec.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first pass did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
