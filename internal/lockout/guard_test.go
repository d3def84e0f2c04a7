package lockout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGuard(t *testing.T, ids ...string) (*Guard, *MemoryStore, *fakeClock) {
	t.Helper()
	store := NewMemoryStore()
	for _, id := range ids {
		store.Add(id)
	}
	clock := &fakeClock{now: t0}
	g := NewGuard(store, Policy{MaxFailedAttempts: 5, LockDuration: 15 * time.Minute}).WithClock(clock.Now)
	return g, store, clock
}

func TestGuard_LocksAtThreshold(t *testing.T) {
	ctx := context.Background()
	g, store, clock := newTestGuard(t, "u1")

	for i := 1; i <= 4; i++ {
		st, err := g.OnFailedAttempt(ctx, "u1")
		if err != nil {
			t.Fatalf("OnFailedAttempt %d: %v", i, err)
		}
		if st.Locked || st.FailedAttempts != i {
			t.Fatalf("after %d failures: %+v", i, st)
		}
	}
	st, err := g.OnFailedAttempt(ctx, "u1")
	if err != nil {
		t.Fatalf("OnFailedAttempt 5: %v", err)
	}
	if !st.Locked || !st.LockedUntil.After(clock.Now()) {
		t.Fatalf("after 5 failures: want locked with future until, got %+v", st)
	}

	// Sixth attempt while locked is not counted.
	st, err = g.OnFailedAttempt(ctx, "u1")
	if err != nil {
		t.Fatalf("OnFailedAttempt 6: %v", err)
	}
	if st.FailedAttempts != 5 {
		t.Errorf("failed attempts after locked attempt = %d, want 5", st.FailedAttempts)
	}

	locked, until, err := g.IsLocked(ctx, "u1")
	if err != nil || !locked || !until.Equal(t0.Add(15*time.Minute)) {
		t.Fatalf("IsLocked = %v, %v, %v", locked, until, err)
	}
	var lockedErr *AccountLockedError
	if err := g.Check(ctx, "u1"); !errors.As(err, &lockedErr) {
		t.Fatalf("Check: want AccountLockedError, got %v", err)
	}
	if got := lockedErr.RetryAfter(clock.Now()); got != 15*time.Minute {
		t.Errorf("RetryAfter = %v, want 15m", got)
	}

	clock.Advance(15*time.Minute + time.Second)
	locked, _, err = g.IsLocked(ctx, "u1")
	if err != nil || locked {
		t.Fatalf("IsLocked after expiry = %v, %v; want false", locked, err)
	}
	persisted, _ := store.LockState(ctx, "u1")
	if persisted != Cleared() {
		t.Errorf("persisted state after auto-unlock = %+v, want cleared", persisted)
	}
}

func TestGuard_OnSuccessAndReset(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newTestGuard(t, "u1")
	for i := 0; i < 3; i++ {
		if _, err := g.OnFailedAttempt(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.OnSuccess(ctx, "u1"); err != nil {
		t.Fatalf("OnSuccess: %v", err)
	}
	if st, _ := store.LockState(ctx, "u1"); st != Cleared() {
		t.Errorf("after OnSuccess = %+v", st)
	}
	for i := 0; i < 5; i++ {
		if _, err := g.OnFailedAttempt(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if locked, _, _ := g.IsLocked(ctx, "u1"); locked {
		t.Error("locked after Reset")
	}
}

func TestGuard_OnSuccessKeepsLockInForce(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newTestGuard(t, "u1")
	for i := 0; i < 5; i++ {
		if _, err := g.OnFailedAttempt(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
	}
	var lockedErr *AccountLockedError
	if err := g.OnSuccess(ctx, "u1"); !errors.As(err, &lockedErr) {
		t.Fatalf("OnSuccess while locked: want AccountLockedError, got %v", err)
	}
	if !lockedErr.Until.Equal(t0.Add(15 * time.Minute)) {
		t.Errorf("Until = %v, want %v", lockedErr.Until, t0.Add(15*time.Minute))
	}
	st, _ := store.LockState(ctx, "u1")
	if !st.Locked || st.FailedAttempts != 5 {
		t.Errorf("state after refused success = %+v, want locked with 5 failures", st)
	}
}

func TestGuard_UnknownIdentity(t *testing.T) {
	g, _, _ := newTestGuard(t)
	if _, err := g.OnFailedAttempt(context.Background(), "missing"); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("OnFailedAttempt: want ErrUnknownIdentity, got %v", err)
	}
	if _, _, err := g.IsLocked(context.Background(), "missing"); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("IsLocked: want ErrUnknownIdentity, got %v", err)
	}
}

func TestGuard_ConcurrentFailuresLock(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{5, 6, 50} {
		g, store, _ := newTestGuard(t, "u1")
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := g.OnFailedAttempt(ctx, "u1"); err != nil {
					t.Error(err)
				}
			}()
		}
		wg.Wait()
		st, _ := store.LockState(ctx, "u1")
		if !st.Locked || st.FailedAttempts != 5 {
			t.Errorf("n=%d: state = %+v, want locked with 5 failures", n, st)
		}
	}
}

func TestGuard_ConcurrentIsLockedAfterExpiry(t *testing.T) {
	ctx := context.Background()
	g, store, clock := newTestGuard(t, "u1")
	for i := 0; i < 5; i++ {
		if _, err := g.OnFailedAttempt(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
	}
	clock.Advance(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, _, err := g.IsLocked(ctx, "u1"); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := g.OnFailedAttempt(ctx, "u1"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// Twenty failures after the unlock must re-lock regardless of interleaving with readers.
	st, _ := store.LockState(ctx, "u1")
	if !st.Locked {
		t.Errorf("state = %+v, want re-locked", st)
	}
}
