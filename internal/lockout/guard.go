package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownIdentity is returned by a Store when the identity does not exist.
var ErrUnknownIdentity = errors.New("unknown identity")

// AccountLockedError is returned when a sign-in is attempted against a locked account.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// RetryAfter returns how long from now until the lock lapses, at least one second.
func (e *AccountLockedError) RetryAfter(now time.Time) time.Duration {
	d := e.Until.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d
}

// TransitionFunc computes the next state from the current one. When changed is false the
// store skips the write.
type TransitionFunc func(current State) (next State, changed bool)

// Store persists lock state. UpdateLockState must run fn and write its result atomically with
// respect to other updates for the same identity and return the state in force afterwards.
type Store interface {
	LockState(ctx context.Context, identityID string) (State, error)
	UpdateLockState(ctx context.Context, identityID string, fn TransitionFunc) (State, error)
}

// Guard is the account lock guard used by the sign-in flow.
type Guard struct {
	store  Store
	policy Policy
	now    func() time.Time
}

// NewGuard returns a Guard over store. Zero policy fields take the package defaults.
func NewGuard(store Store, policy Policy) *Guard {
	return &Guard{store: store, policy: policy.normalized(), now: time.Now}
}

// WithClock returns a copy of g that reads time from now.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	cp := *g
	cp.now = now
	return &cp
}

// Policy returns the effective policy.
func (g *Guard) Policy() Policy {
	return g.policy
}

// OnFailedAttempt records a failed sign-in for identityID and returns the resulting state.
// Attempts made while the lock is in force do not increment the counter.
func (g *Guard) OnFailedAttempt(ctx context.Context, identityID string) (State, error) {
	now := g.now()
	st, err := g.store.UpdateLockState(ctx, identityID, func(cur State) (State, bool) {
		return RecordFailure(cur, g.policy, now)
	})
	if err != nil {
		return State{}, fmt.Errorf("record failed attempt: %w", err)
	}
	return st, nil
}

// OnSuccess clears the counter of identityID after a verified sign-in. The transition runs
// under the store's update lock: when a lock was taken after the caller's Check, it stays in
// place and *AccountLockedError is returned.
func (g *Guard) OnSuccess(ctx context.Context, identityID string) error {
	now := g.now()
	st, err := g.store.UpdateLockState(ctx, identityID, func(cur State) (State, bool) {
		return RecordSuccess(cur, now)
	})
	if err != nil {
		return fmt.Errorf("clear lock state: %w", err)
	}
	if st.LockedAt(now) {
		return &AccountLockedError{Until: st.LockedUntil}
	}
	return nil
}

// Reset clears the counter and any lock for identityID. Used by administrative unlock.
func (g *Guard) Reset(ctx context.Context, identityID string) error {
	_, err := g.store.UpdateLockState(ctx, identityID, func(cur State) (State, bool) {
		return Cleared(), cur != Cleared()
	})
	if err != nil {
		return fmt.Errorf("clear lock state: %w", err)
	}
	return nil
}

// IsLocked reports whether identityID is locked at the current time and until when. A lock
// whose until has passed is unlocked as an Evaluate transition under the store's update lock,
// so a lock taken concurrently by another caller is never discarded.
func (g *Guard) IsLocked(ctx context.Context, identityID string) (bool, time.Time, error) {
	now := g.now()
	st, err := g.store.LockState(ctx, identityID)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("read lock state: %w", err)
	}
	if !st.Locked {
		return false, time.Time{}, nil
	}
	if st.LockedAt(now) {
		return true, st.LockedUntil, nil
	}
	st, err = g.store.UpdateLockState(ctx, identityID, func(cur State) (State, bool) {
		return Evaluate(cur, now)
	})
	if err != nil {
		return false, time.Time{}, fmt.Errorf("unlock expired lock: %w", err)
	}
	if st.LockedAt(now) {
		return true, st.LockedUntil, nil
	}
	return false, time.Time{}, nil
}

// Check returns *AccountLockedError when identityID is locked, nil otherwise.
func (g *Guard) Check(ctx context.Context, identityID string) error {
	locked, until, err := g.IsLocked(ctx, identityID)
	if err != nil {
		return err
	}
	if locked {
		return &AccountLockedError{Until: until}
	}
	return nil
}
