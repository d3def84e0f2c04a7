// Package lockout tracks failed sign-in attempts per identity and locks the account once a
// threshold is reached. Lock state moves Active -> Locked(until) -> Active through the pure
// transition functions in this file; Guard applies them atomically through a Store.
package lockout

import "time"

// Default policy values.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockDuration      = 15 * time.Minute
)

// State is the persisted lock state of one identity.
type State struct {
	FailedAttempts int
	Locked         bool
	LockedUntil    time.Time
}

// Policy configures when an identity is locked and for how long.
type Policy struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

func (p Policy) normalized() Policy {
	if p.MaxFailedAttempts <= 0 {
		p.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if p.LockDuration <= 0 {
		p.LockDuration = DefaultLockDuration
	}
	return p
}

// LockedAt reports whether s is locked at now. A lock whose until has passed is not in force.
func (s State) LockedAt(now time.Time) bool {
	return s.Locked && !now.After(s.LockedUntil)
}

// Cleared is the Active state with no recorded failures.
func Cleared() State {
	return State{}
}

// Evaluate returns the state as of now. An expired lock is unlocked and its counter reset;
// unlocked reports whether that happened. Any other state is returned unchanged.
func Evaluate(s State, now time.Time) (next State, unlocked bool) {
	if s.Locked && now.After(s.LockedUntil) {
		return Cleared(), true
	}
	return s, false
}

// RecordFailure applies one failed attempt at now. While a lock is in force the attempt is
// rejected without incrementing (changed is false). Reaching p.MaxFailedAttempts locks the
// state until now+p.LockDuration.
func RecordFailure(s State, p Policy, now time.Time) (next State, changed bool) {
	p = p.normalized()
	s, unlocked := Evaluate(s, now)
	if s.Locked {
		return s, unlocked
	}
	s.FailedAttempts++
	if s.FailedAttempts >= p.MaxFailedAttempts {
		s.Locked = true
		s.LockedUntil = now.Add(p.LockDuration)
	}
	return s, true
}

// RecordSuccess applies a verified sign-in at now. A lock still in force is kept and changed is
// false; otherwise the counter and any lapsed lock are cleared.
func RecordSuccess(s State, now time.Time) (next State, changed bool) {
	if s.LockedAt(now) {
		return s, false
	}
	return Cleared(), s != Cleared()
}
