// Package ratelimit provides an in-process fixed-window attempt limiter keyed by (action, identifier).
//
// State is held in memory and shared by all requests in the process. It is not synchronized
// across processes; running several replicas multiplies the effective limit by the replica count.
package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Well-known actions guarded by the limiter.
const (
	ActionSecondFactor      = "2fa"
	ActionVerificationEmail = "verification-email"
)

const (
	// DefaultEvictionHorizon bounds how long an idle entry is retained.
	DefaultEvictionHorizon = 2 * time.Hour
	defaultSweepInterval   = time.Minute
)

// Rule is the attempt budget for one action.
type Rule struct {
	MaxAttempts int
	Window      time.Duration
}

// TooManyRequestsError is returned by Check and Reserve when the identifier exhausted its budget.
type TooManyRequestsError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests for %s; retry after %s", e.Action, e.RetryAfter.Round(time.Second))
}

// Config configures a Limiter.
type Config struct {
	Rules map[string]Rule
	// EvictionHorizon is the age after which entries are dropped regardless of window state.
	EvictionHorizon time.Duration
	// SweepInterval is the minimum time between eviction sweeps.
	SweepInterval time.Duration
	Now           func() time.Time
}

type key struct {
	action     string
	identifier string
}

type entry struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	evicted     bool
}

// Limiter counts attempts per (action, identifier) in fixed windows. A window opens on the
// first recorded attempt and resets entirely once it has elapsed, so a burst straddling a
// boundary can admit up to twice the budget.
type Limiter struct {
	rules         map[string]Rule
	horizon       time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	entries   sync.Map // key -> *entry
	lastSweep atomic.Int64
}

// New returns a Limiter for the configured rules.
func New(cfg Config) *Limiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.EvictionHorizon <= 0 {
		cfg.EvictionHorizon = DefaultEvictionHorizon
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	rules := make(map[string]Rule, len(cfg.Rules))
	for action, r := range cfg.Rules {
		rules[action] = r
	}
	l := &Limiter{
		rules:         rules,
		horizon:       cfg.EvictionHorizon,
		sweepInterval: cfg.SweepInterval,
		now:           cfg.Now,
	}
	l.lastSweep.Store(cfg.Now().UnixNano())
	return l
}

// Check returns *TooManyRequestsError when identifier reached the action's budget in the
// active window. Actions without a rule are never limited.
func (l *Limiter) Check(action, identifier string) error {
	now := l.now()
	l.maybeSweep(now)
	rule, ok := l.rules[action]
	if !ok || rule.MaxAttempts <= 0 {
		return nil
	}
	v, ok := l.entries.Load(key{action, identifier})
	if !ok {
		return nil
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted || windowExpired(e.windowStart, rule.Window, now) {
		return nil
	}
	if e.count >= rule.MaxAttempts {
		return &TooManyRequestsError{Action: action, RetryAfter: retryAfter(e.windowStart, rule.Window, now)}
	}
	return nil
}

// Record counts one attempt, opening a new window when none is active.
func (l *Limiter) Record(action, identifier string) {
	now := l.now()
	l.maybeSweep(now)
	rule := l.rules[action]
	l.withEntry(key{action, identifier}, func(e *entry) {
		openWindow(e, rule, now)
		e.count++
	})
}

// Reserve checks the budget and counts the attempt in one step, so concurrent callers can never
// be admitted beyond MaxAttempts in a window. A refused attempt is not counted and returns
// *TooManyRequestsError. Actions without a rule are never limited.
func (l *Limiter) Reserve(action, identifier string) error {
	now := l.now()
	l.maybeSweep(now)
	rule, ok := l.rules[action]
	if !ok || rule.MaxAttempts <= 0 {
		return nil
	}
	var err error
	l.withEntry(key{action, identifier}, func(e *entry) {
		openWindow(e, rule, now)
		if e.count >= rule.MaxAttempts {
			err = &TooManyRequestsError{Action: action, RetryAfter: retryAfter(e.windowStart, rule.Window, now)}
			return
		}
		e.count++
	})
	return err
}

// withEntry runs fn on the live entry for k while holding its lock.
func (l *Limiter) withEntry(k key, fn func(e *entry)) {
	for {
		v, _ := l.entries.LoadOrStore(k, &entry{})
		e := v.(*entry)
		e.mu.Lock()
		if e.evicted {
			// Lost a race with the sweeper or Clear; retry against a fresh entry.
			e.mu.Unlock()
			continue
		}
		fn(e)
		e.mu.Unlock()
		return
	}
}

func openWindow(e *entry, rule Rule, now time.Time) {
	if e.windowStart.IsZero() || windowExpired(e.windowStart, rule.Window, now) {
		e.windowStart = now
		e.count = 0
	}
}

// Clear resets the state for (action, identifier).
func (l *Limiter) Clear(action, identifier string) {
	k := key{action, identifier}
	v, ok := l.entries.Load(k)
	if !ok {
		return
	}
	e := v.(*entry)
	e.mu.Lock()
	e.evicted = true
	l.entries.CompareAndDelete(k, e)
	e.mu.Unlock()
}

// Attempts returns the attempt count in the active window.
func (l *Limiter) Attempts(action, identifier string) int {
	v, ok := l.entries.Load(key{action, identifier})
	if !ok {
		return 0
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted || windowExpired(e.windowStart, l.rules[action].Window, l.now()) {
		return 0
	}
	return e.count
}

// Sweep evicts entries whose window started before now minus the eviction horizon and
// returns how many were removed.
func (l *Limiter) Sweep(now time.Time) int {
	cutoff := now.Add(-l.horizon)
	removed := 0
	l.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if !e.evicted && e.windowStart.Before(cutoff) {
			e.evicted = true
			l.entries.CompareAndDelete(k, e)
			removed++
		}
		e.mu.Unlock()
		return true
	})
	return removed
}

func (l *Limiter) maybeSweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(l.sweepInterval) {
		return
	}
	if !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	l.Sweep(now)
}

func retryAfter(start time.Time, window time.Duration, now time.Time) time.Duration {
	if d := start.Add(window).Sub(now); d > 0 {
		return d
	}
	return 0
}

func windowExpired(start time.Time, window time.Duration, now time.Time) bool {
	return now.After(start.Add(window))
}
