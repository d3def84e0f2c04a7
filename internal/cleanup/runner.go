// Package cleanup periodically removes dead security state: revoked or expired sessions,
// expired second-factor challenges, old login attempts and idle rate-limit entries.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"collabhub/backend/internal/tenant"
)

// DefaultAttemptRetention is how long login attempts are kept.
const DefaultAttemptRetention = 30 * 24 * time.Hour

// SessionCleaner is implemented by the session registry.
type SessionCleaner interface {
	Cleanup(ctx context.Context, now time.Time) (int64, error)
	CleanupTenant(ctx context.Context, now time.Time) (int64, error)
}

// OrganizationLister lists every tenant.
type OrganizationLister interface {
	ListIDs(ctx context.Context) ([]int64, error)
}

// AttemptPurger removes old login attempts.
type AttemptPurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ChallengePurger removes expired second-factor challenges.
type ChallengePurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// LimiterSweeper evicts idle rate-limit entries.
type LimiterSweeper interface {
	Sweep(now time.Time) int
}

// RunnerOptions holds the dependencies for creating a Runner. Nil stores are skipped.
type RunnerOptions struct {
	Sessions      SessionCleaner
	Organizations OrganizationLister
	Attempts      AttemptPurger
	Challenges    ChallengePurger
	Limiter       LimiterSweeper

	Interval         time.Duration
	AttemptRetention time.Duration
	Logger           zerolog.Logger
	Now              func() time.Time
}

// Stats counts what one pass removed.
type Stats struct {
	TenantSessions   int64
	Sessions         int64
	Attempts         int64
	Challenges       int64
	RateLimitEntries int
}

// Runner runs cleanup passes on a ticker.
type Runner struct {
	opts RunnerOptions
}

// NewRunner creates a Runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("cleanup: interval must be positive")
	}
	if opts.Sessions != nil && opts.Organizations == nil {
		return nil, errors.New("cleanup: organizations are required to clean tenant sessions")
	}
	if opts.AttemptRetention <= 0 {
		opts.AttemptRetention = DefaultAttemptRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{opts: opts}, nil
}

// Run performs a pass immediately and then every interval until ctx is cancelled. Pass errors
// are logged, never returned.
func (r *Runner) Run(ctx context.Context) error {
	r.opts.Logger.Info().Dur("interval", r.opts.Interval).Msg("cleanup: runner started")
	t := time.NewTicker(r.opts.Interval)
	defer t.Stop()
	for {
		r.pass(ctx)
		select {
		case <-ctx.Done():
			r.opts.Logger.Info().Msg("cleanup: runner stopped")
			return nil
		case <-t.C:
		}
	}
}

func (r *Runner) pass(ctx context.Context) {
	start := time.Now()
	st, err := r.RunOnce(ctx)
	ev := r.opts.Logger.Info()
	if err != nil {
		ev = r.opts.Logger.Error().Err(err)
	}
	ev.Int64("tenant_sessions", st.TenantSessions).
		Int64("sessions", st.Sessions).
		Int64("login_attempts", st.Attempts).
		Int64("challenges", st.Challenges).
		Int("rate_limit_entries", st.RateLimitEntries).
		Dur("duration", time.Since(start)).
		Msg("cleanup: pass finished")
}

// RunOnce performs a single pass. Each tenant's sessions are cleaned under a fresh tenant
// context, so one failing tenant does not stop the others; all errors are joined.
func (r *Runner) RunOnce(ctx context.Context) (Stats, error) {
	var (
		st   Stats
		errs []error
	)
	now := r.opts.Now()

	if r.opts.Sessions != nil {
		ids, err := r.opts.Organizations.ListIDs(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("list organizations: %w", err))
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				return st, ctx.Err()
			}
			n, err := r.opts.Sessions.CleanupTenant(tenant.WithOrganization(ctx, id), now)
			if err != nil {
				errs = append(errs, fmt.Errorf("organization %d sessions: %w", id, err))
				continue
			}
			st.TenantSessions += n
		}
		n, err := r.opts.Sessions.Cleanup(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("sessions: %w", err))
		}
		st.Sessions = n
	}
	if r.opts.Attempts != nil {
		n, err := r.opts.Attempts.DeleteBefore(ctx, now.Add(-r.opts.AttemptRetention))
		if err != nil {
			errs = append(errs, fmt.Errorf("login attempts: %w", err))
		}
		st.Attempts = n
	}
	if r.opts.Challenges != nil {
		n, err := r.opts.Challenges.DeleteExpired(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("challenges: %w", err))
		}
		st.Challenges = n
	}
	if r.opts.Limiter != nil {
		st.RateLimitEntries = r.opts.Limiter.Sweep(now)
	}
	return st, errors.Join(errs...)
}
