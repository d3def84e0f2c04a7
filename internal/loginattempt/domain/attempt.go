package domain

import "time"

// Attempt is one sign-in attempt. Attempts are append-only and purged after the retention window.
type Attempt struct {
	ID            string
	Email         string
	IP            string
	Success       bool
	FailureReason FailureReason // empty on success
	AttemptedAt   time.Time
}

type FailureReason string

const (
	FailureInvalidCredentials FailureReason = "invalid_credentials"
	FailureAccountLocked      FailureReason = "account_locked"
	FailureAccountDisabled    FailureReason = "account_disabled"
	FailureSecondFactor       FailureReason = "second_factor"
	FailureRateLimited        FailureReason = "rate_limited"
)
