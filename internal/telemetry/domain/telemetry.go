package domain

import "time"

// EventType names a security event.
type EventType string

const (
	EventLoginSucceeded     EventType = "login_succeeded"
	EventLoginFailed        EventType = "login_failed"
	EventAccountLocked      EventType = "account_locked"
	EventAccountUnlocked    EventType = "account_unlocked"
	EventSessionRevoked     EventType = "session_revoked"
	EventRateLimited        EventType = "rate_limited"
	EventSecondFactorFailed EventType = "second_factor_failed"
)

// SecurityEvent is a best-effort record of something the security core decided. It never
// carries credentials or codes.
type SecurityEvent struct {
	Type       EventType `json:"event_type"`
	IdentityID string    `json:"identity_id,omitempty"`
	OrgID      int64     `json:"organization_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	IP         string    `json:"ip,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
