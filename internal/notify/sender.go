// Package notify delivers sign-in notifications (second-factor codes and email verification
// links). Delivery itself belongs to an external mail service; this package hands messages to it.
package notify

import (
	"context"
	"time"
)

// Kind identifies the message template.
type Kind string

const (
	KindSecondFactorCode  Kind = "second_factor_code"
	KindEmailVerification Kind = "email_verification"
)

// Message is one notification for one recipient.
type Message struct {
	Kind      Kind      `json:"template"`
	To        string    `json:"to"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sender delivers messages. Implementations must not log Code.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
