package domain

import (
	"errors"
	"strings"
	"time"
)

// Identity is a local account: credentials, status and the flags the sign-in flow reads.
// Lock state lives on the same row and is owned by the lockout guard.
type Identity struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	Status           Status
	EmailVerified    bool
	TwoFactorEnabled bool
	SuperAdmin       bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// NormalizeEmail lowercases and trims an email address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the identity for persistence. Returns an error describing the first validation failure.
func (i *Identity) Validate() error {
	if i.ID == "" {
		return errors.New("id is required")
	}
	if i.Email == "" {
		return errors.New("email is required")
	}
	if i.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if i.Status == "" {
		i.Status = StatusActive
	}
	return nil
}
