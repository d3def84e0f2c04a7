package domain

import (
	"errors"
	"strings"
	"time"
)

const maxNameLen = 200

// Organization is a tenant. Its numeric id is the value carried in the tenant context.
type Organization struct {
	ID        int64
	Name      string
	Status    Status
	CreatedAt time.Time
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Validate trims the name and fills the default status.
func (o *Organization) Validate() error {
	o.Name = strings.TrimSpace(o.Name)
	switch {
	case o.Name == "":
		return errors.New("organization name is required")
	case len(o.Name) > maxNameLen:
		return errors.New("organization name is too long")
	}
	switch o.Status {
	case "":
		o.Status = StatusActive
	case StatusActive, StatusSuspended:
	default:
		return errors.New("unknown organization status " + string(o.Status))
	}
	return nil
}
