package license

import (
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusExpired  = "expired"
)

type License struct {
	ID         string
	Key        string
	ProductID  string
	CustomerID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	HardwareID string
	Features   []string
	Active     bool
}

// Status is derived at query time; expiry is never stored as a transition.
func (l *License) Status(now time.Time) string {
	if !l.Active {
		return StatusInactive
	}
	if l.ExpiresAt.Before(now) {
		return StatusExpired
	}
	return StatusActive
}

// Bound reports whether the license is tied to a hardware id.
func (l *License) Bound() bool {
	return l.HardwareID != ""
}

type CreateParams struct {
	ProductID    string
	CustomerID   string
	HardwareID   string
	Features     []string
	DurationDays int
}

type ValidationResult struct {
	Valid    bool
	Token    string
	Features []string
}
