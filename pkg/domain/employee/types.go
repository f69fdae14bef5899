// Package employee defines the employee roster domain model.
//
// Employees are server-owned: the kiosk only ever receives them through
// sync pull and never deletes them locally. Deactivation is carried by
// Status, not by row removal.
package employee

import (
	"fmt"
	"strings"
)

// Roster statuses. The server may introduce further values; the kiosk
// only interprets "active".
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Employee is one roster entry, keyed by the server-assigned ID.
// Code is the human-facing employee number (e.g. "EMP001").
type Employee struct {
	ID           int64
	Code         string
	FirstName    string
	MiddleName   string
	LastName     string
	Email        string
	Phone        string
	Department   string
	Position     string
	Status       string
	ProfilePhoto string
	CreatedAt    string
	UpdatedAt    string
}

// FullName returns "First Last" for display and log lines.
func (e Employee) FullName() string {
	return fmt.Sprintf("%s %s", e.FirstName, e.LastName)
}

// IsActive reports whether the employee may be matched and logged.
func (e Employee) IsActive() bool {
	return strings.EqualFold(e.Status, StatusActive)
}
