// Package sla raises one-time warning and breach notifications for tickets
// approaching or past their due date.
package sla

import (
	"time"

	"github.com/google/uuid"
)

// DefaultWarningWindow is how long before due_at the warning fires.
const DefaultWarningWindow = 2 * time.Hour

const (
	EventWarning = "SLA_WARNING"
	EventBreach  = "SLA_BREACH"
)

// Kind distinguishes the two alerts a ticket can receive.
type Kind string

const (
	KindWarning Kind = "warning"
	KindBreach  Kind = "breach"
)

// EventType is the notification event_type used for the alert.
func (k Kind) EventType() string {
	if k == KindBreach {
		return EventBreach
	}
	return EventWarning
}

// Candidate is an open ticket with a due date that may need an alert.
type Candidate struct {
	TicketID       uuid.UUID
	OrganizationID uuid.UUID
	Number         int64
	Title          string
	Status         string
	Priority       string
	AssigneeID     *uuid.UUID
	DueAt          time.Time
	WarningSentAt  *time.Time
	BreachSentAt   *time.Time
}

// Alert is a flag the monitor wants to set.
type Alert struct {
	Candidate
	Kind           Kind
	HoursRemaining float64
}

// Evaluate returns the alerts due at now. A ticket inside the warning window
// (0 < h <= window) gets a warning unless one was sent; an overdue ticket
// (h < 0) gets a breach unless one was sent. At most one alert per ticket.
func Evaluate(now time.Time, candidates []Candidate, window time.Duration) []Alert {
	if window <= 0 {
		window = DefaultWarningWindow
	}
	var alerts []Alert
	for _, c := range candidates {
		remaining := c.DueAt.Sub(now)
		hours := remaining.Hours()
		switch {
		case remaining < 0 && c.BreachSentAt == nil:
			alerts = append(alerts, Alert{Candidate: c, Kind: KindBreach, HoursRemaining: hours})
		case remaining > 0 && remaining <= window && c.WarningSentAt == nil:
			alerts = append(alerts, Alert{Candidate: c, Kind: KindWarning, HoursRemaining: hours})
		}
	}
	return alerts
}
