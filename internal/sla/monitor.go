package sla

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/notification/templates"
	"helpdesk_backend/platform/logger"
	"helpdesk_backend/platform/metrics"
)

const defaultBatchSize = 500

type Store interface {
	ListCandidates(ctx context.Context, now, horizon time.Time, limit int) ([]Candidate, error)
	Apply(ctx context.Context, now time.Time, planned []Planned) (Applied, error)
}

type TemplateResolver interface {
	Resolve(ctx context.Context, organizationID uuid.UUID, eventType, channel string) (templates.Template, error)
}

// Planned pairs an alert with the notification to queue if its flag is won.
// Notification is nil when the ticket has nobody to notify.
type Planned struct {
	Alert        Alert
	Notification *outbox.InsertParams
}

// Applied reports the alerts whose flag this run set and how many
// notifications were queued for them.
type Applied struct {
	Won      []Alert
	Notified int
}

// ScanResult summarizes one monitor run.
type ScanResult struct {
	Scanned  int `json:"scanned"`
	Warnings int `json:"warnings"`
	Breaches int `json:"breaches"`
	Notified int `json:"notified"`
}

type Monitor struct {
	store     Store
	templates TemplateResolver
	window    time.Duration
	batchSize int
	log       *logger.Logger
	now       func() time.Time
}

type Option func(*Monitor)

func WithWindow(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.window = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

func NewMonitor(store Store, tpls TemplateResolver, log *logger.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		store:     store,
		templates: tpls,
		window:    DefaultWarningWindow,
		batchSize: defaultBatchSize,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Scan evaluates open tickets and sets each SLA flag at most once. Flags and
// their notifications are written together, so a lost race on a flag never
// produces a duplicate notification.
func (m *Monitor) Scan(ctx context.Context) (ScanResult, error) {
	now := m.now().UTC()
	candidates, err := m.store.ListCandidates(ctx, now, now.Add(m.window), m.batchSize)
	if err != nil {
		return ScanResult{}, fmt.Errorf("list sla candidates: %w", err)
	}
	result := ScanResult{Scanned: len(candidates)}

	alerts := Evaluate(now, candidates, m.window)
	if len(alerts) == 0 {
		return result, nil
	}

	planned := make([]Planned, 0, len(alerts))
	for _, a := range alerts {
		planned = append(planned, Planned{Alert: a, Notification: m.notification(ctx, a)})
	}

	applied, err := m.store.Apply(ctx, now, planned)
	if err != nil {
		return result, fmt.Errorf("apply sla flags: %w", err)
	}
	for _, a := range applied.Won {
		metrics.SLAAlerts.WithLabelValues(string(a.Kind)).Inc()
		if a.Kind == KindBreach {
			result.Breaches++
		} else {
			result.Warnings++
		}
	}
	result.Notified = applied.Notified

	m.log.Info("sla scan completed",
		"scanned", result.Scanned,
		"warnings", result.Warnings,
		"breaches", result.Breaches,
		"notified", result.Notified,
	)
	return result, nil
}

// notification builds the assignee email for a. Organizations with a template
// for the event get it referenced; the rest get a plain text message.
func (m *Monitor) notification(ctx context.Context, a Alert) *outbox.InsertParams {
	if a.AssigneeID == nil {
		m.log.Debug("sla alert without assignee", "ticketId", a.TicketID, "kind", string(a.Kind))
		return nil
	}
	ticketID := a.TicketID
	assignee := *a.AssigneeID
	p := &outbox.InsertParams{
		OrganizationID: a.OrganizationID,
		TicketID:       &ticketID,
		RecipientID:    &assignee,
		Channel:        outbox.ChannelEmail,
		EventType:      a.Kind.EventType(),
		Subject:        subject(a),
		Body:           body(a),
	}

	tpl, err := m.templates.Resolve(ctx, a.OrganizationID, a.Kind.EventType(), string(outbox.ChannelEmail))
	switch {
	case err == nil:
		templateID := tpl.ID
		p.TemplateData = &outbox.TemplateData{TemplateID: &templateID, Variables: variables(a)}
	case !errors.Is(err, templates.ErrNotFound):
		m.log.Warn("sla template lookup failed", "orgId", a.OrganizationID, "error", err)
	}
	return p
}

func subject(a Alert) string {
	if a.Kind == KindBreach {
		return fmt.Sprintf("SLA breached: ticket #%d", a.Number)
	}
	return fmt.Sprintf("SLA warning: ticket #%d is due in %.1fh", a.Number, a.HoursRemaining)
}

func body(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket #%d \"%s\" (%s priority) ", a.Number, a.Title, a.Priority)
	if a.Kind == KindBreach {
		fmt.Fprintf(&b, "passed its due date of %s.", a.DueAt.UTC().Format(time.RFC1123))
	} else {
		fmt.Fprintf(&b, "is due at %s.", a.DueAt.UTC().Format(time.RFC1123))
	}
	return b.String()
}

func variables(a Alert) map[string]any {
	return map[string]any{
		"ticket": map[string]any{
			"id":       a.TicketID.String(),
			"number":   a.Number,
			"title":    a.Title,
			"status":   a.Status,
			"priority": a.Priority,
			"dueAt":    a.DueAt.UTC().Format(time.RFC3339),
		},
		"sla": map[string]any{
			"kind":           string(a.Kind),
			"hoursRemaining": fmt.Sprintf("%.1f", a.HoursRemaining),
		},
	}
}
