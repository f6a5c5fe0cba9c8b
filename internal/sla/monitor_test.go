package sla

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/notification/templates"
	"helpdesk_backend/platform/logger"
)

// memTickets applies flags with the same IS NULL guard as the repository.
type memTickets struct {
	mu            sync.Mutex
	tickets       map[uuid.UUID]*Candidate
	notifications []outbox.InsertParams
}

func newMemTickets(cs ...Candidate) *memTickets {
	m := &memTickets{tickets: map[uuid.UUID]*Candidate{}}
	for i := range cs {
		c := cs[i]
		m.tickets[c.TicketID] = &c
	}
	return m
}

func (m *memTickets) ListCandidates(_ context.Context, now, horizon time.Time, _ int) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Candidate
	for _, c := range m.tickets {
		if c.DueAt.After(horizon) || c.BreachSentAt != nil {
			continue
		}
		if c.WarningSentAt != nil && !c.DueAt.Before(now) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memTickets) Apply(_ context.Context, now time.Time, planned []Planned) (Applied, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var applied Applied
	for _, p := range planned {
		c := m.tickets[p.Alert.TicketID]
		flag := &c.WarningSentAt
		if p.Alert.Kind == KindBreach {
			flag = &c.BreachSentAt
		}
		if *flag != nil {
			continue
		}
		stamp := now
		*flag = &stamp
		applied.Won = append(applied.Won, p.Alert)
		if p.Notification != nil {
			m.notifications = append(m.notifications, *p.Notification)
			applied.Notified++
		}
	}
	return applied, nil
}

type templateIndex map[string]templates.Template

func (t templateIndex) Resolve(_ context.Context, _ uuid.UUID, eventType, _ string) (templates.Template, error) {
	tpl, ok := t[eventType]
	if !ok {
		return templates.Template{}, templates.ErrNotFound
	}
	return tpl, nil
}

func fixedClock(now time.Time) func() time.Time { return func() time.Time { return now } }

func TestScanSetsFlagsOnce(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	assignee := uuid.New()
	org := uuid.New()
	warning := Candidate{TicketID: uuid.New(), OrganizationID: org, Number: 1, Title: "Soon", AssigneeID: &assignee, DueAt: now.Add(time.Hour)}
	breach := Candidate{TicketID: uuid.New(), OrganizationID: org, Number: 2, Title: "Late", AssigneeID: &assignee, DueAt: now.Add(-time.Hour)}
	later := Candidate{TicketID: uuid.New(), OrganizationID: org, Number: 3, Title: "Later", AssigneeID: &assignee, DueAt: now.Add(10 * time.Hour)}
	store := newMemTickets(warning, breach, later)

	m := NewMonitor(store, templateIndex{}, logger.Discard(), WithClock(fixedClock(now)))

	res, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Warnings)
	assert.Equal(t, 1, res.Breaches)
	assert.Equal(t, 2, res.Notified)
	require.Len(t, store.notifications, 2)

	res, err = m.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Warnings+res.Breaches)
	assert.Len(t, store.notifications, 2, "second scan queues nothing")
}

func TestScanNotifiesAssigneeByEmail(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	assignee := uuid.New()
	c := Candidate{TicketID: uuid.New(), OrganizationID: uuid.New(), Number: 17, Title: "Printer", Priority: "HIGH", AssigneeID: &assignee, DueAt: now.Add(-30 * time.Minute)}
	store := newMemTickets(c)

	_, err := NewMonitor(store, templateIndex{}, logger.Discard(), WithClock(fixedClock(now))).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, store.notifications, 1)

	n := store.notifications[0]
	assert.Equal(t, outbox.ChannelEmail, n.Channel)
	assert.Equal(t, EventBreach, n.EventType)
	assert.Equal(t, assignee, *n.RecipientID)
	assert.Equal(t, c.TicketID, *n.TicketID)
	assert.Equal(t, "SLA breached: ticket #17", n.Subject)
	assert.Contains(t, n.Body, `"Printer"`)
	assert.Nil(t, n.TemplateData)
}

func TestScanReferencesOrganizationTemplate(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	assignee := uuid.New()
	templateID := uuid.New()
	c := Candidate{TicketID: uuid.New(), OrganizationID: uuid.New(), Number: 5, AssigneeID: &assignee, DueAt: now.Add(30 * time.Minute)}
	store := newMemTickets(c)

	_, err := NewMonitor(store, templateIndex{EventWarning: {ID: templateID}}, logger.Discard(), WithClock(fixedClock(now))).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, store.notifications, 1)

	data := store.notifications[0].TemplateData
	require.NotNil(t, data)
	assert.Equal(t, templateID, *data.TemplateID)
	assert.Equal(t, "0.5", data.Variables["sla"].(map[string]any)["hoursRemaining"])
}

func TestScanWithoutAssigneeSetsFlagOnly(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	c := Candidate{TicketID: uuid.New(), OrganizationID: uuid.New(), DueAt: now.Add(-time.Minute)}
	store := newMemTickets(c)

	res, err := NewMonitor(store, templateIndex{}, logger.Discard(), WithClock(fixedClock(now))).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Breaches)
	assert.Zero(t, res.Notified)
	assert.NotNil(t, store.tickets[c.TicketID].BreachSentAt)
	assert.Empty(t, store.notifications)
}

func TestConcurrentScansRaiseEachAlertOnce(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	assignee := uuid.New()
	var cs []Candidate
	for i := 0; i < 10; i++ {
		cs = append(cs, Candidate{TicketID: uuid.New(), OrganizationID: uuid.New(), Number: int64(i), AssigneeID: &assignee, DueAt: now.Add(-time.Duration(i+1) * time.Minute)})
	}
	store := newMemTickets(cs...)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := NewMonitor(store, templateIndex{}, logger.Discard(), WithClock(fixedClock(now))).Scan(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.notifications, 10)
}
