package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk_backend/internal/channel"
	"helpdesk_backend/internal/dispatch"
	"helpdesk_backend/internal/events"
	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/settings"
	"helpdesk_backend/internal/tickets"
	"helpdesk_backend/internal/workflow"
	"helpdesk_backend/platform/logger"
)

type recordingSMTP struct {
	mu   sync.Mutex
	sent []channel.Message
}

func (s *recordingSMTP) Kind() channel.ProviderKind { return channel.ProviderSMTP }

func (s *recordingSMTP) Send(_ context.Context, msg channel.Message) (channel.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return channel.Receipt{Provider: channel.ProviderSMTP, ExternalID: "<1@smtp.example.com>"}, nil
}

type smtpOnlyFactory struct {
	smtp *recordingSMTP
}

func (f smtpOnlyFactory) Build(kind channel.ProviderKind, _ settings.ChannelSettings) (channel.Sender, error) {
	if kind == channel.ProviderSMTP {
		return f.smtp, nil
	}
	return nil, errors.New("unexpected provider " + string(kind))
}

type orgSettings settings.ChannelSettings

func (s orgSettings) Get(context.Context, uuid.UUID) (settings.ChannelSettings, error) {
	return settings.ChannelSettings(s), nil
}

type workflowList []workflow.Workflow

func (l workflowList) ListActive(_ context.Context, _ uuid.UUID, triggerType string) ([]workflow.Workflow, error) {
	var out []workflow.Workflow
	for _, wf := range l {
		if wf.TriggerType == triggerType {
			out = append(out, wf)
		}
	}
	return out, nil
}

func TestTicketCreatedNotificationIsDeliveredOverSMTP(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	requester := uuid.New()
	templateID := uuid.New()
	subject := "New ticket: {{ticket.title}}"

	store := newMemStore()
	engine := workflow.NewEngine(workflow.Deps{
		Workflows: workflowList{{
			ID:          uuid.New(),
			Name:        "acknowledge",
			TriggerType: events.TriggerTicketCreated,
			Actions: []workflow.Action{workflow.SendNotification{
				TemplateID:      templateID,
				Channel:         outbox.ChannelEmail,
				RecipientTarget: workflow.TargetRequester,
			}},
			IsActive: true,
		}},
		Notifications: store,
		Log:           logger.Discard(),
	})

	ticket := tickets.Snapshot{ID: uuid.New(), OrganizationID: org, Number: 7, Title: "Printer on fire", Status: "OPEN", Priority: "HIGH", RequesterID: &requester}
	results, err := engine.Execute(ctx, events.TriggerTicketCreated, ticket, org)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, workflow.StatusSuccess, results[0].Status)

	due, err := store.ListDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, outbox.StatusPending, due[0].Status)

	smtp := &recordingSMTP{}
	clk := newClock()
	w := New(Deps{
		Store: store,
		Templates: fakeTemplates{templateID: {
			ID:              templateID,
			OrganizationID:  org,
			Channel:         "EMAIL",
			SubjectTemplate: &subject,
			BodyTemplate:    "We received {{ticket.title}} ({{ticket.priority}}).",
			IsActive:        true,
		}},
		Directory: fakeDirectory{emails: map[uuid.UUID]string{requester: "requester@example.com"}},
		Settings: orgSettings(settings.ChannelSettings{
			SMTP: settings.SMTP{Enabled: true, Host: "smtp.example.com", Port: 587, FromEmail: "help@example.com"},
		}),
		Dispatcher: dispatch.New(smtpOnlyFactory{smtp: smtp}, logger.Discard()),
		Log:        logger.Discard(),
	}, WithClock(clk.Now), WithBackoff(noJitter()))

	res, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	row := store.get(due[0].ID)
	assert.Equal(t, outbox.StatusSent, row.Status)
	assert.Equal(t, "<1@smtp.example.com>", row.ExternalID)
	require.NotNil(t, row.SentAt)
	assert.Equal(t, clk.Now(), *row.SentAt)

	require.Len(t, smtp.sent, 1)
	assert.Equal(t, "requester@example.com", smtp.sent[0].To)
	assert.Equal(t, "New ticket: Printer on fire", smtp.sent[0].Subject)
	assert.Contains(t, smtp.sent[0].Body, "We received Printer on fire (HIGH).")
}
