package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk_backend/internal/events"
	"helpdesk_backend/internal/scheduler"
	platformevents "helpdesk_backend/platform/events"
	"helpdesk_backend/platform/logger"
)

type queue struct {
	payloads []scheduler.WorkflowExecutePayload
	err      error
}

func (q *queue) EnqueueWorkflowExecute(_ context.Context, payload scheduler.WorkflowExecutePayload) error {
	q.payloads = append(q.payloads, payload)
	return q.err
}

func TestSubscriberEnqueuesTicketEvents(t *testing.T) {
	bus := platformevents.NewInMemoryBus(logger.Discard())
	q := &queue{}
	NewSubscriber(q, logger.Discard()).RegisterHandlers(bus)

	org := uuid.New()
	ticket := ticketFixture(org)
	require.NoError(t, bus.PublishSync(context.Background(), events.TicketStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		Ticket:         ticket,
		PreviousStatus: "OPEN",
	}))

	require.Len(t, q.payloads, 1)
	assert.Equal(t, org.String(), q.payloads[0].OrganizationID)
	assert.Equal(t, events.TriggerTicketStatusChanged, q.payloads[0].EventType)
	assert.Equal(t, ticket.ID, q.payloads[0].Ticket.ID)
}

func TestSubscriberSwallowsEnqueueErrors(t *testing.T) {
	q := &queue{err: errors.New("redis down")}
	s := NewSubscriber(q, logger.Discard())

	err := s.Handle(context.Background(), events.TicketCreated{Ticket: ticketFixture(uuid.New())})
	assert.NoError(t, err)
	assert.Len(t, q.payloads, 1)
}

func TestInlineEnqueuerRunsEngine(t *testing.T) {
	org := uuid.New()
	h := newHarness(Workflow{ID: uuid.New(), TriggerType: events.TriggerCustomerReplied, Actions: []Action{AddTag{Tag: "replied"}}})

	err := NewInlineEnqueuer(h.engine).EnqueueWorkflowExecute(context.Background(), scheduler.WorkflowExecutePayload{
		OrganizationID: org.String(),
		EventType:      events.TriggerCustomerReplied,
		Ticket:         ticketFixture(org),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"replied"}, h.tags.added)
}

func TestHandleTaskRejectsMalformedPayload(t *testing.T) {
	h := newHarness()

	assert.Error(t, h.engine.HandleTask(context.Background(), scheduler.WorkflowExecutePayload{OrganizationID: "x", EventType: events.TriggerTicketCreated}))
	assert.Error(t, h.engine.HandleTask(context.Background(), scheduler.WorkflowExecutePayload{OrganizationID: uuid.NewString(), EventType: "NOPE"}))
}
