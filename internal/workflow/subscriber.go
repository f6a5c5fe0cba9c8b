package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"helpdesk_backend/internal/events"
	"helpdesk_backend/internal/scheduler"
	"helpdesk_backend/platform/logger"
)

// Enqueuer hands a workflow run to the background queue.
type Enqueuer interface {
	EnqueueWorkflowExecute(ctx context.Context, payload scheduler.WorkflowExecutePayload) error
}

// Subscriber turns ticket lifecycle events into queued workflow runs so the
// request that produced the event never waits on actions.
type Subscriber struct {
	enqueuer Enqueuer
	log      *logger.Logger
}

func NewSubscriber(enqueuer Enqueuer, log *logger.Logger) *Subscriber {
	return &Subscriber{enqueuer: enqueuer, log: log}
}

// RegisterHandlers subscribes to every ticket event.
func (s *Subscriber) RegisterHandlers(bus events.Bus) {
	for _, name := range events.TicketEventNames {
		bus.Subscribe(name, s)
	}
}

// Handle implements events.Handler. Enqueue failures are logged and
// swallowed; they never surface to the ticket action.
func (s *Subscriber) Handle(ctx context.Context, event events.Event) error {
	ticketEvent, ok := event.(events.TicketEvent)
	if !ok {
		return nil
	}

	payload := scheduler.WorkflowExecutePayload{
		OrganizationID: ticketEvent.OrganizationID().String(),
		EventType:      ticketEvent.TriggerType(),
		Ticket:         ticketEvent.Snapshot(),
	}
	if err := s.enqueuer.EnqueueWorkflowExecute(ctx, payload); err != nil {
		s.log.Error("failed to enqueue workflow execution",
			"event", event.EventName(),
			"orgId", payload.OrganizationID,
			"ticketId", payload.Ticket.ID,
			"error", err,
		)
	}
	return nil
}

// InlineEnqueuer runs workflows in the calling goroutine. It backs the
// subscriber when no Redis queue is configured.
type InlineEnqueuer struct {
	engine *Engine
}

func NewInlineEnqueuer(engine *Engine) *InlineEnqueuer {
	return &InlineEnqueuer{engine: engine}
}

func (q *InlineEnqueuer) EnqueueWorkflowExecute(ctx context.Context, payload scheduler.WorkflowExecutePayload) error {
	return q.engine.HandleTask(ctx, payload)
}

// HandleTask executes a queued workflow.execute payload.
func (e *Engine) HandleTask(ctx context.Context, payload scheduler.WorkflowExecutePayload) error {
	organizationID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return fmt.Errorf("invalid organization id: %w", err)
	}
	if !events.IsTriggerType(payload.EventType) {
		return fmt.Errorf("unknown trigger type %q", payload.EventType)
	}
	_, err = e.Execute(ctx, payload.EventType, payload.Ticket, organizationID)
	return err
}
