// Package events defines the ticket lifecycle events that trigger workflows.
// The bus itself lives in platform/events.
package events

import (
	"helpdesk_backend/internal/tickets"
	"helpdesk_backend/platform/events"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

var NewBaseEvent = events.NewBaseEvent

// TicketEvent is implemented by every ticket lifecycle event. TriggerType
// matches the trigger_type column of workflows.
type TicketEvent interface {
	Event
	TriggerType() string
	OrganizationID() uuid.UUID
	Snapshot() tickets.Snapshot
}

// Workflow trigger types.
const (
	TriggerTicketCreated         = "TICKET_CREATED"
	TriggerTicketStatusChanged   = "TICKET_STATUS_CHANGED"
	TriggerTicketPriorityUpdated = "TICKET_PRIORITY_UPDATED"
	TriggerCustomerReplied       = "CUSTOMER_REPLIED"
)

// TicketEventNames lists the bus names of all ticket lifecycle events.
var TicketEventNames = []string{
	TicketCreated{}.EventName(),
	TicketStatusChanged{}.EventName(),
	TicketPriorityUpdated{}.EventName(),
	CustomerReplied{}.EventName(),
}

// =============================================================================
// Ticket Domain Events
// =============================================================================

// TicketCreated is published after a ticket is stored.
type TicketCreated struct {
	BaseEvent
	Ticket tickets.Snapshot `json:"ticket"`
}

func (e TicketCreated) EventName() string          { return "tickets.ticket.created" }
func (e TicketCreated) TriggerType() string        { return TriggerTicketCreated }
func (e TicketCreated) OrganizationID() uuid.UUID  { return e.Ticket.OrganizationID }
func (e TicketCreated) Snapshot() tickets.Snapshot { return e.Ticket }

// TicketStatusChanged is published when a ticket moves to another status.
type TicketStatusChanged struct {
	BaseEvent
	Ticket         tickets.Snapshot `json:"ticket"`
	PreviousStatus string           `json:"previousStatus"`
}

func (e TicketStatusChanged) EventName() string          { return "tickets.ticket.status_changed" }
func (e TicketStatusChanged) TriggerType() string        { return TriggerTicketStatusChanged }
func (e TicketStatusChanged) OrganizationID() uuid.UUID  { return e.Ticket.OrganizationID }
func (e TicketStatusChanged) Snapshot() tickets.Snapshot { return e.Ticket }

// TicketPriorityUpdated is published when a ticket's priority changes.
type TicketPriorityUpdated struct {
	BaseEvent
	Ticket           tickets.Snapshot `json:"ticket"`
	PreviousPriority string           `json:"previousPriority"`
}

func (e TicketPriorityUpdated) EventName() string          { return "tickets.ticket.priority_updated" }
func (e TicketPriorityUpdated) TriggerType() string        { return TriggerTicketPriorityUpdated }
func (e TicketPriorityUpdated) OrganizationID() uuid.UUID  { return e.Ticket.OrganizationID }
func (e TicketPriorityUpdated) Snapshot() tickets.Snapshot { return e.Ticket }

// CustomerReplied is published when the requester adds a message to a ticket.
type CustomerReplied struct {
	BaseEvent
	Ticket    tickets.Snapshot `json:"ticket"`
	MessageID uuid.UUID        `json:"messageId"`
}

func (e CustomerReplied) EventName() string          { return "tickets.customer.replied" }
func (e CustomerReplied) TriggerType() string        { return TriggerCustomerReplied }
func (e CustomerReplied) OrganizationID() uuid.UUID  { return e.Ticket.OrganizationID }
func (e CustomerReplied) Snapshot() tickets.Snapshot { return e.Ticket }

// Change carries the optional details of a lifecycle event.
type Change struct {
	PreviousStatus   string
	PreviousPriority string
	MessageID        uuid.UUID
}

// ForTrigger builds the lifecycle event for a workflow trigger type.
func ForTrigger(triggerType string, ticket tickets.Snapshot, change Change) (TicketEvent, bool) {
	base := NewBaseEvent()
	switch triggerType {
	case TriggerTicketCreated:
		return TicketCreated{BaseEvent: base, Ticket: ticket}, true
	case TriggerTicketStatusChanged:
		return TicketStatusChanged{BaseEvent: base, Ticket: ticket, PreviousStatus: change.PreviousStatus}, true
	case TriggerTicketPriorityUpdated:
		return TicketPriorityUpdated{BaseEvent: base, Ticket: ticket, PreviousPriority: change.PreviousPriority}, true
	case TriggerCustomerReplied:
		return CustomerReplied{BaseEvent: base, Ticket: ticket, MessageID: change.MessageID}, true
	}
	return nil, false
}

// IsTriggerType reports whether s is one of the workflow trigger types.
func IsTriggerType(s string) bool {
	switch s {
	case TriggerTicketCreated, TriggerTicketStatusChanged, TriggerTicketPriorityUpdated, TriggerCustomerReplied:
		return true
	}
	return false
}
