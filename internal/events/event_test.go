package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"helpdesk_backend/internal/tickets"
)

func TestTicketEventsExposeTriggerAndOrganization(t *testing.T) {
	org := uuid.New()
	snap := tickets.Snapshot{ID: uuid.New(), OrganizationID: org, Priority: "URGENT"}

	all := []TicketEvent{
		TicketCreated{BaseEvent: NewBaseEvent(), Ticket: snap},
		TicketStatusChanged{BaseEvent: NewBaseEvent(), Ticket: snap},
		TicketPriorityUpdated{BaseEvent: NewBaseEvent(), Ticket: snap},
		CustomerReplied{BaseEvent: NewBaseEvent(), Ticket: snap},
	}
	seen := map[string]bool{}
	for i, e := range all {
		assert.Equal(t, org, e.OrganizationID())
		assert.Equal(t, "URGENT", e.Snapshot().Priority)
		assert.True(t, IsTriggerType(e.TriggerType()))
		assert.Equal(t, TicketEventNames[i], e.EventName())
		seen[e.TriggerType()] = true
	}
	assert.Len(t, seen, 4)
	assert.False(t, IsTriggerType("LEAD_CREATED"))
}

func TestForTriggerCarriesChangeDetails(t *testing.T) {
	snap := tickets.Snapshot{ID: uuid.New(), OrganizationID: uuid.New()}

	e, ok := ForTrigger(TriggerTicketStatusChanged, snap, Change{PreviousStatus: "OPEN"})
	assert.True(t, ok)
	assert.Equal(t, "OPEN", e.(TicketStatusChanged).PreviousStatus)
	assert.False(t, e.OccurredAt().IsZero())

	msg := uuid.New()
	e, ok = ForTrigger(TriggerCustomerReplied, snap, Change{MessageID: msg})
	assert.True(t, ok)
	assert.Equal(t, msg, e.(CustomerReplied).MessageID)

	_, ok = ForTrigger("TICKET_DELETED", snap, Change{})
	assert.False(t, ok)
}
