package events

import (
	platformevents "helpdesk_backend/platform/events"
	"helpdesk_backend/platform/logger"
)

// InMemoryBus carries ticket lifecycle events inside the API process.
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus returns the bus cmd/api hands to the workflow module (as the
// publisher) and to workflow.Subscriber (as the subscription point).
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
