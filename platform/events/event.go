// Package events is the in-process bus that carries ticket lifecycle changes
// from the request that made them to the workflow subscriber.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. EventName is the subscription key,
// e.g. "tickets.ticket.created".
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent stamps an event with the time it was raised.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe, as the workflow subscriber does.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes events to the handlers subscribed under their name.
type Bus interface {
	// Publish returns immediately; handlers run on their own goroutines with a
	// context detached from the publishing request.
	Publish(ctx context.Context, event Event)

	// PublishSync runs handlers in order and joins their errors.
	PublishSync(ctx context.Context, event Event) error

	Subscribe(eventName string, handler Handler)
}
