// Package outbox stores outbound notifications and moves them through their
// delivery lifecycle with conditional, row-scoped updates.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the logical delivery channel of a notification.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelSMS      Channel = "SMS"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelWhatsApp, ChannelSMS:
		return true
	}
	return false
}

// Status is the lifecycle state of a notification row.
//
//	PENDING -> PROCESSING -> SENT
//	PROCESSING -> PENDING (retry scheduled) | FAILED (retries exhausted)
//	PENDING -> CANCELLED (operator) | EXPIRED (sweeper)
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSent       Status = "SENT"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusExpired    Status = "EXPIRED"
)

// Terminal reports whether no further automatic transition can happen.
func (s Status) Terminal() bool {
	switch s {
	case StatusSent, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// DefaultMaxRetries is used when a producer does not set MaxRetries.
const DefaultMaxRetries = 3

// TemplateData references a stored template and the values to render it with.
type TemplateData struct {
	TemplateID *uuid.UUID     `json:"template_id,omitempty"`
	Variables  map[string]any `json:"variables,omitempty"`
}

// Notification is one outbox row.
type Notification struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	TicketID       *uuid.UUID
	RecipientID    *uuid.UUID
	RecipientEmail string
	RecipientPhone string
	Channel        Channel
	EventType      string
	Subject        string
	Body           string
	TemplateData   *TemplateData
	Status         Status
	RetryCount     int
	MaxRetries     int
	NextRetryAt    *time.Time
	ExternalID     string
	ErrorMessage   string
	CreatedAt      time.Time
	SentAt         *time.Time
	FailedAt       *time.Time
	UpdatedAt      time.Time

	// TemplateDataErr is set when the stored template_data could not be decoded.
	TemplateDataErr error
}

// InsertParams describes a new PENDING notification.
type InsertParams struct {
	OrganizationID uuid.UUID
	TicketID       *uuid.UUID
	RecipientID    *uuid.UUID
	RecipientEmail string
	RecipientPhone string
	Channel        Channel
	EventType      string
	Subject        string
	Body           string
	TemplateData   *TemplateData
	MaxRetries     int
}

// HasRecipient reports whether any recipient field is set.
func (p InsertParams) HasRecipient() bool {
	return p.RecipientID != nil || p.RecipientEmail != "" || p.RecipientPhone != ""
}
