// Package integrations calls the business tools an organization connects:
// project boards, wikis, CRMs, live chat and chatbots. Every call is recorded
// in the integration log.
package integrations

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"helpdesk_backend/internal/tickets"
)

// Provider is a supported integration.
type Provider string

const (
	ProviderPlanka    Provider = "PLANKA"
	ProviderBookStack Provider = "BOOKSTACK"
	ProviderZohoCRM   Provider = "ZOHO_CRM"
	ProviderChatwoot  Provider = "CHATWOOT"
	ProviderTypebot   Provider = "TYPEBOT"
)

// Providers lists every supported integration.
var Providers = []Provider{ProviderPlanka, ProviderBookStack, ProviderZohoCRM, ProviderChatwoot, ProviderTypebot}

func (p Provider) Valid() bool {
	switch p {
	case ProviderPlanka, ProviderBookStack, ProviderZohoCRM, ProviderChatwoot, ProviderTypebot:
		return true
	}
	return false
}

// ErrNotEnabled is returned when the organization has no enabled config for a provider.
var ErrNotEnabled = errors.New("integration not enabled")

// Config is one organization's settings for a provider.
type Config struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Provider       Provider
	Enabled        bool
	Settings       map[string]any
}

// Setting returns a setting as a trimmed string; numbers are formatted without
// a fractional part when they are whole.
func (c Config) Setting(key string) string {
	return stringValue(c.Settings[key])
}

// Log statuses.
const (
	LogPending = "PENDING"
	LogSuccess = "SUCCESS"
	LogFailed  = "FAILED"
)

// Actions recorded in the integration log.
const (
	ActionTrigger = "TRIGGER_INTEGRATION"
	ActionSubtask = "PLANKA_CREATE_SUBTASK"
)

// Contact identifies the ticket requester to tools that need a person.
type Contact struct {
	Name  string
	Email string
}

// Request is what the workflow engine asks an integration to do.
type Request struct {
	Action       string
	WorkflowName string
	Ticket       tickets.Snapshot
	Requester    *Contact
	Overrides    map[string]any
	// TaskName is the card title for PLANKA_CREATE_SUBTASK.
	TaskName string
}

// pick returns the override for key when set and the stored default otherwise.
func (r Request) pick(cfg Config, key string) string {
	if v := stringValue(r.Overrides[key]); v != "" {
		return v
	}
	return cfg.Setting(key)
}

// Outcome is what a successful call produced.
type Outcome struct {
	ExternalID string
	Request    map[string]any
	Response   map[string]any
}

func stringValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		if typed == float64(int64(typed)) {
			return strconv.FormatInt(int64(typed), 10)
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func ticketSummary(t tickets.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket #%d: %s\n\n", t.Number, t.Title)
	fmt.Fprintf(&b, "Priority: %s\nStatus: %s\n", t.Priority, t.Status)
	if t.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", t.Category)
	}
	if strings.TrimSpace(t.Description) != "" {
		b.WriteString("\n")
		b.WriteString(t.Description)
	}
	return b.String()
}

func missingSetting(provider Provider, key string) error {
	return fmt.Errorf("%s integration is missing %q", strings.ToLower(string(provider)), key)
}
