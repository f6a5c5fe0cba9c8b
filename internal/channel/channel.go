// Package channel defines the contract shared by every outbound provider adapter.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProviderKind identifies a concrete delivery provider.
type ProviderKind string

const (
	ProviderSMTP            ProviderKind = "SMTP"
	ProviderEmailAPI        ProviderKind = "EMAIL_API"
	ProviderWhatsAppCloud   ProviderKind = "WHATSAPP_CLOUD"
	ProviderWhatsAppGateway ProviderKind = "WHATSAPP_GATEWAY"
	ProviderSMS             ProviderKind = "SMS_API"
)

// Message is a fully rendered outbound message.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Receipt is what a provider returns on acceptance.
type Receipt struct {
	Provider   ProviderKind
	ExternalID string
	SentAt     time.Time
}

// Sender delivers one message through one provider.
type Sender interface {
	Kind() ProviderKind
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// ProviderError is a non-2xx answer from a provider API.
type ProviderError struct {
	Provider   ProviderKind
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the provider signalled a transient condition.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ErrInvalidRecipient is returned before any network call for unusable addresses.
var ErrInvalidRecipient = errors.New("invalid recipient")

const maxErrorBody = 2048

// CheckResponse turns a non-2xx response into a *ProviderError carrying a
// bounded copy of the body.
func CheckResponse(provider ProviderKind, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
