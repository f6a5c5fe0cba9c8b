// Package dispatch picks the provider for a logical channel and applies the
// fixed preference and fallback policy.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"helpdesk_backend/internal/channel"
	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/settings"
	"helpdesk_backend/platform/logger"
	"helpdesk_backend/platform/metrics"
	"helpdesk_backend/platform/redact"
	"helpdesk_backend/platform/ssrf"
)

var (
	ErrNoEmailProvider    = errors.New("no email provider configured")
	ErrNoWhatsAppProvider = errors.New("no WhatsApp provider configured")
	ErrNoSMSProvider      = errors.New("no SMS provider configured")
	ErrUnsupportedChannel = errors.New("unsupported channel")
)

// IsConfigError reports whether err means the organization has no usable provider.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrNoEmailProvider) || errors.Is(err, ErrNoWhatsAppProvider) ||
		errors.Is(err, ErrNoSMSProvider) || errors.Is(err, ErrUnsupportedChannel)
}

// Attempt records one provider call made during a dispatch.
type Attempt struct {
	Provider channel.ProviderKind
	Err      error
}

// Result is the outcome of Dispatch. Err is nil exactly when Success is true.
type Result struct {
	Success    bool
	ExternalID string
	Provider   channel.ProviderKind
	Err        error
	Attempts   []Attempt
}

// ErrorMessage returns the redacted error text for persistence.
func (r Result) ErrorMessage() string {
	return redact.Error(r.Err)
}

// SenderFactory builds a sender for one provider from organization settings.
type SenderFactory interface {
	Build(kind channel.ProviderKind, s settings.ChannelSettings) (channel.Sender, error)
}

// Dispatcher routes messages by channel.
type Dispatcher struct {
	factory SenderFactory
	log     *logger.Logger
}

func New(factory SenderFactory, log *logger.Logger) *Dispatcher {
	return &Dispatcher{factory: factory, log: log}
}

// Dispatch sends msg over ch.
//
//	EMAIL:    SMTP, falling back to the email API when SMTP fails or is not configured.
//	WHATSAPP: Cloud API, falling back to the gateway when Cloud fails or is disabled.
//	SMS:      SMS API only.
func (d *Dispatcher) Dispatch(ctx context.Context, s settings.ChannelSettings, ch outbox.Channel, msg channel.Message) Result {
	switch ch {
	case outbox.ChannelEmail:
		return d.withFallback(ctx, s, msg, ErrNoEmailProvider,
			candidate(channel.ProviderSMTP, smtpAvailable(s)),
			candidate(channel.ProviderEmailAPI, emailAPIAvailable(s)))
	case outbox.ChannelWhatsApp:
		return d.withFallback(ctx, s, msg, ErrNoWhatsAppProvider,
			candidate(channel.ProviderWhatsAppCloud, s.WhatsAppCloud.Enabled),
			candidate(channel.ProviderWhatsAppGateway, s.WhatsAppGateway.Enabled))
	case outbox.ChannelSMS:
		return d.withFallback(ctx, s, msg, ErrNoSMSProvider,
			candidate(channel.ProviderSMS, s.SMS.Enabled))
	default:
		return Result{Err: fmt.Errorf("%w: %q", ErrUnsupportedChannel, ch)}
	}
}

type providerCandidate struct {
	kind      channel.ProviderKind
	available bool
}

func candidate(kind channel.ProviderKind, available bool) providerCandidate {
	return providerCandidate{kind: kind, available: available}
}

func (d *Dispatcher) withFallback(ctx context.Context, s settings.ChannelSettings, msg channel.Message, none error, candidates ...providerCandidate) Result {
	var result Result
	for _, c := range candidates {
		if !c.available {
			continue
		}
		err := d.try(ctx, s, c.kind, msg, &result)
		if err == nil {
			return result
		}
		result.Err = err
		result.Provider = c.kind
	}
	if len(result.Attempts) == 0 {
		result.Err = none
	}
	return result
}

func (d *Dispatcher) try(ctx context.Context, s settings.ChannelSettings, kind channel.ProviderKind, msg channel.Message, result *Result) error {
	start := time.Now()
	err := func() error {
		if err := checkDestination(kind, s); err != nil {
			return err
		}
		sender, err := d.factory.Build(kind, s)
		if err != nil {
			return err
		}
		receipt, err := sender.Send(ctx, msg)
		if err != nil {
			return err
		}
		result.Success = true
		result.ExternalID = receipt.ExternalID
		result.Provider = kind
		result.Err = nil
		return nil
	}()

	result.Attempts = append(result.Attempts, Attempt{Provider: kind, Err: err})
	outcome := "success"
	if err != nil {
		outcome = "failure"
		d.log.Warn("provider send failed",
			"provider", string(kind),
			"error", redact.Error(err),
			"durationMs", time.Since(start).Milliseconds(),
		)
	}
	metrics.NotificationsDispatched.WithLabelValues(channelOf(kind), string(kind), outcome).Inc()
	return err
}

// checkDestination applies the SSRF rules to the organization-supplied endpoint of kind.
func checkDestination(kind channel.ProviderKind, s settings.ChannelSettings) error {
	switch kind {
	case channel.ProviderSMTP:
		return ssrf.ValidateHost(s.SMTP.Host)
	case channel.ProviderEmailAPI:
		return ssrf.ValidateURL(s.EmailAPI.BaseURL)
	case channel.ProviderWhatsAppCloud:
		if s.WhatsAppCloud.BaseURL == "" {
			return nil
		}
		return ssrf.ValidateURL(s.WhatsAppCloud.BaseURL)
	case channel.ProviderWhatsAppGateway:
		return ssrf.ValidateURL(s.WhatsAppGateway.BaseURL)
	case channel.ProviderSMS:
		if s.SMS.BaseURL == "" {
			return nil
		}
		return ssrf.ValidateURL(s.SMS.BaseURL)
	}
	return nil
}

func smtpAvailable(s settings.ChannelSettings) bool {
	return s.SMTP.Enabled && s.SMTP.Host != "" && s.SMTP.Port > 0
}

func emailAPIAvailable(s settings.ChannelSettings) bool {
	return s.EmailAPI.Enabled && s.EmailAPI.BaseURL != "" && s.EmailAPI.APIKey != ""
}

func channelOf(kind channel.ProviderKind) string {
	switch kind {
	case channel.ProviderSMTP, channel.ProviderEmailAPI:
		return string(outbox.ChannelEmail)
	case channel.ProviderWhatsAppCloud, channel.ProviderWhatsAppGateway:
		return string(outbox.ChannelWhatsApp)
	default:
		return string(outbox.ChannelSMS)
	}
}
