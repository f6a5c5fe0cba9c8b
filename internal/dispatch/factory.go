package dispatch

import (
	"fmt"
	"net/http"
	"time"

	"helpdesk_backend/internal/channel"
	"helpdesk_backend/internal/email"
	"helpdesk_backend/internal/settings"
	"helpdesk_backend/internal/sms"
	"helpdesk_backend/internal/whatsapp"
	"helpdesk_backend/platform/config"
	"helpdesk_backend/platform/ssrf"
)

// ProviderFactory builds the real senders. Every HTTP client and the SMTP dialer
// re-check resolved addresses against the SSRF rules at connect time.
type ProviderFactory struct {
	defaults config.EmailConfig
	client   *http.Client
}

// NewProviderFactory uses defaults for the sender identity when an organization leaves it empty.
func NewProviderFactory(defaults config.EmailConfig) *ProviderFactory {
	return &ProviderFactory{
		defaults: defaults,
		client:   ssrf.NewClient(15 * time.Second),
	}
}

func (f *ProviderFactory) Build(kind channel.ProviderKind, s settings.ChannelSettings) (channel.Sender, error) {
	switch kind {
	case channel.ProviderSMTP:
		return email.NewSMTPSender(email.SMTPConfig{
			Host:      s.SMTP.Host,
			Port:      s.SMTP.Port,
			Username:  s.SMTP.Username,
			Password:  s.SMTP.Password,
			FromEmail: firstNonEmpty(s.SMTP.FromEmail, f.defaults.GetEmailFromAddress()),
			FromName:  firstNonEmpty(s.SMTP.FromName, f.defaults.GetEmailFromName()),
		}, ssrf.Dialer().DialContext), nil
	case channel.ProviderEmailAPI:
		return email.NewAPISender(email.APIConfig{
			BaseURL:   s.EmailAPI.BaseURL,
			APIKey:    s.EmailAPI.APIKey,
			FromEmail: firstNonEmpty(s.EmailAPI.FromEmail, f.defaults.GetEmailFromAddress()),
			FromName:  firstNonEmpty(s.EmailAPI.FromName, f.defaults.GetEmailFromName()),
		}, f.client), nil
	case channel.ProviderWhatsAppCloud:
		cfg := whatsapp.CloudConfig{
			BaseURL:       s.WhatsAppCloud.BaseURL,
			PhoneNumberID: s.WhatsAppCloud.PhoneNumberID,
			AccessToken:   s.WhatsAppCloud.AccessToken,
		}
		if !cfg.Configured() {
			return nil, fmt.Errorf("whatsapp cloud is enabled but missing phone number id or token")
		}
		return whatsapp.NewCloudSender(cfg, f.client), nil
	case channel.ProviderWhatsAppGateway:
		return whatsapp.NewGatewaySender(whatsapp.GatewayConfig{
			BaseURL:  s.WhatsAppGateway.BaseURL,
			APIKey:   s.WhatsAppGateway.APIKey,
			DeviceID: s.WhatsAppGateway.DeviceID,
		}, f.client), nil
	case channel.ProviderSMS:
		cfg := sms.Config{
			BaseURL:    s.SMS.BaseURL,
			AccountSID: s.SMS.AccountSID,
			AuthToken:  s.SMS.AuthToken,
			From:       s.SMS.From,
		}
		if !cfg.Configured() {
			return nil, fmt.Errorf("sms is enabled but missing account sid, token or sender")
		}
		return sms.NewSender(cfg, f.client), nil
	default:
		return nil, fmt.Errorf("%w: provider %s", ErrUnsupportedChannel, kind)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
