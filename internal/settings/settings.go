// Package settings stores per-organization channel configuration and keeps a
// short-lived in-process cache of the decrypted values.
package settings

import (
	"fmt"

	"helpdesk_backend/platform/ssrf"
)

// SMTP is the organization's own mail server.
type SMTP struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FromEmail string `json:"fromEmail"`
	FromName  string `json:"fromName"`
}

// EmailAPI is a transactional email HTTP API authenticated with a bearer key.
type EmailAPI struct {
	Enabled   bool   `json:"enabled"`
	BaseURL   string `json:"baseUrl"`
	APIKey    string `json:"apiKey"`
	FromEmail string `json:"fromEmail"`
	FromName  string `json:"fromName"`
}

// WhatsAppCloud is the hosted WhatsApp Business Cloud API.
type WhatsAppCloud struct {
	Enabled       bool   `json:"enabled"`
	BaseURL       string `json:"baseUrl"`
	PhoneNumberID string `json:"phoneNumberId"`
	AccessToken   string `json:"accessToken"`
}

// WhatsAppGateway is a self-hosted WhatsApp gateway.
type WhatsAppGateway struct {
	Enabled  bool   `json:"enabled"`
	BaseURL  string `json:"baseUrl"`
	APIKey   string `json:"apiKey"`
	DeviceID string `json:"deviceId"`
}

// SMS is a Twilio-compatible SMS API.
type SMS struct {
	Enabled    bool   `json:"enabled"`
	BaseURL    string `json:"baseUrl"`
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
	From       string `json:"from"`
}

// MaskedSecret replaces credentials in API responses.
const MaskedSecret = "********"

// ChannelSettings groups every provider an organization can configure.
type ChannelSettings struct {
	SMTP            SMTP            `json:"smtp"`
	EmailAPI        EmailAPI        `json:"emailApi"`
	WhatsAppCloud   WhatsAppCloud   `json:"whatsappCloud"`
	WhatsAppGateway WhatsAppGateway `json:"whatsappGateway"`
	SMS             SMS             `json:"sms"`
}

// secretFields returns pointers to every credential so sealing and masking stay in one place.
func (s *ChannelSettings) secretFields() []*string {
	return []*string{
		&s.SMTP.Password,
		&s.EmailAPI.APIKey,
		&s.WhatsAppCloud.AccessToken,
		&s.WhatsAppGateway.APIKey,
		&s.SMS.AuthToken,
	}
}

// Masked returns a copy safe to return over HTTP.
func (s ChannelSettings) Masked() ChannelSettings {
	out := s
	for _, field := range out.secretFields() {
		if *field != "" {
			*field = MaskedSecret
		}
	}
	return out
}

// KeepMaskedSecrets copies credentials from prev wherever s still holds the
// mask, so a settings form can be saved without re-entering secrets.
func (s ChannelSettings) KeepMaskedSecrets(prev ChannelSettings) ChannelSettings {
	out := s
	next, old := out.secretFields(), prev.secretFields()
	for i, field := range next {
		if *field == MaskedSecret {
			*field = *old[i]
		}
	}
	return out
}

// Validate rejects enabled providers whose endpoints point at internal
// addresses. Disabled providers are not checked.
func (s ChannelSettings) Validate() error {
	if s.SMTP.Enabled && s.SMTP.Host != "" {
		if err := ssrf.ValidateHost(s.SMTP.Host); err != nil {
			return fmt.Errorf("smtp.host: %w", err)
		}
	}
	urls := []struct {
		name    string
		enabled bool
		value   string
	}{
		{"emailApi.baseUrl", s.EmailAPI.Enabled, s.EmailAPI.BaseURL},
		{"whatsappCloud.baseUrl", s.WhatsAppCloud.Enabled, s.WhatsAppCloud.BaseURL},
		{"whatsappGateway.baseUrl", s.WhatsAppGateway.Enabled, s.WhatsAppGateway.BaseURL},
		{"sms.baseUrl", s.SMS.Enabled, s.SMS.BaseURL},
	}
	for _, u := range urls {
		if !u.enabled || u.value == "" {
			continue
		}
		if err := ssrf.ValidateURL(u.value); err != nil {
			return fmt.Errorf("%s: %w", u.name, err)
		}
	}
	return nil
}
