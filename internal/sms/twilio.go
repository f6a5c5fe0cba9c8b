// Package sms sends text messages through a Twilio-compatible REST API.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"helpdesk_backend/internal/channel"
	"helpdesk_backend/platform/phone"
	"helpdesk_backend/platform/sanitize"
)

const defaultBaseURL = "https://api.twilio.com"

// maxBodyRunes keeps messages within ten concatenated segments.
const maxBodyRunes = 1530

// Config holds the account credentials and sender number.
type Config struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
}

// Configured reports whether credentials and a sender are set.
func (c Config) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// Sender posts form-encoded messages with basic auth.
type Sender struct {
	cfg  Config
	http *http.Client
}

// NewSender creates a sender. A nil client gets a 10s timeout client.
func NewSender(cfg Config, client *http.Client) *Sender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Sender{cfg: cfg, http: client}
}

func (s *Sender) Kind() channel.ProviderKind { return channel.ProviderSMS }

type messageResponse struct {
	SID string `json:"sid"`
}

// Send delivers msg.Body (subject prefixed) to msg.To.
func (s *Sender) Send(ctx context.Context, msg channel.Message) (channel.Receipt, error) {
	to := phone.NormalizeE164(msg.To)
	if !strings.HasPrefix(to, "+") {
		return channel.Receipt{}, fmt.Errorf("%w: %q", channel.ErrInvalidRecipient, msg.To)
	}

	text := sanitize.StripHTML(msg.Body)
	if subject := strings.TrimSpace(msg.Subject); subject != "" {
		text = subject + ": " + text
	}
	if runes := []rune(text); len(runes) > maxBodyRunes {
		text = string(runes[:maxBodyRunes-1]) + "…"
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.From)
	form.Set("Body", text)

	base := s.cfg.BaseURL
	if strings.TrimSpace(base) == "" {
		base = defaultBaseURL
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(base, "/"), url.PathEscape(s.cfg.AccountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return channel.Receipt{}, err
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return channel.Receipt{}, fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := channel.CheckResponse(channel.ProviderSMS, resp); err != nil {
		return channel.Receipt{}, err
	}

	var decoded messageResponse
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return channel.Receipt{Provider: channel.ProviderSMS, ExternalID: decoded.SID, SentAt: time.Now().UTC()}, nil
}
