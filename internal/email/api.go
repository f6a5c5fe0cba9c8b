package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"helpdesk_backend/internal/channel"
	"helpdesk_backend/platform/sanitize"
)

// APIConfig holds credentials for the transactional email HTTP API.
type APIConfig struct {
	BaseURL   string
	APIKey    string
	FromEmail string
	FromName  string
}

// Configured reports whether the API can be called.
func (c APIConfig) Configured() bool {
	return strings.TrimSpace(c.BaseURL) != "" && c.APIKey != "" && c.FromEmail != ""
}

// APISender posts messages to a Resend-style transactional email API.
type APISender struct {
	cfg    APIConfig
	client *http.Client
}

// NewAPISender creates a sender. A nil client gets a 15s timeout client.
func NewAPISender(cfg APIConfig, client *http.Client) *APISender {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &APISender{cfg: cfg, client: client}
}

func (s *APISender) Kind() channel.ProviderKind { return channel.ProviderEmailAPI }

type apiEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type apiEmailResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
}

// Send posts the message to {base}/emails with a bearer key.
func (s *APISender) Send(ctx context.Context, msg channel.Message) (channel.Receipt, error) {
	if !strings.Contains(msg.To, "@") {
		return channel.Receipt{}, fmt.Errorf("%w: %q", channel.ErrInvalidRecipient, msg.To)
	}
	htmlBody, err := Layout(msg.Subject, msg.Body)
	if err != nil {
		return channel.Receipt{}, err
	}
	from := s.cfg.FromEmail
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)
	}
	payload, err := json.Marshal(apiEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    htmlBody,
		Text:    sanitize.StripHTML(msg.Body),
	})
	if err != nil {
		return channel.Receipt{}, fmt.Errorf("marshal email request: %w", err)
	}

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/emails"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return channel.Receipt{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return channel.Receipt{}, fmt.Errorf("email api request: %w", err)
	}
	defer resp.Body.Close()

	if err := channel.CheckResponse(channel.ProviderEmailAPI, resp); err != nil {
		return channel.Receipt{}, err
	}

	var decoded apiEmailResponse
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	externalID := decoded.ID
	if externalID == "" {
		externalID = decoded.MessageID
	}
	return channel.Receipt{
		Provider:   channel.ProviderEmailAPI,
		ExternalID: externalID,
		SentAt:     time.Now().UTC(),
	}, nil
}
