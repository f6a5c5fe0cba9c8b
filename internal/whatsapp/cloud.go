// Package whatsapp provides the WhatsApp Cloud API and self-hosted gateway senders.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"helpdesk_backend/internal/channel"
	"helpdesk_backend/platform/phone"
	"helpdesk_backend/platform/sanitize"
)

const defaultGraphURL = "https://graph.facebook.com/v21.0"

// CloudConfig holds WhatsApp Cloud API credentials.
type CloudConfig struct {
	BaseURL       string
	PhoneNumberID string
	AccessToken   string
}

// Configured reports whether a phone number id and token are set.
func (c CloudConfig) Configured() bool {
	return c.PhoneNumberID != "" && c.AccessToken != ""
}

// URL returns the effective API base URL.
func (c CloudConfig) URL() string {
	if strings.TrimSpace(c.BaseURL) == "" {
		return defaultGraphURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

// CloudSender posts text messages to {base}/{phoneNumberId}/messages.
type CloudSender struct {
	cfg  CloudConfig
	http *http.Client
}

// NewCloudSender creates a sender. A nil client gets a 10s timeout client.
func NewCloudSender(cfg CloudConfig, client *http.Client) *CloudSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CloudSender{cfg: cfg, http: client}
}

func (c *CloudSender) Kind() channel.ProviderKind { return channel.ProviderWhatsAppCloud }

type cloudTextRequest struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             cloudText `json:"text"`
}

type cloudText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type cloudResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers a text message; the returned wamid is the external id.
func (c *CloudSender) Send(ctx context.Context, msg channel.Message) (channel.Receipt, error) {
	to := phone.Digits(msg.To)
	if to == "" {
		return channel.Receipt{}, fmt.Errorf("%w: empty phone", channel.ErrInvalidRecipient)
	}

	body, err := json.Marshal(cloudTextRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             cloudText{Body: plainText(msg)},
	})
	if err != nil {
		return channel.Receipt{}, fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.cfg.URL(), c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return channel.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return channel.Receipt{}, fmt.Errorf("whatsapp cloud request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := channel.CheckResponse(channel.ProviderWhatsAppCloud, resp); err != nil {
		return channel.Receipt{}, err
	}

	var decoded cloudResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return channel.Receipt{}, fmt.Errorf("decode whatsapp cloud response: %w", err)
	}
	receipt := channel.Receipt{Provider: channel.ProviderWhatsAppCloud, SentAt: time.Now().UTC()}
	if len(decoded.Messages) > 0 {
		receipt.ExternalID = decoded.Messages[0].ID
	}
	return receipt, nil
}

// plainText collapses subject and body into the single text field WhatsApp supports.
func plainText(msg channel.Message) string {
	body := sanitize.StripHTML(msg.Body)
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		return body
	}
	return "*" + subject + "*\n\n" + body
}
