package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"helpdesk_backend/internal/channel"
	"helpdesk_backend/platform/phone"
)

// GatewayConfig holds settings for a self-hosted WhatsApp gateway (GOWA compatible).
type GatewayConfig struct {
	BaseURL  string
	APIKey   string
	DeviceID string
}

// Configured reports whether the gateway URL is set.
func (c GatewayConfig) Configured() bool {
	return strings.TrimSpace(c.BaseURL) != ""
}

// GatewaySender posts to {base}/send/message.
type GatewaySender struct {
	cfg  GatewayConfig
	http *http.Client
}

type gatewayRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type gatewayResponse struct {
	Code    string `json:"code"`
	Results struct {
		MessageID string `json:"message_id"`
	} `json:"results"`
}

// NewGatewaySender creates a sender. A nil client gets a 10s timeout client.
func NewGatewaySender(cfg GatewayConfig, client *http.Client) *GatewaySender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GatewaySender{cfg: cfg, http: client}
}

func (g *GatewaySender) Kind() channel.ProviderKind { return channel.ProviderWhatsAppGateway }

// Send delivers a plain text message. The gateway message id becomes the external id.
func (g *GatewaySender) Send(ctx context.Context, msg channel.Message) (channel.Receipt, error) {
	to := phone.Digits(msg.To)
	if to == "" {
		return channel.Receipt{}, fmt.Errorf("%w: empty phone", channel.ErrInvalidRecipient)
	}

	body, err := json.Marshal(gatewayRequest{Phone: to, Message: plainText(msg)})
	if err != nil {
		return channel.Receipt{}, fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + "/send/message"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return channel.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(g.cfg.APIKey))
	}
	if g.cfg.DeviceID != "" {
		req.Header.Set("X-Device-Id", g.cfg.DeviceID)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return channel.Receipt{}, fmt.Errorf("whatsapp gateway request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := channel.CheckResponse(channel.ProviderWhatsAppGateway, resp); err != nil {
		return channel.Receipt{}, err
	}

	var decoded gatewayResponse
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return channel.Receipt{
		Provider:   channel.ProviderWhatsAppGateway,
		ExternalID: decoded.Results.MessageID,
		SentAt:     time.Now().UTC(),
	}, nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(apiKey))
}
