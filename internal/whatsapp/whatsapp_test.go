package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"helpdesk_backend/internal/channel"

	"github.com/stretchr/testify/require"
)

func TestCloudSenderSendsTextAndReturnsWamid(t *testing.T) {
	var got cloudTextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/12345/messages", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer srv.Close()

	sender := NewCloudSender(CloudConfig{BaseURL: srv.URL + "/v1", PhoneNumberID: "12345", AccessToken: "tok"}, srv.Client())
	receipt, err := sender.Send(context.Background(), channel.Message{To: "+31 6 12345678", Subject: "Ticket #4", Body: "<p>Updated</p>"})

	require.NoError(t, err)
	require.Equal(t, "wamid.ABC", receipt.ExternalID)
	require.Equal(t, "31612345678", got.To)
	require.Equal(t, "whatsapp", got.MessagingProduct)
	require.Equal(t, "*Ticket #4*\n\nUpdated", got.Text.Body)
}

func TestGatewaySenderUsesDeviceHeaderAndBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send/message", r.URL.Path)
		require.Equal(t, "dev-1", r.Header.Get("X-Device-Id"))
		require.Equal(t, "Basic dXNlcjpwYXNz", r.Header.Get("Authorization"))
		var req gatewayRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "31612345678", req.Phone)
		_, _ = w.Write([]byte(`{"code":"SUCCESS","results":{"message_id":"3EB0ABC"}}`))
	}))
	defer srv.Close()

	sender := NewGatewaySender(GatewayConfig{BaseURL: srv.URL, APIKey: "user:pass", DeviceID: "dev-1"}, srv.Client())
	receipt, err := sender.Send(context.Background(), channel.Message{To: "0612345678", Body: "hi"})

	require.NoError(t, err)
	require.Equal(t, "3EB0ABC", receipt.ExternalID)
	require.Equal(t, channel.ProviderWhatsAppGateway, receipt.Provider)
}

func TestGatewaySenderSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "device offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewGatewaySender(GatewayConfig{BaseURL: srv.URL}, srv.Client())
	_, err := sender.Send(context.Background(), channel.Message{To: "+31612345678", Body: "hi"})

	var perr *channel.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusBadGateway, perr.StatusCode)
}

func TestFormatAuthHeaderKeepsExplicitBasic(t *testing.T) {
	require.Equal(t, "Basic abc", formatAuthHeader("Basic abc"))
}
