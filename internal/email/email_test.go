package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"helpdesk_backend/internal/channel"

	"github.com/stretchr/testify/require"
)

func TestAPISenderPostsWithBearerAndReturnsID(t *testing.T) {
	var got apiEmailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/emails", r.URL.Path)
		require.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	sender := NewAPISender(APIConfig{BaseURL: srv.URL + "/", APIKey: "re_test", FromEmail: "desk@example.com", FromName: "Desk"}, srv.Client())
	receipt, err := sender.Send(context.Background(), channel.Message{To: "ann@example.com", Subject: "Hi", Body: "Line 1\nLine 2"})

	require.NoError(t, err)
	require.Equal(t, "msg_123", receipt.ExternalID)
	require.Equal(t, channel.ProviderEmailAPI, receipt.Provider)
	require.Equal(t, "Desk <desk@example.com>", got.From)
	require.Equal(t, []string{"ann@example.com"}, got.To)
	require.Contains(t, got.HTML, "Line 1<br>")
	require.Equal(t, "Line 1\nLine 2", got.Text)
}

func TestAPISenderReturnsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	sender := NewAPISender(APIConfig{BaseURL: srv.URL, APIKey: "k", FromEmail: "d@example.com"}, srv.Client())
	_, err := sender.Send(context.Background(), channel.Message{To: "ann@example.com"})

	var perr *channel.ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, http.StatusUnprocessableEntity, perr.StatusCode)
	require.False(t, perr.Retryable())
}

func TestAPISenderRejectsBadRecipientWithoutCall(t *testing.T) {
	sender := NewAPISender(APIConfig{BaseURL: "http://unused.invalid", APIKey: "k", FromEmail: "d@example.com"}, nil)
	_, err := sender.Send(context.Background(), channel.Message{To: "not-an-address"})
	require.ErrorIs(t, err, channel.ErrInvalidRecipient)
}

func TestLayoutSanitizesHTMLBodies(t *testing.T) {
	out, err := Layout("Subject", `<p>Hello</p><script>x()</script>`)
	require.NoError(t, err)
	require.Contains(t, out, "<p>Hello</p>")
	require.False(t, strings.Contains(out, "<script>"))
	require.Contains(t, out, "<title>Subject</title>")
}

func TestSMTPBuildMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, FromEmail: "desk@example.com", FromName: "Desk"}, nil)

	m, err := s.buildMessage(channel.Message{To: "ann@example.com", Subject: "Hello", Body: "Body"})
	require.NoError(t, err)
	require.NotEmpty(t, m.GetMessageID())

	_, err = s.buildMessage(channel.Message{To: "not an address", Subject: "x"})
	require.ErrorIs(t, err, channel.ErrInvalidRecipient)
}

func TestSMTPConfigConfigured(t *testing.T) {
	require.False(t, SMTPConfig{Host: "smtp.example.com"}.Configured())
	require.True(t, SMTPConfig{Host: "smtp.example.com", Port: 465, FromEmail: "a@example.com"}.Configured())
}
