package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/settings"
	"helpdesk_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeOutbox struct {
	rows map[uuid.UUID]outbox.Notification
}

func (f *fakeOutbox) move(org, id uuid.UUID, to outbox.Status, from ...outbox.Status) bool {
	n, ok := f.rows[id]
	if !ok || n.OrganizationID != org {
		return false
	}
	for _, st := range from {
		if n.Status == st {
			n.Status = to
			f.rows[id] = n
			return true
		}
	}
	return false
}

func (f *fakeOutbox) Requeue(_ context.Context, org, id uuid.UUID) (bool, error) {
	return f.move(org, id, outbox.StatusPending,
		outbox.StatusPending, outbox.StatusFailed, outbox.StatusCancelled, outbox.StatusExpired), nil
}

func (f *fakeOutbox) Cancel(_ context.Context, org, id uuid.UUID) (bool, error) {
	return f.move(org, id, outbox.StatusCancelled, outbox.StatusPending), nil
}

func (f *fakeOutbox) ListByStatus(_ context.Context, org uuid.UUID, status outbox.Status, _ int) ([]outbox.Notification, error) {
	var out []outbox.Notification
	for _, n := range f.rows {
		if n.OrganizationID == org && n.Status == status {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeSettings struct {
	values map[uuid.UUID]settings.ChannelSettings
}

func (f *fakeSettings) Get(_ context.Context, org uuid.UUID) (settings.ChannelSettings, error) {
	return f.values[org], nil
}

func (f *fakeSettings) Save(_ context.Context, org uuid.UUID, value settings.ChannelSettings) error {
	f.values[org] = value
	return nil
}

func serve(h *HTTPHandler, org uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextTenantIDKey, org)
	})
	r.GET("/notifications/failed", h.ListFailed)
	r.POST("/notifications/:id/requeue", h.Requeue)
	r.POST("/notifications/:id/cancel", h.Cancel)
	r.GET("/settings/channels", h.GetChannelSettings)
	r.PUT("/settings/channels", h.PutChannelSettings)

	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequeueAndCancelOnlyMoveEligibleRows(t *testing.T) {
	org := uuid.New()
	failed, pending, sent := uuid.New(), uuid.New(), uuid.New()
	ob := &fakeOutbox{rows: map[uuid.UUID]outbox.Notification{
		failed:  {ID: failed, OrganizationID: org, Status: outbox.StatusFailed},
		pending: {ID: pending, OrganizationID: org, Status: outbox.StatusPending},
		sent:    {ID: sent, OrganizationID: org, Status: outbox.StatusSent},
	}}
	h := NewHTTPHandler(ob, &fakeSettings{})

	rec := serve(h, org, http.MethodPost, "/notifications/"+failed.String()+"/requeue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, outbox.StatusPending, ob.rows[failed].Status)

	rec = serve(h, org, http.MethodPost, "/notifications/"+sent.String()+"/requeue", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, outbox.StatusSent, ob.rows[sent].Status)

	rec = serve(h, org, http.MethodPost, "/notifications/"+pending.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, outbox.StatusCancelled, ob.rows[pending].Status)

	rec = serve(h, uuid.New(), http.MethodPost, "/notifications/"+failed.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(h, org, http.MethodPost, "/notifications/not-a-uuid/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFailedReturnsTenantRowsOnly(t *testing.T) {
	org := uuid.New()
	mine, theirs := uuid.New(), uuid.New()
	ob := &fakeOutbox{rows: map[uuid.UUID]outbox.Notification{
		mine:   {ID: mine, OrganizationID: org, Status: outbox.StatusFailed, Channel: outbox.ChannelSMS, ErrorMessage: "config: sms disabled", Body: "secret body"},
		theirs: {ID: theirs, OrganizationID: uuid.New(), Status: outbox.StatusFailed},
	}}
	h := NewHTTPHandler(ob, &fakeSettings{})

	rec := serve(h, org, http.MethodGet, "/notifications/failed?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret body")

	var resp struct {
		Items []NotificationResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, mine, resp.Items[0].ID)
	assert.Equal(t, "SMS", resp.Items[0].Channel)
	assert.Equal(t, "config: sms disabled", resp.Items[0].ErrorMessage)
}

func TestChannelSettingsRoundTripKeepsSecrets(t *testing.T) {
	org := uuid.New()
	store := &fakeSettings{values: map[uuid.UUID]settings.ChannelSettings{
		org: {SMTP: settings.SMTP{Enabled: true, Host: "smtp.example.com", Port: 587, Password: "hunter2"}},
	}}
	h := NewHTTPHandler(&fakeOutbox{}, store)

	rec := serve(h, org, http.MethodGet, "/settings/channels", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")

	var current settings.ChannelSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	current.SMTP.FromEmail = "help@example.com"

	rec = serve(h, org, http.MethodPut, "/settings/channels", current)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hunter2", store.values[org].SMTP.Password)
	assert.Equal(t, "help@example.com", store.values[org].SMTP.FromEmail)
}

func TestPutChannelSettingsRejectsInternalEndpoints(t *testing.T) {
	org := uuid.New()
	store := &fakeSettings{values: map[uuid.UUID]settings.ChannelSettings{}}
	h := NewHTTPHandler(&fakeOutbox{}, store)

	body := settings.ChannelSettings{EmailAPI: settings.EmailAPI{Enabled: true, BaseURL: "http://10.0.0.5/send"}}
	rec := serve(h, org, http.MethodPut, "/settings/channels", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.values)
}
