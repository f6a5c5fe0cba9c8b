// Package handler exposes operator endpoints over the notification outbox
// and the per-organization channel settings.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/settings"
	"helpdesk_backend/platform/apperr"
	"helpdesk_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidID = "invalid id"

// Outbox is the subset of the outbox repository the handler needs.
type Outbox interface {
	Requeue(ctx context.Context, organizationID, id uuid.UUID) (bool, error)
	Cancel(ctx context.Context, organizationID, id uuid.UUID) (bool, error)
	ListByStatus(ctx context.Context, organizationID uuid.UUID, status outbox.Status, limit int) ([]outbox.Notification, error)
}

// SettingsStore reads and writes channel settings.
type SettingsStore interface {
	Get(ctx context.Context, organizationID uuid.UUID) (settings.ChannelSettings, error)
	Save(ctx context.Context, organizationID uuid.UUID, value settings.ChannelSettings) error
}

type HTTPHandler struct {
	outbox   Outbox
	settings SettingsStore
}

func NewHTTPHandler(ob Outbox, store SettingsStore) *HTTPHandler {
	return &HTTPHandler{outbox: ob, settings: store}
}

// NotificationResponse is the operator view of an outbox row. Bodies are omitted.
type NotificationResponse struct {
	ID             uuid.UUID  `json:"id"`
	TicketID       *uuid.UUID `json:"ticketId,omitempty"`
	RecipientID    *uuid.UUID `json:"recipientId,omitempty"`
	RecipientEmail string     `json:"recipientEmail,omitempty"`
	RecipientPhone string     `json:"recipientPhone,omitempty"`
	Channel        string     `json:"channel"`
	EventType      string     `json:"eventType"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	RetryCount     int        `json:"retryCount"`
	MaxRetries     int        `json:"maxRetries"`
	NextRetryAt    *time.Time `json:"nextRetryAt,omitempty"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	FailedAt       *time.Time `json:"failedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func toResponse(n outbox.Notification) NotificationResponse {
	return NotificationResponse{
		ID:             n.ID,
		TicketID:       n.TicketID,
		RecipientID:    n.RecipientID,
		RecipientEmail: n.RecipientEmail,
		RecipientPhone: n.RecipientPhone,
		Channel:        string(n.Channel),
		EventType:      n.EventType,
		Subject:        n.Subject,
		Status:         string(n.Status),
		RetryCount:     n.RetryCount,
		MaxRetries:     n.MaxRetries,
		NextRetryAt:    n.NextRetryAt,
		ErrorMessage:   n.ErrorMessage,
		CreatedAt:      n.CreatedAt,
		FailedAt:       n.FailedAt,
		UpdatedAt:      n.UpdatedAt,
	}
}

// ListFailed handles GET /notifications/failed.
func (h *HTTPHandler) ListFailed(c *gin.Context) {
	tenantID, ok := tenant(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.outbox.ListByStatus(c.Request.Context(), tenantID, outbox.StatusFailed, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]NotificationResponse, 0, len(rows))
	for _, n := range rows {
		items = append(items, toResponse(n))
	}
	httpkit.OK(c, gin.H{"items": items})
}

// Requeue handles POST /notifications/:id/requeue. SENT and PROCESSING rows
// answer 409.
func (h *HTTPHandler) Requeue(c *gin.Context) {
	h.transition(c, h.outbox.Requeue, "notification cannot be requeued")
}

// Cancel handles POST /notifications/:id/cancel. Only PENDING rows move.
func (h *HTTPHandler) Cancel(c *gin.Context) {
	h.transition(c, h.outbox.Cancel, "notification is not pending")
}

func (h *HTTPHandler) transition(c *gin.Context, apply func(context.Context, uuid.UUID, uuid.UUID) (bool, error), conflict string) {
	tenantID, ok := tenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	changed, err := apply(c.Request.Context(), tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	if !changed {
		httpkit.HandleError(c, apperr.Conflict(conflict))
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

// GetChannelSettings handles GET /settings/channels. Secrets are masked.
func (h *HTTPHandler) GetChannelSettings(c *gin.Context) {
	tenantID, ok := tenant(c)
	if !ok {
		return
	}

	value, err := h.settings.Get(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, value.Masked())
}

// PutChannelSettings handles PUT /settings/channels. Masked secrets in the
// body keep their stored value.
func (h *HTTPHandler) PutChannelSettings(c *gin.Context) {
	tenantID, ok := tenant(c)
	if !ok {
		return
	}

	var req settings.ChannelSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := req.Validate(); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "endpoint not allowed", err.Error())
		return
	}

	ctx := c.Request.Context()
	prev, err := h.settings.Get(ctx, tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	next := req.KeepMaskedSecrets(prev)
	if err := h.settings.Save(ctx, tenantID, next); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, next.Masked())
}

func tenant(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}
	tenantID, ok := identity.TenantID()
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "tenant ID is required", nil)
		return uuid.Nil, false
	}
	return tenantID, true
}
