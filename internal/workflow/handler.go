package workflow

import (
	"context"
	"errors"
	"net/http"

	"helpdesk_backend/internal/events"
	"helpdesk_backend/internal/tickets"
	"helpdesk_backend/platform/apperr"
	"helpdesk_backend/platform/httpkit"
	"helpdesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type TicketReader interface {
	GetSnapshot(ctx context.Context, organizationID, id uuid.UUID) (tickets.Snapshot, error)
}

type Runner interface {
	Execute(ctx context.Context, eventType string, ticket tickets.Snapshot, organizationID uuid.UUID) ([]Result, error)
}

type ExecuteRequest struct {
	EventType string `json:"eventType" validate:"required,oneof=TICKET_CREATED TICKET_STATUS_CHANGED TICKET_PRIORITY_UPDATED CUSTOMER_REPLIED"`
	TicketID  string `json:"ticketId" validate:"required,uuid"`
}

// PublishRequest reports a ticket lifecycle change from the ticketing surface.
type PublishRequest struct {
	EventType        string `json:"eventType" validate:"required,oneof=TICKET_CREATED TICKET_STATUS_CHANGED TICKET_PRIORITY_UPDATED CUSTOMER_REPLIED"`
	TicketID         string `json:"ticketId" validate:"required,uuid"`
	PreviousStatus   string `json:"previousStatus,omitempty" validate:"omitempty,max=50"`
	PreviousPriority string `json:"previousPriority,omitempty" validate:"omitempty,max=50"`
	MessageID        string `json:"messageId,omitempty" validate:"omitempty,uuid"`
}

// Publisher puts lifecycle events on the bus without waiting for handlers.
type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

type ExecuteResponse struct {
	Results []Result `json:"results"`
}

type Handler struct {
	runner  Runner
	tickets TicketReader
	bus     Publisher
	val     *validator.Validator
}

func NewHandler(runner Runner, tickets TicketReader, bus Publisher, val *validator.Validator) *Handler {
	return &Handler{runner: runner, tickets: tickets, bus: bus, val: val}
}

// Execute handles POST /api/v1/workflows/execute. The results are advisory:
// action failures still return 200.
func (h *Handler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if !h.bind(c, &req) {
		return
	}
	tenantID, ticket, ok := h.loadTicket(c, req.TicketID)
	if !ok {
		return
	}

	results, err := h.runner.Execute(c.Request.Context(), req.EventType, ticket, tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	if results == nil {
		results = []Result{}
	}
	httpkit.OK(c, ExecuteResponse{Results: results})
}

// Publish handles POST /api/v1/workflows/events. Matching workflows run in
// the background, so the response is 202 before any action executes.
func (h *Handler) Publish(c *gin.Context) {
	var req PublishRequest
	if !h.bind(c, &req) {
		return
	}
	_, ticket, ok := h.loadTicket(c, req.TicketID)
	if !ok {
		return
	}

	change := events.Change{PreviousStatus: req.PreviousStatus, PreviousPriority: req.PreviousPriority}
	if req.MessageID != "" {
		change.MessageID = uuid.MustParse(req.MessageID)
	}
	event, ok := events.ForTrigger(req.EventType, ticket, change)
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, nil)
		return
	}
	h.bus.Publish(c.Request.Context(), event)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "event": event.EventName()})
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

// loadTicket resolves the caller's tenant and the ticket within it. Tickets of
// other tenants answer 404.
func (h *Handler) loadTicket(c *gin.Context, rawID string) (uuid.UUID, tickets.Snapshot, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, tickets.Snapshot{}, false
	}
	tenantID, ok := identity.TenantID()
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "tenant ID is required", nil)
		return uuid.Nil, tickets.Snapshot{}, false
	}

	ticket, err := h.tickets.GetSnapshot(c.Request.Context(), tenantID, uuid.MustParse(rawID))
	if errors.Is(err, tickets.ErrNotFound) {
		err = apperr.NotFound("ticket not found")
	}
	if httpkit.HandleError(c, err) {
		return uuid.Nil, tickets.Snapshot{}, false
	}
	return tenantID, ticket, true
}
