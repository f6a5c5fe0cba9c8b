package workflow

import (
	apphttp "helpdesk_backend/internal/http"
	"helpdesk_backend/platform/httpkit"
	"helpdesk_backend/platform/validator"
)

// Module wires the workflow execution and lifecycle event routes.
type Module struct {
	handler *Handler
	members httpkit.MembershipChecker
}

func NewModule(engine *Engine, tickets TicketReader, bus Publisher, members httpkit.MembershipChecker, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(engine, tickets, bus, val), members: members}
}

func (m *Module) Name() string {
	return "workflow"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/workflows", httpkit.TenantMemberRequired(m.members))
	group.POST("/execute", m.handler.Execute)
	group.POST("/events", m.handler.Publish)
}

var _ apphttp.Module = (*Module)(nil)
