package ops

import (
	apphttp "helpdesk_backend/internal/http"
	"helpdesk_backend/platform/logger"
)

// Module mounts the job routes on the ops group.
type Module struct {
	handler *Handler
}

func NewModule(jobs Jobs, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(jobs, log)}
}

func (m *Module) Name() string { return "ops" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Ops.POST("/outbox/process", m.handler.ProcessOutbox)
	ctx.Ops.POST("/outbox/sweep", m.handler.SweepOutbox)
	ctx.Ops.POST("/sla/scan", m.handler.ScanSLA)
	ctx.Ops.POST("/reports/run", m.handler.RunReports)
}

var _ apphttp.Module = (*Module)(nil)
