// Package notification mounts the operator routes for the notification outbox
// and the organization channel settings.
package notification

import (
	apphttp "helpdesk_backend/internal/http"
	notifhandler "helpdesk_backend/internal/notification/handler"
	"helpdesk_backend/platform/httpkit"
)

const roleAdmin = "admin"

// Module exposes outbox maintenance and channel settings to organization members.
type Module struct {
	handler *notifhandler.HTTPHandler
	members httpkit.MembershipChecker
}

// New creates the notification module.
func New(ob notifhandler.Outbox, store notifhandler.SettingsStore, members httpkit.MembershipChecker) *Module {
	return &Module{
		handler: notifhandler.NewHTTPHandler(ob, store),
		members: members,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the notification and settings routes. Settings are admin-only.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	member := httpkit.TenantMemberRequired(m.members)

	notifications := ctx.Protected.Group("/notifications", member)
	notifications.GET("/failed", m.handler.ListFailed)
	notifications.POST("/:id/requeue", m.handler.Requeue)
	notifications.POST("/:id/cancel", m.handler.Cancel)

	channels := ctx.Protected.Group("/settings/channels", member, httpkit.RequireRole(roleAdmin))
	channels.GET("", m.handler.GetChannelSettings)
	channels.PUT("", m.handler.PutChannelSettings)
}

var _ apphttp.Module = (*Module)(nil)
