package http

import (
	"helpdesk_backend/platform/config"
	"helpdesk_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module mounts one area of the API, e.g. workflow execution or the outbox
// operator routes. Name tags the route registration log line.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what a module may attach to. Tenant routes go on Protected
// behind membership checks; job triggers go on Ops.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1; Protected is the same prefix behind AuthMiddleware.
	V1        *gin.RouterGroup
	Protected *gin.RouterGroup
	// Ops is /api/v1/ops, guarded by X-Cron-Secret and OpsRateLimiter.
	Ops            *gin.RouterGroup
	OpsRateLimiter *httpkit.IPRateLimiter

	Config config.JWTConfig
	// AuthMiddleware validates the bearer token and sets user, tenant and roles.
	AuthMiddleware gin.HandlerFunc
}
