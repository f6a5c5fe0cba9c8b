// Package http holds what the router needs from the composition root: config,
// a readiness check and the helpdesk modules that mount routes.
package http

import (
	"context"

	"helpdesk_backend/platform/config"
	"helpdesk_backend/platform/logger"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
	config.OpsConfig
}

// HealthChecker backs GET /api/health; the API binary passes the pgx pool.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is built by cmd/api and handed to router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	Health HealthChecker
	// Modules are the workflow, notification admin and ops route sets.
	Modules []Module
}
