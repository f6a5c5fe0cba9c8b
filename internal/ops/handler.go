// Package ops exposes the periodic jobs over HTTP so an external cron can
// trigger them. Every route sits behind the operational secret.
package ops

import (
	"context"
	"net/http"

	"helpdesk_backend/internal/notification/worker"
	"helpdesk_backend/internal/reports"
	"helpdesk_backend/internal/sla"
	"helpdesk_backend/platform/httpkit"
	"helpdesk_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type OutboxProcessor interface {
	ProcessBatch(ctx context.Context) (worker.BatchResult, error)
}

type OutboxSweeper interface {
	Sweep(ctx context.Context) (worker.SweepResult, error)
}

type SLAScanner interface {
	Scan(ctx context.Context) (sla.ScanResult, error)
}

type ReportRunner interface {
	Run(ctx context.Context) (reports.RunResult, error)
}

// Jobs groups the runnable jobs. A nil job answers 503.
type Jobs struct {
	Outbox  OutboxProcessor
	Sweeper OutboxSweeper
	SLA     SLAScanner
	Reports ReportRunner
}

type Handler struct {
	jobs Jobs
	log  *logger.Logger
}

func NewHandler(jobs Jobs, log *logger.Logger) *Handler {
	return &Handler{jobs: jobs, log: log}
}

// ProcessOutbox handles POST /ops/outbox/process.
func (h *Handler) ProcessOutbox(c *gin.Context) {
	if h.jobs.Outbox == nil {
		unavailable(c)
		return
	}
	run(c, h.log, "outbox.process", h.jobs.Outbox.ProcessBatch)
}

// SweepOutbox handles POST /ops/outbox/sweep.
func (h *Handler) SweepOutbox(c *gin.Context) {
	if h.jobs.Sweeper == nil {
		unavailable(c)
		return
	}
	run(c, h.log, "outbox.sweep", h.jobs.Sweeper.Sweep)
}

// ScanSLA handles POST /ops/sla/scan.
func (h *Handler) ScanSLA(c *gin.Context) {
	if h.jobs.SLA == nil {
		unavailable(c)
		return
	}
	run(c, h.log, "sla.scan", h.jobs.SLA.Scan)
}

// RunReports handles POST /ops/reports/run.
func (h *Handler) RunReports(c *gin.Context) {
	if h.jobs.Reports == nil {
		unavailable(c)
		return
	}
	run(c, h.log, "reports.run", h.jobs.Reports.Run)
}

func run[T any](c *gin.Context, log *logger.Logger, job string, fn func(context.Context) (T, error)) {
	ctx := c.Request.Context()
	result, err := fn(ctx)
	if err != nil {
		log.WithContext(ctx).Error("ops job failed", "job", job, "error", err)
		httpkit.HandleError(c, err)
		return
	}
	log.WithContext(ctx).Info("ops job completed", "job", job)
	httpkit.OK(c, gin.H{"job": job, "result": result})
}

func unavailable(c *gin.Context) {
	httpkit.Error(c, http.StatusServiceUnavailable, "job not configured", nil)
}
