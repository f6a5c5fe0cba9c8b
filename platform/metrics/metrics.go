// Package metrics holds the Prometheus collectors shared by the delivery
// pipeline, the workflow engine and the periodic jobs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_notifications_dispatched_total",
			Help: "Delivery attempts by channel, provider and outcome",
		},
		[]string{"channel", "provider", "outcome"},
	)

	NotificationsTerminal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_notifications_terminal_total",
			Help: "Notifications that reached a terminal status",
		},
		[]string{"status"},
	)

	OutboxClaimConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "helpdesk_outbox_claim_conflicts_total",
			Help: "Claims lost to a concurrent worker",
		},
	)

	OutboxBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helpdesk_outbox_batch_duration_seconds",
			Help:    "Duration of one outbox processing run",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkflowActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_workflow_actions_total",
			Help: "Workflow action results by action type and status",
		},
		[]string{"action", "status"},
	)

	IntegrationCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helpdesk_integration_call_duration_seconds",
			Help:    "Duration of outbound integration calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "status"},
	)

	SLAAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_sla_alerts_total",
			Help: "SLA warning and breach flags set",
		},
		[]string{"kind"},
	)

	ReportRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_report_runs_total",
			Help: "Report scheduler runs per organization outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
