// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the control plane updates. Construct once
// per process and share.
type Metrics struct {
	IngestTotal          prometheus.Counter
	ProposalsTotal       *prometheus.CounterVec
	ActionsExecutedTotal *prometheus.CounterVec
	ActionsBlockedTotal  *prometheus.CounterVec
	ActionRetriesTotal   prometheus.Counter
	ActionsDeadLettered  prometheus.Counter
	WebhookDeliveries    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	DLQDepth             prometheus.Gauge
}

// New registers all collectors against the given registerer. Tests pass a
// fresh prometheus.NewRegistry to avoid cross-test collisions.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cacp_ingest_total",
			Help: "Appointments accepted by POST /ingest.",
		}),
		ProposalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cacp_proposals_total",
			Help: "Proposals produced by the orchestrator, by risk level.",
		}, []string{"risk_level"}),
		ActionsExecutedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cacp_actions_executed_total",
			Help: "Actions executed by the worker, by action type.",
		}, []string{"action_type"}),
		ActionsBlockedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cacp_actions_blocked_total",
			Help: "Actions stopped by a compliance rail, by reason.",
		}, []string{"reason"}),
		ActionRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cacp_action_retries_total",
			Help: "Actions scheduled for retry after an adapter failure.",
		}),
		ActionsDeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "cacp_actions_dead_lettered_total",
			Help: "Actions moved to the dead letter queue.",
		}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cacp_webhook_deliveries_total",
			Help: "Delivery-status webhook callbacks, by message status.",
		}, []string{"status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cacp_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		DLQDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cacp_dlq_depth",
			Help: "Current length of the dead letter queue.",
		}),
	}
}
