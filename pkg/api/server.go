// Package api serves the control plane's HTTP surface: appointment ingest,
// the GitHub and Twilio webhooks, the audit read API, consent management,
// operational endpoints, and the demo ROI simulator.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/masking"
	"github.com/julian-najas/cacp/pkg/metrics"
	"github.com/julian-najas/cacp/pkg/orchestrator"
	"github.com/julian-najas/cacp/pkg/policy"
	"github.com/julian-najas/cacp/pkg/queue"
	"github.com/julian-najas/cacp/pkg/services"
)

// readyCheck probes one dependency within the caller's deadline.
type readyCheck func(context.Context) bool

// Server wires handlers to the orchestrator and the service layer.
type Server struct {
	settings *config.Settings
	orch     *orchestrator.Orchestrator
	webhooks *services.WebhookService
	delivery *services.DeliveryStatusService
	events   *services.EventService
	consents *services.ConsentService

	queue    *queue.Queue
	db       *sql.DB
	opa      *policy.Client
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	checkPostgres readyCheck
	checkRedis    readyCheck
	checkOPA      readyCheck

	engine *gin.Engine
	httpd  *http.Server
	logger *slog.Logger
	masker *masking.Masker
}

// NewServer creates the HTTP server. Optional dependencies (queue, database,
// OPA, metrics) are attached through the Set methods before Router is built.
func NewServer(settings *config.Settings, orch *orchestrator.Orchestrator,
	webhooks *services.WebhookService, delivery *services.DeliveryStatusService,
	events *services.EventService, consents *services.ConsentService) *Server {
	s := &Server{
		settings: settings,
		orch:     orch,
		webhooks: webhooks,
		delivery: delivery,
		events:   events,
		consents: consents,
		logger:   slog.Default().With("component", "api"),
		masker:   masking.NewMasker(),
	}

	// Readiness probes default to the attached handles. An unconfigured
	// dependency reports not-ready: readiness only means something in a
	// fully wired deployment.
	s.checkPostgres = func(ctx context.Context) bool {
		return s.db != nil && s.db.PingContext(ctx) == nil
	}
	s.checkRedis = func(ctx context.Context) bool {
		return s.queue != nil && s.queue.Client().Ping(ctx).Err() == nil
	}
	s.checkOPA = func(ctx context.Context) bool {
		return s.opa != nil && s.opa.Health(ctx)
	}
	return s
}

// SetQueue attaches the Redis-backed work queue, enabling the DLQ replay
// endpoint and the redis readiness probe.
func (s *Server) SetQueue(q *queue.Queue) { s.queue = q }

// SetDB attaches the Postgres handle for the readiness probe.
func (s *Server) SetDB(db *sql.DB) { s.db = db }

// SetOPA attaches the policy client for the readiness probe.
func (s *Server) SetOPA(client *policy.Client) { s.opa = client }

// SetMetrics attaches the collectors and the registry /metrics exposes.
func (s *Server) SetMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) {
	s.metrics = m
	s.gatherer = gatherer
}

// Router builds the gin engine on first call.
func (s *Server) Router() *gin.Engine {
	if s.engine != nil {
		return s.engine
	}

	engine := gin.New()
	engine.Use(
		requestIDMiddleware(),
		timingMiddleware(),
		loggingMiddleware(s.logger, s.masker),
		metricsMiddleware(s.metrics),
		recoveryMiddleware(s.logger),
	)
	engine.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, CodeInvalidRequest, "route not found")
	})

	engine.GET("/health", s.healthHandler)
	engine.GET("/ready", s.readyHandler)
	engine.GET("/metrics", s.metricsHandler())

	engine.POST("/ingest", s.ingestHandler)
	engine.POST("/webhook/github", s.githubWebhookHandler)
	engine.POST("/webhook/twilio-status", s.twilioStatusHandler)

	engine.GET("/events", s.listEventsHandler)
	engine.GET("/stats/no-shows", s.noShowStatsHandler)

	engine.POST("/consent/grant", s.grantConsentHandler)
	engine.POST("/consent/revoke", s.revokeConsentHandler)
	engine.POST("/admin/dlq/replay", s.replayDLQHandler)

	engine.GET("/demo/dental-roi", s.demoROIHandler)
	engine.GET("/demo/dental-roi/csv", s.demoROICSVHandler)

	s.engine = engine
	return engine
}

func (s *Server) metricsHandler() gin.HandlerFunc {
	gatherer := s.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Start serves on addr until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpd = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpd.ListenAndServe()
}

// Shutdown drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpd == nil {
		return nil
	}
	return s.httpd.Shutdown(ctx)
}
