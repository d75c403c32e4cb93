// CACP control plane server. Serves the HTTP API (ingest, webhooks, audit,
// consent, demo) and runs the retention cleanup loop.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/julian-najas/cacp/pkg/agent"
	"github.com/julian-najas/cacp/pkg/api"
	"github.com/julian-najas/cacp/pkg/cleanup"
	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/consent"
	"github.com/julian-najas/cacp/pkg/database"
	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/gitops"
	"github.com/julian-najas/cacp/pkg/metrics"
	"github.com/julian-najas/cacp/pkg/orchestrator"
	"github.com/julian-najas/cacp/pkg/policy"
	"github.com/julian-najas/cacp/pkg/queue"
	"github.com/julian-najas/cacp/pkg/services"
	"github.com/julian-najas/cacp/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})))
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	setupLogging(getEnv("CACP_LOG_LEVEL", "info"))

	slog.Info("Starting CACP control plane",
		"version", version.Full(),
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	settings := cfg.Settings

	// 2. Event store: PostgreSQL when a DSN is configured, in-memory otherwise
	var (
		store    eventstore.Store
		dbClient *database.Client
	)
	if settings.PGDSN != "" {
		dbClient, err = database.NewClient(ctx, database.DefaultConfig(settings.PGDSN))
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		if err := database.RunMigrations(dbClient.DB()); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		store = eventstore.NewPostgresStore(dbClient.DB())
		slog.Info("Connected to PostgreSQL event store")
	} else {
		store = eventstore.NewMemoryStore()
		slog.Warn("CACP_PG_DSN not set, using in-memory event store")
	}

	// 3. Redis: work queue, rate limits, consent store
	redisClient, err := queue.NewRedisClient(settings.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "url", settings.RedisURL, "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	q := queue.NewQueue(redisClient)
	consentStore := consent.NewRedisStore(redisClient)

	// 4. Policy oracle and PR submitter, both optional
	var (
		oracle    agent.PolicyOracle
		opaClient *policy.Client
	)
	if settings.OPAURL != "" {
		opaClient = policy.NewClient(settings.OPAURL)
		oracle = opaClient
	} else {
		slog.Warn("CACP_OPA_URL not set, remote compliance check disabled")
	}

	var submitter orchestrator.PRSubmitter
	if settings.GitHubToken != "" {
		submitter = gitops.NewClient(settings.GitHubToken, settings.GitHubOwner, settings.GitHubRepo)
	} else {
		slog.Warn("CACP_GITHUB_TOKEN not set, PR submission disabled")
	}

	// 5. Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// 6. Orchestrator and domain services
	orch := orchestrator.NewOrchestrator(settings, cfg.Clinics, oracle, store, submitter, m)
	eventService := services.NewEventService(store)
	webhookService := services.NewWebhookService(settings, q, store)
	deliveryService := services.NewDeliveryStatusService(settings.TwilioAuthToken, store, m)
	consentService := services.NewConsentService(consentStore, store)
	slog.Info("Services initialized", "clinics", cfg.Stats().Clinics)

	// 7. Retention cleanup loop
	cleanupService := cleanup.NewService(cfg.Retention, eventService, q)
	cleanupService.Start(ctx)

	// 8. HTTP server
	gin.SetMode(gin.ReleaseMode)
	httpServer := api.NewServer(settings, orch, webhookService, deliveryService,
		eventService, consentService)
	httpServer.SetQueue(q)
	if dbClient != nil {
		httpServer.SetDB(dbClient.DB())
	}
	if opaClient != nil {
		httpServer.SetOPA(opaClient)
	}
	httpServer.SetMetrics(m, reg)

	// 9. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(settings.Port)
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("CACP started successfully", "environment", settings.Environment)

	// 10. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 11. Graceful shutdown: stop the cleanup loop, then drain HTTP
	cleanupService.Stop()

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
