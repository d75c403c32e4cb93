// CACP worker. Dequeues signed execution plans and channel actions from
// Redis, runs the compliance rails, and delivers through the messaging
// adapters. Scales independently of the HTTP control plane.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/consent"
	"github.com/julian-najas/cacp/pkg/database"
	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/messaging"
	"github.com/julian-najas/cacp/pkg/metrics"
	"github.com/julian-najas/cacp/pkg/models"
	"github.com/julian-najas/cacp/pkg/queue"
	"github.com/julian-najas/cacp/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
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

	podID := resolvePodID()
	slog.Info("Starting CACP worker",
		"version", version.Full(),
		"pod_id", podID,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	settings := cfg.Settings

	// 2. Event store: shared with the control plane
	var store eventstore.Store
	if settings.PGDSN != "" {
		dbClient, err := database.NewClient(ctx, database.DefaultConfig(settings.PGDSN))
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

	// 3. Redis: the queue is the worker's reason to exist
	redisClient, err := queue.NewRedisClient(settings.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "url", settings.RedisURL, "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	q := queue.NewQueue(redisClient)
	consentStore := consent.NewRedisStore(redisClient)

	// 4. Messaging adapters. Without Twilio credentials sends are logged but
	// not delivered, which keeps local development safe.
	var contact queue.Adapter
	if settings.TwilioAccountSID != "" && settings.TwilioAuthToken != "" && settings.TwilioFromNumber != "" {
		contact = messaging.NewTwilioAdapter(
			settings.TwilioAccountSID, settings.TwilioAuthToken, settings.TwilioFromNumber)
		slog.Info("Twilio adapter enabled", "from", settings.TwilioFromNumber)
	} else {
		contact = messaging.NewNoopAdapter()
		slog.Warn("Twilio not configured, using no-op messaging adapter")
	}

	adapters := map[string]queue.Adapter{
		models.ActionTypeExecutePlan:      queue.NewPlanExecutor(q, store, settings.HMACSecret),
		models.ActionTypeSendReminder:     contact,
		models.ActionTypeSendConfirmation: contact,
		models.ActionTypeReschedule:       contact,
	}

	// 5. Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// 6. Start worker pool
	pool := queue.NewWorkerPool(podID, q, cfg.Queue, adapters, store, consentStore, m)
	pool.Start(ctx)

	// 7. Observability server: liveness, pool readiness, metrics
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/ready", func(c *gin.Context) {
		health := pool.Health(c.Request.Context())
		status := http.StatusOK
		if !health.IsHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, health)
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	obsServer := &http.Server{
		Addr:              ":" + getEnv("CACP_WORKER_PORT", "9090"),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Worker observability server listening", "addr", obsServer.Addr)
		if err := obsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Observability server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("CACP worker started successfully",
		"pod_id", podID,
		"workers", cfg.Queue.WorkerCount)

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown: wait for in-flight actions within the budget
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, abandoning in-flight actions")
	}

	obsShutdownCtx, obsCancel := context.WithTimeout(ctx, 5*time.Second)
	defer obsCancel()
	if err := obsServer.Shutdown(obsShutdownCtx); err != nil {
		slog.Error("Observability server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
