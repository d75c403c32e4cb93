package config

import (
	"fmt"
	"os"
	"strconv"
)

// Settings holds environment-sourced configuration. Every value comes from a
// CACP_-prefixed environment variable; secrets are never read from files.
type Settings struct {
	// HMACSecret signs execution plans. Plans cannot be signed or verified
	// without it.
	HMACSecret string

	// GitHub PR submission.
	GitHubToken string
	GitHubOwner string
	GitHubRepo  string

	// GitHubWebhookSecret verifies merge-webhook deliveries.
	GitHubWebhookSecret string

	// Environment selects the GitOps target directory (dev, staging, prod).
	Environment string

	// OPAURL is the policy oracle base URL. Empty disables the remote check.
	OPAURL string

	// PGDSN is the PostgreSQL DSN for the event store. Empty falls back to
	// the in-memory store.
	PGDSN string

	// RedisURL backs the work queue, rate limits, and idempotency markers.
	RedisURL string

	// Twilio SMS delivery.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// HTTP listen port.
	Port int

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// LoadSettings reads settings from the environment, applying defaults for
// everything that can sensibly default.
func LoadSettings() (*Settings, error) {
	port, err := strconv.Atoi(getEnv("CACP_PORT", "8000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACP_PORT: %w", err)
	}

	return &Settings{
		HMACSecret:          os.Getenv("CACP_HMAC_SECRET"),
		GitHubToken:         os.Getenv("CACP_GITHUB_TOKEN"),
		GitHubOwner:         getEnv("CACP_GITHUB_OWNER", "julian-najas"),
		GitHubRepo:          getEnv("CACP_GITHUB_REPO", "clinic-gitops-config"),
		GitHubWebhookSecret: os.Getenv("CACP_GITHUB_WEBHOOK_SECRET"),
		Environment:         getEnv("CACP_ENVIRONMENT", "dev"),
		OPAURL:              getEnv("CACP_OPA_URL", "http://localhost:8181"),
		PGDSN:               os.Getenv("CACP_PG_DSN"),
		RedisURL:            getEnv("CACP_REDIS_URL", "redis://localhost:6379/0"),
		TwilioAccountSID:    os.Getenv("CACP_TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     os.Getenv("CACP_TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:    os.Getenv("CACP_TWILIO_FROM_NUMBER"),
		Port:                port,
		LogLevel:            getEnv("CACP_LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
