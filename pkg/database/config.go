package database

import (
	"os"
	"strconv"
	"time"
)

// Config holds the connection string and pool tuning.
type Config struct {
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig builds a Config for the given DSN with pool settings taken
// from CACP_DB_* environment variables when present.
func DefaultConfig(dsn string) Config {
	maxOpen, _ := strconv.Atoi(getEnvOrDefault("CACP_DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("CACP_DB_MAX_IDLE_CONNS", "5"))

	return Config{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
