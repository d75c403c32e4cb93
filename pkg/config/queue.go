package config

import "time"

// QueueConfig contains queue and worker pool configuration. These values
// control how actions are dequeued, rate-limited, retried, and dead-lettered.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per process.
	// Each worker independently dequeues and processes actions.
	WorkerCount int `yaml:"worker_count"`

	// DequeueTimeout bounds the blocking pop on the main queue. The
	// worker loop wakes at least this often to promote due retries and
	// notice shutdown.
	DequeueTimeout time.Duration `yaml:"dequeue_timeout"`

	// MaxRetries is how many times a failing action is retried before
	// being dead-lettered.
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the delay schedule for retries. An attempt beyond
	// the last entry reuses the final delay.
	RetryBackoff []time.Duration `yaml:"retry_backoff"`

	// RateLimit is the maximum sends per (patient, channel) inside
	// RateWindow.
	RateLimit int `yaml:"rate_limit"`

	// RateWindow is the sliding-window span for the rate limit.
	RateWindow time.Duration `yaml:"rate_window"`

	// DedupTTL is how long a sent (appointment, channel) pair suppresses
	// duplicate sends.
	DedupTTL time.Duration `yaml:"dedup_ttl"`

	// QuietHoursStart and QuietHoursEnd define the local-time window
	// [start, end) during which no messages go out. The window wraps
	// midnight when start > end. Setting both to 0 disables the check.
	QuietHoursStart int `yaml:"quiet_hours_start"`
	QuietHoursEnd   int `yaml:"quiet_hours_end"`

	// Timezone is the IANA zone used to evaluate quiet hours.
	Timezone string `yaml:"timezone"`

	// GracefulShutdownTimeout is the max time to wait for in-flight
	// actions to finish during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		DequeueTimeout:          5 * time.Second,
		MaxRetries:              3,
		RetryBackoff:            []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second},
		RateLimit:               3,
		RateWindow:              1 * time.Hour,
		DedupTTL:                24 * time.Hour,
		QuietHoursStart:         22,
		QuietHoursEnd:           8,
		Timezone:                "Europe/Madrid",
		GracefulShutdownTimeout: 30 * time.Second,
	}
}
