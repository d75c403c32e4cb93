package config

import "time"

// RetentionConfig controls event retention and cleanup behavior.
type RetentionConfig struct {
	// EventRetentionDays is how many days to keep execution telemetry
	// events before the cleanup loop deletes them. Zero disables event
	// pruning.
	EventRetentionDays int `yaml:"event_retention_days"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// DLQMaxLen caps the dead-letter list; the cleanup loop drops the
	// oldest entries beyond it. Zero disables trimming.
	DLQMaxLen int64 `yaml:"dlq_max_len"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		EventRetentionDays: 90,
		CleanupInterval:    24 * time.Hour,
		DLQMaxLen:          1000,
	}
}
