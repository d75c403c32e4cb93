package config

import (
	"fmt"
	"time"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}

	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}

	if err := v.validateClinics(); err != nil {
		return fmt.Errorf("clinic validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateQueue() error {
	q := v.cfg.Queue
	if q == nil {
		return fmt.Errorf("queue configuration is nil")
	}

	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return fmt.Errorf("worker_count must be between 1 and 50, got %d", q.WorkerCount)
	}

	if q.DequeueTimeout <= 0 {
		return fmt.Errorf("dequeue_timeout must be positive, got %v", q.DequeueTimeout)
	}

	if q.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", q.MaxRetries)
	}

	if len(q.RetryBackoff) == 0 {
		return fmt.Errorf("retry_backoff must have at least one entry")
	}
	for i, d := range q.RetryBackoff {
		if d <= 0 {
			return fmt.Errorf("retry_backoff[%d] must be positive, got %v", i, d)
		}
	}

	if q.RateLimit < 1 {
		return fmt.Errorf("rate_limit must be at least 1, got %d", q.RateLimit)
	}

	if q.RateWindow <= 0 {
		return fmt.Errorf("rate_window must be positive, got %v", q.RateWindow)
	}

	if q.DedupTTL <= 0 {
		return fmt.Errorf("dedup_ttl must be positive, got %v", q.DedupTTL)
	}

	if q.QuietHoursStart < 0 || q.QuietHoursStart > 23 {
		return fmt.Errorf("quiet_hours_start must be between 0 and 23, got %d", q.QuietHoursStart)
	}
	if q.QuietHoursEnd < 0 || q.QuietHoursEnd > 23 {
		return fmt.Errorf("quiet_hours_end must be between 0 and 23, got %d", q.QuietHoursEnd)
	}

	if q.Timezone != "" {
		if _, err := time.LoadLocation(q.Timezone); err != nil {
			return fmt.Errorf("timezone %q is not a valid IANA zone: %w", q.Timezone, err)
		}
	}

	if q.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", q.GracefulShutdownTimeout)
	}

	return nil
}

func (v *ConfigValidator) validateRetention() error {
	r := v.cfg.Retention
	if r == nil {
		return fmt.Errorf("retention configuration is nil")
	}

	if r.EventRetentionDays < 0 {
		return fmt.Errorf("event_retention_days must be non-negative, got %d", r.EventRetentionDays)
	}

	if r.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive, got %v", r.CleanupInterval)
	}

	if r.DLQMaxLen < 0 {
		return fmt.Errorf("dlq_max_len must be non-negative, got %d", r.DLQMaxLen)
	}

	return nil
}

func (v *ConfigValidator) validateClinics() error {
	validChannels := map[string]bool{"sms": true, "whatsapp": true, "email": true}

	for _, id := range v.cfg.Clinics.ClinicIDs() {
		profile := v.cfg.Clinics.Get(id)

		if !validChannels[profile.Messaging.PreferredChannel] {
			return NewValidationError("clinic", id, "messaging.preferred_channel",
				fmt.Errorf("must be one of sms, whatsapp, email; got %q", profile.Messaging.PreferredChannel))
		}

		if profile.Messaging.MaxMessagesPerPatientPerDay < 1 {
			return NewValidationError("clinic", id, "messaging.max_messages_per_patient_per_day",
				fmt.Errorf("must be at least 1, got %d", profile.Messaging.MaxMessagesPerPatientPerDay))
		}
	}

	return nil
}
