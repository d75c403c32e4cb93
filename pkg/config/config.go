package config

// Config is the umbrella configuration object returned by Initialize and
// used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// Environment-sourced settings (secrets, endpoints).
	Settings *Settings

	// Queue and worker pool configuration.
	Queue *QueueConfig

	// Event retention and cleanup configuration.
	Retention *RetentionConfig

	// Per-clinic messaging profiles.
	Clinics *ClinicRegistry
}

// Stats contains statistics about loaded configuration
type Stats struct {
	Clinics int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.Clinics != nil {
		s.Clinics = c.Clinics.Len()
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetClinic retrieves a clinic profile by ID, falling back to the default
// profile for unknown clinics.
func (c *Config) GetClinic(clinicID string) ClinicProfile {
	return c.Clinics.Get(clinicID)
}
