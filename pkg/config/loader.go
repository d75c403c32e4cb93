package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// CACPYAMLConfig represents the complete cacp.yaml file structure.
type CACPYAMLConfig struct {
	Clinics   map[string]ClinicProfile `yaml:"clinics"`
	Queue     *QueueConfig             `yaml:"queue"`
	Retention *RetentionConfig         `yaml:"retention"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read settings from environment variables
//  2. Load cacp.yaml from configDir (optional when configDir is empty)
//  3. Expand environment variables in the YAML
//  4. Merge user-provided queue/retention values over built-in defaults
//  5. Merge clinic profiles over the default profile
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"clinics", stats.Clinics,
		"environment", cfg.Settings.Environment,
		"workers", cfg.Queue.WorkerCount)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	settings, err := LoadSettings()
	if err != nil {
		return nil, err
	}

	yamlCfg := &CACPYAMLConfig{Clinics: make(map[string]ClinicProfile)}
	if configDir != "" {
		loader := &configLoader{configDir: configDir}
		yamlCfg, err = loader.loadCACPYAML()
		if err != nil {
			return nil, NewLoadError("cacp.yaml", err)
		}
	}

	// Resolve queue config: start with defaults, then merge user config on
	// top so unset fields keep their defaults.
	queueConfig := DefaultQueueConfig()
	if yamlCfg.Queue != nil {
		if err := mergo.Merge(queueConfig, yamlCfg.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}

	retentionConfig := DefaultRetentionConfig()
	if yamlCfg.Retention != nil {
		if err := mergo.Merge(retentionConfig, yamlCfg.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	// Fill clinic profiles: each explicit profile is merged over the
	// default so partial entries inherit the rest.
	clinics := make(map[string]ClinicProfile, len(yamlCfg.Clinics))
	for id, profile := range yamlCfg.Clinics {
		merged := DefaultClinicProfile()
		if err := mergo.Merge(&merged, profile, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge clinic profile %s: %w", id, err)
		}
		clinics[id] = merged
	}

	return &Config{
		configDir: configDir,
		Settings:  settings,
		Queue:     queueConfig,
		Retention: retentionConfig,
		Clinics:   NewClinicRegistry(clinics),
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// ExpandEnv passes through original data on parse/execution errors,
	// letting the YAML parser surface a clearer message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadCACPYAML() (*CACPYAMLConfig, error) {
	var config CACPYAMLConfig

	// Initialize map to avoid nil map
	config.Clinics = make(map[string]ClinicProfile)

	if err := l.loadYAML("cacp.yaml", &config); err != nil {
		return nil, err
	}

	return &config, nil
}
