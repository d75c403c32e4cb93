package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cacp.yaml"), []byte(content), 0o644))
}

func TestInitializeWithoutConfigDir(t *testing.T) {
	cfg, err := Initialize(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Queue.WorkerCount)
	assert.Equal(t, 90, cfg.Retention.EventRetentionDays)
	assert.Equal(t, int64(1000), cfg.Retention.DLQMaxLen)
	assert.Equal(t, 0, cfg.Clinics.Len())
	assert.Equal(t, "dev", cfg.Settings.Environment)
}

func TestInitializeMissingFile(t *testing.T) {
	_, err := Initialize(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitializeLoadsYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
queue:
  worker_count: 2
  quiet_hours_start: 21
  quiet_hours_end: 9
retention:
  event_retention_days: 30
clinics:
  CLI-001:
    name: Clinica Dental Sol
    messaging:
      preferred_channel: sms
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	// User overrides applied, unset fields keep defaults.
	assert.Equal(t, 2, cfg.Queue.WorkerCount)
	assert.Equal(t, 21, cfg.Queue.QuietHoursStart)
	assert.Equal(t, 9, cfg.Queue.QuietHoursEnd)
	assert.Equal(t, 5*time.Second, cfg.Queue.DequeueTimeout)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)

	assert.Equal(t, 30, cfg.Retention.EventRetentionDays)
	assert.Equal(t, 24*time.Hour, cfg.Retention.CleanupInterval)

	profile := cfg.GetClinic("CLI-001")
	assert.Equal(t, "Clinica Dental Sol", profile.Name)
	assert.Equal(t, "sms", profile.Messaging.PreferredChannel)
	// Inherited from the default profile.
	assert.Equal(t, 3, profile.Messaging.MaxMessagesPerPatientPerDay)
}

func TestInitializeUnknownClinicGetsDefault(t *testing.T) {
	cfg, err := Initialize(context.Background(), "")
	require.NoError(t, err)

	profile := cfg.GetClinic("CLI-UNKNOWN")
	assert.Equal(t, "whatsapp", profile.Messaging.PreferredChannel)
	assert.Equal(t, 3, profile.Messaging.MaxMessagesPerPatientPerDay)
	assert.False(t, cfg.Clinics.Has("CLI-UNKNOWN"))
}

func TestInitializeInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "queue: [not: valid")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitializeRejectsBadClinicChannel(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
clinics:
  CLI-002:
    messaging:
      preferred_channel: carrier_pigeon
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preferred_channel")
}

func TestInitializeExpandsEnvInYAML(t *testing.T) {
	t.Setenv("TEST_CLINIC_NAME", "Clinica Norte")

	dir := t.TempDir()
	writeConfigFile(t, dir, `
clinics:
  CLI-003:
    name: "{{.TEST_CLINIC_NAME}}"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "Clinica Norte", cfg.GetClinic("CLI-003").Name)
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, "julian-najas", s.GitHubOwner)
	assert.Equal(t, "clinic-gitops-config", s.GitHubRepo)
	assert.Equal(t, "dev", s.Environment)
	assert.Equal(t, "http://localhost:8181", s.OPAURL)
	assert.Equal(t, "redis://localhost:6379/0", s.RedisURL)
	assert.Equal(t, 8000, s.Port)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("CACP_HMAC_SECRET", "super-secret")
	t.Setenv("CACP_ENVIRONMENT", "prod")
	t.Setenv("CACP_PORT", "9000")

	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, "super-secret", s.HMACSecret)
	assert.Equal(t, "prod", s.Environment)
	assert.Equal(t, 9000, s.Port)
}

func TestLoadSettingsBadPort(t *testing.T) {
	t.Setenv("CACP_PORT", "not-a-number")

	_, err := LoadSettings()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACP_PORT")
}
