package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "@every 1m", cfg.Remediation.WatchdogSchedule)
	assert.Empty(t, cfg.Remediation.Timeouts)
	assert.False(t, cfg.Archive.Enabled())
	assert.Equal(t, time.Minute, cfg.Archive.SettleWindow)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_RemediationSettings(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REMEDIATION_TIMEOUTS", "restart-service=10m, clear-logs=30m")
	t.Setenv("REMEDIATION_CUSTOM_SCRIPTS", "reset-network, disk-cleanup")
	t.Setenv("REMEDIATION_NOTIFY_ON_SUCCESS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]time.Duration{
		"restart-service": 10 * time.Minute,
		"clear-logs":      30 * time.Minute,
	}, cfg.Remediation.Timeouts)
	assert.Equal(t, []string{"clear-logs", "restart-service"}, cfg.Remediation.TimeoutNames())
	assert.Equal(t, []string{"reset-network", "disk-cleanup"}, cfg.Remediation.CustomScripts)
	assert.True(t, cfg.Remediation.NotifyOnSuccess)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{}},
		{"bad driver", map[string]string{"JWT_SECRET": "s", "DB_DRIVER": "mysql"}},
		{"bad timeout", map[string]string{"JWT_SECRET": "s", "REMEDIATION_TIMEOUTS": "restart-service"}},
		{"negative timeout", map[string]string{"JWT_SECRET": "s", "REMEDIATION_TIMEOUTS": "restart-service=-1m"}},
		{"webhook without secret", map[string]string{"JWT_SECRET": "s", "NOTIFY_WEBHOOK_URL": "https://hooks.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
