package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.True(t, cfg.OfflineQueue)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, "https://api.pycompany.com", cfg.Endpoint)
	assert.Equal(t, 20, cfg.Delivery.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Delivery.FlushInterval)
	assert.Equal(t, "@every 30m", cfg.Demand.Schedule)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataDir = t.TempDir()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing data dir with offline queue", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data_dir")
	})

	t.Run("missing data dir without offline queue", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OfflineQueue = false
		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.Logging.Level = "verbose"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log level")
	})

	t.Run("backoff max below base", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.Delivery.BackoffMax = time.Millisecond
		assert.Error(t, cfg.Validate())
	})
}

func TestConfigTrackerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeveloperToken = "aaa.bbb.ccc"
	cfg.DataDir = t.TempDir()
	cfg.Delivery.BatchSize = 7
	cfg.Delivery.CompressBatches = true
	cfg.Demand.Disabled = true

	tc := cfg.TrackerConfig()
	assert.Equal(t, "aaa.bbb.ccc", tc.DeveloperToken)
	assert.Equal(t, cfg.DataDir, tc.DataDir)
	assert.Equal(t, 7, tc.BatchSize)
	assert.True(t, tc.CompressBatches)
	assert.True(t, tc.DisableDemandCheck)
	assert.NoError(t, tc.Validate())
}

func TestConfigLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.LoggerConfig().Level)

	cfg.DebugLogs = true
	lc := cfg.LoggerConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.True(t, lc.Console)
	assert.True(t, lc.Redaction)
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeveloperToken = "aaa.bbb.ccc"

	str := cfg.String()
	assert.Contains(t, str, "endpoint")
	assert.Contains(t, str, "***")
	assert.NotContains(t, str, "aaa.bbb.ccc")
	assert.Equal(t, "aaa.bbb.ccc", cfg.DeveloperToken, "String must not modify the config")
}
