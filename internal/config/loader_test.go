package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, 3, cfg.RetryAttempts)
		assert.Equal(t, tmpDir, cfg.DataDir)
		assert.Equal(t, filepath.Join(tmpDir, "tapakasih.log"), cfg.Logging.File)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"developer_token": "aaa.bbb.ccc",
			"offline_queue": false,
			"retry_attempts": 5,
			"delivery": {
				"batch_size": 50,
				"flush_interval": "2s",
				"compress_batches": true
			},
			"demand": {"schedule": "@every 5m"}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0600))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "aaa.bbb.ccc", cfg.DeveloperToken)
		assert.False(t, cfg.OfflineQueue)
		assert.Equal(t, 5, cfg.RetryAttempts)
		assert.Equal(t, 50, cfg.Delivery.BatchSize)
		assert.Equal(t, 2*time.Second, cfg.Delivery.FlushInterval)
		assert.True(t, cfg.Delivery.CompressBatches)
		assert.Equal(t, "@every 5m", cfg.Demand.Schedule)

		// untouched keys keep their defaults
		assert.Equal(t, 5*time.Minute, cfg.Delivery.BackoffMax)
		assert.Equal(t, "https://api.pycompany.com", cfg.Endpoint)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"retry_attempts": 5}`), 0600))

		t.Setenv("TAPAKASIH_RETRY_ATTEMPTS", "9")
		t.Setenv("TAPAKASIH_DEVELOPER_TOKEN", "xxx.yyy.zzz")
		t.Setenv("TAPAKASIH_DELIVERY_BATCH_SIZE", "3")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, 9, cfg.RetryAttempts)
		assert.Equal(t, "xxx.yyy.zzz", cfg.DeveloperToken)
		assert.Equal(t, 3, cfg.Delivery.BatchSize)
	})

	t.Run("schema violation", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		require.NoError(t, os.WriteFile(configPath, []byte(`{"retry_attempts": -1, "colour": "blue"}`), 0600))

		_, err := NewLoader(configPath).Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema validation")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.json")

		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0600))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "tapakasih.json")

		cfg := DefaultConfig()
		cfg.DeveloperToken = "aaa.bbb.ccc"
		cfg.Delivery.BackoffBase = 2 * time.Second
		cfg.Metrics.Addr = ":9090"

		loader := NewLoader(configPath)
		require.NoError(t, loader.Save(cfg))

		info, err := os.Stat(configPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "aaa.bbb.ccc", loaded.DeveloperToken)
		assert.Equal(t, 2*time.Second, loaded.Delivery.BackoffBase)
		assert.Equal(t, ":9090", loaded.Metrics.Addr)
	})

	t.Run("defaults without token reload", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "tapakasih.json")
		loader := NewLoader(configPath)

		require.NoError(t, loader.Save(DefaultConfig()))

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Empty(t, loaded.DeveloperToken)
		assert.Equal(t, 10*time.Second, loaded.Delivery.FlushInterval)
	})
}

func TestLoaderGetConfigPath(t *testing.T) {
	t.Run("custom path", func(t *testing.T) {
		loader := NewLoader("/custom/path/config.json")
		assert.Equal(t, "/custom/path/config.json", loader.GetConfigPath())
	})

	t.Run("default path", func(t *testing.T) {
		path := NewLoader("").GetConfigPath()
		assert.Contains(t, path, ".tapakasih")
		assert.Contains(t, path, "tapakasih.json")
	})
}
