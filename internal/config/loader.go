package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix      = "TAPAKASIH"
	configDirName  = ".tapakasih"
	configFileName = "tapakasih.json"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
	validator  *Validator
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		validator:  NewValidator(),
	}
}

// Load reads the config file if present, applies TAPAKASIH_* environment
// overrides and fills path defaults. A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.resolvePath()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// every key needs a default so AutomaticEnv can see it
	for key, value := range settings(DefaultConfig()) {
		v.SetDefault(key, value)
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := l.validator.ValidateSchema(data); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	case os.IsNotExist(err):
		// defaults and environment only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set data directory if not specified
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(configPath)
	}

	// Set logging file path if not specified
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "tapakasih.log")
	}

	return cfg, nil
}

// Save writes cfg to the config file, creating its directory
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.resolvePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	for key, value := range settings(cfg) {
		v.Set(key, value)
	}

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// the file carries the developer token
	return os.Chmod(configPath, 0600)
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	path, err := l.resolvePath()
	if err != nil {
		return ""
	}
	return path
}

func (l *Loader) resolvePath() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// settings flattens cfg into viper keys. Durations are written as strings so
// the file round-trips through the schema.
func settings(cfg *Config) map[string]any {
	dur := func(d time.Duration) string { return d.String() }

	return map[string]any{
		"developer_token": cfg.DeveloperToken,
		"debug_logs":      cfg.DebugLogs,
		"offline_queue":   cfg.OfflineQueue,
		"retry_attempts":  cfg.RetryAttempts,
		"endpoint":        cfg.Endpoint,
		"data_dir":        cfg.DataDir,

		"delivery.batch_size":        cfg.Delivery.BatchSize,
		"delivery.flush_interval":    dur(cfg.Delivery.FlushInterval),
		"delivery.backoff_base":      dur(cfg.Delivery.BackoffBase),
		"delivery.backoff_max":       dur(cfg.Delivery.BackoffMax),
		"delivery.request_timeout":   dur(cfg.Delivery.RequestTimeout),
		"delivery.shutdown_timeout":  dur(cfg.Delivery.ShutdownTimeout),
		"delivery.max_queued_events": cfg.Delivery.MaxQueuedEvents,
		"delivery.compress_batches":  cfg.Delivery.CompressBatches,

		"demand.schedule": cfg.Demand.Schedule,
		"demand.disabled": cfg.Demand.Disabled,

		"logging.level":     cfg.Logging.Level,
		"logging.file":      cfg.Logging.File,
		"logging.pretty":    cfg.Logging.Pretty,
		"logging.max_size":  cfg.Logging.MaxSize,
		"logging.max_age":   cfg.Logging.MaxAge,
		"logging.compress":  cfg.Logging.Compress,
		"logging.redaction": cfg.Logging.Redaction,

		"metrics.addr": cfg.Metrics.Addr,

		"tracing.enabled":      cfg.Tracing.Enabled,
		"tracing.service_name": cfg.Tracing.ServiceName,
		"tracing.sample_ratio": cfg.Tracing.SampleRatio,
	}
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
