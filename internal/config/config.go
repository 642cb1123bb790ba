package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/paondev/tapakasih/internal/logger"
	"github.com/paondev/tapakasih/pkg/tracker"
)

// Config represents the tapakasih CLI configuration file
type Config struct {
	// Collector credentials and core behaviour
	DeveloperToken string `json:"developer_token" mapstructure:"developer_token"`
	DebugLogs      bool   `json:"debug_logs" mapstructure:"debug_logs"`
	OfflineQueue   bool   `json:"offline_queue" mapstructure:"offline_queue"`
	RetryAttempts  int    `json:"retry_attempts" mapstructure:"retry_attempts"`
	Endpoint       string `json:"endpoint" mapstructure:"endpoint"`

	// Data directory holding the offline queue and the default log file
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Delivery DeliveryConfig `json:"delivery" mapstructure:"delivery"`
	Demand   DemandConfig   `json:"demand" mapstructure:"demand"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `json:"metrics" mapstructure:"metrics"`
	Tracing  TracingConfig  `json:"tracing" mapstructure:"tracing"`
}

// DeliveryConfig tunes the background delivery loop
type DeliveryConfig struct {
	BatchSize       int           `json:"batch_size" mapstructure:"batch_size"`
	FlushInterval   time.Duration `json:"flush_interval" mapstructure:"flush_interval"`
	BackoffBase     time.Duration `json:"backoff_base" mapstructure:"backoff_base"`
	BackoffMax      time.Duration `json:"backoff_max" mapstructure:"backoff_max"`
	RequestTimeout  time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxQueuedEvents int           `json:"max_queued_events" mapstructure:"max_queued_events"`
	CompressBatches bool          `json:"compress_batches" mapstructure:"compress_batches"`
}

// DemandConfig controls the collector demand re-check
type DemandConfig struct {
	Schedule string `json:"schedule" mapstructure:"schedule"` // robfig/cron spec
	Disabled bool   `json:"disabled" mapstructure:"disabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the prometheus listener
type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"` // empty disables the listener
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	def := tracker.DefaultConfig()

	return &Config{
		OfflineQueue:  def.OfflineQueue,
		RetryAttempts: def.RetryAttempts,
		Endpoint:      def.Endpoint,
		DataDir:       "",
		Delivery: DeliveryConfig{
			BatchSize:       def.BatchSize,
			FlushInterval:   def.FlushInterval,
			BackoffBase:     def.BackoffBase,
			BackoffMax:      def.BackoffMax,
			RequestTimeout:  def.RequestTimeout,
			ShutdownTimeout: def.ShutdownTimeout,
			MaxQueuedEvents: def.MaxQueuedEvents,
		},
		Demand: DemandConfig{
			Schedule: def.DemandCheckSchedule,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   10,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			ServiceName: "tapakasih",
			SampleRatio: 1.0,
		},
	}
}

// TrackerConfig converts the file configuration into the engine's Config
func (c *Config) TrackerConfig() tracker.Config {
	return tracker.Config{
		DeveloperToken:      c.DeveloperToken,
		DebugLogs:           c.DebugLogs,
		OfflineQueue:        c.OfflineQueue,
		RetryAttempts:       c.RetryAttempts,
		Endpoint:            c.Endpoint,
		DataDir:             c.DataDir,
		BatchSize:           c.Delivery.BatchSize,
		FlushInterval:       c.Delivery.FlushInterval,
		BackoffBase:         c.Delivery.BackoffBase,
		BackoffMax:          c.Delivery.BackoffMax,
		RequestTimeout:      c.Delivery.RequestTimeout,
		ShutdownTimeout:     c.Delivery.ShutdownTimeout,
		MaxQueuedEvents:     c.Delivery.MaxQueuedEvents,
		CompressBatches:     c.Delivery.CompressBatches,
		DemandCheckSchedule: c.Demand.Schedule,
		DisableDemandCheck:  c.Demand.Disabled,
	}
}

// LoggerConfig converts the logging section for logger.New
func (c *Config) LoggerConfig() logger.Config {
	level := c.Logging.Level
	if c.DebugLogs {
		level = "debug"
	}

	return logger.Config{
		Level:     level,
		File:      c.Logging.File,
		Console:   true,
		Pretty:    c.Logging.Pretty,
		Redaction: c.Logging.Redaction,
		MaxSizeMB: c.Logging.MaxSize,
		MaxAge:    c.Logging.MaxAge,
		Compress:  c.Logging.Compress,
	}
}

// QueuePath is the sqlite file holding the offline queue
func (c *Config) QueuePath() string {
	return filepath.Join(c.DataDir, "events.db")
}

// String returns a JSON representation of the config with the token masked
func (c *Config) String() string {
	masked := *c
	if masked.DeveloperToken != "" {
		masked.DeveloperToken = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is usable. The developer token may
// still be empty here; it can come from a flag.
func (c *Config) Validate() error {
	if errs := NewValidator().ValidateConfig(c); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errs[0])
	}
	return nil
}
