package tracker

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paondev/tapakasih/pkg/token"
	"github.com/robfig/cron/v3"
)

const (
	DefaultEndpoint            = "https://api.pycompany.com"
	DefaultRetryAttempts       = 3
	DefaultBatchSize           = 20
	DefaultFlushInterval       = 10 * time.Second
	DefaultBackoffBase         = time.Second
	DefaultBackoffMax          = 5 * time.Minute
	DefaultRequestTimeout      = 30 * time.Second
	DefaultShutdownTimeout     = 5 * time.Second
	DefaultMaxQueuedEvents     = 10000
	DefaultDemandCheckSchedule = "@every 30m"

	queueFileName = "events.db"
)

// Config is fixed for one Initialized lifetime
type Config struct {
	DeveloperToken string `mapstructure:"developer_token" json:"developer_token"`
	DebugLogs      bool   `mapstructure:"debug_logs" json:"debug_logs"`
	OfflineQueue   bool   `mapstructure:"offline_queue" json:"offline_queue"`
	RetryAttempts  int    `mapstructure:"retry_attempts" json:"retry_attempts"`

	Endpoint            string        `mapstructure:"endpoint" json:"endpoint"`
	DataDir             string        `mapstructure:"data_dir" json:"data_dir"`
	BatchSize           int           `mapstructure:"batch_size" json:"batch_size"`
	FlushInterval       time.Duration `mapstructure:"flush_interval" json:"flush_interval"`
	BackoffBase         time.Duration `mapstructure:"backoff_base" json:"backoff_base"`
	BackoffMax          time.Duration `mapstructure:"backoff_max" json:"backoff_max"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout" json:"request_timeout"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
	MaxQueuedEvents     int           `mapstructure:"max_queued_events" json:"max_queued_events"`
	CompressBatches     bool          `mapstructure:"compress_batches" json:"compress_batches"`
	DemandCheckSchedule string        `mapstructure:"demand_check_schedule" json:"demand_check_schedule"`
	DisableDemandCheck  bool          `mapstructure:"disable_demand_check" json:"disable_demand_check"`
}

// DefaultConfig returns a config with every tuning knob at its default and
// no developer token
func DefaultConfig() Config {
	return Config{
		OfflineQueue:        true,
		RetryAttempts:       DefaultRetryAttempts,
		Endpoint:            DefaultEndpoint,
		DataDir:             DefaultDataDir(),
		BatchSize:           DefaultBatchSize,
		FlushInterval:       DefaultFlushInterval,
		BackoffBase:         DefaultBackoffBase,
		BackoffMax:          DefaultBackoffMax,
		RequestTimeout:      DefaultRequestTimeout,
		ShutdownTimeout:     DefaultShutdownTimeout,
		MaxQueuedEvents:     DefaultMaxQueuedEvents,
		DemandCheckSchedule: DefaultDemandCheckSchedule,
	}
}

// NewConfig builds a config from the four settings exposed to embedding
// applications; everything else takes its default.
func NewConfig(developerToken string, debugLogs, offlineQueue bool, retryAttempts int) Config {
	cfg := DefaultConfig()
	cfg.DeveloperToken = developerToken
	cfg.DebugLogs = debugLogs
	cfg.OfflineQueue = offlineQueue
	cfg.RetryAttempts = retryAttempts
	return cfg
}

// DefaultDataDir is the per-user cache directory for the offline queue
func DefaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "tapakasih")
	}
	return ".tapakasih"
}

// QueuePath is the sqlite file backing the offline queue
func (c Config) QueuePath() string {
	return filepath.Join(c.DataDir, queueFileName)
}

// withDefaults trims the token and fills unset tuning fields. Booleans and
// RetryAttempts are taken as given.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	// the token goes verbatim into the Authorization header
	c.DeveloperToken = strings.TrimSpace(c.DeveloperToken)
	if c.Endpoint == "" {
		c.Endpoint = def.Endpoint
	}
	if c.DataDir == "" && c.OfflineQueue {
		c.DataDir = def.DataDir
	}
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = def.FlushInterval
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = def.BackoffMax
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.MaxQueuedEvents == 0 {
		c.MaxQueuedEvents = def.MaxQueuedEvents
	}
	if c.DemandCheckSchedule == "" {
		c.DemandCheckSchedule = def.DemandCheckSchedule
	}
	return c
}

// Validate checks the config. Every failure wraps ErrInvalidArgument.
func (c Config) Validate() error {
	if err := token.Validate(c.DeveloperToken); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry attempts cannot be negative: %d", ErrInvalidArgument, c.RetryAttempts)
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("%w: endpoint must be an http(s) URL: %q", ErrInvalidArgument, c.Endpoint)
	}

	if c.OfflineQueue && c.DataDir == "" {
		return fmt.Errorf("%w: data dir is required when the offline queue is enabled", ErrInvalidArgument)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive: %d", ErrInvalidArgument, c.BatchSize)
	}
	if c.MaxQueuedEvents < 0 {
		return fmt.Errorf("%w: max queued events cannot be negative: %d", ErrInvalidArgument, c.MaxQueuedEvents)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"flush interval", c.FlushInterval},
		{"backoff base", c.BackoffBase},
		{"backoff max", c.BackoffMax},
		{"request timeout", c.RequestTimeout},
		{"shutdown timeout", c.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%w: %s must be positive: %s", ErrInvalidArgument, d.name, d.d)
		}
	}
	if c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("%w: backoff max %s is below backoff base %s", ErrInvalidArgument, c.BackoffMax, c.BackoffBase)
	}

	if !c.DisableDemandCheck {
		if _, err := cron.ParseStandard(c.DemandCheckSchedule); err != nil {
			return fmt.Errorf("%w: invalid demand check schedule %q: %w", ErrInvalidArgument, c.DemandCheckSchedule, err)
		}
	}

	return nil
}
