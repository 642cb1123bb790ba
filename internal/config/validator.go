package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"
)

// Validator validates configuration documents and values
type Validator struct {
	schemaLoader gojsonschema.JSONLoader
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		schemaLoader: gojsonschema.NewStringLoader(ConfigSchema),
	}
}

// ValidateSchema validates a raw JSON config document against ConfigSchema
func (v *Validator) ValidateSchema(data []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(v.schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// ValidateEndpoint validates the collector base URL
func (v *Validator) ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("invalid endpoint scheme: %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint has no host: %s", endpoint)
	}
	return nil
}

// ValidateSchedule validates a demand re-check schedule
func (v *Validator) ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid demand schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSampleRatio validates the tracing sample ratio
func (v *Validator) ValidateSampleRatio(ratio float64) error {
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("sample ratio must be between 0 and 1, got %f", ratio)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if cfg.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry_attempts must be >= 0"))
	}
	if err := v.ValidateEndpoint(cfg.Endpoint); err != nil {
		errs = append(errs, err)
	}
	if cfg.OfflineQueue && cfg.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required when offline_queue is enabled"))
	}

	d := cfg.Delivery
	if d.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("delivery.batch_size must be > 0"))
	}
	if d.MaxQueuedEvents < 0 {
		errs = append(errs, fmt.Errorf("delivery.max_queued_events must be >= 0"))
	}
	if d.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("delivery.flush_interval must be > 0"))
	}
	if d.BackoffBase <= 0 {
		errs = append(errs, fmt.Errorf("delivery.backoff_base must be > 0"))
	}
	if d.BackoffMax < d.BackoffBase {
		errs = append(errs, fmt.Errorf("delivery.backoff_max must be >= delivery.backoff_base"))
	}
	if d.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("delivery.request_timeout must be > 0"))
	}
	if d.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("delivery.shutdown_timeout must be > 0"))
	}

	if !cfg.Demand.Disabled {
		if err := v.ValidateSchedule(cfg.Demand.Schedule); err != nil {
			errs = append(errs, err)
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Tracing.Enabled {
		if err := v.ValidateSampleRatio(cfg.Tracing.SampleRatio); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}
