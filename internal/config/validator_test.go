package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSchema(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "empty object", doc: `{}`},
		{name: "full document", doc: `{
			"developer_token": "aaa.bbb.ccc",
			"endpoint": "https://collector.example.com",
			"delivery": {"flush_interval": "1m30s", "backoff_max": "5m"},
			"logging": {"level": "debug"},
			"tracing": {"enabled": true, "sample_ratio": 0.25}
		}`},
		{name: "unknown key", doc: `{"telegram": {}}`, wantErr: true},
		{name: "two segment token", doc: `{"developer_token": "aaa.bbb"}`, wantErr: true},
		{name: "numeric duration", doc: `{"delivery": {"flush_interval": 10}}`, wantErr: true},
		{name: "bad duration", doc: `{"delivery": {"flush_interval": "10 seconds"}}`, wantErr: true},
		{name: "zero batch", doc: `{"delivery": {"batch_size": 0}}`, wantErr: true},
		{name: "bad level", doc: `{"logging": {"level": "trace"}}`, wantErr: true},
		{name: "ratio above one", doc: `{"tracing": {"sample_ratio": 2}}`, wantErr: true},
		{name: "ftp endpoint", doc: `{"endpoint": "ftp://collector"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSchema([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateEndpoint("https://api.pycompany.com"))
	assert.NoError(t, v.ValidateEndpoint("http://localhost:8080"))
	assert.Error(t, v.ValidateEndpoint("api.pycompany.com"))
	assert.Error(t, v.ValidateEndpoint("https://"))
	assert.Error(t, v.ValidateEndpoint("://bad"))
}

func TestValidateSchedule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSchedule("@every 30m"))
	assert.NoError(t, v.ValidateSchedule("@hourly"))
	assert.NoError(t, v.ValidateSchedule("0 */2 * * *"))
	assert.Error(t, v.ValidateSchedule(""))
	assert.Error(t, v.ValidateSchedule("whenever"))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel("trace"))
	assert.Error(t, v.ValidateLogLevel(""))
}

func TestValidateSampleRatio(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSampleRatio(0))
	assert.NoError(t, v.ValidateSampleRatio(1))
	assert.Error(t, v.ValidateSampleRatio(-0.1))
	assert.Error(t, v.ValidateSampleRatio(1.5))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("valid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataDir = t.TempDir()
		assert.Empty(t, v.ValidateConfig(cfg))
	})

	t.Run("collects every error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.RetryAttempts = -1
		cfg.Endpoint = "nope"
		cfg.Delivery.BatchSize = 0
		cfg.Demand.Schedule = "sometimes"
		cfg.Logging.Level = "loud"

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 5)

		var msgs []string
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		joined := strings.Join(msgs, "\n")
		assert.Contains(t, joined, "retry_attempts")
		assert.Contains(t, joined, "batch_size")
	})

	t.Run("disabled demand check skips schedule", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.Demand.Disabled = true
		cfg.Demand.Schedule = ""
		assert.Empty(t, v.ValidateConfig(cfg))
	})
}
