package config

// ConfigSchema is the JSON schema for tapakasih.json. Durations are Go
// duration strings such as "10s" or "5m".
const ConfigSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "definitions": {
    "duration": {
      "type": "string",
      "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"
    }
  },
  "properties": {
    "developer_token": {
      "type": "string",
      "pattern": "^$|^[^.\\s]+\\.[^.\\s]+\\.[^.\\s]+$"
    },
    "debug_logs": {"type": "boolean"},
    "offline_queue": {"type": "boolean"},
    "retry_attempts": {"type": "integer", "minimum": 0},
    "endpoint": {"type": "string", "pattern": "^https?://"},
    "data_dir": {"type": "string"},
    "delivery": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "batch_size": {"type": "integer", "minimum": 1},
        "flush_interval": {"$ref": "#/definitions/duration"},
        "backoff_base": {"$ref": "#/definitions/duration"},
        "backoff_max": {"$ref": "#/definitions/duration"},
        "request_timeout": {"$ref": "#/definitions/duration"},
        "shutdown_timeout": {"$ref": "#/definitions/duration"},
        "max_queued_events": {"type": "integer", "minimum": 0},
        "compress_batches": {"type": "boolean"}
      }
    },
    "demand": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "schedule": {"type": "string", "minLength": 1},
        "disabled": {"type": "boolean"}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "file": {"type": "string"},
        "pretty": {"type": "boolean"},
        "max_size": {"type": "integer", "minimum": 0},
        "max_age": {"type": "integer", "minimum": 0},
        "compress": {"type": "boolean"},
        "redaction": {"type": "boolean"}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "addr": {"type": "string"}
      }
    },
    "tracing": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "service_name": {"type": "string"},
        "sample_ratio": {"type": "number", "minimum": 0, "maximum": 1}
      }
    }
  }
}`
