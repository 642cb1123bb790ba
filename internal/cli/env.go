package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/paondev/tapakasih/internal/config"
	"github.com/paondev/tapakasih/internal/logger"
	"github.com/paondev/tapakasih/internal/observability"
	"github.com/paondev/tapakasih/internal/tracing"
	"github.com/paondev/tapakasih/pkg/tracker"
	"github.com/rs/zerolog"
)

const shutdownGrace = 5 * time.Second

// environment holds the process-wide pieces every command shares
type environment struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *http.Server
}

// loadConfig reads the config file and applies the global flags on top
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if devToken != "" {
		cfg.DeveloperToken = devToken
	}
	if debugLogs {
		cfg.DebugLogs = true
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads configuration and starts logging, tracing and the metrics listener
func setup() (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	env := &environment{cfg: cfg, log: lg}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			lg.Warn().Err(err).Msg("Failed to initialize tracing")
		}
	}

	if cfg.Metrics.Addr != "" {
		env.serveMetrics(cfg.Metrics.Addr)
	}

	return env, nil
}

func (e *environment) logger() zerolog.Logger {
	return e.log.GetZerolog()
}

func (e *environment) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	e.metrics = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := e.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error().Err(err).Str("addr", addr).Msg("Metrics listener stopped")
		}
	}()

	e.log.Info().Str("addr", addr).Msg("Serving metrics")
}

// checkQueueOwner refuses to open the offline queue while an agent owns it
func (e *environment) checkQueueOwner() error {
	if !e.cfg.OfflineQueue {
		return nil
	}
	if pidFile := pidFilePath(e.cfg.DataDir); isRunning(pidFile) {
		return fmt.Errorf("agent is running (PID file: %s); it delivers the queue itself", pidFile)
	}
	return nil
}

// newTracker creates and initializes a tracker from the loaded config
func (e *environment) newTracker(opts ...tracker.Option) (*tracker.Tracker, error) {
	opts = append([]tracker.Option{tracker.WithLogger(e.logger())}, opts...)

	t := tracker.New(opts...)
	if err := t.Initialize(e.cfg.TrackerConfig()); err != nil {
		return nil, fmt.Errorf("failed to initialize tracker: %w", err)
	}
	return t, nil
}

func (e *environment) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if e.metrics != nil {
		if err := e.metrics.Shutdown(ctx); err != nil {
			e.log.Warn().Err(err).Msg("Failed to stop metrics listener")
		}
	}

	if e.cfg.Tracing.Enabled {
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			e.log.Warn().Err(err).Msg("Failed to flush traces")
		}
	}

	_ = e.log.Close()
}
