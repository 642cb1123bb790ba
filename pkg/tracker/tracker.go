package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paondev/tapakasih/internal/logger"
	"github.com/paondev/tapakasih/internal/observability"
	"github.com/paondev/tapakasih/pkg/delivery"
	"github.com/paondev/tapakasih/pkg/eventstore"
	"github.com/paondev/tapakasih/pkg/session"
	"github.com/paondev/tapakasih/pkg/token"
	"github.com/paondev/tapakasih/pkg/transport"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// State is the tracker lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var allStates = []string{
	StateUninitialized.String(),
	StateInitialized.String(),
	StateDestroyed.String(),
}

// Stats is a point-in-time view of an Initialized tracker
type Stats struct {
	State           string `json:"state"`
	SessionID       string `json:"sessionId,omitempty"`
	Queued          int    `json:"queued"`
	Pending         int    `json:"pending"`
	TrackingEnabled bool   `json:"trackingEnabled"`
	DeliveryPaused  bool   `json:"deliveryPaused"`
}

// Tracker is the engine handle owned by the embedding application. The zero
// value is not usable; call New.
type Tracker struct {
	// lifecycleMu serializes Initialize and Destroy
	lifecycleMu sync.Mutex

	mu    sync.RWMutex
	state State
	rt    *runtime

	transport  Transport
	presenter  Presenter
	baseLogger zerolog.Logger
	now        func() time.Time
}

// runtime holds everything built by one Initialize and torn down by Destroy
type runtime struct {
	cfg      Config
	logger   zerolog.Logger
	sessions *session.Manager
	store    *eventstore.Store
	pipeline *delivery.Pipeline
	tr       Transport

	tracking atomic.Bool
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates an Uninitialized tracker
func New(opts ...Option) *Tracker {
	t := &Tracker{
		baseLogger: zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	observability.EnsureRegistered()
	observability.SetTrackerState(t.state.String(), allStates)

	return t
}

// Initialize validates cfg, restores any durable events and starts delivery
func (t *Tracker) Initialize(cfg Config) error {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	if t.IsInitialized() {
		return ErrAlreadyInitialized
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.ForDebugFlag(t.baseLogger, cfg.DebugLogs).With().Str("component", "tracker").Logger()

	if info, ok := token.Peek(cfg.DeveloperToken); ok && info.Expired(t.now()) {
		log.Warn().Time("expiresAt", info.ExpiresAt).Msg("Developer token appears expired; the collector may reject it")
	}

	store, err := eventstore.Open(eventstore.Options{
		Durable:     cfg.OfflineQueue,
		Path:        cfg.QueuePath(),
		MaxAttempts: cfg.RetryAttempts,
		MaxEvents:   cfg.MaxQueuedEvents,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}

	tr := t.transport
	if tr == nil {
		tr = transport.NewClient(transport.Config{
			Endpoint: cfg.Endpoint,
			Token:    cfg.DeveloperToken,
			Timeout:  cfg.RequestTimeout,
			Compress: cfg.CompressBatches,
			Logger:   log,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt := &runtime{
		cfg:      cfg,
		logger:   log,
		sessions: session.NewManager(log),
		store:    store,
		tr:       tr,
		ctx:      ctx,
		cancel:   cancel,
	}
	rt.tracking.Store(true)
	observability.SetTrackingEnabled(true)

	rt.pipeline = delivery.New(store, tr, delivery.Config{
		BatchSize:       cfg.BatchSize,
		FlushInterval:   cfg.FlushInterval,
		BackoffBase:     cfg.BackoffBase,
		BackoffMax:      cfg.BackoffMax,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          log,
	})

	if !cfg.DisableDemandCheck {
		rt.cron = cron.New()
		if _, err := rt.cron.AddFunc(cfg.DemandCheckSchedule, rt.refreshDemand); err != nil {
			cancel()
			_ = store.Close()
			return fmt.Errorf("%w: invalid demand check schedule: %w", ErrInvalidArgument, err)
		}
	}

	rt.pipeline.Start()
	if rt.cron != nil {
		rt.cron.Start()
		go rt.refreshDemand()
	}

	t.mu.Lock()
	t.rt = rt
	t.state = StateInitialized
	t.mu.Unlock()
	observability.SetTrackerState(StateInitialized.String(), allStates)

	log.Info().
		Bool("offlineQueue", cfg.OfflineQueue).
		Int("retryAttempts", cfg.RetryAttempts).
		Str("endpoint", cfg.Endpoint).
		Msg("Tracker initialized")

	return nil
}

// IsInitialized reports whether the tracker is in the Initialized state
func (t *Tracker) IsInitialized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state == StateInitialized
}

// State returns the lifecycle state
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Tracker) active() (*runtime, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state != StateInitialized {
		return nil, ErrNotInitialized
	}
	return t.rt, nil
}

// TrackPage records a page view under the current session and wakes the
// delivery loop. It never waits on the network. While the collector reports
// NO_DEMAND the call succeeds without recording anything.
func (t *Tracker) TrackPage(pageName string) error {
	rt, err := t.active()
	if err != nil {
		return err
	}

	if strings.TrimSpace(pageName) == "" {
		return fmt.Errorf("%w: page name cannot be empty", ErrInvalidArgument)
	}

	if !rt.tracking.Load() {
		rt.logger.Debug().Str("pageName", pageName).Msg("Tracking disabled by collector, skipping page")
		return nil
	}

	e := eventstore.NewEvent(rt.sessions.Current(), pageName, t.now())
	if err := rt.store.Append(e); err != nil {
		if errors.Is(err, eventstore.ErrClosed) {
			return ErrNotInitialized
		}
		return fmt.Errorf("failed to queue page %q: %w", pageName, err)
	}

	rt.pipeline.Notify()
	return nil
}

// SetSessionID replaces the current session id. Already queued events keep
// the id they were recorded with.
func (t *Tracker) SetSessionID(id string) error {
	rt, err := t.active()
	if err != nil {
		return err
	}
	if err := rt.sessions.Set(id); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

// SessionID returns the current session id, generating one if none is set
func (t *Tracker) SessionID() (string, error) {
	rt, err := t.active()
	if err != nil {
		return "", err
	}
	return rt.sessions.Current(), nil
}

// ClearSessionID drops the current session id; the next use generates a new one
func (t *Tracker) ClearSessionID() error {
	rt, err := t.active()
	if err != nil {
		return err
	}
	rt.sessions.Clear()
	return nil
}

// ShowSessionDialog hands the current session id to the presenter
func (t *Tracker) ShowSessionDialog() error {
	rt, err := t.active()
	if err != nil {
		return err
	}

	p := t.presenter
	if p == nil {
		p = logPresenter{logger: rt.logger}
	}
	p.ShowSession(rt.sessions.Current())
	return nil
}

// Flush delivers queued events synchronously, ignoring any backoff in
// progress. Collector failures wrap ErrDeliveryFailed.
func (t *Tracker) Flush(ctx context.Context) error {
	rt, err := t.active()
	if err != nil {
		return err
	}

	if err := rt.pipeline.Flush(ctx); err != nil {
		if errors.Is(err, delivery.ErrStopped) {
			return ErrNotInitialized
		}
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

// Stats reports queue depth and collector state
func (t *Tracker) Stats() (Stats, error) {
	rt, err := t.active()
	if err != nil {
		return Stats{}, err
	}

	sessionID := ""
	if rt.sessions.HasSession() {
		sessionID = rt.sessions.Current()
	}

	return Stats{
		State:           StateInitialized.String(),
		SessionID:       sessionID,
		Queued:          rt.store.Len(),
		Pending:         rt.store.PendingCount(),
		TrackingEnabled: rt.tracking.Load(),
		DeliveryPaused:  rt.pipeline.Paused(),
	}, nil
}

// Destroy stops delivery and releases the lifetime's resources. Undelivered
// events stay on disk when the offline queue is enabled. Calling Destroy when
// not Initialized does nothing.
func (t *Tracker) Destroy() {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	t.mu.Lock()
	if t.state != StateInitialized {
		t.mu.Unlock()
		return
	}
	rt := t.rt
	t.rt = nil
	t.state = StateDestroyed
	t.mu.Unlock()

	observability.SetTrackerState(StateDestroyed.String(), allStates)
	rt.shutdown()
}

func (rt *runtime) shutdown() {
	rt.cancel()
	if rt.cron != nil {
		<-rt.cron.Stop().Done()
	}

	if err := rt.pipeline.Stop(); err != nil {
		rt.logger.Warn().Err(err).Msg("Delivery loop abandoned")
	}

	remaining := rt.store.Len()
	if err := rt.store.Close(); err != nil {
		rt.logger.Error().Err(err).Msg("Failed to close event store")
	}

	rt.logger.Info().
		Int("undelivered", remaining).
		Bool("persisted", rt.cfg.OfflineQueue).
		Msg("Tracker destroyed")
}

// refreshDemand asks the collector whether it wants events. Errors leave
// tracking enabled.
func (rt *runtime) refreshDemand() {
	ctx, cancel := context.WithTimeout(rt.ctx, rt.cfg.RequestTimeout)
	defer cancel()

	demand, err := rt.tr.CheckDemand(ctx)
	if rt.ctx.Err() != nil {
		return
	}
	if err != nil {
		rt.logger.Debug().Err(err).Msg("Demand check failed, keeping tracking enabled")
	}

	wanted := err != nil || demand.Wanted()
	if prev := rt.tracking.Swap(wanted); prev != wanted {
		rt.logger.Info().Str("demand", string(demand)).Msg("Collector demand changed")
	}
	observability.SetTrackingEnabled(wanted)
}
