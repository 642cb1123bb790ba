package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paondev/tapakasih/internal/observability"
	"github.com/paondev/tapakasih/internal/tracing"
	"github.com/paondev/tapakasih/pkg/eventstore"
	"github.com/paondev/tapakasih/pkg/transport"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrStopped is returned by Flush once Stop has been called
	ErrStopped = errors.New("delivery pipeline stopped")
	// ErrPaused is returned by Flush after the collector rejected the token
	ErrPaused = errors.New("delivery paused: developer token rejected")
	// ErrStopTimeout is returned by Stop when the loop did not finish in time
	ErrStopTimeout = errors.New("delivery pipeline did not stop in time")
)

// Sender delivers one batch to the collector. The batch is accepted or
// rejected as a whole.
type Sender interface {
	Send(ctx context.Context, events []eventstore.Event) error
}

// Store is the part of the event store the pipeline drives
type Store interface {
	PendingBatch(limit int) ([]eventstore.Event, error)
	MarkDelivered(ids []string) (int, error)
	MarkFailed(ids []string) (eventstore.FailResult, error)
	Release(ids []string) error
}

// Config tunes a Pipeline
type Config struct {
	BatchSize       int
	FlushInterval   time.Duration
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// DefaultConfig returns the default pipeline tuning
func DefaultConfig() Config {
	return Config{
		BatchSize:       20,
		FlushInterval:   10 * time.Second,
		BackoffBase:     time.Second,
		BackoffMax:      5 * time.Minute,
		ShutdownTimeout: 5 * time.Second,
		Logger:          zerolog.Nop(),
	}
}

// Pipeline is the single background consumer of the event store
type Pipeline struct {
	store  Store
	sender Sender
	cfg    Config
	logger zerolog.Logger

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	// abortCtx is cancelled only when Stop gives up waiting
	abortCtx context.Context
	abort    context.CancelFunc

	// cycleMu keeps a Flush from interleaving batches with the loop
	cycleMu sync.Mutex

	started  atomic.Bool
	paused   atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

// New creates a pipeline. Call Start to run the background loop.
func New(store Store, sender Sender, cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	abortCtx, abort := context.WithCancel(context.Background())

	return &Pipeline{
		store:    store,
		sender:   sender,
		cfg:      cfg,
		logger:   cfg.Logger.With().Str("component", "delivery").Logger(),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		abortCtx: abortCtx,
		abort:    abort,
	}
}

// Start launches the background loop. Only the first call has any effect.
// Events already in the store are drained right away.
func (p *Pipeline) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.run()
	p.Notify()
}

// Notify wakes the loop. It never blocks; wakes coalesce while a cycle runs.
func (p *Pipeline) Notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Paused reports whether the collector has rejected the developer token
func (p *Pipeline) Paused() bool {
	return p.paused.Load()
}

// Stop asks the loop to exit and waits for the in-flight send to finish,
// at most ShutdownTimeout. Past the deadline the send is aborted and the
// loop abandoned; its batch stays in the store.
func (p *Pipeline) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stop)

		if !p.started.Load() {
			p.abort()
			return
		}

		timer := time.NewTimer(p.cfg.ShutdownTimeout)
		defer timer.Stop()

		select {
		case <-p.done:
			p.abort()
			p.logger.Debug().Msg("Delivery loop stopped")
		case <-timer.C:
			p.abort()
			p.stopErr = ErrStopTimeout
			p.logger.Warn().
				Dur("timeout", p.cfg.ShutdownTimeout).
				Msg("Delivery loop did not stop in time, aborting in-flight send")
		}
	})
	return p.stopErr
}

// Flush drains the store synchronously until it is empty or a send fails.
// Backoff is not applied; the failed batch is counted and the error returned.
func (p *Pipeline) Flush(ctx context.Context) error {
	if p.stopping() {
		return ErrStopped
	}

	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	_, err := p.drain(ctx)
	return err
}

func (p *Pipeline) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	var backoff *time.Timer
	var backoffC <-chan time.Time
	defer func() {
		if backoff != nil {
			backoff.Stop()
		}
	}()

	p.logger.Debug().Int("batchSize", p.cfg.BatchSize).Dur("flushInterval", p.cfg.FlushInterval).Msg("Delivery loop started")

	for {
		select {
		case <-p.stop:
			return
		case <-p.wake:
			if backoffC != nil {
				continue
			}
		case <-ticker.C:
			if backoffC != nil {
				continue
			}
		case <-backoffC:
			backoffC = nil
		}

		if p.paused.Load() {
			continue
		}

		p.cycleMu.Lock()
		delay, _ := p.drain(p.abortCtx)
		p.cycleMu.Unlock()

		if delay > 0 {
			observability.RecordBackoff(delay)
			backoff = time.NewTimer(delay)
			backoffC = backoff.C
		}
	}
}

// drain sends batches until the store has no pending events, a send fails,
// or a stop is requested. On failure it returns the backoff before the next
// attempt.
func (p *Pipeline) drain(ctx context.Context) (time.Duration, error) {
	ctx = tracing.NewCycleContext(ctx)
	logger := tracing.LoggerFromContext(ctx, p.logger)

	ctx, span := tracing.StartSpan(ctx, "delivery.cycle")
	defer span.End()

	sent := 0
	for {
		if p.stopping() {
			// no new batch once a stop is requested
			return 0, nil
		}
		if p.paused.Load() {
			return 0, ErrPaused
		}

		batch, err := p.store.PendingBatch(p.cfg.BatchSize)
		if err != nil {
			tracing.RecordError(span, err)
			return 0, err
		}
		if len(batch) == 0 {
			span.SetAttributes(attribute.Int("events.sent", sent))
			return 0, nil
		}

		ids := eventstore.IDs(batch)
		err = p.send(ctx, batch)
		if err == nil {
			if _, err := p.store.MarkDelivered(ids); err != nil {
				logger.Error().Err(err).Int("events", len(ids)).Msg("Failed to mark events delivered")
				return 0, err
			}
			sent += len(batch)
			continue
		}

		tracing.RecordError(span, err)

		switch {
		case errors.Is(err, transport.ErrUnauthorized):
			p.paused.Store(true)
			if rerr := p.store.Release(ids); rerr != nil {
				logger.Error().Err(rerr).Msg("Failed to release rejected batch")
			}
			logger.Warn().Err(err).Int("events", len(ids)).Msg("Collector rejected developer token, delivery paused until re-initialize")
			return 0, ErrPaused

		case ctx.Err() != nil:
			// aborted or caller gave up; the attempt does not count
			if rerr := p.store.Release(ids); rerr != nil {
				logger.Debug().Err(rerr).Msg("Failed to release aborted batch")
			}
			return 0, ctx.Err()
		}

		res, ferr := p.store.MarkFailed(ids)
		if ferr != nil {
			logger.Error().Err(ferr).Msg("Failed to record delivery failure")
			return 0, ferr
		}

		seed := res.MaxAttempts
		for _, e := range res.Dropped {
			if e.Attempts > seed {
				seed = e.Attempts
			}
		}
		delay := Backoff(seed, p.cfg.BackoffBase, p.cfg.BackoffMax)

		logger.Warn().
			Err(err).
			Int("events", len(ids)).
			Int("retrying", res.Retrying).
			Int("dropped", len(res.Dropped)).
			Dur("backoff", delay).
			Msg("Batch delivery failed")

		return delay, fmt.Errorf("batch of %d events: %w", len(ids), err)
	}
}

func (p *Pipeline) send(ctx context.Context, batch []eventstore.Event) error {
	ctx, span := tracing.StartSpan(ctx, "delivery.send", attribute.Int("batch.size", len(batch)))
	defer span.End()

	start := time.Now()
	err := p.sender.Send(ctx, batch)
	observability.RecordSend(time.Since(start), err == nil)
	tracing.RecordError(span, err)

	return err
}

func (p *Pipeline) stopping() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}
