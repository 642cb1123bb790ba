package tracker

import (
	"context"
	"time"

	"github.com/paondev/tapakasih/pkg/eventstore"
	"github.com/paondev/tapakasih/pkg/transport"
	"github.com/rs/zerolog"
)

// Transport is what the tracker needs from the collector
type Transport interface {
	Send(ctx context.Context, events []eventstore.Event) error
	CheckDemand(ctx context.Context) (transport.Demand, error)
}

// Option configures a Tracker
type Option func(*Tracker)

// WithTransport replaces the HTTPS collector client built from Config
func WithTransport(tr Transport) Option {
	return func(t *Tracker) {
		t.transport = tr
	}
}

// WithPresenter sets the UI collaborator used by ShowSessionDialog
func WithPresenter(p Presenter) Option {
	return func(t *Tracker) {
		t.presenter = p
	}
}

// WithLogger sets the base logger. Its level is overridden per lifetime by
// Config.DebugLogs.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) {
		t.baseLogger = logger
	}
}

// WithClock sets the time source for event timestamps
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}
