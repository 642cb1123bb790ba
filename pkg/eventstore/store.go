package eventstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paondev/tapakasih/internal/observability"
	"github.com/rs/zerolog"
)

var (
	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("event store is closed")
	// ErrDuplicate is returned when an event id is already held
	ErrDuplicate = errors.New("event already queued")
)

// Options configures a Store
type Options struct {
	Durable     bool   // persist events to sqlite so they survive restarts
	Path        string // sqlite database file, required when Durable
	MaxAttempts int    // failed attempts after which an event is dropped
	MaxEvents   int    // oldest pending events are dropped beyond this, 0 means unbounded
	Logger      zerolog.Logger
}

// FailResult describes the outcome of MarkFailed
type FailResult struct {
	Retrying    int     // events returned to Pending
	Dropped     []Event // events removed after exhausting retries
	MaxAttempts int     // highest attempt count among retrying events
}

// Store is the arena of undelivered events, keyed by event id and kept in
// insertion order.
type Store struct {
	mu          sync.Mutex
	order       []*Event
	byID        map[string]*Event
	journal     journal
	maxAttempts int
	maxEvents   int
	closed      bool
	logger      zerolog.Logger
}

// Open creates a store. In durable mode any events persisted by a previous
// process are restored as Pending.
func Open(opts Options) (*Store, error) {
	observability.EnsureRegistered()

	if opts.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts cannot be negative: %d", opts.MaxAttempts)
	}

	var j journal = nopJournal{}
	if opts.Durable {
		if opts.Path == "" {
			return nil, errors.New("queue path is required for a durable store")
		}
		sj, err := openSQLiteJournal(opts.Path)
		if err != nil {
			return nil, err
		}
		j = sj
	}

	s := &Store{
		byID:        make(map[string]*Event),
		journal:     j,
		maxAttempts: opts.MaxAttempts,
		maxEvents:   opts.MaxEvents,
		logger:      opts.Logger.With().Str("component", "eventstore").Logger(),
	}

	restored, err := j.load()
	if err != nil {
		j.close()
		return nil, fmt.Errorf("failed to restore queued events: %w", err)
	}
	for i := range restored {
		e := restored[i]
		s.order = append(s.order, &e)
		s.byID[e.ID] = &e
	}

	if len(restored) > 0 {
		observability.RecordRecovered(len(restored))
		s.logger.Info().Int("count", len(restored)).Msg("Restored queued events")
	}
	observability.SetQueueDepth(len(s.order))

	return s, nil
}

// Append queues an event as Pending. In durable mode the event is on disk
// before Append returns.
func (s *Store) Append(e Event) error {
	if e.ID == "" {
		return errors.New("event id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, exists := s.byID[e.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
	}

	e.State = StatePending
	e.Attempts = 0

	if err := s.journal.insert(e); err != nil {
		return err
	}

	s.order = append(s.order, &e)
	s.byID[e.ID] = &e

	s.enforceCapacityLocked()

	observability.RecordEnqueue(len(s.order))
	s.logger.Debug().
		Str("eventId", e.ID).
		Str("pageName", e.PageName).
		Int("queueSize", len(s.order)).
		Msg("Event queued")

	return nil
}

// enforceCapacityLocked drops the oldest Pending events beyond maxEvents.
// InFlight events are never dropped here; their batch owns them.
func (s *Store) enforceCapacityLocked() {
	if s.maxEvents <= 0 || len(s.order) <= s.maxEvents {
		return
	}

	excess := len(s.order) - s.maxEvents
	var dropped []string
	for _, e := range s.order {
		if excess == 0 {
			break
		}
		if e.State == StatePending {
			dropped = append(dropped, e.ID)
			excess--
		}
	}

	if len(dropped) == 0 {
		return
	}

	if err := s.journal.remove(dropped); err != nil {
		s.logger.Error().Err(err).Msg("Failed to drop events over capacity")
		return
	}
	s.removeLocked(dropped)

	observability.RecordDropped("capacity", len(dropped))
	s.logger.Warn().Int("dropped", len(dropped)).Int("maxEvents", s.maxEvents).Msg("Queue over capacity, dropped oldest events")
}

// PendingBatch checks out up to limit Pending events in FIFO order and marks
// them InFlight. The InFlight state is kept in memory only; a restart
// reclassifies it as Pending anyway.
func (s *Store) PendingBatch(limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return nil, nil
	}

	var batch []Event
	for _, e := range s.order {
		if len(batch) >= limit {
			break
		}
		if e.State != StatePending {
			continue
		}
		e.State = StateInFlight
		batch = append(batch, *e)
	}

	return batch, nil
}

// MarkDelivered permanently removes the given events. Unknown ids are ignored.
// It returns the number of events removed.
func (s *Store) MarkDelivered(ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	known := s.knownLocked(ids)
	if len(known) == 0 {
		return 0, nil
	}

	if err := s.journal.remove(known); err != nil {
		return 0, err
	}
	s.removeLocked(known)

	observability.RecordDelivered(len(known), len(s.order))
	s.logger.Debug().Int("count", len(known)).Int("queueSize", len(s.order)).Msg("Events delivered")

	return len(known), nil
}

// MarkFailed counts one failed attempt against each event. Events reaching
// the attempt limit become Failed and are removed; the rest return to Pending.
func (s *Store) MarkFailed(ids []string) (FailResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result FailResult
	if s.closed {
		return result, ErrClosed
	}

	var dropIDs []string
	for _, id := range ids {
		e, ok := s.byID[id]
		if !ok {
			continue
		}

		e.Attempts++
		if e.Attempts >= s.maxAttempts {
			e.State = StateFailed
			dropIDs = append(dropIDs, id)
			result.Dropped = append(result.Dropped, *e)
			continue
		}

		e.State = StatePending
		if err := s.journal.update(*e); err != nil {
			s.logger.Error().Err(err).Str("eventId", id).Msg("Failed to persist attempt count")
		}
		result.Retrying++
		if e.Attempts > result.MaxAttempts {
			result.MaxAttempts = e.Attempts
		}
	}

	if len(dropIDs) > 0 {
		// dropped from memory even if the journal keeps a stale row
		if err := s.journal.remove(dropIDs); err != nil {
			s.logger.Error().Err(err).Int("count", len(dropIDs)).Msg("Failed to remove dropped events from journal")
		}
		s.removeLocked(dropIDs)

		observability.RecordDropped("retries_exhausted", len(dropIDs))
		for _, e := range result.Dropped {
			s.logger.Warn().
				Str("eventId", e.ID).
				Str("pageName", e.PageName).
				Int("attempts", e.Attempts).
				Msg("Dropping event after exhausting retries")
		}
	}

	observability.RecordFailedAttempts(result.Retrying + len(result.Dropped))
	observability.SetQueueDepth(len(s.order))

	return result, nil
}

// Release returns InFlight events to Pending without counting an attempt.
func (s *Store) Release(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	for _, id := range ids {
		if e, ok := s.byID[id]; ok && e.State == StateInFlight {
			e.State = StatePending
		}
	}
	return nil
}

// Len returns the number of events held, in any state
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// PendingCount returns the number of events waiting to be checked out
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.order {
		if e.State == StatePending {
			n++
		}
	}
	return n
}

// Snapshot returns copies of all held events in FIFO order
func (s *Store) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, len(s.order))
	for i, e := range s.order {
		out[i] = *e
	}
	return out
}

// Close releases the durable journal. Events still held stay on disk in
// durable mode and are discarded otherwise.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if n := len(s.order); n > 0 {
		s.logger.Info().Int("count", n).Msg("Closing store with undelivered events")
	}

	return s.journal.close()
}

func (s *Store) knownLocked(ids []string) []string {
	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			known = append(known, id)
		}
	}
	return known
}

func (s *Store) removeLocked(ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		delete(s.byID, id)
	}

	kept := s.order[:0]
	for _, e := range s.order {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(s.order); i++ {
		s.order[i] = nil
	}
	s.order = kept
}
