package eventstore

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T, maxAttempts int) *Store {
	t.Helper()
	s, err := Open(Options{MaxAttempts: maxAttempts, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func openDurable(t *testing.T, path string, maxAttempts int) *Store {
	t.Helper()
	s, err := Open(Options{Durable: true, Path: path, MaxAttempts: maxAttempts, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return s
}

func pageNames(events []Event) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.PageName
	}
	return names
}

func TestStore_PendingBatchIsFIFO(t *testing.T) {
	s := openMemory(t, 3)
	now := time.Now()

	for _, page := range []string{"home", "settings", "profile"} {
		require.NoError(t, s.Append(NewEvent("session-1", page, now)))
	}

	batch, err := s.PendingBatch(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "settings"}, pageNames(batch))
	for _, e := range batch {
		assert.Equal(t, StateInFlight, e.State)
	}

	// checked-out events are not handed out twice
	next, err := s.PendingBatch(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"profile"}, pageNames(next))
}

func TestStore_AppendRejectsDuplicateAndEmptyID(t *testing.T) {
	s := openMemory(t, 3)

	e := NewEvent("session-1", "home", time.Now())
	require.NoError(t, s.Append(e))

	err := s.Append(e)
	assert.True(t, errors.Is(err, ErrDuplicate))

	assert.Error(t, s.Append(Event{PageName: "home"}))
	assert.Equal(t, 1, s.Len())
}

func TestStore_MarkDeliveredRemoves(t *testing.T) {
	s := openMemory(t, 3)
	require.NoError(t, s.Append(NewEvent("session-1", "home", time.Now())))
	require.NoError(t, s.Append(NewEvent("session-1", "settings", time.Now())))

	batch, err := s.PendingBatch(10)
	require.NoError(t, err)

	n, err := s.MarkDelivered(append(IDs(batch), "unknown"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, s.Len())
}

func TestStore_MarkFailedDropsOnLastAttempt(t *testing.T) {
	s := openMemory(t, 3)
	e := NewEvent("session-1", "home", time.Now())
	require.NoError(t, s.Append(e))

	for attempt := 1; attempt <= 2; attempt++ {
		batch, err := s.PendingBatch(10)
		require.NoError(t, err)
		require.Len(t, batch, 1)

		res, err := s.MarkFailed(IDs(batch))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Retrying)
		assert.Equal(t, attempt, res.MaxAttempts)
		assert.Empty(t, res.Dropped)
		assert.Equal(t, 1, s.Len(), "event must survive attempt %d", attempt)
	}

	batch, err := s.PendingBatch(10)
	require.NoError(t, err)
	res, err := s.MarkFailed(IDs(batch))
	require.NoError(t, err)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, e.ID, res.Dropped[0].ID)
	assert.Equal(t, StateFailed, res.Dropped[0].State)
	assert.Equal(t, 3, res.Dropped[0].Attempts)
	assert.Equal(t, 0, s.Len())
}

func TestStore_MarkFailedTracksDepthPerEvent(t *testing.T) {
	s := openMemory(t, 3)
	old := NewEvent("session-1", "home", time.Now())
	require.NoError(t, s.Append(old))

	batch, _ := s.PendingBatch(10)
	_, err := s.MarkFailed(IDs(batch))
	require.NoError(t, err)

	fresh := NewEvent("session-1", "settings", time.Now())
	require.NoError(t, s.Append(fresh))

	batch, _ = s.PendingBatch(10)
	require.Len(t, batch, 2)
	res, err := s.MarkFailed(IDs(batch))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Retrying)
	assert.Equal(t, 2, res.MaxAttempts)

	attempts := map[string]int{}
	for _, e := range s.Snapshot() {
		attempts[e.PageName] = e.Attempts
	}
	assert.Equal(t, map[string]int{"home": 2, "settings": 1}, attempts)
}

func TestStore_ZeroAttemptsSendsAtMostOnce(t *testing.T) {
	s := openMemory(t, 0)
	require.NoError(t, s.Append(NewEvent("session-1", "home", time.Now())))

	batch, _ := s.PendingBatch(10)
	res, err := s.MarkFailed(IDs(batch))
	require.NoError(t, err)
	assert.Len(t, res.Dropped, 1)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ReleaseDoesNotCountAttempt(t *testing.T) {
	s := openMemory(t, 3)
	require.NoError(t, s.Append(NewEvent("session-1", "home", time.Now())))

	batch, _ := s.PendingBatch(10)
	require.NoError(t, s.Release(IDs(batch)))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, StatePending, snap[0].State)
	assert.Equal(t, 0, snap[0].Attempts)
	assert.Equal(t, 1, s.PendingCount())
}

func TestStore_CapacityDropsOldestPending(t *testing.T) {
	s, err := Open(Options{MaxAttempts: 3, MaxEvents: 2, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(NewEvent("session-1", "a", time.Now())))
	// "a" is in flight and must not be evicted
	_, err = s.PendingBatch(1)
	require.NoError(t, err)

	require.NoError(t, s.Append(NewEvent("session-1", "b", time.Now())))
	require.NoError(t, s.Append(NewEvent("session-1", "c", time.Now())))

	assert.Equal(t, []string{"a", "c"}, pageNames(s.Snapshot()))
}

func TestStore_DurableRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue", "events.db")

	s := openDurable(t, path, 3)
	first := NewEvent("session-1", "home", time.Now())
	second := NewEvent("session-1", "settings", time.Now())
	require.NoError(t, s.Append(first))
	require.NoError(t, s.Append(second))

	// one failed attempt is persisted, then "settings" is left in flight
	batch, _ := s.PendingBatch(1)
	_, err := s.MarkFailed(IDs(batch))
	require.NoError(t, err)
	_, err = s.PendingBatch(10)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	restored := openDurable(t, path, 3)
	defer restored.Close()

	snap := restored.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, []string{first.ID, second.ID}, IDs(snap))
	for _, e := range snap {
		assert.Equal(t, StatePending, e.State)
	}
	assert.Equal(t, 1, snap[0].Attempts)
	assert.Equal(t, 0, snap[1].Attempts)
}

func TestStore_DurableDeliveryIsNotReplayed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	s := openDurable(t, path, 3)
	require.NoError(t, s.Append(NewEvent("session-1", "home", time.Now())))
	batch, _ := s.PendingBatch(10)
	_, err := s.MarkDelivered(IDs(batch))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	restored := openDurable(t, path, 3)
	defer restored.Close()
	assert.Equal(t, 0, restored.Len())
}

func TestStore_NonDurableForgetsOnClose(t *testing.T) {
	s, err := Open(Options{MaxAttempts: 3, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, s.Append(NewEvent("session-1", "home", time.Now())))
	require.NoError(t, s.Close())

	again := openMemory(t, 3)
	assert.Equal(t, 0, again.Len())
}

func TestStore_DurableRequiresPath(t *testing.T) {
	_, err := Open(Options{Durable: true, MaxAttempts: 3})
	assert.Error(t, err)
}

func TestStore_ClosedStore(t *testing.T) {
	s, err := Open(Options{MaxAttempts: 3, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Append(NewEvent("session-1", "home", time.Now())), ErrClosed)
	_, err = s.PendingBatch(1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.MarkDelivered([]string{"x"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.MarkFailed([]string{"x"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Release([]string{"x"}), ErrClosed)
}

func TestStore_ConcurrentAppend(t *testing.T) {
	s := openMemory(t, 3)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(NewEvent("session-1", "home", time.Now()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}

// failingJournal accepts writes but cannot remove rows
type failingJournal struct {
	nopJournal
}

func (failingJournal) remove([]string) error { return errors.New("disk I/O error") }

func TestStore_MarkFailedDropsWhenJournalRemoveFails(t *testing.T) {
	s := openMemory(t, 1)
	s.journal = failingJournal{}

	require.NoError(t, s.Append(NewEvent("session-1", "home", time.Now())))
	require.NoError(t, s.Append(NewEvent("session-1", "settings", time.Now())))

	batch, err := s.PendingBatch(1)
	require.NoError(t, err)

	res, err := s.MarkFailed(IDs(batch))
	require.NoError(t, err)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "home", res.Dropped[0].PageName)

	// nothing is left behind in a state PendingBatch would skip
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.PendingCount())
	assert.Equal(t, []string{"settings"}, pageNames(s.Snapshot()))
}
