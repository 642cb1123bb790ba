package eventstore

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial events table
const currentSchemaVersion = 1

// journal mirrors the in-memory queue to durable storage
type journal interface {
	insert(e Event) error
	update(e Event) error
	remove(ids []string) error
	load() ([]Event, error)
	close() error
}

// nopJournal backs the store when offline queueing is disabled
type nopJournal struct{}

func (nopJournal) insert(Event) error { return nil }
func (nopJournal) update(Event) error { return nil }
func (nopJournal) remove([]string) error { return nil }
func (nopJournal) load() ([]Event, error) { return nil, nil }
func (nopJournal) close() error { return nil }

// sqliteJournal persists events keyed by event id, ordered by an insertion sequence.
type sqliteJournal struct {
	db *sql.DB
}

// openSQLiteJournal creates or opens the queue database at path.
//
// The database is configured with:
//   - WAL mode so readers never block the writer
//   - FULL synchronous mode; an accepted event must survive power loss
//   - 5-second busy timeout for lock contention
func openSQLiteJournal(path string) (*sqliteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to queue database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &sqliteJournal{db: db}, nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("queue schema version %d is newer than supported %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	return nil
}

func (j *sqliteJournal) insert(e Event) error {
	_, err := j.db.Exec(
		`INSERT INTO events (event_id, session_id, page_name, timestamp_ms, state, attempt_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.PageName, e.Timestamp, string(e.State), e.Attempts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", e.ID, err)
	}
	return nil
}

func (j *sqliteJournal) update(e Event) error {
	_, err := j.db.Exec(
		`UPDATE events SET state = ?, attempt_count = ? WHERE event_id = ?`,
		string(e.State), e.Attempts, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", e.ID, err)
	}
	return nil
}

func (j *sqliteJournal) remove(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := j.db.Exec("DELETE FROM events WHERE event_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("failed to delete %d events: %w", len(ids), err)
	}
	return nil
}

// load returns every stored event in insertion order. Rows left in_flight by an
// unclean shutdown are rewritten to pending first.
func (j *sqliteJournal) load() ([]Event, error) {
	if _, err := j.db.Exec(
		`UPDATE events SET state = ? WHERE state = ?`,
		string(StatePending), string(StateInFlight),
	); err != nil {
		return nil, fmt.Errorf("failed to reset in-flight events: %w", err)
	}

	rows, err := j.db.Query(
		`SELECT event_id, session_id, page_name, timestamp_ms, state, attempt_count
		 FROM events WHERE state = ? ORDER BY seq ASC`,
		string(StatePending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var state string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.PageName, &e.Timestamp, &state, &e.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.State = State(state)
		events = append(events, e)
	}

	return events, rows.Err()
}

func (j *sqliteJournal) close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}
