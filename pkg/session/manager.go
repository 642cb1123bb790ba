package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// ErrEmptyID is returned when an explicit session id is blank
var ErrEmptyID = errors.New("session id cannot be empty")

// Session is the active session snapshot
type Session struct {
	ID        string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	Generated bool      `json:"generated"`
}

// IDGenerator produces new session ids
type IDGenerator func() (string, error)

// Manager is the single source of truth for the active session id
type Manager struct {
	mu      sync.Mutex
	current Session
	newID   IDGenerator
	now     func() time.Time
	logger  zerolog.Logger
}

// NewManager creates a session manager with no active session
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		newID:  func() (string, error) { return gonanoid.New() },
		now:    time.Now,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// WithGenerator replaces the id generator. Intended for tests.
func (m *Manager) WithGenerator(gen IDGenerator) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newID = gen
	return m
}

// Current returns the active session id, generating one if none is set
func (m *Manager) Current() string {
	return m.Session().ID
}

// Session returns a snapshot of the active session, generating one if needed
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" {
		m.current = Session{
			ID:        m.generateLocked(),
			CreatedAt: m.now(),
			Generated: true,
		}
		m.logger.Debug().Str("sessionId", m.current.ID).Msg("Session generated")
	}

	return m.current
}

// Set replaces the active session id
func (m *Manager) Set(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptyID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = Session{
		ID:        id,
		CreatedAt: m.now(),
	}
	m.logger.Info().Str("sessionId", id).Msg("Session ID set")

	return nil
}

// Clear drops the active session id; the next Current call regenerates it
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = Session{}
	m.logger.Info().Msg("Session ID cleared")
}

// HasSession reports whether an id is active without generating one
func (m *Manager) HasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.ID != ""
}

func (m *Manager) generateLocked() string {
	id, err := m.newID()
	if err == nil && id != "" {
		return id
	}

	// nanoid only fails when crypto/rand does; fall back to a time-derived id
	m.logger.Warn().Err(err).Msg("Session id generation failed, using fallback")
	return fmt.Sprintf("s-%d", m.now().UnixNano())
}
