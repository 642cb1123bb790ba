package tracker

import (
	"strings"
	"sync"
)

// ScreenTracker turns screen-resumed notifications from the host platform
// into page views, skipping a screen that is already the current one.
type ScreenTracker struct {
	t *Tracker

	mu      sync.Mutex
	current string
}

// NewScreenTracker wraps t
func NewScreenTracker(t *Tracker) *ScreenTracker {
	return &ScreenTracker{t: t}
}

// Resumed records screen unless it is the screen last recorded
func (s *ScreenTracker) Resumed(screen string) error {
	screen = strings.TrimSpace(screen)

	s.mu.Lock()
	defer s.mu.Unlock()

	if screen != "" && screen == s.current {
		return nil
	}
	if err := s.t.TrackPage(screen); err != nil {
		return err
	}
	s.current = screen
	return nil
}

// Current returns the screen last recorded
func (s *ScreenTracker) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
