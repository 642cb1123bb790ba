package tracker

import "github.com/rs/zerolog"

// Presenter displays the session id to the user. Its outcome is not consumed.
type Presenter interface {
	ShowSession(sessionID string)
}

// PresenterFunc adapts a function to Presenter
type PresenterFunc func(sessionID string)

func (f PresenterFunc) ShowSession(sessionID string) { f(sessionID) }

// logPresenter is used when the embedding application supplies no UI
type logPresenter struct {
	logger zerolog.Logger
}

func (p logPresenter) ShowSession(sessionID string) {
	p.logger.Info().Str("sessionId", sessionID).Msg("Current session")
}
