package eventstore

import (
	"time"

	"github.com/google/uuid"
)

// State is the delivery state of a tracked event
type State string

const (
	StatePending   State = "pending"
	StateInFlight  State = "in_flight"
	StateDelivered State = "delivered"
	StateFailed    State = "failed"
)

// Event is one recorded page view with its delivery bookkeeping
type Event struct {
	ID        string `json:"eventId"`
	SessionID string `json:"sessionId"`
	PageName  string `json:"pageName"`
	Timestamp int64  `json:"timestamp"` // epoch millis
	State     State  `json:"state"`
	Attempts  int    `json:"attempts"`
}

// NewEvent creates a Pending event with a fresh id
func NewEvent(sessionID, pageName string, at time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		PageName:  pageName,
		Timestamp: at.UnixMilli(),
		State:     StatePending,
	}
}

// Time returns the event timestamp as a time.Time
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// IDs returns the ids of events in order
func IDs(events []Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}
