package notify

import (
	"log"
	"time"
)

// Event is a fire-and-forget status update emitted by the purchase engine.
type Event struct {
	Type      string    `json:"type"`
	IntentID  string    `json:"intent_id,omitempty"`
	ListingID string    `json:"listing_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	Status    string    `json:"status,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	At        time.Time `json:"at"`
}

// Event types emitted by the engine.
const (
	EventEnqueued  = "intent_enqueued"
	EventAdmitted  = "intent_admitted"
	EventCompleted = "intent_completed"
	EventFailed    = "intent_failed"
	EventCancelled = "intent_cancelled"
	EventExpired   = "intent_expired"
	EventAttempt   = "purchase_attempt"
)

// Sink receives engine events. Implementations must not block; delivery
// failures are their own problem to log.
type Sink interface {
	Notify(event Event)
}

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Notify(event Event) {
	log.Printf("[notify] %s intent=%s listing=%s status=%s reason=%s",
		event.Type, event.IntentID, event.ListingID, event.Status, event.Reason)
}

// Fanout forwards each event to every sink.
type Fanout []Sink

func (f Fanout) Notify(event Event) {
	for _, sink := range f {
		sink.Notify(event)
	}
}
