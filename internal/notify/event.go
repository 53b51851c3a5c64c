// Package notify carries session events from the trading loop to observers.
package notify

import "time"

// Kind classifies an event.
type Kind string

const (
	KindSessionStarted Kind = "session_started"
	KindSnapshot       Kind = "snapshot"
	KindOrderPlaced    Kind = "order_placed"
	KindError          Kind = "error"
	KindSessionEnded   Kind = "session_ended"
)

// Event is one notification emitted by the session loop.
type Event struct {
	Time       time.Time          `json:"time"`
	Kind       Kind               `json:"kind"`
	SessionID  string             `json:"session_id"`
	Instrument string             `json:"instrument,omitempty"`
	Message    string             `json:"message"`
	Fields     map[string]float64 `json:"fields,omitempty"`
}

// Sink receives events. Implementations must not block the caller for long.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})
