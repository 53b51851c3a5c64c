package notify

import "sync"

// Dedup forwards an event unless its message equals the previously forwarded one.
type Dedup struct {
	mu      sync.Mutex
	next    Sink
	last    string
	started bool
}

// NewDedup wraps next.
func NewDedup(next Sink) *Dedup {
	if next == nil {
		next = Discard
	}
	return &Dedup{next: next}
}

// Emit forwards e and reports nothing; use Forward to learn whether it was dropped.
func (d *Dedup) Emit(e Event) { d.Forward(e) }

// Forward emits e unless it repeats the last message, and reports whether it was sent.
func (d *Dedup) Forward(e Event) bool {
	d.mu.Lock()
	if d.started && d.last == e.Message {
		d.mu.Unlock()
		return false
	}
	d.started = true
	d.last = e.Message
	d.mu.Unlock()
	d.next.Emit(e)
	return true
}
