package notify

import "sync"

// Memory stores events in memory for quick inspection.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an empty store optionally pre-sizing storage.
func NewMemory(capacity int) *Memory {
	if capacity < 0 {
		capacity = 0
	}
	return &Memory{events: make([]Event, 0, capacity)}
}

// Emit appends an event.
func (m *Memory) Emit(e Event) {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

// Snapshot returns a copy of the recorded events.
func (m *Memory) Snapshot() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Messages returns the recorded messages in order.
func (m *Memory) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Message
	}
	return out
}

// Reset clears all stored events.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.events = m.events[:0]
	m.mu.Unlock()
}
