package notify

import "sync/atomic"

// Chan hands events to another goroutine without ever blocking the loop.
// Events that do not fit in the buffer are counted and dropped.
type Chan struct {
	ch      chan Event
	dropped atomic.Int64
}

// NewChan returns a channel sink with the given buffer size (minimum 1).
func NewChan(buffer int) *Chan {
	if buffer < 1 {
		buffer = 1
	}
	return &Chan{ch: make(chan Event, buffer)}
}

func (c *Chan) Emit(e Event) {
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
	}
}

// Events is the receive side.
func (c *Chan) Events() <-chan Event { return c.ch }

// Dropped returns how many events were discarded because the buffer was full.
func (c *Chan) Dropped() int64 { return c.dropped.Load() }

// Close closes the receive side. Call it only after the producer has stopped.
func (c *Chan) Close() { close(c.ch) }
