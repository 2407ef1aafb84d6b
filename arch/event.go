package arch

import "context"

// Event is a host EventWaiter backed by a one-slot channel. Any number of
// Signal calls before a Wait collapse into one wakeup.
type Event struct {
	ch chan struct{}
}

// NewEvent creates an unsignalled event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{}, 1)}
}

// Signal sets the latch. It never blocks.
func (e *Event) Signal() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the latch is set, then clears it.
func (e *Event) Wait(ctx context.Context) error {
	select {
	case <-e.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
