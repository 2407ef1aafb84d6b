package notify

import (
	"errors"
	"sync"

	"github.com/Swind/go-executor/core"
)

var (
	// ErrFull is returned by TrySend when the channel has no free slot.
	ErrFull = errors.New("notify: channel full")
	// ErrEmpty is returned by TryReceive when the channel holds nothing.
	ErrEmpty = errors.New("notify: channel empty")
)

// Channel is a bounded FIFO between tasks, goroutines and handlers. Futures
// returned by Send and Receive suspend the calling task while the channel is
// full or empty. One task may wait on each side at a time; a second waiter
// displaces the first, which then re-registers on its next resume.
type Channel[T any] struct {
	mu        sync.Mutex
	buf       []T
	head, n   int
	senders   core.WakerRegistration
	receivers core.WakerRegistration
}

// NewChannel creates a channel with room for capacity values.
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel[T]{buf: make([]T, capacity)}
}

// Cap returns the capacity.
func (c *Channel[T]) Cap() int { return len(c.buf) }

// Len returns the number of queued values.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// TrySend queues v without waiting.
func (c *Channel[T]) TrySend(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(v)
}

func (c *Channel[T]) sendLocked(v T) error {
	if c.n == len(c.buf) {
		return ErrFull
	}
	c.buf[(c.head+c.n)%len(c.buf)] = v
	c.n++
	c.receivers.Wake()
	return nil
}

// TryReceive takes the oldest value without waiting.
func (c *Channel[T]) TryReceive() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiveLocked()
}

func (c *Channel[T]) receiveLocked() (T, error) {
	var zero T
	if c.n == 0 {
		return zero, ErrEmpty
	}
	v := c.buf[c.head]
	c.buf[c.head] = zero
	c.head = (c.head + 1) % len(c.buf)
	c.n--
	c.senders.Wake()
	return v, nil
}

// Send returns a future that completes once v is queued.
func (c *Channel[T]) Send(v T) core.Future {
	return core.FutureFunc(func(cx *core.Context) core.Poll {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.sendLocked(v) == nil {
			return core.Ready
		}
		c.senders.Register(cx.Waker())
		return core.Pending
	})
}

// Receive returns a future that completes with the oldest value in *dst.
func (c *Channel[T]) Receive(dst *T) core.Future {
	return core.FutureFunc(func(cx *core.Context) core.Poll {
		c.mu.Lock()
		defer c.mu.Unlock()
		v, err := c.receiveLocked()
		if err != nil {
			c.receivers.Register(cx.Waker())
			return core.Pending
		}
		if dst != nil {
			*dst = v
		}
		return core.Ready
	})
}
