// Package notify holds the small synchronization primitives tasks use to wait
// on each other, on other goroutines and on interrupt handlers.
package notify

import (
	"sync"

	"github.com/Swind/go-executor/core"
)

// Signal carries the latest value from any number of senders to one waiting
// task. A new value overwrites one that was not taken yet.
type Signal[T any] struct {
	mu     sync.Mutex
	value  T
	set    bool
	waiter core.WakerRegistration
}

// Signal stores v and wakes the waiting task, if any.
func (s *Signal[T]) Signal(v T) {
	s.mu.Lock()
	s.value, s.set = v, true
	s.waiter.Wake()
	s.mu.Unlock()
}

// Reset drops a value that was not taken yet.
func (s *Signal[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.value, s.set = zero, false
}

// TryTake returns the pending value, if any, and clears it.
func (s *Signal[T]) TryTake() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeLocked()
}

// Signaled reports whether a value is pending.
func (s *Signal[T]) Signaled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

func (s *Signal[T]) takeLocked() (T, bool) {
	var zero T
	if !s.set {
		return zero, false
	}
	v := s.value
	s.value, s.set = zero, false
	return v, true
}

// Wait returns a future that completes with the next value, stored in *dst.
func (s *Signal[T]) Wait(dst *T) core.Future {
	return core.FutureFunc(func(cx *core.Context) core.Poll {
		s.mu.Lock()
		defer s.mu.Unlock()
		if v, ok := s.takeLocked(); ok {
			if dst != nil {
				*dst = v
			}
			return core.Ready
		}
		s.waiter.Register(cx.Waker())
		return core.Pending
	})
}
