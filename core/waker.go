package core

import "sync/atomic"

// Waker re-queues exactly one task on its executor. It is a small value that
// may be copied freely and invoked from any goroutine or interrupt handler,
// any number of times, including after the task has finished.
type Waker struct {
	task TaskRef
}

// Wake enqueues the task and signals its executor. It is a no-op if the task
// is already queued or no longer spawned.
func (w Waker) Wake() {
	if w.task.IsZero() {
		return
	}
	WakeTask(w.task)
}

// Task returns the task the waker is bound to.
func (w Waker) Task() TaskRef { return w.task }

// IsZero reports whether the waker is bound to no task.
func (w Waker) IsZero() bool { return w.task.IsZero() }

// WakeTask marks task run-queued, pushes it and pends its executor.
func WakeTask(task TaskRef) {
	h := task.header()
	if !h.state.runEnqueue() {
		return
	}
	h.executor.Load().enqueue(task)
}

// WakeTaskNoPend is WakeTask without signalling the executor. The executor
// uses it for timers it expires itself right before draining.
func WakeTaskNoPend(task TaskRef) {
	h := task.header()
	if !h.state.runEnqueue() {
		return
	}
	h.executor.Load().runQueue.Enqueue(task)
}

// ScheduleWake lowers the deadline of the task behind w to at. It takes effect
// when called while that task is being resumed; the executor files the task
// in its timer queue after the resume returns.
func ScheduleWake(at Instant, w Waker) {
	if w.task.IsZero() {
		return
	}
	exp := &w.task.header().expiresAt
	for {
		cur := exp.Load()
		if uint64(at) >= cur {
			return
		}
		if exp.CompareAndSwap(cur, uint64(at)) {
			return
		}
	}
}

// =============================================================================
// Waker holders for code that waits on events
// =============================================================================

// WakerRegistration holds at most one waker. It is not synchronized; guard it
// with whatever protects the state it describes.
type WakerRegistration struct {
	waker Waker
}

// Register stores w. A different waker already registered is woken so that
// its task can re-register instead of sleeping forever.
func (r *WakerRegistration) Register(w Waker) {
	if r.waker == w {
		return
	}
	if !r.waker.IsZero() {
		r.waker.Wake()
	}
	r.waker = w
}

// Wake wakes and clears the registered waker, if any.
func (r *WakerRegistration) Wake() {
	w := r.waker
	r.waker = Waker{}
	w.Wake()
}

// Occupied reports whether a waker is registered.
func (r *WakerRegistration) Occupied() bool { return !r.waker.IsZero() }

// AtomicWaker is a WakerRegistration that interrupt-side code can wake while
// task code registers, without a lock or an allocation. All tasks registered
// on one AtomicWaker must live in the same arena.
type AtomicWaker struct {
	arena atomic.Pointer[Arena]
	slot  atomic.Uint32 // index+1 of the registered task, 0 when empty
}

// Register stores w, replacing any previous waker. Registering the zero
// Waker clears the registration.
func (a *AtomicWaker) Register(w Waker) {
	if w.task.IsZero() {
		a.slot.Store(0)
		return
	}
	if !a.arena.CompareAndSwap(nil, w.task.arena) && a.arena.Load() != w.task.arena {
		violate("AtomicWaker.Register", "waker for a task of a different arena")
	}
	a.slot.Store(w.task.index + 1)
}

// Wake takes the registered waker, if any, and wakes it.
func (a *AtomicWaker) Wake() {
	if n := a.slot.Swap(0); n != 0 {
		WakeTask(a.arena.Load().ref(n - 1))
	}
}
