package core

import (
	"strconv"
	"sync/atomic"
)

// Poll is the outcome of resuming a task once.
type Poll int

const (
	// Pending: the task registered a wake condition and cannot progress yet.
	Pending Poll = iota
	// Ready: the task has finished; its slot is released.
	Ready
)

func (p Poll) String() string {
	if p == Ready {
		return "Ready"
	}
	return "Pending"
}

// Future is a resumable continuation. Poll must not block: when it cannot
// make progress it arranges for cx.Waker() to be invoked later and returns
// Pending. The Context is only valid for the duration of the call.
type Future interface {
	Poll(cx *Context) Poll
}

// FutureFunc adapts a plain function to Future.
type FutureFunc func(cx *Context) Poll

// Poll calls f(cx).
func (f FutureFunc) Poll(cx *Context) Poll { return f(cx) }

// Context is handed to a Future while it is being resumed.
type Context struct {
	waker    Waker
	executor *Executor
}

// Waker returns the waker of the task being resumed.
func (cx *Context) Waker() Waker { return cx.waker }

// Task returns the task being resumed.
func (cx *Context) Task() TaskRef { return cx.waker.task }

// Now reads the executor's clock. It returns 0 when no clock is configured.
func (cx *Context) Now() Instant { return cx.executor.now() }

// ScheduleWake asks the executor to resume this task no later than at.
func (cx *Context) ScheduleWake(at Instant) { ScheduleWake(at, cx.waker) }

// Spawner returns a context-confined spawner for the running executor.
func (cx *Context) Spawner() Spawner { return Spawner{executor: cx.executor} }

// =============================================================================
// TaskID
// =============================================================================

// TaskID identifies one incarnation of a task slot.
type TaskID uint64

var taskIDCounter atomic.Uint64

// GenerateTaskID returns a process-unique, non-zero TaskID.
func GenerateTaskID() TaskID {
	return TaskID(taskIDCounter.Add(1))
}

func (id TaskID) IsZero() bool { return id == 0 }

func (id TaskID) String() string { return "task-" + strconv.FormatUint(uint64(id), 10) }

// =============================================================================
// TaskHeader: the task control block
// =============================================================================

// TaskHeader is the per-slot control block. It lives in an Arena and is never
// freed; the executor a task runs on only borrows it while it is spawned.
type TaskHeader struct {
	state        taskState
	runQueueNext atomic.Uint32 // index+1 of the next queued task, 0 terminates
	expiresAt    atomic.Uint64
	executor     atomic.Pointer[Executor]

	// TaskID of a claim not yet handed to an executor, 0 otherwise. Spawn and
	// Discard consume it with a CAS, so each claim is used at most once.
	claim atomic.Uint64

	// Owned by the executor the task is spawned on.
	timerKey timerKey

	// Written by the claimer before the task is published to a run queue,
	// cleared by the executor on completion.
	future Future
	id     TaskID
	name   string
	local  bool
}

// TaskRef is a weak handle to a slot in an Arena.
type TaskRef struct {
	arena *Arena
	index uint32
}

func (r TaskRef) header() *TaskHeader { return &r.arena.headers[r.index] }

// IsZero reports whether r refers to no task.
func (r TaskRef) IsZero() bool { return r.arena == nil }

// Index is the slot's stable arena index.
func (r TaskRef) Index() uint32 { return r.index }

// State returns a snapshot of the task's state bits.
func (r TaskRef) State() TaskState { return r.header().state.load() }

// ID returns the id of the incarnation currently (or last) occupying the slot.
func (r TaskRef) ID() TaskID { return r.header().id }

// Name returns the diagnostic name of the slot's current incarnation.
func (r TaskRef) Name() string { return r.header().name }

// ExpiresAt returns the deadline the task registered in its current resume.
func (r TaskRef) ExpiresAt() Instant { return Instant(r.header().expiresAt.Load()) }

// Executor returns the executor the task was last spawned on.
func (r TaskRef) Executor() *Executor { return r.header().executor.Load() }
