package core

import (
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Executor is the platform-independent core of one executor instance: a run
// queue, a timer queue, a pender and an optional alarm.
//
// The executor does not decide when it runs. Whoever owns it (a thread-mode
// loop, an interrupt handler) must call Poll after the pender fires. Poll must
// never be called reentrantly or from two goroutines at once; arch provides
// executors that uphold this.
type Executor struct {
	name       string
	arena      *Arena
	runQueue   *RunQueue
	timerQueue *TimerQueue
	pender     Pender
	clock      Clock
	alarm      Alarm
	preempt    func()

	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
	trace        *traceRing

	polling atomic.Bool
	cx      Context // reused across resumes; Poll is not reentrant

	spawned     atomic.Uint64
	completed   atomic.Uint64
	panicked    atomic.Uint64
	resumes     atomic.Uint64
	activations atomic.Uint64
	rejected    atomic.Int64
	timerQueued atomic.Int64
	lastPollAt  atomic.Int64
}

// NewExecutor creates an executor whose tasks live in arena. pender is
// invoked whenever the executor has work to do.
func NewExecutor(arena *Arena, pender Pender, config *Config) *Executor {
	if config == nil {
		config = DefaultConfig()
	}
	e := &Executor{
		name:         config.Name,
		arena:        arena,
		runQueue:     NewRunQueue(arena),
		timerQueue:   NewTimerQueue(arena),
		pender:       pender,
		clock:        config.Clock,
		alarm:        config.Alarm,
		preempt:      config.Preempt,
		logger:       config.Logger,
		panicHandler: config.PanicHandler,
		metrics:      config.Metrics,
		trace:        newTraceRing(config.TraceCapacity),
	}
	e.cx.executor = e

	if e.name == "" {
		e.name = "executor"
	}
	if e.pender == nil {
		e.pender = func() {}
	}
	if e.logger == nil {
		e.logger = NewNoOpLogger()
	}
	if e.panicHandler == nil {
		e.panicHandler = &DefaultPanicHandler{}
	}
	if e.metrics == nil {
		e.metrics = &NilMetrics{}
	}

	if e.alarm != nil {
		if e.clock == nil {
			violate("NewExecutor", "executor %q has an alarm but no clock", e.name)
		}
		e.alarm.SetCallback(alarmCallback, e)
	} else if e.clock != nil {
		e.logger.Warn("Executor has a clock but no alarm; deadlines fire only on other wakeups",
			F("executor", e.name))
	}
	return e
}

func alarmCallback(ctx any) {
	ctx.(*Executor).pender()
}

// Name returns the executor name.
func (e *Executor) Name() string { return e.name }

// Arena returns the arena the executor schedules from.
func (e *Executor) Arena() *Arena { return e.arena }

// Spawner returns a context-confined spawner. Use it only from code already
// running on this executor (or before it starts, on the goroutine that will
// run it).
func (e *Executor) Spawner() Spawner { return Spawner{executor: e} }

// SendSpawner returns a spawner usable from any goroutine or interrupt.
func (e *Executor) SendSpawner() SendSpawner { return SendSpawner{executor: e} }

func (e *Executor) now() Instant {
	if e.clock == nil {
		return 0
	}
	return e.clock.Now()
}

// spawn binds an already claimed task to this executor and queues it.
func (e *Executor) spawn(task TaskRef) {
	h := task.header()
	h.executor.Store(e)
	e.spawned.Add(1)
	e.trace.add(TraceRecord{Kind: TraceTaskNew, Executor: e.name, Task: h.id, TaskName: h.name, At: time.Now()})
	e.enqueue(task)
}

// enqueue pushes a task whose RunQueued bit the caller owns, pending the
// executor if the queue was empty.
func (e *Executor) enqueue(task TaskRef) {
	if e.runQueue.Enqueue(task) {
		e.pender()
	}
}

func (e *Executor) rejectSpawn(reason string, err error) error {
	e.rejected.Add(1)
	e.metrics.RecordSpawnRejected(e.name, reason)
	e.logger.Warn("Spawn rejected", F("executor", e.name), F("reason", reason))
	return err
}

// Poll runs every queued task once, expires due timers and re-arms the alarm.
//
// It is one activation of the run loop: the caller suspends afterwards until
// the pender fires again. Tasks woken while Poll runs (including a task waking
// itself) are resumed in a later drain, never twice in the same one.
func (e *Executor) Poll() {
	if !e.polling.CompareAndSwap(false, true) {
		e.logger.Error("Reentrant Poll", F("executor", e.name))
		violate("Poll", "executor %q polled reentrantly", e.name)
	}
	defer e.polling.Store(false)

	e.activations.Add(1)
	e.lastPollAt.Store(time.Now().UnixNano())

	for {
		if e.clock != nil {
			e.timerQueue.DequeueExpired(e.clock.Now(), WakeTaskNoPend)
		}

		depth := e.runQueue.DequeueAll(e.runTask)
		e.metrics.RecordRunQueueDepth(e.name, depth)

		n := e.timerQueue.Len()
		e.timerQueued.Store(int64(n))
		e.metrics.RecordTimerQueueDepth(e.name, n)

		// A deadline that already passed cannot be armed; go around again
		// and expire it ourselves.
		if e.alarm == nil || e.alarm.Set(e.timerQueue.NextExpiration()) {
			break
		}
	}

	e.trace.add(TraceRecord{Kind: TraceSystemIdle, Executor: e.name, At: time.Now()})
}

func (e *Executor) runTask(task TaskRef) {
	h := task.header()
	h.expiresAt.Store(uint64(InstantMax))

	if !h.state.runDequeue() {
		// Stale entry: the task was woken during a resume that then finished.
		return
	}

	if e.preempt != nil {
		e.preempt()
	}

	e.resumeTask(task)
	e.timerQueue.Update(task)
}

func (e *Executor) resumeTask(task TaskRef) {
	h := task.header()
	e.cx.waker = Waker{task: task}
	e.resumes.Add(1)

	start := time.Now()
	e.trace.add(TraceRecord{Kind: TraceTaskExecBegin, Executor: e.name, Task: h.id, TaskName: h.name, At: start})

	done, panicked := e.callFuture(h)

	elapsed := time.Since(start)
	e.metrics.RecordPollDuration(e.name, elapsed)
	e.trace.add(TraceRecord{Kind: TraceTaskExecEnd, Executor: e.name, Task: h.id, TaskName: h.name, At: time.Now(), Duration: elapsed})
	e.cx.waker = Waker{}

	if !done {
		return
	}

	h.future = nil
	h.expiresAt.Store(uint64(InstantMax))
	h.state.despawn()
	e.completed.Add(1)
	e.trace.add(TraceRecord{Kind: TraceTaskDone, Executor: e.name, Task: h.id, TaskName: h.name, At: time.Now(), Panicked: panicked})
	e.logger.Debug("Task finished", F("executor", e.name), F("task", h.name), F("id", h.id))
}

func (e *Executor) callFuture(h *TaskHeader) (done, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			if v, ok := rec.(*PreconditionViolation); ok {
				panic(v)
			}
			done, panicked = true, true
			e.panicked.Add(1)
			e.metrics.RecordTaskPanic(e.name, rec)
			e.logger.Error("Task panicked", F("executor", e.name), F("task", h.name), F("panic", rec))
			e.panicHandler.HandlePanic(e.name, h.id, h.name, rec, debug.Stack())
		}
	}()
	return h.future.Poll(&e.cx) == Ready, false
}

// Stats returns a snapshot of the executor counters. Safe from any goroutine.
func (e *Executor) Stats() ExecutorStats {
	stats := ExecutorStats{
		Name:        e.name,
		Spawned:     e.spawned.Load(),
		Completed:   e.completed.Load(),
		Panicked:    e.panicked.Load(),
		Resumes:     e.resumes.Load(),
		Activations: e.activations.Load(),
		Rejected:    e.rejected.Load(),
		TimerQueued: int(e.timerQueued.Load()),
	}
	if ns := e.lastPollAt.Load(); ns != 0 {
		stats.LastPollAt = time.Unix(0, ns)
	}
	return stats
}

// RecentTrace returns up to limit trace records, newest first.
func (e *Executor) RecentTrace(limit int) []TraceRecord {
	return e.trace.recent(limit)
}
