package core_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	core "github.com/Swind/go-executor/core"
)

// TestExecutor_SpawnRunComplete verifies the full lifecycle of a task that
// completes on its first resume
// Given: A pool of one slot and a task that is Ready immediately
// When: The task is spawned and the executor is polled
// Then: The slot goes Idle -> Spawned|RunQueued -> Idle and can be reused
func TestExecutor_SpawnRunComplete(t *testing.T) {
	// Arrange
	exec, arena, pender := newTestExecutor("a", 1, nil)
	pool := arena.MustNewPool("once", 1)
	f := &countingFuture{readyAt: 1}

	// Act - spawn
	token := pool.Spawn(func() core.Future { return f })
	if err := exec.Spawner().Spawn(token); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	// Assert - queued and pended once
	if got := token.Task().State(); got != core.StateSpawned|core.StateRunQueued {
		t.Fatalf("state after spawn = %v, want Spawned|RunQueued", got)
	}
	if pender.Count() != 1 {
		t.Fatalf("pender calls = %d, want 1", pender.Count())
	}

	// Act - run
	exec.Poll()

	// Assert - finished and idle
	if f.resumes != 1 {
		t.Errorf("resumes = %d, want 1", f.resumes)
	}
	if got := token.Task().State(); got != core.StateIdle {
		t.Errorf("state after completion = %v, want Idle", got)
	}

	// Act & Assert - slot is reusable right away
	again := pool.Spawn(func() core.Future { return &countingFuture{readyAt: 1} })
	if !again.Ok() {
		t.Fatal("respawn after completion returned a poisoned token")
	}
	if err := exec.Spawner().Spawn(again); err != nil {
		t.Fatalf("respawn error = %v", err)
	}
	exec.Poll()

	stats := exec.Stats()
	if stats.Spawned != 2 || stats.Completed != 2 {
		t.Errorf("stats = %+v, want 2 spawned and 2 completed", stats)
	}
}

// TestExecutor_SelfWakeDeferredToNextDrain verifies a self-wake never causes a
// second resume in the same drain
// Given: A task that wakes itself during its first resume and returns Pending
// When: The executor is polled once, then again
// Then: The first poll resumes it once and pends the executor; the second
// poll resumes it again
func TestExecutor_SelfWakeDeferredToNextDrain(t *testing.T) {
	// Arrange
	exec, arena, pender := newTestExecutor("d", 1, nil)
	pool := arena.MustNewPool("self-waker", 1)
	f := &countingFuture{readyAt: 2, onPoll: func(cx *core.Context, resume int) {
		if resume == 1 {
			cx.Waker().Wake()
		}
	}}
	exec.Spawner().MustSpawn(pool.Spawn(func() core.Future { return f }))
	pendsAfterSpawn := pender.Count()

	// Act
	exec.Poll()

	// Assert
	if f.resumes != 1 {
		t.Fatalf("resumes after first poll = %d, want 1", f.resumes)
	}
	if pender.Count() != pendsAfterSpawn+1 {
		t.Errorf("pender calls = %d, want %d (self-wake must pend)", pender.Count(), pendsAfterSpawn+1)
	}
	if !pool.Slot(0).State().RunQueued() {
		t.Error("task not RunQueued after waking itself")
	}

	// Act
	exec.Poll()

	// Assert
	if f.resumes != 2 {
		t.Errorf("resumes after second poll = %d, want 2", f.resumes)
	}
	if got := pool.Slot(0).State(); got != core.StateIdle {
		t.Errorf("state = %v, want Idle", got)
	}
}

// TestExecutor_TimerDeadline verifies a deadline arms the alarm and the alarm
// brings the task back
// Given: A task that sleeps for 100 ticks with no other work queued
// When: The executor is polled, time advances by 100 and it is polled again
// Then: The alarm is armed at now+100, fires the pender once, and the task
// completes on the second poll
func TestExecutor_TimerDeadline(t *testing.T) {
	// Arrange
	clock := newFakeTime()
	clock.Advance(5)
	exec, arena, pender := newTestExecutor("b", 1, clock)
	pool := arena.MustNewPool("sleeper", 1)
	timer := core.After(100)
	exec.Spawner().MustSpawn(pool.Spawn(func() core.Future { return timer }))

	// Act
	exec.Poll()

	// Assert - parked on the timer queue, alarm armed
	at, armed := clock.Armed()
	if !armed || at != 105 {
		t.Fatalf("alarm = (%v, %v), want (105, true)", at, armed)
	}
	if !pool.Slot(0).State().TimerQueued() {
		t.Fatal("task not TimerQueued while sleeping")
	}
	before := pender.Count()

	// Act - alarm fires
	clock.Advance(99)
	if pender.Count() != before {
		t.Fatal("alarm fired early")
	}
	clock.Advance(1)

	// Assert
	if pender.Count() != before+1 {
		t.Fatalf("pender calls = %d, want %d", pender.Count(), before+1)
	}
	exec.Poll()
	if got := pool.Slot(0).State(); got != core.StateIdle {
		t.Errorf("state after deadline = %v, want Idle", got)
	}
	if _, armed := clock.Armed(); armed {
		t.Error("alarm still armed with an empty timer queue")
	}
}

// TestExecutor_PastDeadlineHandledInPoll verifies a deadline the alarm refuses
// is expired by the same Poll
// Given: A task that asks to be woken at the current instant
// When: The executor is polled once
// Then: The task is resumed twice within that Poll
func TestExecutor_PastDeadlineHandledInPoll(t *testing.T) {
	// Arrange
	clock := newFakeTime()
	exec, arena, _ := newTestExecutor("past", 1, clock)
	pool := arena.MustNewPool("now", 1)
	f := &countingFuture{readyAt: 2, onPoll: func(cx *core.Context, resume int) {
		if resume == 1 {
			cx.ScheduleWake(cx.Now())
		}
	}}
	exec.Spawner().MustSpawn(pool.Spawn(func() core.Future { return f }))

	// Act
	exec.Poll()

	// Assert
	if f.resumes != 2 {
		t.Errorf("resumes = %d, want 2", f.resumes)
	}
}

// TestExecutor_SpawnBusy verifies spawning into an occupied pool fails cleanly
// Given: A pool of one slot whose task is still running
// When: A second task is claimed and spawned
// Then: The token is poisoned, Spawn returns ErrBusy and nothing changes
func TestExecutor_SpawnBusy(t *testing.T) {
	// Arrange
	exec, arena, _ := newTestExecutor("busy", 1, nil)
	pool := arena.MustNewPool("single", 1)
	exec.Spawner().MustSpawn(pool.Spawn(func() core.Future { return &countingFuture{readyAt: 99} }))
	built := false

	// Act
	token := pool.Spawn(func() core.Future { built = true; return &countingFuture{readyAt: 1} })
	err := exec.Spawner().Spawn(token)

	// Assert
	if token.Ok() {
		t.Error("token from full pool is Ok")
	}
	if built {
		t.Error("newFuture called for a poisoned token")
	}
	if !errors.Is(err, core.ErrBusy) {
		t.Errorf("Spawn() error = %v, want ErrBusy", err)
	}
	if got := exec.Stats().Rejected; got != 1 {
		t.Errorf("Rejected = %d, want 1", got)
	}
	if got := pool.Stats().Spawned; got != 1 {
		t.Errorf("pool Spawned = %d, want 1", got)
	}
}

// TestExecutor_SendSpawnerRejectsLocal verifies confined tasks cannot cross contexts
// Given: A token claimed with SpawnLocal
// When: It is handed to a SendSpawner
// Then: Spawn returns ErrNotShareable and the slot is released
func TestExecutor_SendSpawnerRejectsLocal(t *testing.T) {
	// Arrange
	exec, arena, pender := newTestExecutor("send", 1, nil)
	pool := arena.MustNewPool("local", 1)
	token := pool.SpawnLocal(func() core.Future { return &countingFuture{readyAt: 1} })

	// Act
	err := exec.SendSpawner().Spawn(token)

	// Assert
	if !errors.Is(err, core.ErrNotShareable) {
		t.Fatalf("Spawn() error = %v, want ErrNotShareable", err)
	}
	if got := pool.Slot(0).State(); got != core.StateIdle {
		t.Errorf("slot state = %v, want Idle", got)
	}
	if pender.Count() != 0 {
		t.Errorf("pender calls = %d, want 0", pender.Count())
	}

	// Act & Assert - the confined spawner accepts a local token
	if err := exec.Spawner().Spawn(pool.SpawnLocal(func() core.Future { return &countingFuture{readyAt: 1} })); err != nil {
		t.Errorf("Spawner.Spawn(local) error = %v", err)
	}
}

// TestExecutor_TokenSpawnsOnce verifies a token hands its task over only once
// Given: A claimed token that was copied before spawning
// When: The token is spawned, then the copy through both spawner kinds
// Then: The repeats return ErrBusy, the task is queued once and Poll returns
// after a single resume
func TestExecutor_TokenSpawnsOnce(t *testing.T) {
	// Arrange
	exec, arena, pender := newTestExecutor("once", 1, nil)
	pool := arena.MustNewPool("task", 1)
	f := &countingFuture{readyAt: 2}
	token := pool.Spawn(func() core.Future { return f })
	copied := token

	// Act
	first := exec.Spawner().Spawn(token)
	again := exec.Spawner().Spawn(copied)
	sent := exec.SendSpawner().Spawn(copied)

	done := make(chan struct{})
	go func() {
		exec.Poll()
		close(done)
	}()

	// Assert
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not return; the task was queued twice")
	}
	if first != nil {
		t.Fatalf("first Spawn() error = %v", first)
	}
	if !errors.Is(again, core.ErrBusy) || !errors.Is(sent, core.ErrBusy) {
		t.Errorf("repeated Spawn() errors = %v, %v, want ErrBusy", again, sent)
	}
	if token.Ok() || copied.Ok() {
		t.Error("spawned token still reports Ok")
	}
	if f.resumes != 1 {
		t.Errorf("resumes = %d, want 1", f.resumes)
	}
	if got := exec.Stats(); got.Spawned != 1 || got.Rejected != 2 {
		t.Errorf("stats = %+v, want 1 spawned and 2 rejected", got)
	}
	if pender.Count() != 1 {
		t.Errorf("pender calls = %d, want 1", pender.Count())
	}
}

// TestExecutor_DiscardedTokenRejected verifies a discarded token stays dead
// Given: A discarded token, and a fresh claim of the same slot
// When: The stale token is spawned and discarded again
// Then: Spawn returns ErrBusy and the fresh claim is untouched
func TestExecutor_DiscardedTokenRejected(t *testing.T) {
	// Arrange
	exec, arena, pender := newTestExecutor("discard", 1, nil)
	pool := arena.MustNewPool("task", 1)
	stale := pool.Spawn(func() core.Future { return &countingFuture{readyAt: 1} })
	stale.Discard()

	// Act
	err := exec.Spawner().Spawn(stale)

	// Assert
	if !errors.Is(err, core.ErrBusy) {
		t.Fatalf("Spawn(discarded) error = %v, want ErrBusy", err)
	}
	if stale.Ok() {
		t.Error("discarded token reports Ok")
	}
	if got := pool.Slot(0).State(); got != core.StateIdle {
		t.Errorf("slot state = %v, want Idle", got)
	}
	if got := exec.Stats().Spawned; got != 0 {
		t.Errorf("Spawned = %d, want 0", got)
	}
	if pender.Count() != 0 {
		t.Errorf("pender calls = %d, want 0", pender.Count())
	}

	// Act & Assert - the stale token cannot touch the next claim of the slot
	fresh := pool.Spawn(func() core.Future { return &countingFuture{readyAt: 1} })
	stale.Discard()
	if err := exec.Spawner().Spawn(stale); !errors.Is(err, core.ErrBusy) {
		t.Errorf("Spawn(stale) error = %v, want ErrBusy", err)
	}
	if !fresh.Ok() {
		t.Fatal("fresh claim lost to a stale token")
	}
	if err := exec.Spawner().Spawn(fresh); err != nil {
		t.Fatalf("Spawn(fresh) error = %v", err)
	}
	exec.Poll()
	if got := exec.Stats(); got.Spawned != 1 || got.Completed != 1 {
		t.Errorf("stats = %+v, want 1 spawned and 1 completed", got)
	}
}

// TestExecutor_TaskPanicRecovered verifies a panicking task is despawned and
// does not stop the executor
// Given: One task that panics and one that completes
// When: The executor is polled
// Then: The panic handler sees the panic, both slots end Idle
func TestExecutor_TaskPanicRecovered(t *testing.T) {
	// Arrange
	arena := core.NewArena(2)
	handler := &recordingPanicHandler{}
	cfg := core.DefaultConfig()
	cfg.PanicHandler = handler
	exec := core.NewExecutor(arena, func() {}, cfg)

	bad := arena.MustNewPool("bad", 1)
	good := arena.MustNewPool("good", 1)
	ok := &countingFuture{readyAt: 1}
	exec.Spawner().MustSpawn(bad.Spawn(func() core.Future {
		return core.FutureFunc(func(*core.Context) core.Poll { panic("boom") })
	}))
	exec.Spawner().MustSpawn(good.Spawn(func() core.Future { return ok }))

	// Act
	exec.Poll()

	// Assert
	if handler.Count() != 1 || handler.panics[0] != "boom" || handler.tasks[0] != "bad" {
		t.Errorf("panics = %v on %v, want [boom] on [bad]", handler.panics, handler.tasks)
	}
	if ok.resumes != 1 {
		t.Errorf("healthy task resumes = %d, want 1", ok.resumes)
	}
	if bad.Slot(0).State() != core.StateIdle {
		t.Error("panicked task slot not released")
	}
	if got := exec.Stats().Panicked; got != 1 {
		t.Errorf("Panicked = %d, want 1", got)
	}
}

// TestExecutor_ReentrantPollPanics verifies Poll refuses to run reentrantly
// Given: A task that calls Poll on its own executor
// When: The executor is polled
// Then: Poll panics with a PreconditionViolation
func TestExecutor_ReentrantPollPanics(t *testing.T) {
	// Arrange
	exec, arena, _ := newTestExecutor("reentrant", 1, nil)
	pool := arena.MustNewPool("nested", 1)
	exec.Spawner().MustSpawn(pool.Spawn(func() core.Future {
		return core.FutureFunc(func(*core.Context) core.Poll {
			exec.Poll()
			return core.Ready
		})
	}))

	// Act
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		exec.Poll()
	}()

	// Assert
	var violation *core.PreconditionViolation
	err, _ := recovered.(error)
	if !errors.As(err, &violation) || violation.Op != "Poll" {
		t.Fatalf("recovered %v, want PreconditionViolation in Poll", recovered)
	}
}

// TestExecutor_WakeFromOtherGoroutine verifies cross-goroutine wakes pend the
// executor
// Given: A task parked on an AtomicWaker
// When: Another goroutine wakes it
// Then: The pender fires and the next Poll completes the task
func TestExecutor_WakeFromOtherGoroutine(t *testing.T) {
	// Arrange
	exec, arena, pender := newTestExecutor("live", 1, nil)
	pool := arena.MustNewPool("waiter", 1)
	var waker core.AtomicWaker
	var fired bool
	var mu sync.Mutex
	exec.Spawner().MustSpawn(pool.Spawn(func() core.Future {
		return core.FutureFunc(func(cx *core.Context) core.Poll {
			mu.Lock()
			defer mu.Unlock()
			if fired {
				return core.Ready
			}
			waker.Register(cx.Waker())
			return core.Pending
		})
	}))
	exec.Poll()
	before := pender.Count()

	// Act
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mu.Lock()
		fired = true
		mu.Unlock()
		waker.Wake()
	}()
	wg.Wait()

	// Assert
	if pender.Count() != before+1 {
		t.Fatalf("pender calls = %d, want %d", pender.Count(), before+1)
	}
	exec.Poll()
	if pool.Slot(0).State() != core.StateIdle {
		t.Error("task did not complete after cross-goroutine wake")
	}
}

// TestExecutor_SpawnFromTask verifies tasks can spawn siblings through their context
// Given: A parent task that spawns a child on first resume
// When: The executor is polled twice
// Then: The child runs in the next drain
func TestExecutor_SpawnFromTask(t *testing.T) {
	// Arrange
	exec, arena, _ := newTestExecutor("spawn", 2, nil)
	parents := arena.MustNewPool("parent", 1)
	children := arena.MustNewPool("child", 1)
	child := &countingFuture{readyAt: 1}
	var spawnErr error
	exec.Spawner().MustSpawn(parents.Spawn(func() core.Future {
		return core.FutureFunc(func(cx *core.Context) core.Poll {
			spawnErr = core.SpawnerFromContext(cx).Spawn(children.Spawn(func() core.Future { return child }))
			return core.Ready
		})
	}))

	// Act
	exec.Poll()
	exec.Poll()

	// Assert
	if spawnErr != nil {
		t.Fatalf("child spawn error = %v", spawnErr)
	}
	if child.resumes != 1 {
		t.Errorf("child resumes = %d, want 1", child.resumes)
	}
}

// TestExecutor_Trace verifies the trace ring records the task lifecycle
// Given: An executor with tracing enabled
// When: A task runs to completion
// Then: The newest records are SystemIdle, TaskDone, ExecEnd, ExecBegin, New
func TestExecutor_Trace(t *testing.T) {
	// Arrange
	exec, arena, _ := newTestExecutor("trace", 1, nil)
	pool := arena.MustNewPool("traced", 1)
	exec.Spawner().MustSpawn(pool.Spawn(func() core.Future { return &countingFuture{readyAt: 1} }))

	// Act
	exec.Poll()
	records := exec.RecentTrace(10)

	// Assert
	want := []core.TraceKind{
		core.TraceSystemIdle,
		core.TraceTaskDone,
		core.TraceTaskExecEnd,
		core.TraceTaskExecBegin,
		core.TraceTaskNew,
	}
	if len(records) != len(want) {
		t.Fatalf("len(records) = %d, want %d", len(records), len(want))
	}
	for i, kind := range want {
		if records[i].Kind != kind {
			t.Errorf("records[%d].Kind = %v, want %v", i, records[i].Kind, kind)
		}
	}
	if records[1].TaskName != "traced" {
		t.Errorf("TaskDone name = %q, want traced", records[1].TaskName)
	}
}

// TestNewExecutor_AlarmWithoutClock verifies the configuration check
func TestNewExecutor_AlarmWithoutClock(t *testing.T) {
	defer func() {
		if _, ok := recover().(*core.PreconditionViolation); !ok {
			t.Error("NewExecutor with alarm and no clock did not panic with PreconditionViolation")
		}
	}()
	cfg := core.DefaultConfig()
	cfg.Alarm = newFakeTime()
	core.NewExecutor(core.NewArena(1), nil, cfg)
}
