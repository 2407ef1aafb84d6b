package core_test

import (
	"sync"
	"sync/atomic"

	core "github.com/Swind/go-executor/core"
)

// fakeTime is a hand-driven Clock and Alarm.
type fakeTime struct {
	mu    sync.Mutex
	now   core.Instant
	at    core.Instant
	armed bool
	sets  int
	fn    func(any)
	ctx   any
}

func newFakeTime() *fakeTime { return &fakeTime{at: core.InstantMax} }

func (f *fakeTime) Now() core.Instant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Set(at core.Instant) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if at == core.InstantMax {
		f.armed = false
		f.at = at
		return true
	}
	if at <= f.now {
		f.armed = false
		return false
	}
	f.at = at
	f.armed = true
	return true
}

func (f *fakeTime) SetCallback(fn func(any), ctx any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn, f.ctx = fn, ctx
}

func (f *fakeTime) Armed() (core.Instant, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.at, f.armed
}

// Advance moves time forward and fires the alarm if it came due.
func (f *fakeTime) Advance(d core.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	fire := f.armed && f.at <= f.now
	if fire {
		f.armed = false
	}
	fn, ctx := f.fn, f.ctx
	f.mu.Unlock()
	if fire && fn != nil {
		fn(ctx)
	}
}

// penderCounter counts how often an executor asked to be polled.
type penderCounter struct {
	n atomic.Int32
}

func (p *penderCounter) Pend() { p.n.Add(1) }

func (p *penderCounter) Count() int { return int(p.n.Load()) }

// recordingPanicHandler remembers every panic it was given.
type recordingPanicHandler struct {
	mu     sync.Mutex
	panics []any
	tasks  []string
}

func (h *recordingPanicHandler) HandlePanic(executorName string, task core.TaskID, taskName string, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.panics = append(h.panics, panicInfo)
	h.tasks = append(h.tasks, taskName)
}

func (h *recordingPanicHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.panics)
}

// countingFuture counts resumes and finishes after a fixed number of them.
type countingFuture struct {
	resumes int
	readyAt int
	onPoll  func(cx *core.Context, resume int)
}

func (f *countingFuture) Poll(cx *core.Context) core.Poll {
	f.resumes++
	if f.onPoll != nil {
		f.onPoll(cx, f.resumes)
	}
	if f.resumes >= f.readyAt {
		return core.Ready
	}
	return core.Pending
}

func newTestExecutor(name string, capacity int, clock *fakeTime) (*core.Executor, *core.Arena, *penderCounter) {
	arena := core.NewArena(capacity)
	pender := &penderCounter{}
	cfg := core.DefaultConfig()
	cfg.Name = name
	cfg.TraceCapacity = 64
	if clock != nil {
		cfg.Clock = clock
		cfg.Alarm = clock
	}
	return core.NewExecutor(arena, pender.Pend, cfg), arena, pender
}
