package arch

import (
	"fmt"
	"sync/atomic"

	"github.com/Swind/go-executor/core"
)

// InterruptExecutor runs a core.Executor inside the handler of one interrupt
// line. Its pender pends that line, so its tasks preempt everything running
// at a lower priority, including thread mode and lower-priority interrupt
// executors.
//
// The line must not be used for anything else.
type InterruptExecutor struct {
	irq      IRQ
	ctl      InterruptController
	inner    *core.Executor
	logger   core.Logger
	started  atomic.Bool
	priority atomic.Uint32
}

// NewInterruptExecutor creates an executor bound to irq on ctl. The line is
// left untouched until Start.
func NewInterruptExecutor(irq IRQ, ctl InterruptController, arena *core.Arena, config *core.Config) *InterruptExecutor {
	cfg := copyConfig(config, fmt.Sprintf("irq%d", irq))
	if p, ok := ctl.(Preempter); ok && cfg.Preempt == nil {
		cfg.Preempt = p.Checkpoint
	}

	x := &InterruptExecutor{irq: irq, ctl: ctl, logger: cfg.Logger}
	x.inner = core.NewExecutor(arena, func() { ctl.Pend(irq) }, cfg)
	return x
}

func interruptHandler(ctx any) {
	ctx.(*InterruptExecutor).inner.Poll()
}

// Start installs the executor as the line's handler at prio, enables the line
// and returns a spawner for it.
//
// prio must be above the priority of the caller: the executor must be able to
// preempt whoever spawns onto it. Violating this, or starting twice, panics
// with a core.PreconditionViolation.
func (x *InterruptExecutor) Start(prio Priority) core.SendSpawner {
	if cur := x.ctl.CurrentPriority(); cur >= prio {
		x.logger.Error("Interrupt executor priority too low",
			core.F("executor", x.inner.Name()), core.F("irq", x.irq),
			core.F("priority", prio), core.F("current", cur))
		panic(&core.PreconditionViolation{
			Op:     "InterruptExecutor.Start",
			Reason: fmt.Sprintf("priority %d is not above current priority %d", prio, cur),
		})
	}
	if !x.started.CompareAndSwap(false, true) {
		x.logger.Error("Interrupt executor started twice", core.F("executor", x.inner.Name()))
		panic(&core.PreconditionViolation{
			Op:     "InterruptExecutor.Start",
			Reason: fmt.Sprintf("executor %q already started", x.inner.Name()),
		})
	}
	x.priority.Store(uint32(prio))

	x.ctl.Disable(x.irq)
	x.ctl.SetHandler(x.irq, interruptHandler)
	x.ctl.SetHandlerContext(x.irq, x)
	x.ctl.Unpend(x.irq)
	x.ctl.SetPriority(x.irq, prio)
	x.ctl.Enable(x.irq)
	// Pick up tasks handed over through SendSpawner before Start.
	x.ctl.Pend(x.irq)

	x.logger.Info("Interrupt executor started",
		core.F("executor", x.inner.Name()), core.F("irq", x.irq), core.F("priority", prio))
	return x.inner.SendSpawner()
}

// Spawner returns a context-confined spawner. It may only be called from code
// running at this executor's priority, i.e. from its own tasks.
func (x *InterruptExecutor) Spawner() core.Spawner {
	if !x.started.Load() {
		panic(&core.PreconditionViolation{Op: "InterruptExecutor.Spawner", Reason: "executor not started"})
	}
	if cur, want := x.ctl.CurrentPriority(), Priority(x.priority.Load()); cur != want {
		panic(&core.PreconditionViolation{
			Op:     "InterruptExecutor.Spawner",
			Reason: fmt.Sprintf("called at priority %d, executor runs at %d", cur, want),
		})
	}
	return x.inner.Spawner()
}

// SendSpawner returns a spawner usable from any context. Tasks spawned before
// Start run once the line is enabled.
func (x *InterruptExecutor) SendSpawner() core.SendSpawner { return x.inner.SendSpawner() }

// Executor returns the underlying executor.
func (x *InterruptExecutor) Executor() *core.Executor { return x.inner }

// IRQ returns the line the executor is bound to.
func (x *InterruptExecutor) IRQ() IRQ { return x.irq }
