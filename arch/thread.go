package arch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/Swind/go-executor/core"
)

// ThreadExecutor runs a core.Executor in thread mode: poll, then sleep on an
// event until a task is woken or an alarm fires.
//
// All tasks spawned on it run on the goroutine that calls Run. Use
// SendSpawner to hand it work from other goroutines or interrupts.
type ThreadExecutor struct {
	inner   *core.Executor
	event   EventWaiter
	logger  core.Logger
	running atomic.Bool
}

// NewThreadExecutor creates a thread-mode executor over arena. If event also
// implements Preempter and config sets no Preempt hook, the executor checks
// for pending interrupts before every resume.
func NewThreadExecutor(arena *core.Arena, event EventWaiter, config *core.Config) *ThreadExecutor {
	if event == nil {
		event = NewEvent()
	}
	cfg := copyConfig(config, "thread")
	if p, ok := event.(Preempter); ok && cfg.Preempt == nil {
		cfg.Preempt = p.Checkpoint
	}

	return &ThreadExecutor{
		inner:  core.NewExecutor(arena, event.Signal, cfg),
		event:  event,
		logger: cfg.Logger,
	}
}

func copyConfig(config *core.Config, defaultName string) *core.Config {
	if config == nil {
		config = core.DefaultConfig()
		config.Name = defaultName
	}
	cfg := *config
	if cfg.Logger == nil {
		cfg.Logger = core.NewNoOpLogger()
	}
	return &cfg
}

// Executor returns the underlying executor.
func (t *ThreadExecutor) Executor() *core.Executor { return t.inner }

// SendSpawner returns a spawner usable from any goroutine.
func (t *ThreadExecutor) SendSpawner() core.SendSpawner { return t.inner.SendSpawner() }

// Run calls init with a spawner for this executor, then polls and sleeps
// forever. It never returns.
func (t *ThreadExecutor) Run(init func(core.Spawner)) {
	err := t.RunContext(context.Background(), init)
	// Only a broken EventWaiter gets here.
	panic(fmt.Errorf("thread executor %q stopped: %w", t.inner.Name(), err))
}

// RunContext is Run for hosts: it returns ctx.Err() once ctx is done. Tasks
// keep their state and a later RunContext picks them up again.
func (t *ThreadExecutor) RunContext(ctx context.Context, init func(core.Spawner)) error {
	if !t.running.CompareAndSwap(false, true) {
		t.logger.Error("Thread executor already running", core.F("executor", t.inner.Name()))
		panic(&core.PreconditionViolation{
			Op:     "ThreadExecutor.Run",
			Reason: fmt.Sprintf("executor %q is already running", t.inner.Name()),
		})
	}
	defer t.running.Store(false)

	t.logger.Info("Thread executor started", core.F("executor", t.inner.Name()))
	if init != nil {
		init(t.inner.Spawner())
	}

	for {
		t.inner.Poll()
		if err := t.event.Wait(ctx); err != nil {
			t.logger.Info("Thread executor stopped",
				core.F("executor", t.inner.Name()), core.F("reason", err))
			return err
		}
	}
}
