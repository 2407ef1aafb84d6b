package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Swind/go-executor/arch"
	"github.com/Swind/go-executor/core"
	"github.com/Swind/go-executor/sim"
)

// SystemConfig describes a simulated core.
type SystemConfig struct {
	ID            string // "core" (by default)
	Capacity      int    // task arena slots, 16 (by default)
	TickHz        uint64 // core.DefaultTickHz (by default)
	IRQLines      int    // interrupt lines, 32 (by default)
	MaxExecutors  int    // alarms, one per executor, 4 (by default)
	TraceCapacity int

	Logger       core.Logger
	Metrics      core.Metrics
	PanicHandler core.PanicHandler
}

// System is one simulated core: an interrupt controller, a real-time time
// driver, a task arena and the executors running on them. The thread-mode
// executor and every interrupt handler run on the goroutine started by Start.
type System struct {
	id     string
	cfg    SystemConfig
	logger core.Logger

	nvic   *sim.NVIC
	driver *sim.Driver
	arena  *core.Arena
	thread *arch.ThreadExecutor

	mu         sync.Mutex
	interrupts []*arch.InterruptExecutor

	wg        sync.WaitGroup
	cancel    context.CancelFunc
	running   bool
	runErr    error
	runningMu sync.RWMutex
}

// NewSystem creates a core with its thread-mode executor. It is not running
// until Start is called.
func NewSystem(cfg SystemConfig) (*System, error) {
	if cfg.ID == "" {
		cfg.ID = "core"
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 16
	}
	if cfg.TickHz == 0 {
		cfg.TickHz = core.DefaultTickHz
	}
	if cfg.IRQLines <= 0 {
		cfg.IRQLines = 32
	}
	if cfg.MaxExecutors <= 0 {
		cfg.MaxExecutors = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NewNoOpLogger()
	}

	s := &System{
		id:     cfg.ID,
		cfg:    cfg,
		logger: cfg.Logger,
		nvic:   sim.NewNVIC(cfg.IRQLines, cfg.Logger),
		driver: sim.NewDriver(cfg.TickHz, cfg.MaxExecutors, cfg.Logger),
		arena:  core.NewArena(cfg.Capacity),
	}

	execCfg, err := s.executorConfig(cfg.ID + "/thread")
	if err != nil {
		s.driver.Close()
		return nil, err
	}
	s.thread = arch.NewThreadExecutor(s.arena, s.nvic, execCfg)
	return s, nil
}

func (s *System) executorConfig(name string) (*core.Config, error) {
	alarm, err := s.driver.AllocateAlarm()
	if err != nil {
		return nil, fmt.Errorf("executor %q: %w", name, err)
	}
	cfg := core.DefaultConfig()
	cfg.Name = name
	cfg.Logger = s.logger
	cfg.Clock = s.driver
	cfg.Alarm = alarm
	cfg.TraceCapacity = s.cfg.TraceCapacity
	if s.cfg.Metrics != nil {
		cfg.Metrics = s.cfg.Metrics
	}
	if s.cfg.PanicHandler != nil {
		cfg.PanicHandler = s.cfg.PanicHandler
	}
	return cfg, nil
}

// NewInterruptExecutor creates an interrupt-mode executor on line irq. Start
// it with InterruptExecutor.Start before spawning to it.
func (s *System) NewInterruptExecutor(irq IRQ, name string) (*arch.InterruptExecutor, error) {
	if name == "" {
		name = fmt.Sprintf("%s/irq%d", s.id, irq)
	}
	cfg, err := s.executorConfig(name)
	if err != nil {
		return nil, err
	}
	x := arch.NewInterruptExecutor(irq, s.nvic, s.arena, cfg)

	s.mu.Lock()
	s.interrupts = append(s.interrupts, x)
	s.mu.Unlock()
	return x, nil
}

// NewPool reserves size task slots in the system's arena.
func (s *System) NewPool(name string, size int) (*TaskPool, error) {
	return s.arena.NewPool(name, size)
}

// MustNewPool is NewPool for setup code; it panics on error.
func (s *System) MustNewPool(name string, size int) *TaskPool {
	return s.arena.MustNewPool(name, size)
}

// Ticks converts a wall-clock duration into ticks of this system's clock.
func (s *System) Ticks(d time.Duration) Duration {
	return core.DurationFromStd(d, s.driver.Hz())
}

// Now returns the current tick count.
func (s *System) Now() Instant { return s.driver.Now() }

// Start runs the thread-mode executor on a new goroutine, calling init with
// its spawner first. Calling Start on a running system does nothing.
func (s *System) Start(ctx context.Context, init func(Spawner)) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if s.running {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.runErr = nil

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.thread.RunContext(ctx, init)
		if errors.Is(err, context.Canceled) {
			err = nil
		}

		s.runningMu.Lock()
		s.runErr = err
		s.running = false
		s.runningMu.Unlock()
	}()
}

// Stop stops the core goroutine and waits for it. Tasks keep their state; a
// later Start resumes them.
func (s *System) Stop() {
	s.runningMu.RLock()
	cancel := s.cancel
	s.runningMu.RUnlock()

	if cancel != nil {
		cancel()
	}
	s.Join()
}

// Close stops the system and its time driver. The system cannot be restarted.
func (s *System) Close() {
	s.Stop()
	s.driver.Close()
}

// Join waits for the core goroutine to finish.
func (s *System) Join() {
	s.wg.Wait()
}

// Err returns the error the core goroutine stopped with, if any. A context
// deadline is reported; cancellation by Stop is not.
func (s *System) Err() error {
	s.runningMu.RLock()
	defer s.runningMu.RUnlock()
	return s.runErr
}

// ID returns the system ID.
func (s *System) ID() string { return s.id }

// IsRunning returns whether the core goroutine is running.
func (s *System) IsRunning() bool {
	s.runningMu.RLock()
	defer s.runningMu.RUnlock()
	return s.running
}

// Spawn hands token to the thread-mode executor from any goroutine.
func (s *System) Spawn(token SpawnToken) error {
	return s.thread.SendSpawner().Spawn(token)
}

// Thread returns the thread-mode executor.
func (s *System) Thread() *arch.ThreadExecutor { return s.thread }

// NVIC returns the interrupt controller.
func (s *System) NVIC() *sim.NVIC { return s.nvic }

// Arena returns the task arena.
func (s *System) Arena() *core.Arena { return s.arena }

// Executors returns every executor of the system, thread mode first.
func (s *System) Executors() []*core.Executor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Executor, 0, 1+len(s.interrupts))
	out = append(out, s.thread.Executor())
	for _, x := range s.interrupts {
		out = append(out, x.Executor())
	}
	return out
}

// =============================================================================
// Global System Helper (Singleton)
// =============================================================================

var (
	globalSystem *System
	globalMu     sync.Mutex
)

// InitGlobalSystem creates and starts the global system. It does nothing if
// the global system already exists.
func InitGlobalSystem(cfg SystemConfig) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSystem != nil {
		return nil
	}

	sys, err := NewSystem(cfg)
	if err != nil {
		return err
	}
	sys.Start(context.Background(), nil)
	globalSystem = sys
	return nil
}

// GetGlobalSystem returns the global system.
// It panics if InitGlobalSystem has not been called.
func GetGlobalSystem() *System {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSystem == nil {
		panic("global system not initialized. Call InitGlobalSystem() first.")
	}
	return globalSystem
}

// ShutdownGlobalSystem stops and closes the global system.
func ShutdownGlobalSystem() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSystem != nil {
		globalSystem.Close()
		globalSystem = nil
	}
}
