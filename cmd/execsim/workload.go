package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Swind/go-executor/arch"
	"github.com/Swind/go-executor/core"
	"github.com/Swind/go-executor/sim"
)

// system is one simulated core: an interrupt controller, a time driver and the
// executors and task pools a workload asks for.
type system struct {
	cfg    Config
	logger core.Logger

	nvic   *sim.NVIC
	driver *sim.Driver
	arena  *core.Arena

	thread     *arch.ThreadExecutor
	interrupts map[string]*arch.InterruptExecutor
	executors  map[string]*core.Executor
	pools      map[string]*core.TaskPool
	ticks      map[string]*atomic.Uint64
}

func buildSystem(cfg Config, logger core.Logger, metrics core.Metrics) (*system, error) {
	capacity := 0
	for _, t := range cfg.Tasks {
		capacity += t.Count
	}

	s := &system{
		cfg:        cfg,
		logger:     logger,
		nvic:       sim.NewNVIC(maxIRQ+1, logger),
		driver:     sim.NewDriver(cfg.TickHz, len(cfg.Executors), logger),
		arena:      core.NewArena(capacity),
		interrupts: make(map[string]*arch.InterruptExecutor),
		executors:  make(map[string]*core.Executor),
		pools:      make(map[string]*core.TaskPool),
		ticks:      make(map[string]*atomic.Uint64),
	}

	for _, e := range cfg.Executors {
		alarm, err := s.driver.AllocateAlarm()
		if err != nil {
			s.driver.Close()
			return nil, fmt.Errorf("executor %q: %w", e.Name, err)
		}
		execCfg := core.DefaultConfig()
		execCfg.Name = e.Name
		execCfg.Logger = logger
		execCfg.Clock = s.driver
		execCfg.Alarm = alarm
		execCfg.TraceCapacity = cfg.TraceCapacity
		if metrics != nil {
			execCfg.Metrics = metrics
		}

		switch e.Mode {
		case modeThread:
			s.thread = arch.NewThreadExecutor(s.arena, s.nvic, execCfg)
			s.executors[e.Name] = s.thread.Executor()
		case modeInterrupt:
			x := arch.NewInterruptExecutor(arch.IRQ(e.IRQ), s.nvic, s.arena, execCfg)
			s.interrupts[e.Name] = x
			s.executors[e.Name] = x.Executor()
		}
	}

	for _, t := range cfg.Tasks {
		pool, err := s.arena.NewPool(t.Name, t.Count)
		if err != nil {
			s.driver.Close()
			return nil, err
		}
		s.pools[t.Name] = pool
		s.ticks[t.Name] = &atomic.Uint64{}
	}
	return s, nil
}

// periodicTask counts one tick per period until iterations ticks were counted
// (forever for 0).
func periodicTask(period core.Duration, iterations int, ticks *atomic.Uint64) core.Future {
	ticker := core.Every(period)
	n := 0
	count := core.FutureFunc(func(*core.Context) core.Poll {
		n++
		ticks.Add(1)
		return core.Ready
	})
	return core.Loop(
		func() core.Future { return core.Sequence(ticker, count) },
		func() bool { return iterations == 0 || n < iterations },
	)
}

func (s *system) spawnTasks(executor string, spawn func(core.SpawnToken) error) error {
	for _, t := range s.cfg.Tasks {
		if t.Executor != executor {
			continue
		}
		period := core.DurationFromStd(time.Duration(t.PeriodUS)*time.Microsecond, s.cfg.TickHz)
		pool, ticks, iterations := s.pools[t.Name], s.ticks[t.Name], t.Iterations
		for i := 0; i < t.Count; i++ {
			token := pool.Spawn(func() core.Future { return periodicTask(period, iterations, ticks) })
			if err := spawn(token); err != nil {
				return fmt.Errorf("spawn %s on %s: %w", t.Name, executor, err)
			}
		}
	}
	return nil
}

// run starts every executor and drives the core until the workload duration
// has elapsed or ctx is done.
func (s *system) run(ctx context.Context) error {
	defer s.driver.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.DurationMS)*time.Millisecond)
	defer cancel()

	for _, e := range s.cfg.Executors {
		if e.Mode != modeInterrupt {
			continue
		}
		send := s.interrupts[e.Name].Start(arch.Priority(e.Priority))
		if err := s.spawnTasks(e.Name, send.Spawn); err != nil {
			return err
		}
	}

	var err error
	if s.thread != nil {
		var spawnErr error
		err = s.thread.RunContext(ctx, func(sp core.Spawner) {
			if spawnErr = s.spawnTasks(s.thread.Executor().Name(), sp.Spawn); spawnErr != nil {
				cancel()
			}
		})
		if spawnErr != nil {
			return spawnErr
		}
	} else {
		err = s.nvic.Run(ctx)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *system) report(w io.Writer, traceLimit int) {
	names := make([]string, 0, len(s.executors))
	for name := range s.executors {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "%-12s %8s %8s %8s %8s %8s %8s\n",
		"executor", "spawned", "done", "panics", "resumes", "polls", "timers")
	for _, name := range names {
		st := s.executors[name].Stats()
		fmt.Fprintf(w, "%-12s %8d %8d %8d %8d %8d %8d\n",
			name, st.Spawned, st.Completed, st.Panicked, st.Resumes, st.Activations, st.TimerQueued)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-12s %-12s %6s %8s\n", "task", "executor", "slots", "ticks")
	for _, t := range s.cfg.Tasks {
		fmt.Fprintf(w, "%-12s %-12s %6d %8d\n", t.Name, t.Executor, t.Count, s.ticks[t.Name].Load())
	}
	fmt.Fprintf(w, "\ninterrupts dispatched: %d\n", s.nvic.Dispatched())

	if traceLimit <= 0 {
		return
	}
	for _, name := range names {
		fmt.Fprintf(w, "\ntrace %s (newest first):\n", name)
		for _, rec := range s.executors[name].RecentTrace(traceLimit) {
			fmt.Fprintf(w, "  %s %-10s %s\n", rec.At.Format("15:04:05.000000"), rec.Kind, rec.TaskName)
		}
	}
}
