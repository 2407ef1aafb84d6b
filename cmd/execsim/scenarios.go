package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Swind/go-executor/arch"
	"github.com/Swind/go-executor/core"
	"github.com/Swind/go-executor/sim"
)

// scenario is a small deterministic demonstration of one scheduling property.
type scenario struct {
	name  string
	usage string
	run   func(w io.Writer, logger core.Logger) error
}

var scenarios = []scenario{
	{"a", "a task that finishes on its first resume frees its slot", scenarioSpawnComplete},
	{"b", "a sleeping task arms the alarm and wakes exactly once", scenarioTimer},
	{"c", "an interrupt executor preempts thread mode", scenarioPreemption},
	{"d", "a task waking itself is resumed in the next drain only", scenarioSelfWake},
}

func findScenario(name string) (scenario, bool) {
	for _, s := range scenarios {
		if s.name == strings.ToLower(name) {
			return s, true
		}
	}
	return scenario{}, false
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		names = append(names, s.name)
	}
	sort.Strings(names)
	return names
}

func execConfig(name string, logger core.Logger) *core.Config {
	cfg := core.DefaultConfig()
	cfg.Name = name
	cfg.Logger = logger
	return cfg
}

func scenarioSpawnComplete(w io.Writer, logger core.Logger) error {
	arena := core.NewArena(1)
	exec := core.NewExecutor(arena, nil, execConfig("a", logger))
	pool := arena.MustNewPool("once", 1)

	token := pool.Spawn(func() core.Future {
		return core.FutureFunc(func(*core.Context) core.Poll { return core.Ready })
	})
	slot := token.Task()
	fmt.Fprintf(w, "claimed:  %s\n", slot.State())
	if err := exec.Spawner().Spawn(token); err != nil {
		return err
	}
	fmt.Fprintf(w, "spawned:  %s\n", slot.State())
	exec.Poll()
	fmt.Fprintf(w, "polled:   %s\n", slot.State())

	again := pool.Spawn(func() core.Future {
		return core.FutureFunc(func(*core.Context) core.Poll { return core.Ready })
	})
	fmt.Fprintf(w, "respawn:  ok=%v\n", again.Ok())
	again.Discard()
	return nil
}

func scenarioTimer(w io.Writer, logger core.Logger) error {
	clock := sim.NewManualClock()
	alarm := clock.NewAlarm()
	cfg := execConfig("b", logger)
	cfg.Clock, cfg.Alarm = clock, alarm

	pends := 0
	arena := core.NewArena(1)
	exec := core.NewExecutor(arena, func() { pends++ }, cfg)
	pool := arena.MustNewPool("sleeper", 1)
	exec.Spawner().MustSpawn(pool.Spawn(func() core.Future { return core.After(100) }))

	exec.Poll()
	fmt.Fprintf(w, "after first poll: alarm at %s, state %s\n", alarm.At(), pool.Slot(0).State())

	before := pends
	clock.Advance(99)
	fmt.Fprintf(w, "t=%s: pended %d times\n", clock.Now(), pends-before)
	clock.Advance(1)
	fmt.Fprintf(w, "t=%s: pended %d times\n", clock.Now(), pends-before)

	exec.Poll()
	st := exec.Stats()
	fmt.Fprintf(w, "after second poll: state %s, resumes %d, alarm at %s\n",
		pool.Slot(0).State(), st.Resumes, alarm.At())
	return nil
}

func scenarioPreemption(w io.Writer, logger core.Logger) error {
	nvic := sim.NewNVIC(2, logger)
	arena := core.NewArena(2)
	lowPool := arena.MustNewPool("low", 1)
	highPool := arena.MustNewPool("high", 1)

	high := arch.NewInterruptExecutor(1, nvic, arena, execConfig("irq1", logger))
	highSpawner := high.Start(2)
	thread := arch.NewThreadExecutor(arena, nvic, execConfig("thread", logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	report := func(name string, then func()) core.Future {
		return core.FutureFunc(func(*core.Context) core.Poll {
			fmt.Fprintf(w, "resumed %-4s at priority %d\n", name, nvic.CurrentPriority())
			if then != nil {
				then()
			}
			return core.Ready
		})
	}

	err := thread.RunContext(ctx, func(s core.Spawner) {
		s.MustSpawn(lowPool.Spawn(func() core.Future { return report("low", cancel) }))
		highSpawner.MustSpawn(highPool.Spawn(func() core.Future { return report("high", nil) }))
		fmt.Fprintln(w, "both tasks ready")
	})
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func scenarioSelfWake(w io.Writer, logger core.Logger) error {
	arena := core.NewArena(1)
	exec := core.NewExecutor(arena, nil, execConfig("d", logger))
	pool := arena.MustNewPool("self", 1)

	resumes := 0
	exec.Spawner().MustSpawn(pool.Spawn(func() core.Future {
		return core.FutureFunc(func(cx *core.Context) core.Poll {
			resumes++
			if resumes < 3 {
				cx.Waker().Wake()
				return core.Pending
			}
			return core.Ready
		})
	}))

	for drain := 1; pool.Slot(0).State().Spawned(); drain++ {
		exec.Poll()
		fmt.Fprintf(w, "drain %d: resumes %d, state %s\n", drain, resumes, pool.Slot(0).State())
	}
	return nil
}
