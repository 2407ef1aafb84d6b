package executor_test

import (
	"context"
	"fmt"
	"time"

	executor "github.com/Swind/go-executor"
	"github.com/Swind/go-executor/core"
	"github.com/Swind/go-executor/sim"
)

// ExampleSystem demonstrates a periodic task on a real-time core.
func ExampleSystem() {
	sys, err := executor.NewSystem(executor.SystemConfig{ID: "board"})
	if err != nil {
		panic(err)
	}
	defer sys.Close()

	done := make(chan struct{})
	blink := sys.MustNewPool("blink", 1)
	sys.Start(context.Background(), func(s executor.Spawner) {
		n := 0
		ticker := executor.Every(sys.Ticks(2 * time.Millisecond))
		s.MustSpawn(blink.Spawn(func() executor.Future {
			return executor.Loop(
				func() executor.Future {
					return executor.Sequence(ticker, executor.FutureFunc(func(*executor.Context) executor.Poll {
						n++
						fmt.Println("blink", n)
						return executor.Ready
					}))
				},
				func() bool {
					if n == 3 {
						close(done)
						return false
					}
					return true
				},
			)
		}))
	})

	<-done

	// Output:
	// blink 1
	// blink 2
	// blink 3
}

// ExampleWithTimeout demonstrates racing a future against a deadline on
// virtual time.
func ExampleWithTimeout() {
	clock := sim.NewManualClock()
	cfg := core.DefaultConfig()
	cfg.Clock, cfg.Alarm = clock, clock.NewAlarm()

	arena := core.NewArena(1)
	exec := core.NewExecutor(arena, nil, cfg)
	pool := arena.MustNewPool("wait", 1)

	var wait *core.TimeoutFuture
	exec.Spawner().MustSpawn(pool.Spawn(func() executor.Future {
		wait = executor.WithTimeout(executor.After(1000), 10)
		return wait
	}))

	exec.Poll()
	clock.AdvanceToNextAlarm()
	exec.Poll()

	fmt.Println("now:", clock.Now())
	fmt.Println("timed out:", wait.TimedOut())

	// Output:
	// now: t+10
	// timed out: true
}
