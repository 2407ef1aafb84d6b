// Package executor provides a cooperative async executor for a single
// simulated microcontroller core.
//
// Tasks are futures stored in statically sized pools. An executor keeps a
// lock-free run queue of woken tasks and a deadline-ordered timer queue, and
// each activation (Poll) resumes every queued task once. Thread-mode
// executors sleep on an event between activations; interrupt-mode executors
// run inside an interrupt handler at a configured priority and preempt
// thread mode and lower-priority interrupts.
//
// # Quick Start
//
// Create a system with one thread-mode executor and spawn a task:
//
//	sys, err := executor.NewSystem(executor.SystemConfig{ID: "board"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sys.Close()
//
//	blink := sys.MustNewPool("blink", 1)
//	sys.Start(context.Background(), func(s executor.Spawner) {
//		s.MustSpawn(blink.Spawn(func() executor.Future {
//			return executor.Every(sys.Ticks(500 * time.Millisecond))
//		}))
//	})
//
// # Key Concepts
//
// Future: a state machine advanced by Poll. It returns Pending after arranging
// to be woken, and Ready when it is finished.
//
// TaskPool: a fixed number of task slots. Spawning claims an idle slot and
// yields a SpawnToken; a full pool yields a poisoned token and the spawn
// fails with ErrBusy. Nothing is allocated per spawn.
//
// Spawner and SendSpawner: Spawner is confined to the executor's own context
// and accepts local tokens; SendSpawner may be used from any goroutine or
// interrupt handler.
//
// Priority: interrupt executors started at a higher priority preempt those at
// a lower one. Thread mode is priority zero.
//
// # Packages
//
// core holds the executor, task arena, queues, wakers and timer futures. arch
// holds the thread-mode and interrupt-mode executors and the platform
// interfaces they need. sim is a simulated interrupt controller and time
// driver. notify provides Signal and Channel for passing values between tasks.
package executor
