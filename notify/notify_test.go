package notify_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/Swind/go-executor/core"
	"github.com/Swind/go-executor/notify"
)

func newExecutor(capacity int) (*core.Executor, *core.Arena) {
	arena := core.NewArena(capacity)
	return core.NewExecutor(arena, nil, nil), arena
}

// TestSignal_WakesWaiter verifies a task parked on a Signal gets the value
// Given: A task waiting on a Signal
// When: Another goroutine signals 7 and the executor polls
// Then: The task completes with 7 and the signal is empty
func TestSignal_WakesWaiter(t *testing.T) {
	// Arrange
	exec, arena := newExecutor(1)
	var sig notify.Signal[int]
	var got int
	exec.Spawner().MustSpawn(arena.MustNewPool("waiter", 1).Spawn(func() core.Future {
		return sig.Wait(&got)
	}))
	exec.Poll()

	// Act
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sig.Signal(7)
	}()
	wg.Wait()
	exec.Poll()

	// Assert
	if got != 7 {
		t.Errorf("received %d, want 7", got)
	}
	if sig.Signaled() {
		t.Error("signal still set after being taken")
	}
}

// TestSignal_LatestValueWins verifies overwrite semantics
func TestSignal_LatestValueWins(t *testing.T) {
	var sig notify.Signal[string]
	sig.Signal("a")
	sig.Signal("b")

	if v, ok := sig.TryTake(); !ok || v != "b" {
		t.Errorf("TryTake() = %q, %v, want b, true", v, ok)
	}
	sig.Signal("c")
	sig.Reset()
	if _, ok := sig.TryTake(); ok {
		t.Error("TryTake() after Reset returned a value")
	}
}

// TestChannel_ProducerConsumer verifies back-pressure between two tasks
// Given: A channel of capacity 2, a producer sending 5 values and a consumer
// When: The executor is polled until both finish
// Then: The consumer sees 0..4 in order and the producer was suspended at
// least once
func TestChannel_ProducerConsumer(t *testing.T) {
	// Arrange
	exec, arena := newExecutor(2)
	ch := notify.NewChannel[int](2)
	var received []int
	sent, suspended := 0, 0

	exec.Spawner().MustSpawn(arena.MustNewPool("producer", 1).Spawn(func() core.Future {
		var pending core.Future
		return core.FutureFunc(func(cx *core.Context) core.Poll {
			for sent < 5 {
				if pending == nil {
					pending = ch.Send(sent)
				}
				if pending.Poll(cx) == core.Pending {
					suspended++
					return core.Pending
				}
				pending = nil
				sent++
			}
			return core.Ready
		})
	}))
	exec.Spawner().MustSpawn(arena.MustNewPool("consumer", 1).Spawn(func() core.Future {
		var v int
		return core.Loop(func() core.Future {
			return core.Sequence(ch.Receive(&v), core.FutureFunc(func(*core.Context) core.Poll {
				received = append(received, v)
				return core.Ready
			}))
		}, func() bool { return len(received) < 5 })
	}))

	// Act
	for i := 0; i < 20 && len(received) < 5; i++ {
		exec.Poll()
	}

	// Assert
	if len(received) != 5 {
		t.Fatalf("received = %v, want 5 values", received)
	}
	for i, v := range received {
		if v != i {
			t.Fatalf("received = %v, want [0 1 2 3 4]", received)
		}
	}
	if suspended == 0 {
		t.Error("producer never suspended on a full channel")
	}
	if ch.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ch.Len())
	}
}

// TestChannel_TryOperations verifies the non-waiting API
func TestChannel_TryOperations(t *testing.T) {
	ch := notify.NewChannel[string](1)

	if _, err := ch.TryReceive(); !errors.Is(err, notify.ErrEmpty) {
		t.Errorf("TryReceive() on empty = %v, want ErrEmpty", err)
	}
	if err := ch.TrySend("x"); err != nil {
		t.Fatalf("TrySend() error = %v", err)
	}
	if err := ch.TrySend("y"); !errors.Is(err, notify.ErrFull) {
		t.Errorf("TrySend() on full = %v, want ErrFull", err)
	}
	if v, err := ch.TryReceive(); err != nil || v != "x" {
		t.Errorf("TryReceive() = %q, %v, want x, nil", v, err)
	}
	if ch.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", ch.Cap())
	}
}
