package core

import (
	"fmt"
	"math"
	"sync"
)

// Arena is the fixed, preallocated backing store for every task control
// block. Slots are addressed by stable index, so run and timer queues hold
// indices rather than pointers. An arena is meant to live for the whole
// program; multiple executors may share one.
type Arena struct {
	headers []TaskHeader

	mu       sync.Mutex // guards reservation only
	reserved int
}

// NewArena allocates an arena with room for capacity tasks.
func NewArena(capacity int) *Arena {
	if capacity < 1 {
		capacity = 1
	}
	if capacity >= math.MaxUint32 {
		capacity = math.MaxUint32 - 1
	}
	a := &Arena{headers: make([]TaskHeader, capacity)}
	for i := range a.headers {
		a.headers[i].expiresAt.Store(uint64(InstantMax))
	}
	return a
}

// Cap returns the total number of slots.
func (a *Arena) Cap() int { return len(a.headers) }

// Reserved returns the number of slots handed out to pools.
func (a *Arena) Reserved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserved
}

// NewPool reserves size contiguous slots.
func (a *Arena) NewPool(name string, size int) (*TaskPool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool %q: size %d: %w", name, size, ErrArenaExhausted)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reserved+size > len(a.headers) {
		return nil, fmt.Errorf("pool %q needs %d slots, %d left: %w",
			name, size, len(a.headers)-a.reserved, ErrArenaExhausted)
	}
	p := &TaskPool{arena: a, base: uint32(a.reserved), size: uint32(size), name: name}
	a.reserved += size
	return p, nil
}

// MustNewPool is NewPool for static setup code; it panics on error.
func (a *Arena) MustNewPool(name string, size int) *TaskPool {
	p, err := a.NewPool(name, size)
	if err != nil {
		panic(err)
	}
	return p
}

func (a *Arena) ref(index uint32) TaskRef { return TaskRef{arena: a, index: index} }

// =============================================================================
// TaskPool
// =============================================================================

// TaskPool is a group of slots that run the same kind of task. A pool of size
// one is the usual "static task".
type TaskPool struct {
	arena *Arena
	base  uint32
	size  uint32
	name  string
}

// Name returns the pool name.
func (p *TaskPool) Name() string { return p.name }

// Len returns the number of slots in the pool.
func (p *TaskPool) Len() int { return int(p.size) }

// Slot returns the i-th slot of the pool.
func (p *TaskPool) Slot(i int) TaskRef { return p.arena.ref(p.base + uint32(i)) }

// Spawn claims the first idle slot and binds the continuation built by
// newFuture to it. newFuture is only called when a slot was claimed. If every
// slot is occupied the returned token is poisoned and spawning it yields
// ErrBusy.
func (p *TaskPool) Spawn(newFuture func() Future) SpawnToken {
	return p.claim(newFuture, false)
}

// SpawnLocal is Spawn for continuations that must stay on the executor that
// spawns them; only a context-confined Spawner accepts the token.
func (p *TaskPool) SpawnLocal(newFuture func() Future) SpawnToken {
	return p.claim(newFuture, true)
}

func (p *TaskPool) claim(newFuture func() Future, local bool) SpawnToken {
	for i := uint32(0); i < p.size; i++ {
		ref := p.arena.ref(p.base + i)
		h := ref.header()
		if !h.state.spawn() {
			continue
		}
		h.id = GenerateTaskID()
		h.local = local
		if p.size == 1 {
			h.name = p.name
		} else {
			h.name = fmt.Sprintf("%s#%d", p.name, i)
		}
		h.expiresAt.Store(uint64(InstantMax))
		h.future = newFuture()
		h.claim.Store(uint64(h.id))
		return SpawnToken{task: ref, id: h.id, local: local}
	}
	return SpawnToken{local: local}
}

// Stats returns a snapshot of slot usage.
func (p *TaskPool) Stats() PoolStats {
	stats := PoolStats{Name: p.name, Capacity: int(p.size)}
	for i := uint32(0); i < p.size; i++ {
		if p.arena.ref(p.base + i).State().Spawned() {
			stats.Spawned++
		}
	}
	return stats
}

// =============================================================================
// SpawnToken
// =============================================================================

// SpawnToken is a claimed, not yet running task. The zero token (or one
// returned by a full pool) is poisoned.
type SpawnToken struct {
	task  TaskRef
	id    TaskID
	local bool
}

// Ok reports whether the token still holds its claim: it is not poisoned and
// was neither spawned nor discarded.
func (t SpawnToken) Ok() bool {
	return !t.task.IsZero() && t.task.header().claim.Load() == uint64(t.id)
}

// take consumes the claim. Only the first Spawn or Discard of a token (or of
// any copy of it) succeeds.
func (t SpawnToken) take() bool {
	return !t.task.IsZero() && t.task.header().claim.CompareAndSwap(uint64(t.id), 0)
}

// Task returns the claimed slot, or the zero TaskRef for a poisoned token.
func (t SpawnToken) Task() TaskRef { return t.task }

// Local reports whether the token may only be spawned by a confined Spawner.
func (t SpawnToken) Local() bool { return t.local }

// Discard releases a claimed slot that will not be spawned. It does nothing
// for a poisoned token or one that was already spawned or discarded.
func (t SpawnToken) Discard() {
	if t.take() {
		t.release()
	}
}

// release frees the slot of a claim the caller has taken.
func (t SpawnToken) release() {
	h := t.task.header()
	h.future = nil
	h.state.release()
}
