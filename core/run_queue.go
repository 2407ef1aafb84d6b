package core

import "sync/atomic"

// RunQueue is a lock-free, intrusive stack of ready tasks.
//
// Any goroutine may Enqueue at any time. DequeueAll is single-consumer: only
// the owning executor calls it, and never concurrently with itself. A drain
// detaches the whole list in one atomic swap, so a push that loses the race
// with the swap lands in the next drain.
type RunQueue struct {
	arena *Arena
	head  atomic.Uint32 // index+1 of the first task, 0 when empty
}

// NewRunQueue creates an empty run queue over arena.
func NewRunQueue(arena *Arena) *RunQueue {
	return &RunQueue{arena: arena}
}

// Enqueue pushes task and reports whether the queue was empty before the push.
// The caller must own the task's RunQueued bit.
func (q *RunQueue) Enqueue(task TaskRef) bool {
	h := task.header()
	link := task.index + 1
	for {
		prev := q.head.Load()
		h.runQueueNext.Store(prev)
		if q.head.CompareAndSwap(prev, link) {
			return prev == 0
		}
	}
}

// IsEmpty reports whether the queue currently holds no task.
func (q *RunQueue) IsEmpty() bool { return q.head.Load() == 0 }

// DequeueAll takes the current contents and calls fn for each task. Tasks
// enqueued while fn runs, including the task being visited, go to the next
// drain. It returns the number of tasks visited.
func (q *RunQueue) DequeueAll(fn func(TaskRef)) int {
	next := q.head.Swap(0)
	n := 0
	for next != 0 {
		task := q.arena.ref(next - 1)
		// Read the link first: fn may re-enqueue task and overwrite it.
		next = task.header().runQueueNext.Load()
		fn(task)
		n++
	}
	return n
}
