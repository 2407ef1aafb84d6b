package core

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// timerKey orders timer entries by deadline, then by slot index so that two
// tasks with the same deadline never collide.
type timerKey struct {
	at    Instant
	index uint32
}

func compareTimerKeys(a, b any) int {
	ka, kb := a.(timerKey), b.(timerKey)
	switch {
	case ka.at < kb.at:
		return -1
	case ka.at > kb.at:
		return 1
	case ka.index < kb.index:
		return -1
	case ka.index > kb.index:
		return 1
	default:
		return 0
	}
}

// TimerQueue holds the tasks of one executor that wait for a deadline. It is
// only touched from that executor's Poll, so it needs no synchronization.
type TimerQueue struct {
	arena *Arena
	tree  *redblacktree.Tree
}

// NewTimerQueue creates an empty timer queue over arena.
func NewTimerQueue(arena *Arena) *TimerQueue {
	return &TimerQueue{
		arena: arena,
		tree:  redblacktree.NewWith(compareTimerKeys),
	}
}

// Update files task under the deadline it registered during its last resume,
// or removes it when it registered none. A task is in the queue at most once.
func (q *TimerQueue) Update(task TaskRef) {
	h := task.header()
	at := Instant(h.expiresAt.Load())

	if h.state.load().TimerQueued() {
		if h.timerKey.at == at {
			return
		}
		q.tree.Remove(h.timerKey)
		h.state.timerDequeue()
	}
	if at == InstantMax {
		return
	}

	h.timerKey = timerKey{at: at, index: task.index}
	q.tree.Put(h.timerKey, task)
	h.state.timerEnqueue()
}

// DequeueExpired removes every task whose deadline is at or before now and
// passes it to onExpired. It returns the number of tasks removed.
func (q *TimerQueue) DequeueExpired(now Instant, onExpired func(TaskRef)) int {
	n := 0
	for {
		node := q.tree.Left()
		if node == nil {
			return n
		}
		key := node.Key.(timerKey)
		if key.at > now {
			return n
		}
		task := node.Value.(TaskRef)
		q.tree.Remove(key)
		task.header().state.timerDequeue()
		// onExpired must not touch this queue.
		onExpired(task)
		n++
	}
}

// NextExpiration returns the earliest pending deadline, or InstantMax.
func (q *TimerQueue) NextExpiration() Instant {
	node := q.tree.Left()
	if node == nil {
		return InstantMax
	}
	return node.Key.(timerKey).at
}

// Len returns the number of queued tasks.
func (q *TimerQueue) Len() int { return q.tree.Size() }
