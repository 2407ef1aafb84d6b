package core

import (
	"strings"
	"sync/atomic"
)

// TaskState is the bit set describing where a task currently is.
type TaskState uint32

const (
	// StateSpawned: the slot holds a live continuation.
	StateSpawned TaskState = 1 << iota
	// StateRunQueued: the task is in (or being pushed into) a run queue.
	StateRunQueued
	// StateTimerQueued: the task is in its executor's timer queue.
	StateTimerQueued
)

// StateIdle is the state of an unspawned, reusable slot.
const StateIdle TaskState = 0

func (s TaskState) Spawned() bool     { return s&StateSpawned != 0 }
func (s TaskState) RunQueued() bool   { return s&StateRunQueued != 0 }
func (s TaskState) TimerQueued() bool { return s&StateTimerQueued != 0 }

func (s TaskState) String() string {
	if s == StateIdle {
		return "Idle"
	}
	var parts []string
	if s.Spawned() {
		parts = append(parts, "Spawned")
	}
	if s.RunQueued() {
		parts = append(parts, "RunQueued")
	}
	if s.TimerQueued() {
		parts = append(parts, "TimerQueued")
	}
	return strings.Join(parts, "|")
}

// taskState is the atomic state register of a TaskHeader.
//
// Transition table (every transition is a single atomic op or a CAS retry loop;
// nothing blocks):
//
//	spawn        Idle                      -> Spawned|RunQueued   CAS from exactly 0, fails => Busy
//	runEnqueue   Spawned, !RunQueued       -> +RunQueued          CAS loop, false if already queued or not spawned
//	runDequeue   any                       -> -RunQueued          returns whether Spawned was set
//	despawn      Spawned                   -> -Spawned            slot is free once RunQueued is clear too
//	timerEnqueue Spawned                   -> +TimerQueued        executor only
//	timerDequeue TimerQueued               -> -TimerQueued        executor only
type taskState struct {
	v atomic.Uint32
}

func (s *taskState) load() TaskState { return TaskState(s.v.Load()) }

func (s *taskState) spawn() bool {
	return s.v.CompareAndSwap(uint32(StateIdle), uint32(StateSpawned|StateRunQueued))
}

func (s *taskState) runEnqueue() bool {
	for {
		cur := s.v.Load()
		st := TaskState(cur)
		if st.RunQueued() || !st.Spawned() {
			return false
		}
		if s.v.CompareAndSwap(cur, cur|uint32(StateRunQueued)) {
			return true
		}
	}
}

func (s *taskState) runDequeue() bool {
	old := s.v.And(^uint32(StateRunQueued))
	return TaskState(old).Spawned()
}

func (s *taskState) despawn() {
	s.v.And(^uint32(StateSpawned))
}

// release undoes a claim that was never handed to an executor.
func (s *taskState) release() {
	s.v.And(^uint32(StateSpawned | StateRunQueued))
}

func (s *taskState) timerEnqueue() {
	s.v.Or(uint32(StateTimerQueued))
}

func (s *taskState) timerDequeue() {
	s.v.And(^uint32(StateTimerQueued))
}
