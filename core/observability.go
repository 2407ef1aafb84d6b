package core

import "time"

// ExecutorStats represents runtime observability state for an executor.
type ExecutorStats struct {
	Name        string
	Spawned     uint64 // tasks ever spawned
	Completed   uint64 // tasks that returned Ready or panicked
	Panicked    uint64
	Resumes     uint64
	Activations uint64 // calls to Poll
	Rejected    int64  // failed spawns
	TimerQueued int
	LastPollAt  time.Time
}

// PoolStats represents slot usage of a task pool.
type PoolStats struct {
	Name     string
	Capacity int
	Spawned  int
}
