package executor

import (
	"github.com/Swind/go-executor/arch"
	"github.com/Swind/go-executor/core"
)

// Re-export commonly used types from core and arch for convenience.
// This allows users to import only the executor package for most use cases.

// Future is a resumable computation
type Future = core.Future

// FutureFunc adapts a function to Future
type FutureFunc = core.FutureFunc

// Poll is the result of resuming a Future
type Poll = core.Poll

// Context is passed to Future.Poll
type Context = core.Context

// Waker re-queues one task
type Waker = core.Waker

// Spawner and SendSpawner place tasks on an executor
type Spawner = core.Spawner
type SendSpawner = core.SendSpawner

// SpawnToken is a claimed, not yet running task
type SpawnToken = core.SpawnToken

// TaskPool is a fixed group of task slots
type TaskPool = core.TaskPool

// Instant and Duration are measured in ticks
type Instant = core.Instant
type Duration = core.Duration

// Priority of an interrupt executor
type Priority = arch.Priority

// IRQ is an interrupt line number
type IRQ = arch.IRQ

// Poll results
const (
	Ready   = core.Ready
	Pending = core.Pending
)

// Errors returned by spawners
var (
	ErrBusy         = core.ErrBusy
	ErrNotShareable = core.ErrNotShareable
)

// Timer futures and combinators
var (
	At          = core.At
	After       = core.After
	Every       = core.Every
	Yield       = core.Yield
	Race        = core.Race
	WithTimeout = core.WithTimeout
	Sequence    = core.Sequence
	Loop        = core.Loop
)
