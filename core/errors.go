package core

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when spawning into a slot that is still occupied.
	ErrBusy = errors.New("executor: task slot is busy")

	// ErrNotShareable is returned when a context-confined task is handed to a
	// SendSpawner.
	ErrNotShareable = errors.New("executor: task is confined to its spawning context")

	// ErrArenaExhausted is returned when a pool does not fit in the arena.
	ErrArenaExhausted = errors.New("executor: task arena exhausted")
)

// PreconditionViolation is the panic value used when continuing would break
// the executor's mutual-exclusion assumptions. It is never returned.
type PreconditionViolation struct {
	Op     string
	Reason string
}

func (e *PreconditionViolation) Error() string {
	return fmt.Sprintf("executor: precondition violated in %s: %s", e.Op, e.Reason)
}

func violate(op, format string, args ...any) {
	panic(&PreconditionViolation{Op: op, Reason: fmt.Sprintf(format, args...)})
}
