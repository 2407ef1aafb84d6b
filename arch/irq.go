// Package arch binds the platform-independent core.Executor to an execution
// context: thread mode (a loop that sleeps on an event) or an interrupt line
// of a given priority.
package arch

import "context"

// IRQ is an interrupt line number.
type IRQ uint16

// Priority is an interrupt priority. Larger values are more urgent; thread
// mode runs at PriorityThread and is preempted by every enabled interrupt.
type Priority uint8

// PriorityThread is the priority of code not running in any interrupt.
const PriorityThread Priority = 0

// InterruptController is the slice of an NVIC-like controller an interrupt
// executor needs.
type InterruptController interface {
	Enable(irq IRQ)
	Disable(irq IRQ)

	// SetHandler installs fn as the line's handler; it is called with the
	// context set by SetHandlerContext.
	SetHandler(irq IRQ, fn func(ctx any))
	SetHandlerContext(irq IRQ, ctx any)

	SetPriority(irq IRQ, prio Priority)
	Priority(irq IRQ) Priority

	// Pend marks the line pending. Safe from any goroutine or handler.
	Pend(irq IRQ)
	Unpend(irq IRQ)
	IsPending(irq IRQ) bool

	// CurrentPriority is the priority of the context the caller runs in.
	CurrentPriority() Priority
}

// Preempter is implemented by controllers that deliver interrupts at explicit
// points of the running code. Executors call Checkpoint before every resume.
type Preempter interface {
	Checkpoint()
}

// EventWaiter is the wake/sleep pair of thread mode: Signal sets a latch from
// any context, Wait sleeps until it is set and clears it.
type EventWaiter interface {
	Signal()
	Wait(ctx context.Context) error
}
