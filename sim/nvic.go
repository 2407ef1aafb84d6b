// Package sim provides host stand-ins for the hardware an executor runs on:
// an interrupt controller, a time driver with alarms and a manual clock for
// deterministic tests.
package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-executor/arch"
	"github.com/Swind/go-executor/core"
)

type irqLine struct {
	enabled bool
	pending bool
	prio    arch.Priority
	handler func(ctx any)
	ctx     any
}

// NVIC simulates a nested vectored interrupt controller for one core.
//
// The core is whichever goroutine calls Wait, Run or Checkpoint. Handlers only
// ever execute on that goroutine: Pend from any other goroutine marks the line
// pending and kicks the core, which dispatches at its next Checkpoint or while
// waiting. A handler preempts the code that reached the checkpoint, and may
// itself be preempted by a higher-priority line at its own checkpoints.
type NVIC struct {
	mu     sync.Mutex
	lines  []irqLine
	active []arch.Priority
	event  bool

	kick       chan struct{}
	dispatched atomic.Uint64
	logger     core.Logger
}

// NewNVIC creates a controller with n lines, all disabled.
func NewNVIC(n int, logger core.Logger) *NVIC {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &NVIC{
		lines:  make([]irqLine, n),
		kick:   make(chan struct{}, 1),
		logger: logger,
	}
}

func (n *NVIC) line(irq arch.IRQ) *irqLine {
	if int(irq) >= len(n.lines) {
		panic(&core.PreconditionViolation{
			Op:     "NVIC",
			Reason: fmt.Sprintf("irq %d out of range (%d lines)", irq, len(n.lines)),
		})
	}
	return &n.lines[irq]
}

func (n *NVIC) wake() {
	select {
	case n.kick <- struct{}{}:
	default:
	}
}

func (n *NVIC) Enable(irq arch.IRQ) {
	n.mu.Lock()
	l := n.line(irq)
	l.enabled = true
	pending := l.pending
	n.mu.Unlock()
	if pending {
		n.wake()
	}
}

func (n *NVIC) Disable(irq arch.IRQ) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.line(irq).enabled = false
}

func (n *NVIC) SetHandler(irq arch.IRQ, fn func(ctx any)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.line(irq).handler = fn
}

func (n *NVIC) SetHandlerContext(irq arch.IRQ, ctx any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.line(irq).ctx = ctx
}

func (n *NVIC) SetPriority(irq arch.IRQ, prio arch.Priority) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.line(irq).prio = prio
}

func (n *NVIC) Priority(irq arch.IRQ) arch.Priority {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.line(irq).prio
}

// Pend marks irq pending. Safe from any goroutine and from handlers.
func (n *NVIC) Pend(irq arch.IRQ) {
	n.mu.Lock()
	n.line(irq).pending = true
	n.mu.Unlock()
	n.wake()
}

func (n *NVIC) Unpend(irq arch.IRQ) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.line(irq).pending = false
}

func (n *NVIC) IsPending(irq arch.IRQ) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.line(irq).pending
}

// CurrentPriority is the priority of the innermost running handler, or
// PriorityThread outside any handler.
func (n *NVIC) CurrentPriority() arch.Priority {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentLocked()
}

func (n *NVIC) currentLocked() arch.Priority {
	if len(n.active) == 0 {
		return arch.PriorityThread
	}
	return n.active[len(n.active)-1]
}

// nextLocked picks the most urgent enabled pending line above the current
// priority; ties go to the lowest line number.
func (n *NVIC) nextLocked() (arch.IRQ, bool) {
	cur := n.currentLocked()
	best, found := arch.IRQ(0), false
	for i := range n.lines {
		l := &n.lines[i]
		if !l.enabled || !l.pending || l.prio <= cur {
			continue
		}
		if !found || l.prio > n.lines[best].prio {
			best, found = arch.IRQ(i), true
		}
	}
	return best, found
}

// Checkpoint runs every handler that would have preempted the caller by now.
// It must be called on the core goroutine.
func (n *NVIC) Checkpoint() {
	for {
		n.mu.Lock()
		irq, ok := n.nextLocked()
		if !ok {
			n.mu.Unlock()
			return
		}
		l := n.line(irq)
		l.pending = false
		fn, ctx := l.handler, l.ctx
		n.active = append(n.active, l.prio)
		n.mu.Unlock()

		n.dispatch(irq, fn, ctx)
	}
}

func (n *NVIC) dispatch(irq arch.IRQ, fn func(any), ctx any) {
	defer func() {
		n.mu.Lock()
		n.active = n.active[:len(n.active)-1]
		n.mu.Unlock()
	}()
	n.dispatched.Add(1)
	if fn == nil {
		n.logger.Warn("Interrupt without handler", core.F("irq", irq))
		return
	}
	fn(ctx)
}

// Dispatched returns how many handlers have run.
func (n *NVIC) Dispatched() uint64 { return n.dispatched.Load() }

// Signal sets the thread-mode event latch (SEV).
func (n *NVIC) Signal() {
	n.mu.Lock()
	n.event = true
	n.mu.Unlock()
	n.wake()
}

// Wait sleeps the core until the event latch is set (WFE), running interrupt
// handlers as they become pending.
func (n *NVIC) Wait(ctx context.Context) error {
	for {
		n.Checkpoint()

		n.mu.Lock()
		if n.event {
			n.event = false
			n.mu.Unlock()
			return nil
		}
		n.mu.Unlock()

		select {
		case <-n.kick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run services interrupts on the calling goroutine until ctx is done. Use it
// for a core that has no thread-mode executor.
func (n *NVIC) Run(ctx context.Context) error {
	for {
		if err := n.Wait(ctx); err != nil {
			return err
		}
	}
}

var (
	_ arch.InterruptController = (*NVIC)(nil)
	_ arch.Preempter           = (*NVIC)(nil)
	_ arch.EventWaiter         = (*NVIC)(nil)
)
