package sim

import (
	"sort"
	"sync"

	"github.com/Swind/go-executor/core"
)

// ManualClock is virtual time that only moves when told to. Its alarms fire
// synchronously inside Advance, on the caller's goroutine.
type ManualClock struct {
	mu     sync.Mutex
	now    core.Instant
	alarms []*ManualAlarm
}

// NewManualClock returns a clock reading zero.
func NewManualClock() *ManualClock { return &ManualClock{} }

// Now returns the current virtual time.
func (c *ManualClock) Now() core.Instant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewAlarm creates an alarm driven by this clock.
func (c *ManualClock) NewAlarm() *ManualAlarm {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := &ManualAlarm{clock: c, at: core.InstantMax}
	c.alarms = append(c.alarms, a)
	return a
}

// Advance moves time forward by d and fires every alarm that came due, in
// deadline order.
func (c *ManualClock) Advance(d core.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due []*ManualAlarm
	for _, a := range c.alarms {
		if a.at != core.InstantMax && a.at <= now {
			due = append(due, a)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	type firing struct {
		fn  func(any)
		ctx any
	}
	fire := make([]firing, 0, len(due))
	for _, a := range due {
		a.at = core.InstantMax
		a.fired++
		fire = append(fire, firing{a.fn, a.ctx})
	}
	c.mu.Unlock()

	for _, f := range fire {
		if f.fn != nil {
			f.fn(f.ctx)
		}
	}
}

// AdvanceToNextAlarm jumps to the earliest armed deadline and fires it. It
// reports false, without moving time, when no alarm is armed.
func (c *ManualClock) AdvanceToNextAlarm() bool {
	c.mu.Lock()
	next := core.InstantMax
	for _, a := range c.alarms {
		if a.at < next {
			next = a.at
		}
	}
	now := c.now
	c.mu.Unlock()

	if next == core.InstantMax {
		return false
	}
	c.Advance(next.Sub(now))
	return true
}

// ManualAlarm is an alarm on a ManualClock.
type ManualAlarm struct {
	clock *ManualClock
	at    core.Instant
	fn    func(any)
	ctx   any
	fired int
}

// Set arms the alarm; see core.Alarm.
func (a *ManualAlarm) Set(at core.Instant) bool {
	a.clock.mu.Lock()
	defer a.clock.mu.Unlock()
	if at != core.InstantMax && at <= a.clock.now {
		a.at = core.InstantMax
		return false
	}
	a.at = at
	return true
}

// SetCallback installs the function invoked when the alarm fires.
func (a *ManualAlarm) SetCallback(fn func(ctx any), ctx any) {
	a.clock.mu.Lock()
	defer a.clock.mu.Unlock()
	a.fn, a.ctx = fn, ctx
}

// At returns the armed deadline, or InstantMax.
func (a *ManualAlarm) At() core.Instant {
	a.clock.mu.Lock()
	defer a.clock.mu.Unlock()
	return a.at
}

// Fired returns how many times the alarm has fired.
func (a *ManualAlarm) Fired() int {
	a.clock.mu.Lock()
	defer a.clock.mu.Unlock()
	return a.fired
}

var _ core.Alarm = (*ManualAlarm)(nil)
