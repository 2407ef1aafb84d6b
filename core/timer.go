package core

// Timer completes once the executor clock reaches its deadline.
type Timer struct {
	at       Instant
	after    Duration
	armed    bool
	relative bool
}

// At returns a timer that expires at the given instant.
func At(at Instant) *Timer {
	return &Timer{at: at, armed: true}
}

// After returns a timer that expires d ticks after it is first polled.
func After(d Duration) *Timer {
	return &Timer{after: d, relative: true}
}

// Deadline returns the expiry instant, or InstantMax before the first poll of
// an After timer.
func (t *Timer) Deadline() Instant {
	if !t.armed {
		return InstantMax
	}
	return t.at
}

// Poll implements Future.
func (t *Timer) Poll(cx *Context) Poll {
	now := cx.Now()
	if !t.armed {
		t.at = now.Add(t.after)
		t.armed = true
	}
	if now >= t.at {
		return Ready
	}
	cx.ScheduleWake(t.at)
	return Pending
}

// Reset rearms an After timer so that its next poll starts a new period. It
// does nothing for At timers.
func (t *Timer) Reset() {
	if t.relative {
		t.armed = false
	}
}

// Ticker completes once per period, without drift: each deadline is derived
// from the previous one rather than from the time it was observed.
type Ticker struct {
	next   Instant
	period Duration
	armed  bool
}

// Every returns a ticker with the given period, starting at its first poll.
func Every(period Duration) *Ticker {
	if period == 0 {
		period = 1
	}
	return &Ticker{period: period}
}

// Poll implements Future; it is Ready once per elapsed period.
func (t *Ticker) Poll(cx *Context) Poll {
	now := cx.Now()
	if !t.armed {
		t.next = now.Add(t.period)
		t.armed = true
	}
	if now >= t.next {
		t.next = t.next.Add(t.period)
		return Ready
	}
	cx.ScheduleWake(t.next)
	return Pending
}

// yieldNow is Pending exactly once, waking itself so that other ready tasks
// get a turn first.
type yieldNow struct {
	yielded bool
}

// Yield returns a future that gives up the executor for one drain.
func Yield() Future { return &yieldNow{} }

func (y *yieldNow) Poll(cx *Context) Poll {
	if y.yielded {
		return Ready
	}
	y.yielded = true
	cx.Waker().Wake()
	return Pending
}
