package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-executor/core"
)

// ErrNoAlarm is returned when every alarm of a driver is already allocated.
var ErrNoAlarm = errors.New("sim: no alarm available")

// Driver is a real-time time driver: a monotonic tick counter derived from the
// host clock and a fixed number of alarm channels.
type Driver struct {
	start     time.Time
	hz        uint64
	maxAlarms int
	logger    core.Logger

	mu     sync.Mutex
	alarms []*Alarm
}

// NewDriver starts a time driver ticking at hz with room for maxAlarms alarms.
func NewDriver(hz uint64, maxAlarms int, logger core.Logger) *Driver {
	if hz == 0 {
		hz = core.DefaultTickHz
	}
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &Driver{start: time.Now(), hz: hz, maxAlarms: maxAlarms, logger: logger}
}

// Hz returns the tick rate.
func (d *Driver) Hz() uint64 { return d.hz }

// Now returns the ticks elapsed since the driver started, rounded down.
func (d *Driver) Now() core.Instant {
	ns := uint64(time.Since(d.start))
	sec := uint64(time.Second)
	return core.Instant(ns/sec*d.hz + ns%sec*d.hz/sec)
}

// AllocateAlarm hands out the next free alarm. Alarms are never returned to
// the driver; Close stops them all.
func (d *Driver) AllocateAlarm() (*Alarm, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.alarms) >= d.maxAlarms {
		return nil, ErrNoAlarm
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Alarm{
		driver: d,
		id:     len(d.alarms),
		at:     core.InstantMax,
		wakeup: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	d.alarms = append(d.alarms, a)
	go a.loop()
	return a, nil
}

// Close stops every allocated alarm and waits for their goroutines.
func (d *Driver) Close() {
	d.mu.Lock()
	alarms := append([]*Alarm(nil), d.alarms...)
	d.mu.Unlock()
	for _, a := range alarms {
		a.Stop()
	}
}

// Alarm is one alarm channel of a Driver. Its callback runs on the alarm's own
// goroutine, like an interrupt handler on a different core would.
type Alarm struct {
	driver *Driver
	id     int

	mu      sync.Mutex
	at      core.Instant
	fn      func(ctx any)
	fnCtx   any
	wakeup  chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped sync.Once
	fired   atomic.Uint64
}

// ID returns the alarm's index in its driver.
func (a *Alarm) ID() int { return a.id }

// SetCallback installs the function invoked when the alarm fires.
func (a *Alarm) SetCallback(fn func(ctx any), ctx any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fn, a.fnCtx = fn, ctx
}

// Set arms the alarm for at. It returns false, leaving the alarm disarmed,
// if at has already passed. Set(InstantMax) disarms.
func (a *Alarm) Set(at core.Instant) bool {
	ok := true
	a.mu.Lock()
	if at != core.InstantMax && at <= a.driver.Now() {
		at, ok = core.InstantMax, false
	}
	a.at = at
	a.mu.Unlock()

	select {
	case a.wakeup <- struct{}{}:
	default:
	}
	return ok
}

// Fired returns how many times the callback has run.
func (a *Alarm) Fired() uint64 { return a.fired.Load() }

// Stop ends the alarm goroutine. The alarm never fires afterwards.
func (a *Alarm) Stop() {
	a.stopped.Do(func() {
		a.cancel()
		<-a.done
	})
}

func (a *Alarm) loop() {
	defer close(a.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		if wait, armed := a.untilDue(); armed {
			timer.Reset(wait)
		}

		select {
		case <-a.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			a.fireIfDue()
		case <-a.wakeup:
			// Deadline changed, need to recalculate
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

func (a *Alarm) untilDue() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.at == core.InstantMax {
		return 0, false
	}
	now := a.driver.Now()
	if a.at <= now {
		return 0, true
	}
	return a.at.Sub(now).Std(a.driver.hz), true
}

func (a *Alarm) fireIfDue() {
	a.mu.Lock()
	if a.at == core.InstantMax || a.at > a.driver.Now() {
		a.mu.Unlock()
		return
	}
	a.at = core.InstantMax
	fn, ctx := a.fn, a.fnCtx
	a.mu.Unlock()

	a.fired.Add(1)
	if fn != nil {
		fn(ctx)
	}
}

var _ core.Alarm = (*Alarm)(nil)
var _ core.Clock = (*Driver)(nil)
