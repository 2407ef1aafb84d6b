package core

import (
	"fmt"
	"math"
	"time"
)

// DefaultTickHz is the tick rate used when a clock does not specify one.
const DefaultTickHz uint64 = 1_000_000

// Instant is a point in time measured in ticks of the time driver.
type Instant uint64

// InstantMax means "no deadline".
const InstantMax Instant = math.MaxUint64

// Duration is a span of ticks.
type Duration uint64

// Add returns i+d, saturating at InstantMax.
func (i Instant) Add(d Duration) Instant {
	if uint64(InstantMax)-uint64(i) < uint64(d) {
		return InstantMax
	}
	return i + Instant(d)
}

// Sub returns i-j, or zero if j is after i.
func (i Instant) Sub(j Instant) Duration {
	if j >= i {
		return 0
	}
	return Duration(i - j)
}

func (i Instant) String() string {
	if i == InstantMax {
		return "never"
	}
	return fmt.Sprintf("t+%d", uint64(i))
}

// DurationFromStd converts d into ticks at the given tick rate, rounding up
// so that a timer never fires early.
func DurationFromStd(d time.Duration, hz uint64) Duration {
	if d <= 0 {
		return 0
	}
	if hz == 0 {
		hz = DefaultTickHz
	}
	ns := uint64(d)
	whole := ns / uint64(time.Second) * hz
	frac := (ns%uint64(time.Second)*hz + uint64(time.Second) - 1) / uint64(time.Second)
	return Duration(whole + frac)
}

// Std converts d back to a time.Duration at the given tick rate.
func (d Duration) Std(hz uint64) time.Duration {
	if hz == 0 {
		hz = DefaultTickHz
	}
	secs := uint64(d) / hz
	rem := uint64(d) % hz
	return time.Duration(secs)*time.Second + time.Duration(rem*uint64(time.Second)/hz)
}
