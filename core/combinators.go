package core

// RaceFuture completes as soon as either of its futures does. The loser is
// simply not polled again.
type RaceFuture struct {
	a, b   Future
	winner int
}

// Race returns a future that polls a, then b, until one of them is Ready.
func Race(a, b Future) *RaceFuture {
	return &RaceFuture{a: a, b: b}
}

// Poll implements Future.
func (r *RaceFuture) Poll(cx *Context) Poll {
	if r.winner != 0 {
		return Ready
	}
	if r.a.Poll(cx) == Ready {
		r.winner = 1
		return Ready
	}
	if r.b.Poll(cx) == Ready {
		r.winner = 2
		return Ready
	}
	return Pending
}

// Winner is 1 or 2 once the race is over, 0 before.
func (r *RaceFuture) Winner() int { return r.winner }

// TimeoutFuture races a future against a timer.
type TimeoutFuture struct {
	race *RaceFuture
}

// WithTimeout returns a future that completes when f does or d ticks after
// the first poll, whichever comes first.
func WithTimeout(f Future, d Duration) *TimeoutFuture {
	return &TimeoutFuture{race: Race(f, After(d))}
}

// Poll implements Future.
func (t *TimeoutFuture) Poll(cx *Context) Poll { return t.race.Poll(cx) }

// TimedOut reports whether the timer won.
func (t *TimeoutFuture) TimedOut() bool { return t.race.Winner() == 2 }

// sequence runs futures one after another.
type sequence struct {
	steps []Future
	i     int
}

// Sequence returns a future that completes after every step completed in
// order. A step that becomes Ready lets the next one start in the same resume.
func Sequence(steps ...Future) Future {
	return &sequence{steps: steps}
}

func (s *sequence) Poll(cx *Context) Poll {
	for s.i < len(s.steps) {
		if s.steps[s.i].Poll(cx) == Pending {
			return Pending
		}
		s.steps[s.i] = nil
		s.i++
	}
	return Ready
}

// Loop returns a future that runs body to completion, then restarts it from a
// fresh newBody() while cont reports true.
func Loop(newBody func() Future, cont func() bool) Future {
	return &loop{newBody: newBody, cont: cont}
}

type loop struct {
	newBody func() Future
	cont    func() bool
	body    Future
}

func (l *loop) Poll(cx *Context) Poll {
	for {
		if l.body == nil {
			if !l.cont() {
				return Ready
			}
			l.body = l.newBody()
		}
		if l.body.Poll(cx) == Pending {
			return Pending
		}
		l.body = nil
	}
}
