// Package dhcpeloop implements the single-threaded cooperative event
// loop of spec.md §4.4: a chronologically-ordered timer list keyed by
// (queue, name), plus fd-readiness dispatch bounded to one event per
// iteration so a hot socket cannot starve timers. Grounded on the
// original implementation's eloop.c (event/timeout linked lists
// serviced by one ppoll loop) translated into the Go idiom of a
// container/heap timer queue serviced by select over channels, since
// Go callbacks are not pointer-comparable the way C function pointers
// are.
package dhcpeloop

import (
	"container/heap"
	"context"
	"time"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// ReadinessEvent is delivered on the channel passed to [Loop.Run] when
// a registered source (the raw link socket, in this client) has data
// to process. Recv is invoked synchronously by the loop — at most one
// per iteration, per spec.md §4.4 — and should return quickly, queuing
// any further work as new timers or by relying on the next readiness
// event.
type ReadinessEvent struct {
	Source string
	Recv   func(now time.Time)
}

// Loop is the timer and readiness dispatcher. It is not safe for
// concurrent use: like the original's single ppoll thread, exactly one
// goroutine must call [Loop.Run], and timer callbacks run on that same
// goroutine.
type Loop struct {
	now Clock

	h     timerHeap
	byKey map[TimerKey]*timerEntry
	seq   uint64
}

// New returns an empty Loop. clock defaults to time.Now if nil.
func New(clock Clock) *Loop {
	if clock == nil {
		clock = time.Now
	}

	return &Loop{
		now:   clock,
		byKey: make(map[TimerKey]*timerEntry),
	}
}

// Now returns the loop's current notion of time.
func (l *Loop) Now() time.Time {
	return l.now()
}

// AddTimer schedules fn to run at when, under key. Adding a timer
// under a key that already exists replaces its deadline and callback
// in place, per spec.md §4.4 "adding a duplicate key replaces the
// existing deadline".
func (l *Loop) AddTimer(key TimerKey, when time.Time, fn TimerFunc) {
	if e, ok := l.byKey[key]; ok {
		e.when = when
		e.fn = fn
		e.seq = l.nextSeq()
		heap.Fix(&l.h, e.index)

		return
	}

	e := &timerEntry{key: key, when: when, fn: fn, seq: l.nextSeq()}
	l.byKey[key] = e
	heap.Push(&l.h, e)
}

func (l *Loop) nextSeq() uint64 {
	l.seq++

	return l.seq
}

// RemoveTimer cancels the timer registered under key, if any. Per
// spec.md §4.4 "removing a timer guarantees its callback will not be
// invoked thereafter".
func (l *Loop) RemoveTimer(key TimerKey) (removed bool) {
	e, ok := l.byKey[key]
	if !ok {
		return false
	}

	heap.Remove(&l.h, e.index)
	delete(l.byKey, key)

	return true
}

// RemoveQueueExcept cancels every timer in queue whose Name is not
// listed in keepNames, per spec.md §4.4 "Deletion ... by (queue,
// argument) with a callback-exclusion list (used to clear every timer
// for an interface except the expiry timer)". It returns the number of
// timers removed.
func (l *Loop) RemoveQueueExcept(queue int, keepNames ...string) (removed int) {
	keep := make(map[string]bool, len(keepNames))
	for _, n := range keepNames {
		keep[n] = true
	}

	var toRemove []TimerKey
	for key := range l.byKey {
		if key.Queue == queue && !keep[key.Name] {
			toRemove = append(toRemove, key)
		}
	}

	for _, key := range toRemove {
		l.RemoveTimer(key)
		removed++
	}

	return removed
}

// Len reports the number of pending timers.
func (l *Loop) Len() int {
	return len(l.h)
}

// NextDeadline returns the soonest pending timer's deadline.
func (l *Loop) NextDeadline() (when time.Time, ok bool) {
	if len(l.h) == 0 {
		return time.Time{}, false
	}

	return l.h[0].when, true
}

// FireDue invokes every timer due at or before now, in chronological
// (then insertion) order, removing each before it runs so a callback
// that re-arms itself under the same key does not self-cancel. It
// returns the number of timers fired.
func (l *Loop) FireDue(now time.Time) (fired int) {
	for len(l.h) > 0 && !l.h[0].when.After(now) {
		e := heap.Pop(&l.h).(*timerEntry)
		delete(l.byKey, e.key)
		e.fn(now)
		fired++
	}

	return fired
}

// Run services timers and readiness events until ctx is canceled. At
// each iteration it blocks until either the soonest timer is due or a
// readiness event arrives on events, processing exactly one of the
// two — never both in the same iteration — before looping, per
// spec.md §4.4's starvation guarantee.
func (l *Loop) Run(ctx context.Context, events <-chan ReadinessEvent) error {
	for {
		var timerC <-chan time.Time
		var tmr *time.Timer

		if when, ok := l.NextDeadline(); ok {
			d := when.Sub(l.now())
			if d < 0 {
				d = 0
			}
			tmr = time.NewTimer(d)
			timerC = tmr.C
		}

		select {
		case <-ctx.Done():
			stopTimer(tmr)

			return ctx.Err()
		case ev := <-events:
			stopTimer(tmr)
			ev.Recv(l.now())
		case fireAt := <-timerC:
			l.FireDue(fireAt)
		}
	}
}

func stopTimer(tmr *time.Timer) {
	if tmr == nil {
		return
	}

	if !tmr.Stop() {
		select {
		case <-tmr.C:
		default:
		}
	}
}
