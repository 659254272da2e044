// Package clock provides the Clock collaborator: a thin wrapper over the
// runtime timer for production and a manually advanced fake for tests.
// Every scheduled negotiation transition goes through this interface so
// tests can drive timeouts deterministically.
package clock

import (
	"sort"
	"sync"
	"time"

	"github.com/boomtrade/boomtrade/internal/domain"
)

// ─── Real Clock ─────────────────────────────────────────────────────────────

// Real implements domain.Clock with the runtime's wall clock and timers.
type Real struct{}

// New returns the production clock.
func New() Real { return Real{} }

// Now returns the current wall-clock time.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc schedules fn after d on a runtime timer.
func (Real) AfterFunc(d time.Duration, fn func()) domain.Timer {
	return time.AfterFunc(d, fn)
}

// ─── Fake Clock ─────────────────────────────────────────────────────────────

// Fake is a deterministic clock for tests. Time only moves when Advance is
// called; due timers fire synchronously inside Advance, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

// NewFake returns a fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc registers fn to fire when the fake clock reaches now+d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) domain.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Stop cancels the timer if it has not fired yet.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, firing every due timer in deadline
// order. Callbacks run without the clock lock held, so they may schedule
// or stop other timers; timers scheduled inside a callback still fire if
// their deadline falls within the advanced window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		t := f.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// nextDue pops the earliest unstopped timer with deadline <= target and
// moves the clock to its deadline. Returns nil when none remain.
func (f *Fake) nextDue(target time.Time) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()

	live := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	f.timers = live

	sort.SliceStable(f.timers, func(i, j int) bool {
		return f.timers[i].deadline.Before(f.timers[j].deadline)
	})

	for _, t := range f.timers {
		if !t.deadline.After(target) {
			t.fired = true
			if t.deadline.After(f.now) {
				f.now = t.deadline
			}
			return t
		}
	}
	return nil
}

// PendingTimers reports how many timers are armed but not yet fired.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
