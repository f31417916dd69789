// Package clock provides the time source used by capture, maneuvers and the
// behavior loop, so that timed sequences can run against virtual time in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is a monotonic time source with a blocking sleep.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a manually driven clock. Sleep advances virtual time and returns
// immediately.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock starting at t0.
func NewFake(t0 time.Time) *Fake {
	return &Fake{now: t0}
}

// Now returns the current virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep advances virtual time by d.
func (f *Fake) Sleep(d time.Duration) { f.Advance(d) }

// Advance moves virtual time forward by d. Negative values are ignored.
func (f *Fake) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Deadline bounds a polling loop to a fixed span starting at a known instant.
type Deadline struct {
	start time.Time
	limit time.Duration
}

// NewDeadline starts a deadline of length limit at c.Now().
func NewDeadline(c Clock, limit time.Duration) Deadline {
	return Deadline{start: c.Now(), limit: limit}
}

// Elapsed reports how long the deadline has been running at now.
func (d Deadline) Elapsed(now time.Time) time.Duration { return now.Sub(d.start) }

// Expired reports whether the limit has passed at now.
func (d Deadline) Expired(now time.Time) bool { return d.Elapsed(now) >= d.limit }

// Remaining returns the time left at now, never negative.
func (d Deadline) Remaining(now time.Time) time.Duration {
	r := d.limit - d.Elapsed(now)
	if r < 0 {
		return 0
	}
	return r
}
