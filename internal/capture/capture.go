// Package capture accumulates inter-edge intervals from a digital reflectance
// sensor into frames for the barcode decoder.
//
// A frame starts on the first edge after idle (that edge only sets the time
// origin), grows by one interval per edge and is finalized either when the
// sensor has been quiet long enough with enough intervals recorded, or when
// the buffer is full. A finalized frame is handed out exactly once by Take.
package capture

import (
	"sync"
	"time"

	"LineBot/internal/clock"
)

// MaxTransitions is the default buffer capacity.
const MaxTransitions = 256

// Options tunes frame finalization.
type Options struct {
	Capacity     int
	Quiet        time.Duration
	MinDurations int
}

// DefaultOptions returns a 256 interval buffer, 50ms quiet period and a minimum
// of 9 intervals (one Code 39 symbol).
func DefaultOptions() Options {
	return Options{Capacity: MaxTransitions, Quiet: 50 * time.Millisecond, MinDurations: 9}
}

// Frame is a finalized, caller-owned copy of the captured intervals.
type Frame struct {
	Durations []time.Duration
	Start     time.Duration // timestamp of the origin edge
	End       time.Duration // timestamp of the last edge
}

// Span is the time between the first and the last edge of the frame.
func (f Frame) Span() time.Duration { return f.End - f.Start }

// Capture is the shared edge buffer. RecordEdge may be called from an edge
// handler goroutine while the watchers poll readiness; every critical section
// is constant time and the record path never allocates.
type Capture struct {
	clk   clock.Clock
	epoch time.Time
	opts  Options

	mu        sync.Mutex
	buf       []time.Duration
	count     int
	first     time.Duration
	last      time.Duration
	capturing bool
	ready     bool
	extOffset time.Duration // external clock to capture time base
}

// New creates a Capture whose timestamps are offsets from clk.Now() at
// construction. Zero option fields fall back to DefaultOptions.
func New(clk clock.Clock, opts Options) *Capture {
	def := DefaultOptions()
	if opts.Capacity <= 0 {
		opts.Capacity = def.Capacity
	}
	if opts.Quiet <= 0 {
		opts.Quiet = def.Quiet
	}
	if opts.MinDurations <= 0 {
		opts.MinDurations = def.MinDurations
	}
	return &Capture{
		clk:   clk,
		epoch: clk.Now(),
		opts:  opts,
		buf:   make([]time.Duration, opts.Capacity),
	}
}

// Now returns the current timestamp on the capture's time base.
func (c *Capture) Now() time.Duration { return c.clk.Now().Sub(c.epoch) }

// Edge records an edge at the current time.
func (c *Capture) Edge() { c.RecordEdge(c.Now()) }

// RecordEdge appends the interval since the previous edge, or opens a new frame
// when idle. Edges arriving while a finalized frame awaits consumption are
// dropped.
func (c *Capture) RecordEdge(ts time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordLocked(ts)
}

// RecordEdgeAt records an edge stamped by another monotonic clock, such as
// the kernel time of a GPIO line event. The clock is anchored to the capture
// time base at the first edge of each frame, so intervals inside a frame are
// exact and handler latency only shifts the frame as a whole.
func (c *Capture) RecordEdgeAt(ext time.Duration) {
	now := c.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing && !c.ready {
		c.extOffset = now - ext
	}
	c.recordLocked(ext + c.extOffset)
}

func (c *Capture) recordLocked(ts time.Duration) {
	if c.ready {
		return
	}
	if !c.capturing {
		c.capturing = true
		c.count = 0
		c.first = ts
		c.last = ts
		return
	}
	if ts < c.last {
		return
	}
	c.buf[c.count] = ts - c.last
	c.count++
	c.last = ts
	if c.count >= len(c.buf) {
		c.capturing = false
		c.ready = true
	}
}

// PollReadiness reports whether a frame is ready at time now, finalizing the
// current frame when the quiet period has elapsed with enough intervals. A
// quiet frame that is too short is discarded.
func (c *Capture) PollReadiness(now time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return true
	}
	if !c.capturing || now-c.last <= c.opts.Quiet {
		return false
	}
	if c.count >= c.opts.MinDurations {
		c.capturing = false
		c.ready = true
		return true
	}
	c.capturing = false
	c.count = 0
	return false
}

// Ready is PollReadiness at the current time.
func (c *Capture) Ready() bool { return c.PollReadiness(c.Now()) }

// Take copies out a ready frame and resets the buffer. It returns false when no
// frame is ready.
func (c *Capture) Take() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return Frame{}, false
	}
	f := Frame{
		Durations: append([]time.Duration(nil), c.buf[:c.count]...),
		Start:     c.first,
		End:       c.last,
	}
	c.resetLocked()
	return f, true
}

// Reset discards any partial or finalized frame.
func (c *Capture) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
}

func (c *Capture) resetLocked() {
	c.count = 0
	c.capturing = false
	c.ready = false
}

// Capturing reports whether a frame is being recorded.
func (c *Capture) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// Len returns the number of intervals recorded in the current frame.
func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
