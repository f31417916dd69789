package capture

import (
	"context"
	"time"
)

// DigitalInput is a binary line sensor.
type DigitalInput interface {
	ReadDigital() bool
}

// Poller feeds a Capture from a tight polling loop on a digital input, for
// hardware where edge interrupts are not available.
type Poller struct {
	cap      *Capture
	in       DigitalInput
	interval time.Duration
	level    bool
	primed   bool
}

// NewPoller creates a Poller sampling in every interval (default 200us).
func NewPoller(c *Capture, in DigitalInput, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 200 * time.Microsecond
	}
	return &Poller{cap: c, in: in, interval: interval}
}

// Sample reads the input once and records an edge on a level change.
// It reports whether an edge was recorded.
func (p *Poller) Sample() bool {
	v := p.in.ReadDigital()
	if !p.primed {
		p.level, p.primed = v, true
		return false
	}
	if v == p.level {
		return false
	}
	p.level = v
	p.cap.Edge()
	return true
}

// Run samples until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			p.Sample()
		}
	}
}
