// Package odometry derives speed and travelled distance from the wheel encoders.
package odometry

import (
	"math"
	"sync"
	"time"

	"LineBot/internal/device"
)

// Limits of the speed estimate.
const (
	MinInterval = 100 * time.Millisecond
	MaxSpeed    = 200.0 // cm/s
)

// Tracker samples an Odometry source and keeps a speed estimate. Distance is
// accumulated across encoder resets done by maneuvers.
type Tracker struct {
	odo device.Odometry

	mu       sync.Mutex
	lastAt   time.Time
	lastDist float64
	total    float64
	speed    float64
}

// NewTracker wraps odo.
func NewTracker(odo device.Odometry) *Tracker {
	return &Tracker{odo: odo}
}

func (t *Tracker) average() float64 {
	return (t.odo.DistanceCM(device.Left) + t.odo.DistanceCM(device.Right)) / 2
}

// Update refreshes the estimate if at least MinInterval has passed since the
// previous sample.
func (t *Tracker) Update(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.average()
	if t.lastAt.IsZero() {
		t.lastAt, t.lastDist = now, d
		return
	}
	dt := now.Sub(t.lastAt)
	if dt < MinInterval {
		return
	}
	delta := d - t.lastDist
	if delta < 0 {
		// encoders were reset since the last sample
		delta = d
	}
	t.total += delta
	t.speed = math.Max(0, math.Min(MaxSpeed, delta/dt.Seconds()))
	t.lastAt, t.lastDist = now, d
}

// Speed returns the latest estimate in cm/s.
func (t *Tracker) Speed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speed
}

// Distance returns the travelled distance in cm.
func (t *Tracker) Distance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Reset zeroes the distance and speed.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.total, t.speed = 0, 0
	t.lastAt = time.Time{}
	t.mu.Unlock()
}
