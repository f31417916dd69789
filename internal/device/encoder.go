package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Wheel geometry: 6.5 cm wheels, 20 slots per revolution.
const (
	WheelDiameterCM = 6.5
	SlotsPerRev     = 20
	CMPerPulse      = math.Pi * WheelDiameterCM / SlotsPerRev
)

// Pulses closer than MinPulse are contact bounce.
const MinPulse = time.Millisecond

// Encoders counts slotted-disc pulses on two GPIO lines using kernel edge events.
type Encoders struct {
	lines [2]*gpiocdev.Line

	mu     sync.Mutex
	counts [2]int64
	last   [2]time.Duration
	seen   [2]bool
}

// NewEncoders requests left and right offsets on chip for rising edges.
func NewEncoders(chip string, left, right int) (*Encoders, error) {
	e := &Encoders{}
	for i, off := range []int{left, right} {
		side := Side(i)
		l, err := gpiocdev.RequestLine(chip, off,
			gpiocdev.WithPullUp,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) { e.pulse(side, evt.Timestamp) }))
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("request %s encoder line %s/%d: %w", side, chip, off, err)
		}
		e.lines[i] = l
	}
	return e, nil
}

func (e *Encoders) pulse(s Side, ts time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seen[s] && ts-e.last[s] < MinPulse {
		return
	}
	e.seen[s] = true
	e.last[s] = ts
	e.counts[s]++
}

// PulseCount implements Odometry.
func (e *Encoders) PulseCount(s Side) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[s]
}

// DistanceCM implements Odometry.
func (e *Encoders) DistanceCM(s Side) float64 {
	return float64(e.PulseCount(s)) * CMPerPulse
}

// Reset implements Odometry.
func (e *Encoders) Reset(s Side) {
	e.mu.Lock()
	e.counts[s] = 0
	e.mu.Unlock()
}

// Close releases both lines.
func (e *Encoders) Close() error {
	var first error
	for _, l := range e.lines {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// EdgeSource calls fn with the kernel timestamp of both edges of a GPIO
// line. It is the interrupt driven feed of the barcode capture buffer.
type EdgeSource struct {
	line *gpiocdev.Line
}

// NewEdgeSource requests offset on chip with both edges enabled.
func NewEdgeSource(chip string, offset int, fn func(ts time.Duration)) (*EdgeSource, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) { fn(evt.Timestamp) }))
	if err != nil {
		return nil, fmt.Errorf("request edge line %s/%d: %w", chip, offset, err)
	}
	return &EdgeSource{line: l}, nil
}

// Close releases the line.
func (s *EdgeSource) Close() error { return s.line.Close() }
