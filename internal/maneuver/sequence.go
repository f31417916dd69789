// Package maneuver runs the blocking motion primitives used by the behavior
// loop: timed drive sequences and encoder-measured spins with a timeout
// fallback. Maneuvers always run to completion; they are not cancellable.
package maneuver

import (
	"time"

	"LineBot/internal/clock"
	"LineBot/internal/device"
)

// Step drives the wheels at Left/Right percent for For. A zero command stops.
type Step struct {
	Left  float64       `yaml:"left"`
	Right float64       `yaml:"right"`
	For   time.Duration `yaml:"for"`
}

// Drive builds a moving step.
func Drive(left, right float64, d time.Duration) Step { return Step{left, right, d} }

// Halt builds a stopped step.
func Halt(d time.Duration) Step { return Step{For: d} }

// Run executes steps in order, blocking on clk for each.
func Run(m device.Motor, clk clock.Clock, steps ...Step) {
	for _, s := range steps {
		if s.Left == 0 && s.Right == 0 {
			m.Stop()
		} else {
			m.Drive(s.Left, s.Right)
		}
		clk.Sleep(s.For)
	}
}
