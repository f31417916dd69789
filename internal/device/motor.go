package device

import (
	"math"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// pwmCycle is the PWM period in counts; duty is a percentage of it.
const pwmCycle = 100

// MotorPins wires an H-bridge: one hardware PWM pin and two direction pins per wheel.
type MotorPins struct {
	LeftPWM, RightPWM  int
	LeftIn1, LeftIn2   int
	RightIn1, RightIn2 int
	Freq               int // Hz
}

type wheel struct {
	pwm, in1, in2 rpio.Pin
}

func (w wheel) set(percent float64) {
	p := math.Max(-100, math.Min(100, percent))
	switch {
	case p > 0:
		w.in1.High()
		w.in2.Low()
	case p < 0:
		w.in1.Low()
		w.in2.High()
	default:
		w.in1.Low()
		w.in2.Low()
	}
	w.pwm.DutyCycle(uint32(math.Round(math.Abs(p))), pwmCycle)
}

// PWMMotor drives two DC motors through rpio. rpio.Open must have succeeded.
type PWMMotor struct {
	mu          sync.Mutex
	left, right wheel
}

// NewPWMMotor configures the pins and leaves the motors stopped.
func NewPWMMotor(p MotorPins) *PWMMotor {
	m := &PWMMotor{
		left:  wheel{rpio.Pin(p.LeftPWM), rpio.Pin(p.LeftIn1), rpio.Pin(p.LeftIn2)},
		right: wheel{rpio.Pin(p.RightPWM), rpio.Pin(p.RightIn1), rpio.Pin(p.RightIn2)},
	}
	for _, w := range []wheel{m.left, m.right} {
		w.pwm.Mode(rpio.Pwm)
		w.pwm.Freq(p.Freq * pwmCycle)
		w.in1.Output()
		w.in2.Output()
	}
	m.Stop()
	return m
}

// Drive implements Motor.
func (m *PWMMotor) Drive(left, right float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.left.set(left)
	m.right.set(right)
}

// Stop implements Motor.
func (m *PWMMotor) Stop() { m.Drive(0, 0) }
