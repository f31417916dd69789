// Package device defines the hardware the robot core talks to and provides
// Raspberry Pi implementations of it. The control logic only sees the
// interfaces below, so simulated parts (package sim) can stand in for tests.
package device

import (
	"errors"
	"time"
)

var (
	// ErrNoEcho is returned when a range measurement timed out.
	ErrNoEcho = errors.New("device: no echo")
	// ErrOutOfRange is returned for echoes outside the sensor's valid span.
	ErrOutOfRange = errors.New("device: distance out of range")
)

// Side selects a wheel.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Motor drives the two wheels. Percentages are signed in [-100, 100].
type Motor interface {
	Drive(left, right float64)
	Stop()
}

// Servo points the range sensor.
type Servo interface {
	SetAngle(deg float64)
}

// RangeSensor measures distance in centimetres.
type RangeSensor interface {
	MeasureDistance() (float64, error)
}

// OrientationSensor returns raw accelerometer and magnetometer counts.
type OrientationSensor interface {
	ReadAccel() (x, y, z int16, err error)
	ReadMagnetometer() (x, y, z int16, err error)
}

// Reflectance is the downward line sensor.
type Reflectance interface {
	ReadAnalog() uint16
	ReadDigital() bool
}

// Odometry counts wheel encoder pulses.
type Odometry interface {
	PulseCount(s Side) int64
	DistanceCM(s Side) float64
	Reset(s Side)
}

// Line is a newline-delimited text link such as a LoRa modem on a serial port.
type Line interface {
	// ReadLine reads a single line terminated by '\n'.
	// If timeout > 0, it must return after timeout even if no data available.
	ReadLine(timeout time.Duration) (string, error)

	// WriteLine writes s followed by '\n'.
	WriteLine(s string) error

	Close() error
}

// ResetBoth clears both encoders.
func ResetBoth(o Odometry) {
	o.Reset(Left)
	o.Reset(Right)
}

// AveragePulses is the mean pulse count of both wheels.
func AveragePulses(o Odometry) float64 {
	return float64(o.PulseCount(Left)+o.PulseCount(Right)) / 2
}
