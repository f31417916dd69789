// Package sim provides in-memory stand-ins for the robot hardware. They back
// the unit tests and the -sim run mode.
package sim

import (
	"sync"
	"time"

	"LineBot/internal/clock"
	"LineBot/internal/device"
)

// Command is one motor instruction.
type Command struct {
	Left, Right float64
}

// Motor records drive commands.
type Motor struct {
	mu      sync.Mutex
	current Command
	history []Command
}

// Drive implements device.Motor.
func (m *Motor) Drive(left, right float64) {
	m.mu.Lock()
	m.current = Command{left, right}
	m.history = append(m.history, m.current)
	m.mu.Unlock()
}

// Stop implements device.Motor.
func (m *Motor) Stop() { m.Drive(0, 0) }

// Current returns the active command.
func (m *Motor) Current() Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// History returns all commands issued so far.
func (m *Motor) History() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.history...)
}

// Servo remembers its angle.
type Servo struct {
	mu    sync.Mutex
	angle float64
}

// SetAngle implements device.Servo.
func (s *Servo) SetAngle(deg float64) {
	s.mu.Lock()
	s.angle = deg
	s.mu.Unlock()
}

// Angle returns the last commanded angle.
func (s *Servo) Angle() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// Range returns a fixed distance, or a distance depending on the servo angle
// when Profile is set. Negative distances mean no echo.
type Range struct {
	mu      sync.Mutex
	dist    float64
	Servo   *Servo
	Profile func(angle float64) float64
}

// Set changes the fixed distance.
func (r *Range) Set(cm float64) {
	r.mu.Lock()
	r.dist = cm
	r.mu.Unlock()
}

// MeasureDistance implements device.RangeSensor.
func (r *Range) MeasureDistance() (float64, error) {
	r.mu.Lock()
	d := r.dist
	if r.Profile != nil && r.Servo != nil {
		d = r.Profile(r.Servo.Angle())
	}
	r.mu.Unlock()
	if d < 0 {
		return -1, device.ErrNoEcho
	}
	return d, nil
}

// Reflectance returns a settable analog value. The digital output follows a
// played-back interval sequence when one is loaded.
type Reflectance struct {
	mu      sync.Mutex
	raw     uint16
	digital bool

	clk   clock.Clock
	start time.Time
	edges []time.Duration // cumulative offsets of level changes
}

// NewReflectance creates a sensor reading raw on the analog channel.
func NewReflectance(clk clock.Clock, raw uint16) *Reflectance {
	return &Reflectance{clk: clk, raw: raw}
}

// SetAnalog changes the analog reading.
func (r *Reflectance) SetAnalog(raw uint16) {
	r.mu.Lock()
	r.raw = raw
	r.mu.Unlock()
}

// ReadAnalog implements device.Reflectance.
func (r *Reflectance) ReadAnalog() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raw
}

// Play schedules a bar pattern starting now: the digital level toggles once at
// the start and then after every interval.
func (r *Reflectance) Play(intervals []time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = r.clk.Now()
	r.edges = r.edges[:0]
	var at time.Duration
	r.edges = append(r.edges, at)
	for _, d := range intervals {
		at += d
		r.edges = append(r.edges, at)
	}
}

// ReadDigital implements device.Reflectance.
func (r *Reflectance) ReadDigital() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.edges) == 0 {
		return r.digital
	}
	el := r.clk.Now().Sub(r.start)
	toggles := 0
	for _, e := range r.edges {
		if el < e {
			break
		}
		toggles++
	}
	return r.digital != (toggles%2 == 1)
}

// Odometry advances the pulse count of each wheel that is being driven every
// time the count is read, emulating an encoder sampled in a polling loop.
type Odometry struct {
	mu      sync.Mutex
	motor   *Motor
	pulses  [2]int64
	PerRead int64
	Stuck   bool
}

// NewOdometry couples the encoders to motor.
func NewOdometry(m *Motor) *Odometry {
	return &Odometry{motor: m, PerRead: 1}
}

// PulseCount implements device.Odometry.
func (o *Odometry) PulseCount(s device.Side) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	c := o.motor.Current()
	v := c.Left
	if s == device.Right {
		v = c.Right
	}
	if v != 0 && !o.Stuck {
		o.pulses[s] += o.PerRead
	}
	return o.pulses[s]
}

// DistanceCM implements device.Odometry.
func (o *Odometry) DistanceCM(s device.Side) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return float64(o.pulses[s]) * device.CMPerPulse
}

// Reset implements device.Odometry.
func (o *Odometry) Reset(s device.Side) {
	o.mu.Lock()
	o.pulses[s] = 0
	o.mu.Unlock()
}

// IMU returns fixed raw vectors.
type IMU struct {
	mu    sync.Mutex
	Accel [3]int16
	Mag   [3]int16
}

// NewIMU returns a level sensor pointing at magnetic north.
func NewIMU() *IMU {
	return &IMU{Accel: [3]int16{0, 0, 1000}, Mag: [3]int16{300, 0, -400}}
}

// ReadAccel implements device.OrientationSensor.
func (i *IMU) ReadAccel() (int16, int16, int16, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.Accel[0], i.Accel[1], i.Accel[2], nil
}

// ReadMagnetometer implements device.OrientationSensor.
func (i *IMU) ReadMagnetometer() (int16, int16, int16, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.Mag[0], i.Mag[1], i.Mag[2], nil
}
