// Package imu turns raw accelerometer and magnetometer counts into a tilt
// compensated compass heading.
package imu

import (
	"fmt"
	"math"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"

	"LineBot/internal/clock"
	"LineBot/internal/control"
	"LineBot/internal/device"
)

// DefaultWindow is the accelerometer smoothing window.
const DefaultWindow = 10

// Orientation is expressed in degrees. Yaw is in [0, 360).
type Orientation struct {
	Pitch float64
	Roll  float64
	Yaw   float64
}

// Compass reads an orientation sensor and smooths the accelerometer with a
// moving average before computing tilt.
type Compass struct {
	sensor     device.OrientationSensor
	ax, ay, az *movingaverage.MovingAverage
	// Offset is added to the computed yaw (magnetic declination, mounting).
	Offset float64
}

// NewCompass creates a Compass averaging window accelerometer samples.
func NewCompass(s device.OrientationSensor, window int) *Compass {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Compass{
		sensor: s,
		ax:     movingaverage.New(window),
		ay:     movingaverage.New(window),
		az:     movingaverage.New(window),
	}
}

// Tilt returns pitch and roll in radians from a gravity vector.
func Tilt(ax, ay, az float64) (pitch, roll float64) {
	pitch = math.Atan2(-ax, math.Sqrt(ay*ay+az*az))
	roll = math.Atan2(ay, az)
	return pitch, roll
}

// Yaw projects the magnetic vector onto the horizontal plane and returns the
// heading in degrees, [0, 360).
func Yaw(mx, my, mz, pitch, roll float64) float64 {
	sp, cp := math.Sincos(pitch)
	sr, cr := math.Sincos(roll)
	hx := mx*cp + mz*sp
	hy := mx*sr*sp + my*cr - mz*sr*cp
	return control.NormalizeHeading(math.Atan2(-hy, hx) * 180 / math.Pi)
}

// Read samples the sensor once.
func (c *Compass) Read() (Orientation, error) {
	x, y, z, err := c.sensor.ReadAccel()
	if err != nil {
		return Orientation{}, fmt.Errorf("read accel: %w", err)
	}
	c.ax.Add(float64(x))
	c.ay.Add(float64(y))
	c.az.Add(float64(z))

	mx, my, mz, err := c.sensor.ReadMagnetometer()
	if err != nil {
		return Orientation{}, fmt.Errorf("read magnetometer: %w", err)
	}
	pitch, roll := Tilt(c.ax.Avg(), c.ay.Avg(), c.az.Avg())
	yaw := Yaw(float64(mx), float64(my), float64(mz), pitch, roll)
	return Orientation{
		Pitch: pitch * 180 / math.Pi,
		Roll:  roll * 180 / math.Pi,
		Yaw:   control.NormalizeHeading(yaw + c.Offset),
	}, nil
}

// Heading returns the yaw only.
func (c *Compass) Heading() (float64, error) {
	o, err := c.Read()
	return o.Yaw, err
}

// CalibrateSetpoint averages n headings taken interval apart. Headings are
// averaged on the unit circle so samples straddling north do not cancel out.
func (c *Compass) CalibrateSetpoint(clk clock.Clock, n int, interval time.Duration) (float64, error) {
	if n <= 0 {
		n = 1
	}
	var sx, sy float64
	got := 0
	for i := 0; i < n; i++ {
		yaw, err := c.Heading()
		if err == nil {
			s, co := math.Sincos(yaw * math.Pi / 180)
			sx += co
			sy += s
			got++
		}
		clk.Sleep(interval)
	}
	if got == 0 {
		return 0, fmt.Errorf("calibrate heading: no samples out of %d", n)
	}
	return control.NormalizeHeading(math.Atan2(sy, sx) * 180 / math.Pi), nil
}
