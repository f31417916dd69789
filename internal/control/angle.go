// Package control implements the two closed-loop controllers of the robot:
// a gain-scheduled heading PID fed by the compass and a reactive line PID fed
// by the analog reflectance sensor. Both are pure functions of a measurement,
// a configuration and controller-owned state.
package control

import "math"

// WrapAngle maps an angular difference in degrees to (-180, 180].
func WrapAngle(deg float64) float64 {
	e := math.Mod(deg, 360)
	if e <= -180 {
		e += 360
	} else if e > 180 {
		e -= 360
	}
	return e
}

// NormalizeHeading maps a heading in degrees to [0, 360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h -= 360
	}
	return h
}

// HeadingError is the shortest signed turn from current to setpoint.
func HeadingError(setpoint, current float64) float64 {
	return WrapAngle(setpoint - current)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
