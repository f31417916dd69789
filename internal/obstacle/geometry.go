// Package obstacle measures an obstacle with the servo-mounted range sensor
// and drives the robot around it.
package obstacle

import "math"

// DefaultBeamCorrection is half the sensor's beam divergence in degrees.
const DefaultBeamCorrection = 15.0

// Reading holds the two edge detections of a sweep. Angles are servo degrees,
// larger is further left.
type Reading struct {
	LeftCM     float64
	LeftAngle  float64
	LeftFound  bool
	RightCM    float64
	RightAngle float64
	RightFound bool
}

// Width returns the chord between the two detections by the law of cosines,
// widening each side by beam degrees. It returns -1 and false when a side is
// missing.
func Width(r Reading, beam float64) (float64, bool) {
	if !r.LeftFound || !r.RightFound {
		return -1, false
	}
	delta := math.Abs((r.LeftAngle + beam) - (r.RightAngle - beam))
	rad := delta * math.Pi / 180
	a, b := r.LeftCM, r.RightCM
	c2 := a*a + b*b - 2*a*b*math.Cos(rad)
	return math.Sqrt(math.Abs(c2)), true
}
