package obstacle

import (
	"time"

	"LineBot/internal/clock"
	"LineBot/internal/device"
)

// ScanConfig describes the servo sweep.
type ScanConfig struct {
	From   float64       `yaml:"from"`
	To     float64       `yaml:"to"`
	Step   float64       `yaml:"step"`
	Settle time.Duration `yaml:"settle"`
	MinCM  float64       `yaml:"min_cm"` // readings must be above MinCM
	MaxCM  float64       `yaml:"max_cm"` // and at most MaxCM
	Center float64       `yaml:"center"`
	Beam   float64       `yaml:"beam"`
}

// DefaultScanConfig sweeps 150 to 30 degrees in 1 degree steps.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		From:   150,
		To:     30,
		Step:   1,
		Settle: 75 * time.Millisecond,
		MinCM:  2,
		MaxCM:  50,
		Center: 85,
		Beam:   DefaultBeamCorrection,
	}
}

// Scanner sweeps the range sensor across the path.
type Scanner struct {
	servo device.Servo
	rng   device.RangeSensor
	clk   clock.Clock
	cfg   ScanConfig
}

// NewScanner creates a Scanner.
func NewScanner(servo device.Servo, rng device.RangeSensor, clk clock.Clock, cfg ScanConfig) *Scanner {
	if cfg.Step <= 0 {
		cfg.Step = 1
	}
	return &Scanner{servo: servo, rng: rng, clk: clk, cfg: cfg}
}

// Center points the sensor straight ahead.
func (s *Scanner) Center() { s.servo.SetAngle(s.cfg.Center) }

// InRange reports whether d counts as an obstacle reading.
func (s *Scanner) InRange(d float64) bool { return d > s.cfg.MinCM && d <= s.cfg.MaxCM }

// Scan sweeps from left to right. On the left half the first detection is
// kept; on the right half the furthest one. The sensor is recentred afterwards.
func (s *Scanner) Scan() (Reading, float64, bool) {
	var r Reading
	for a := s.cfg.From; a >= s.cfg.To; a -= s.cfg.Step {
		s.servo.SetAngle(a)
		s.clk.Sleep(s.cfg.Settle)
		d, err := s.rng.MeasureDistance()
		if err != nil || !s.InRange(d) {
			continue
		}
		if a > 90 {
			if !r.LeftFound {
				r.LeftCM, r.LeftAngle, r.LeftFound = d, a, true
			}
		} else if d > r.RightCM {
			r.RightCM, r.RightAngle, r.RightFound = d, a, true
		}
	}
	s.Center()
	w, ok := Width(r, s.cfg.Beam)
	return r, w, ok
}

// Sweep looks for any in-range reading between from and to, stopping at the
// first one. The sensor is recentred afterwards.
func (s *Scanner) Sweep(from, to, step float64, settle time.Duration) bool {
	defer s.Center()
	for a := from; a <= to; a += step {
		s.servo.SetAngle(a)
		s.clk.Sleep(settle)
		if d, err := s.rng.MeasureDistance(); err == nil && s.InRange(d) {
			return true
		}
	}
	return false
}
