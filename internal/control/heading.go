package control

import "math"

// GainBand applies Kp/Kd while |error| is below Below degrees.
type GainBand struct {
	Below float64 `yaml:"below"`
	Kp    float64 `yaml:"kp"`
	Kd    float64 `yaml:"kd"`
}

// HeadingConfig parameterizes the heading controller.
type HeadingConfig struct {
	Kp          float64    `yaml:"kp"` // nominal gains, reported only; bands drive P and D
	Ki          float64    `yaml:"ki"`
	Kd          float64    `yaml:"kd"`
	Setpoint    float64    `yaml:"setpoint"`
	BaseLeft    float64    `yaml:"base_left"`
	BaseRight   float64    `yaml:"base_right"`
	MaxOutput   float64    `yaml:"max_output"`
	IntegralMax float64    `yaml:"integral_max"`
	WheelMax    float64    `yaml:"wheel_max"`
	Bands       []GainBand `yaml:"bands"`
	// Fallback gains for errors beyond the last band.
	FarKp float64 `yaml:"far_kp"`
	FarKd float64 `yaml:"far_kd"`
}

// DefaultHeadingConfig returns the tuned gains for the two-motor chassis.
func DefaultHeadingConfig() HeadingConfig {
	return HeadingConfig{
		Kp:          0.38,
		Ki:          0.005,
		Kd:          0.20,
		Setpoint:    140,
		BaseLeft:    30 * 1.25,
		BaseRight:   30,
		MaxOutput:   15,
		IntegralMax: 30,
		WheelMax:    100,
		Bands: []GainBand{
			{Below: 10, Kp: 0.30, Kd: 0.25},
			{Below: 25, Kp: 0.20, Kd: 0.15},
			{Below: 45, Kp: 0.15, Kd: 0.10},
		},
		FarKp: 0.12,
		FarKd: 0.08,
	}
}

// gains picks the band for |err|.
func (c HeadingConfig) gains(absErr float64) (kp, kd float64) {
	for _, b := range c.Bands {
		if absErr < b.Below {
			return b.Kp, b.Kd
		}
	}
	return c.FarKp, c.FarKd
}

// integralWindow is the error magnitude beyond which the integral is zeroed.
func (c HeadingConfig) integralWindow() float64 {
	if len(c.Bands) == 0 {
		return 0
	}
	return c.Bands[len(c.Bands)-1].Below
}

// HeadingState is owned by one controller.
type HeadingState struct {
	PrevError float64
	Integral  float64
	Enabled   bool
}

// HeadingOutput is one control step.
type HeadingOutput struct {
	Error  float64
	Output float64
	Left   float64
	Right  float64
}

// UpdateHeading runs one step of the gain-scheduled controller for the given
// yaw in degrees.
func UpdateHeading(yaw float64, cfg HeadingConfig, st *HeadingState) HeadingOutput {
	if !st.Enabled {
		return HeadingOutput{}
	}
	e := HeadingError(cfg.Setpoint, yaw)
	ae := math.Abs(e)
	kp, kd := cfg.gains(ae)

	if ae < cfg.integralWindow() {
		st.Integral = clamp(st.Integral+e, -cfg.IntegralMax, cfg.IntegralMax)
	} else {
		st.Integral = 0
	}
	iTerm := clamp(cfg.Ki*st.Integral, -cfg.IntegralMax, cfg.IntegralMax)

	out := kp*e + iTerm + kd*(e-st.PrevError)
	out = clamp(out, -cfg.MaxOutput, cfg.MaxOutput)
	st.PrevError = e

	return HeadingOutput{
		Error:  e,
		Output: out,
		Left:   clamp(cfg.BaseLeft+out, -cfg.WheelMax, cfg.WheelMax),
		Right:  clamp(cfg.BaseRight-out, -cfg.WheelMax, cfg.WheelMax),
	}
}

// Heading wraps a configuration and its state.
type Heading struct {
	cfg HeadingConfig
	st  HeadingState
}

// NewHeading returns an enabled controller.
func NewHeading(cfg HeadingConfig) *Heading {
	h := &Heading{}
	h.Init(cfg)
	return h
}

// Init installs cfg, normalizes the setpoint and resets the state.
func (h *Heading) Init(cfg HeadingConfig) {
	cfg.Setpoint = NormalizeHeading(cfg.Setpoint)
	h.cfg = cfg
	h.st = HeadingState{Enabled: true}
}

// SetSetpoint changes the target heading; the state is kept.
func (h *Heading) SetSetpoint(deg float64) { h.cfg.Setpoint = NormalizeHeading(deg) }

// Enable resets the state and turns the controller on.
func (h *Heading) Enable() { h.st = HeadingState{Enabled: true} }

// Disable forces zero output until re-enabled.
func (h *Heading) Disable() { h.st.Enabled = false }

// Update runs one step.
func (h *Heading) Update(yaw float64) HeadingOutput { return UpdateHeading(yaw, h.cfg, &h.st) }

// Config returns a copy of the configuration.
func (h *Heading) Config() HeadingConfig { return h.cfg }

// State returns a copy of the state.
func (h *Heading) State() HeadingState { return h.st }
