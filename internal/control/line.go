package control

import "time"

// Polarity selects which setpoint crossing reuses the previous correction.
type Polarity int

const (
	// CrossRising holds the correction when the reading rises through the setpoint.
	CrossRising Polarity = iota
	// CrossFalling holds it when the reading falls through the setpoint.
	CrossFalling
)

// LineConfig parameterizes the line controller. Readings are raw ADC counts.
type LineConfig struct {
	SetpointRaw    float64       `yaml:"setpoint_raw"`
	Kp             float64       `yaml:"kp"`
	Ki             float64       `yaml:"ki"`
	Kd             float64       `yaml:"kd"`
	UseIntegral    bool          `yaml:"use_integral"`
	IntegralMax    float64       `yaml:"integral_max"`
	BaseLeft       float64       `yaml:"base_left"`
	BaseRight      float64       `yaml:"base_right"`
	MaxCorrection  float64       `yaml:"max_correction"`
	MaxDerivative  float64       `yaml:"max_derivative"`
	MaxSpeed       float64       `yaml:"max_speed"`
	WhiteThreshold float64       `yaml:"white_threshold"`
	WhiteIsLow     bool          `yaml:"white_is_low"` // bright surface reads below the threshold
	RampRate       float64       `yaml:"ramp_rate"`
	NominalDt      time.Duration `yaml:"nominal_dt"`
	Polarity       Polarity      `yaml:"polarity"`
}

// DefaultLineConfig returns the tuning for the analog IR sensor on black tape.
func DefaultLineConfig() LineConfig {
	return LineConfig{
		SetpointRaw:    700,
		Kp:             0.019,
		Ki:             0.001,
		Kd:             0.006,
		IntegralMax:    1000,
		BaseLeft:       32.75,
		BaseRight:      30,
		MaxCorrection:  17.5,
		MaxDerivative:  1000,
		MaxSpeed:       80,
		WhiteThreshold: 300,
		WhiteIsLow:     true,
		RampRate:       0.125,
		NominalDt:      10 * time.Millisecond,
		Polarity:       CrossRising,
	}
}

// LineState is owned by one controller.
type LineState struct {
	PrevError      float64
	PrevRaw        float64
	PrevCorrection float64
	Integral       float64
	Ramp           float64
	LastUpdate     time.Time
	Enabled        bool
}

// LineOutput is one control step.
type LineOutput struct {
	Error      float64
	Correction float64
	Left       float64
	Right      float64
	OnWhite    bool
}

func (c LineConfig) onWhite(raw float64) bool {
	if c.WhiteIsLow {
		return raw < c.WhiteThreshold
	}
	return raw > c.WhiteThreshold
}

func (c LineConfig) crossed(raw, prev float64) bool {
	sp := c.SetpointRaw
	if c.Polarity == CrossFalling {
		return raw < sp && prev > sp
	}
	return raw > sp && prev < sp
}

// UpdateLine runs one step of the line controller for a raw reading taken at now.
func UpdateLine(raw float64, now time.Time, cfg LineConfig, st *LineState) LineOutput {
	if !st.Enabled {
		return LineOutput{}
	}
	e := cfg.SetpointRaw - raw

	dt := cfg.NominalDt.Seconds()
	if !st.LastUpdate.IsZero() {
		if d := now.Sub(st.LastUpdate).Seconds(); d > 0 {
			dt = d
		}
	}
	deriv := clamp((e-st.PrevError)/dt, -cfg.MaxDerivative, cfg.MaxDerivative)

	c := cfg.Kp*e + cfg.Kd*deriv
	if cfg.UseIntegral {
		st.Integral = clamp(st.Integral+e*dt, -cfg.IntegralMax, cfg.IntegralMax)
		c += cfg.Ki * st.Integral
	}
	c = clamp(c, -cfg.MaxCorrection, cfg.MaxCorrection)
	if cfg.crossed(raw, st.PrevRaw) {
		c = st.PrevCorrection
	}

	st.PrevError = e
	st.PrevRaw = raw
	st.PrevCorrection = c
	st.LastUpdate = now

	white := cfg.onWhite(raw)
	if white {
		st.Ramp = min(st.Ramp+cfg.RampRate, 1)
		c *= st.Ramp
	} else {
		st.Ramp = 0
	}

	return LineOutput{
		Error:      e,
		Correction: c,
		Left:       clamp(cfg.BaseLeft-c, 0, cfg.MaxSpeed),
		Right:      clamp(cfg.BaseRight+c, 0, cfg.MaxSpeed),
		OnWhite:    white,
	}
}

// Line wraps a configuration and its state.
type Line struct {
	cfg LineConfig
	st  LineState
}

// NewLine returns an enabled controller.
func NewLine(cfg LineConfig) *Line {
	l := &Line{}
	l.Init(cfg)
	return l
}

// Init installs cfg and resets the state.
func (l *Line) Init(cfg LineConfig) {
	l.cfg = cfg
	l.Enable()
}

// SetSetpoint changes the target reading.
func (l *Line) SetSetpoint(raw float64) { l.cfg.SetpointRaw = raw }

// Enable resets the state and turns the controller on. The previous reading
// starts at the setpoint so the first step cannot count as a crossing.
func (l *Line) Enable() {
	l.st = LineState{Enabled: true, PrevRaw: l.cfg.SetpointRaw}
}

// Disable forces zero output until re-enabled.
func (l *Line) Disable() { l.st.Enabled = false }

// Update runs one step.
func (l *Line) Update(raw float64, now time.Time) LineOutput {
	return UpdateLine(raw, now, l.cfg, &l.st)
}

// Config returns a copy of the configuration.
func (l *Line) Config() LineConfig { return l.cfg }

// State returns a copy of the state.
func (l *Line) State() LineState { return l.st }
