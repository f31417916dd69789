package control

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapAngleRange(t *testing.T) {
	for h := -720.0; h <= 720; h += 7.5 {
		for s := -360.0; s <= 720; s += 11.25 {
			e := HeadingError(s, h)
			require.Greater(t, e, -180.0, "h=%v s=%v", h, s)
			require.LessOrEqual(t, e, 180.0, "h=%v s=%v", h, s)
		}
		assert.Zero(t, HeadingError(h, h))
	}
	assert.Equal(t, 180.0, WrapAngle(-180))
	assert.Equal(t, 180.0, WrapAngle(180))
	assert.Equal(t, 20.0, HeadingError(10, 350))
	assert.Equal(t, -20.0, HeadingError(350, 10))
}

func TestNormalizeHeading(t *testing.T) {
	assert.Equal(t, 330.0, NormalizeHeading(-30))
	assert.Equal(t, 0.0, NormalizeHeading(360))
	assert.Equal(t, 45.0, NormalizeHeading(765))
}

func noIntegral() HeadingConfig {
	cfg := DefaultHeadingConfig()
	cfg.Ki = 0
	return cfg
}

func TestHeadingGainBands(t *testing.T) {
	cfg := noIntegral()
	cases := []struct {
		err  float64
		want float64
	}{
		{5, 0.30*5 + 0.25*5},
		{20, 0.20*20 + 0.15*20},
		{30, 0.15*30 + 0.10*30},
		{-40, -(0.15*40 + 0.10*40)},
	}
	for _, c := range cases {
		st := HeadingState{Enabled: true}
		out := UpdateHeading(cfg.Setpoint-c.err, cfg, &st)
		assert.InDelta(t, c.err, out.Error, 1e-9)
		assert.InDelta(t, c.want, out.Output, 1e-9, "err %v", c.err)
	}
}

func TestHeadingOutputAndWheelClamp(t *testing.T) {
	cfg := noIntegral()
	st := HeadingState{Enabled: true}
	out := UpdateHeading(cfg.Setpoint-170, cfg, &st)
	assert.Equal(t, cfg.MaxOutput, out.Output)
	assert.Equal(t, cfg.BaseLeft+cfg.MaxOutput, out.Left)
	assert.Equal(t, cfg.BaseRight-cfg.MaxOutput, out.Right)

	cfg.BaseLeft = 95
	st = HeadingState{Enabled: true}
	out = UpdateHeading(cfg.Setpoint-170, cfg, &st)
	assert.Equal(t, 100.0, out.Left)
}

func TestHeadingIntegralBounded(t *testing.T) {
	cfg := DefaultHeadingConfig()
	for _, e := range []float64{5, -5, 30, -44} {
		st := HeadingState{Enabled: true}
		for i := 0; i < 1000; i++ {
			UpdateHeading(cfg.Setpoint-e, cfg, &st)
			require.LessOrEqual(t, math.Abs(st.Integral), cfg.IntegralMax)
		}
		assert.Equal(t, math.Copysign(cfg.IntegralMax, e), st.Integral)
	}
}

func TestHeadingIntegralZeroedOnLargeError(t *testing.T) {
	cfg := DefaultHeadingConfig()
	st := HeadingState{Enabled: true}
	UpdateHeading(cfg.Setpoint-10, cfg, &st)
	require.Equal(t, 10.0, st.Integral)
	UpdateHeading(cfg.Setpoint-90, cfg, &st)
	assert.Zero(t, st.Integral)
}

func TestHeadingDisabled(t *testing.T) {
	h := NewHeading(DefaultHeadingConfig())
	h.Disable()
	assert.Equal(t, HeadingOutput{}, h.Update(0))

	h.Enable()
	assert.NotZero(t, h.Update(0).Output)
}

func TestHeadingSetpoint(t *testing.T) {
	h := NewHeading(DefaultHeadingConfig())
	h.SetSetpoint(-30)
	assert.Equal(t, 330.0, h.Config().Setpoint)
	out := h.Update(330)
	assert.Zero(t, out.Error)
	assert.Equal(t, h.Config().BaseLeft, out.Left)
	assert.Equal(t, 0.0, h.State().PrevError)
}

func TestLineFirstStepUsesNominalDt(t *testing.T) {
	l := NewLine(DefaultLineConfig())
	out := l.Update(600, time.Unix(100, 0))

	// derivative 100/0.01 is clamped to 1000
	assert.InDelta(t, 0.019*100+0.006*1000, out.Correction, 1e-9)
	assert.InDelta(t, 32.75-7.9, out.Left, 1e-9)
	assert.InDelta(t, 30+7.9, out.Right, 1e-9)
	assert.False(t, out.OnWhite)
}

func TestLineCrossingReusesCorrection(t *testing.T) {
	l := NewLine(DefaultLineConfig())
	t0 := time.Unix(100, 0)
	first := l.Update(600, t0)
	second := l.Update(800, t0.Add(10*time.Millisecond))
	assert.Equal(t, first.Correction, second.Correction)

	cfg := DefaultLineConfig()
	cfg.Polarity = CrossFalling
	l = NewLine(cfg)
	l.Update(600, t0)
	third := l.Update(800, t0.Add(10*time.Millisecond))
	assert.NotEqual(t, first.Correction, third.Correction)
}

func TestLineWhiteRamp(t *testing.T) {
	l := NewLine(DefaultLineConfig())
	t0 := time.Unix(100, 0)

	out := l.Update(100, t0)
	require.True(t, out.OnWhite)
	assert.InDelta(t, 0.125*17.4, out.Correction, 1e-9)

	var last LineOutput
	for i := 1; i <= 10; i++ {
		last = l.Update(100, t0.Add(time.Duration(i)*10*time.Millisecond))
	}
	assert.Equal(t, 1.0, l.State().Ramp)
	assert.InDelta(t, 0.019*600, last.Correction, 1e-9)

	out = l.Update(600, t0.Add(200*time.Millisecond))
	assert.False(t, out.OnWhite)
	assert.Zero(t, l.State().Ramp)
}

func TestLineWheelsNonNegative(t *testing.T) {
	cfg := DefaultLineConfig()
	cfg.BaseRight = 10
	l := NewLine(cfg)
	out := l.Update(2000, time.Unix(100, 0))
	assert.Equal(t, -cfg.MaxCorrection, out.Correction)
	assert.Equal(t, 0.0, out.Right)
	assert.InDelta(t, cfg.BaseLeft+cfg.MaxCorrection, out.Left, 1e-9)
}

func TestLineDisabled(t *testing.T) {
	l := NewLine(DefaultLineConfig())
	l.Disable()
	assert.Equal(t, LineOutput{}, l.Update(100, time.Now()))
}
