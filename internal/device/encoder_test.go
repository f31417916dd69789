package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEncoderDebounce(t *testing.T) {
	e := &Encoders{}
	e.pulse(Left, 10*time.Millisecond)
	e.pulse(Left, 10*time.Millisecond+500*time.Microsecond) // bounce
	e.pulse(Left, 15*time.Millisecond)
	e.pulse(Right, 15*time.Millisecond)

	assert.EqualValues(t, 2, e.PulseCount(Left))
	assert.EqualValues(t, 1, e.PulseCount(Right))
	assert.InDelta(t, 2*CMPerPulse, e.DistanceCM(Left), 1e-9)

	ResetBoth(e)
	assert.Zero(t, AveragePulses(e))
	assert.NoError(t, e.Close())
}

func TestCMPerPulse(t *testing.T) {
	assert.InDelta(t, 1.021, CMPerPulse, 1e-3)
}

func TestSideString(t *testing.T) {
	assert.Equal(t, "left", Left.String())
	assert.Equal(t, "right", Right.String())
}
