package maneuver

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LineBot/internal/barcode"
	"LineBot/internal/clock"
	"LineBot/internal/device"
	"LineBot/internal/device/sim"
)

type rig struct {
	clk   *clock.Fake
	motor *sim.Motor
	odo   *sim.Odometry
	t     *Turner
}

func newRig() *rig {
	r := &rig{clk: clock.NewFake(time.Unix(0, 0)), motor: &sim.Motor{}}
	r.odo = sim.NewOdometry(r.motor)
	r.t = NewTurner(r.motor, r.odo, r.clk, DefaultTurnConfig(), zerolog.Nop())
	return r
}

func TestRunSequence(t *testing.T) {
	r := newRig()
	Run(r.motor, r.clk, Drive(50, 50, 700*time.Millisecond), Drive(-40, 60, 400*time.Millisecond), Halt(0))
	assert.Equal(t, []sim.Command{{50, 50}, {-40, 60}, {0, 0}}, r.motor.History())
	assert.Equal(t, time.Unix(0, 0).Add(1100*time.Millisecond), r.clk.Now())
}

func TestSpinReachesTarget(t *testing.T) {
	r := newRig()
	out := r.t.Spin(device.Left, 9)
	assert.Equal(t, Reached, out)

	h := r.motor.History()
	require.NotEmpty(t, h)
	assert.Equal(t, sim.Command{Left: -62.5, Right: 50}, h[0])
	assert.Equal(t, sim.Command{}, r.motor.Current())
	assert.GreaterOrEqual(t, device.AveragePulses(r.odo), 9.0)
}

func TestSpinRightDirection(t *testing.T) {
	r := newRig()
	r.t.Turn90(device.Right)
	assert.Equal(t, sim.Command{Left: 62.5, Right: -50}, r.motor.History()[0])
}

func TestSpinFallsBackWithoutPulses(t *testing.T) {
	r := newRig()
	r.odo.Stuck = true
	t0 := r.clk.Now()
	out := r.t.Spin(device.Left, 9)
	assert.Equal(t, Fallback, out)

	el := r.clk.Now().Sub(t0)
	assert.GreaterOrEqual(t, el, 3*time.Second+400*time.Millisecond)
	assert.Less(t, el, 4*time.Second)
	assert.Equal(t, sim.Command{}, r.motor.Current())
}

type stalled struct{}

func (stalled) PulseCount(device.Side) int64    { return 1 }
func (stalled) DistanceCM(device.Side) float64 { return device.CMPerPulse }
func (stalled) Reset(device.Side)              {}

func TestSpinDeadline(t *testing.T) {
	r := newRig()
	tr := NewTurner(r.motor, stalled{}, r.clk, DefaultTurnConfig(), zerolog.Nop())
	t0 := r.clk.Now()
	assert.Equal(t, TimedOut, tr.Spin(device.Right, 9))
	assert.GreaterOrEqual(t, r.clk.Now().Sub(t0), 5*time.Second)
}

func TestDriveUntilStopCondition(t *testing.T) {
	r := newRig()
	calls := 0
	out := r.t.DriveUntil(42.25, 40, 12, func() bool {
		calls++
		return calls == 3
	})
	assert.Equal(t, Interrupted, out)
	assert.Equal(t, sim.Command{}, r.motor.Current())
}

func TestJunctionTurn(t *testing.T) {
	r := newRig()
	j := NewJunctionTurn(r.t, DefaultJunctionConfig())
	j.Turn(barcode.TurnLeft)

	h := r.motor.History()
	require.GreaterOrEqual(t, len(h), 4)
	assert.Equal(t, sim.Command{}, h[0])
	assert.Equal(t, sim.Command{Left: 40, Right: 40}, h[1])
	assert.Equal(t, sim.Command{Left: -62.5, Right: 50}, h[2])
	assert.Equal(t, sim.Command{}, h[len(h)-1])
}
