package odometry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"LineBot/internal/device"
)

type fakeOdo struct{ dist [2]float64 }

func (f *fakeOdo) PulseCount(s device.Side) int64    { return int64(f.dist[s]) }
func (f *fakeOdo) DistanceCM(s device.Side) float64 { return f.dist[s] }
func (f *fakeOdo) Reset(s device.Side)              { f.dist[s] = 0 }

func TestSpeedAndDistance(t *testing.T) {
	odo := &fakeOdo{}
	tr := NewTracker(odo)
	t0 := time.Unix(0, 0)
	tr.Update(t0)

	odo.dist = [2]float64{10, 12}
	tr.Update(t0.Add(50 * time.Millisecond))
	assert.Zero(t, tr.Speed(), "too soon")

	tr.Update(t0.Add(200 * time.Millisecond))
	assert.InDelta(t, 55, tr.Speed(), 1e-9)
	assert.InDelta(t, 11, tr.Distance(), 1e-9)

	device.ResetBoth(odo)
	odo.dist = [2]float64{4, 4}
	tr.Update(t0.Add(400 * time.Millisecond))
	assert.InDelta(t, 15, tr.Distance(), 1e-9)
	assert.InDelta(t, 20, tr.Speed(), 1e-9)
}

func TestSpeedClamped(t *testing.T) {
	odo := &fakeOdo{}
	tr := NewTracker(odo)
	t0 := time.Unix(0, 0)
	tr.Update(t0)
	odo.dist = [2]float64{500, 500}
	tr.Update(t0.Add(time.Second))
	assert.Equal(t, MaxSpeed, tr.Speed())

	tr.Reset()
	assert.Zero(t, tr.Distance())
}
