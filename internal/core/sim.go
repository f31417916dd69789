package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"LineBot/internal/barcode"
	"LineBot/internal/clock"
	"LineBot/internal/device/sim"
)

// SimWorld is the simulated robot and a scripted course: a barcode, then the
// junction marker, then an obstacle that clears after a moment.
type SimWorld struct {
	Motor    *sim.Motor
	Servo    *sim.Servo
	Range    *sim.Range
	IR       *sim.Reflectance
	IMU      *sim.IMU
	Odometry *sim.Odometry

	clk clock.Clock
}

// Open-floor readings of the simulated course.
const (
	simLineRaw = 700
	simFarCM   = 100
	simNearCM  = 12
)

// NewSimWorld creates the parts on clk.
func NewSimWorld(clk clock.Clock) *SimWorld {
	w := &SimWorld{
		Motor: &sim.Motor{},
		Servo: &sim.Servo{},
		IR:    sim.NewReflectance(clk, simLineRaw),
		IMU:   sim.NewIMU(),
		clk:   clk,
	}
	w.Range = &sim.Range{}
	w.Range.Set(simFarCM)
	w.Odometry = sim.NewOdometry(w.Motor)
	return w
}

// Course plays the scripted course once, returning early if ctx ends.
func (w *SimWorld) Course(ctx context.Context, turn string, log zerolog.Logger) error {
	sleep := func(d time.Duration) bool {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		}
	}

	code, err := courseBarcode(turn)
	if err != nil {
		return err
	}
	if !sleep(2 * time.Second) {
		return nil
	}
	log.Info().Str("payload", turn).Msg("sim: barcode under sensor")
	w.IR.Play(code)

	if !sleep(6 * time.Second) {
		return nil
	}
	junction := make([]time.Duration, 10)
	for i := range junction {
		junction[i] = 30 * time.Millisecond
	}
	log.Info().Msg("sim: junction marker")
	w.IR.Play(junction)

	if !sleep(6 * time.Second) {
		return nil
	}
	log.Info().Float64("cm", simNearCM).Msg("sim: obstacle ahead")
	w.Range.Set(simNearCM)
	if !sleep(time.Second) {
		return nil
	}
	w.Range.Set(simFarCM)
	return nil
}

// courseBarcode prints payload with a check character when one exists. Some
// payloads (LEFT sums to 36) have none and are printed unchecked.
func courseBarcode(payload string) ([]time.Duration, error) {
	code, err := barcode.Synthesize(payload, 20*time.Millisecond, 70*time.Millisecond, true)
	if err == nil {
		return code, nil
	}
	return barcode.Synthesize(payload, 20*time.Millisecond, 70*time.Millisecond, false)
}
