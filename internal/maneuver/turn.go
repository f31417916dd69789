package maneuver

import (
	"time"

	"github.com/rs/zerolog"

	"LineBot/internal/barcode"
	"LineBot/internal/clock"
	"LineBot/internal/device"
)

// Outcome reports how an encoder maneuver ended.
type Outcome int

const (
	Reached     Outcome = iota // target pulse count reached
	Interrupted                // stop condition fired
	Fallback                   // no pulses seen; open-loop time used instead
	TimedOut                   // overall deadline passed
)

func (o Outcome) String() string {
	switch o {
	case Reached:
		return "reached"
	case Interrupted:
		return "interrupted"
	case Fallback:
		return "fallback"
	default:
		return "timed out"
	}
}

// TurnConfig tunes encoder spins.
type TurnConfig struct {
	SpinFast       float64       `yaml:"spin_fast"` // outer wheel, compensates the weaker left motor
	SpinSlow       float64       `yaml:"spin_slow"`
	Pulses90       int           `yaml:"pulses_90"`
	Pulses45       int           `yaml:"pulses_45"`
	Pulses180      int           `yaml:"pulses_180"`
	NoPulseTimeout time.Duration `yaml:"no_pulse_timeout"`
	FallbackFor    time.Duration `yaml:"fallback_for"`
	Deadline       time.Duration `yaml:"deadline"`
	Poll           time.Duration `yaml:"poll"`
}

// DefaultTurnConfig matches 20-slot encoders on 6.5cm wheels.
func DefaultTurnConfig() TurnConfig {
	return TurnConfig{
		SpinFast:       50 * 1.25,
		SpinSlow:       50,
		Pulses90:       9,
		Pulses45:       4,
		Pulses180:      16,
		NoPulseTimeout: 3 * time.Second,
		FallbackFor:    400 * time.Millisecond,
		Deadline:       5 * time.Second,
		Poll:           10 * time.Millisecond,
	}
}

// Turner performs encoder-measured maneuvers.
type Turner struct {
	motor device.Motor
	odo   device.Odometry
	clk   clock.Clock
	cfg   TurnConfig
	log   zerolog.Logger
}

// NewTurner creates a Turner.
func NewTurner(m device.Motor, o device.Odometry, clk clock.Clock, cfg TurnConfig, log zerolog.Logger) *Turner {
	return &Turner{motor: m, odo: o, clk: clk, cfg: cfg, log: log}
}

// Config returns the turn configuration.
func (t *Turner) Config() TurnConfig { return t.cfg }

// DriveUntil resets the encoders, drives at left/right and polls until the
// average pulse count reaches target or stop (optional) returns true. If no
// pulse arrives within the no-pulse timeout the command is held open-loop for
// the fallback duration instead. The motors are stopped on return.
func (t *Turner) DriveUntil(left, right float64, target int, stop func() bool) Outcome {
	device.ResetBoth(t.odo)
	t.motor.Drive(left, right)
	defer t.motor.Stop()

	dl := clock.NewDeadline(t.clk, t.cfg.Deadline)
	for {
		avg := device.AveragePulses(t.odo)
		if avg >= float64(target) {
			return Reached
		}
		if stop != nil && stop() {
			return Interrupted
		}
		el := dl.Elapsed(t.clk.Now())
		if avg == 0 && el >= t.cfg.NoPulseTimeout {
			t.log.Warn().Dur("waited", el).Int("target", target).Msg("no encoder pulses, finishing open-loop")
			t.clk.Sleep(t.cfg.FallbackFor)
			return Fallback
		}
		if dl.Expired(t.clk.Now()) {
			t.log.Warn().Float64("pulses", avg).Int("target", target).Msg("maneuver deadline passed")
			return TimedOut
		}
		t.clk.Sleep(t.cfg.Poll)
	}
}

// Spin rotates in place toward dir until pulses are counted.
func (t *Turner) Spin(dir device.Side, pulses int) Outcome {
	l, r := -t.cfg.SpinFast, t.cfg.SpinSlow
	if dir == device.Right {
		l, r = t.cfg.SpinFast, -t.cfg.SpinSlow
	}
	out := t.DriveUntil(l, r, pulses, nil)
	t.log.Debug().Stringer("dir", dir).Int("pulses", pulses).Stringer("outcome", out).Msg("spin")
	return out
}

// Turn90 spins a quarter turn.
func (t *Turner) Turn90(dir device.Side) Outcome { return t.Spin(dir, t.cfg.Pulses90) }

// JunctionConfig describes the turn taken at a junction after a barcode.
type JunctionConfig struct {
	Settle time.Duration `yaml:"settle"`
	Nudge  Step          `yaml:"nudge"`
	After  time.Duration `yaml:"after"`
}

// DefaultJunctionConfig pulls the sensor over the junction before spinning.
func DefaultJunctionConfig() JunctionConfig {
	return JunctionConfig{
		Settle: 500 * time.Millisecond,
		Nudge:  Drive(40, 40, 400*time.Millisecond),
		After:  800 * time.Millisecond,
	}
}

// JunctionTurn executes turn tokens.
type JunctionTurn struct {
	turner *Turner
	cfg    JunctionConfig
}

// NewJunctionTurn creates a JunctionTurn.
func NewJunctionTurn(t *Turner, cfg JunctionConfig) *JunctionTurn {
	return &JunctionTurn{turner: t, cfg: cfg}
}

// Turn stops, nudges forward onto the junction and spins a quarter turn
// toward token (LEFT or anything else for right).
func (j *JunctionTurn) Turn(token string) {
	t := j.turner
	Run(t.motor, t.clk, Halt(j.cfg.Settle), j.cfg.Nudge)
	dir := device.Right
	if token == barcode.TurnLeft {
		dir = device.Left
	}
	t.Turn90(dir)
	Run(t.motor, t.clk, Halt(j.cfg.After))
}
