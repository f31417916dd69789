package obstacle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"LineBot/internal/clock"
	"LineBot/internal/device"
	"LineBot/internal/maneuver"
)

// AvoidConfig tunes the scan-then-circle routine.
type AvoidConfig struct {
	CircleLeft   float64 `yaml:"circle_left"`
	CircleRight  float64 `yaml:"circle_right"`
	CirclePulses int     `yaml:"circle_pulses"`
	MaxChecks    int     `yaml:"max_checks"`
	ClearChecks  int     `yaml:"clear_checks"` // consecutive clear checks before advancing a leg
	Legs         int     `yaml:"legs"`         // legs driven before looking for the line
	BlackRaw     uint16  `yaml:"black_raw"`

	CheckFrom   float64       `yaml:"check_from"`
	CheckTo     float64       `yaml:"check_to"`
	CheckStep   float64       `yaml:"check_step"`
	CheckSettle time.Duration `yaml:"check_settle"`

	AfterTurn  time.Duration   `yaml:"after_turn"`
	AfterLeg   time.Duration   `yaml:"after_leg"`
	AfterCheck time.Duration   `yaml:"after_check"`
	LoopPause  time.Duration   `yaml:"loop_pause"`
	Recenter   time.Duration   `yaml:"recenter"`
	Rejoin     []maneuver.Step `yaml:"rejoin"`
	GiveUp     maneuver.Step   `yaml:"give_up"`
	Rest       time.Duration   `yaml:"rest"`
}

// DefaultAvoidConfig returns the tuning used on the course.
func DefaultAvoidConfig() AvoidConfig {
	return AvoidConfig{
		CircleLeft:   42.25,
		CircleRight:  40,
		CirclePulses: 12,
		MaxChecks:    15,
		ClearChecks:  2,
		Legs:         2,
		BlackRaw:     1000,
		CheckFrom:    45,
		CheckTo:      135,
		CheckStep:    2,
		CheckSettle:  100 * time.Millisecond,
		AfterTurn:    800 * time.Millisecond,
		AfterLeg:     2 * time.Second,
		AfterCheck:   200 * time.Millisecond,
		LoopPause:    500 * time.Millisecond,
		Recenter:     2 * time.Second,
		Rejoin: []maneuver.Step{
			maneuver.Drive(50, 50, 700*time.Millisecond),
			maneuver.Drive(-40, 60, 400*time.Millisecond),
		},
		GiveUp: maneuver.Drive(30*1.25, 30, 3*time.Second),
		Rest:   time.Second,
	}
}

// Avoider drives around an obstacle and back onto the line.
type Avoider struct {
	scanner *Scanner
	turner  *maneuver.Turner
	motor   device.Motor
	ir      device.Reflectance
	clk     clock.Clock
	cfg     AvoidConfig
	log     zerolog.Logger

	// Notify receives short event labels such as the measured width.
	Notify func(label string)
}

// NewAvoider creates an Avoider.
func NewAvoider(s *Scanner, t *maneuver.Turner, m device.Motor, ir device.Reflectance, clk clock.Clock, cfg AvoidConfig, log zerolog.Logger) *Avoider {
	return &Avoider{scanner: s, turner: t, motor: m, ir: ir, clk: clk, cfg: cfg, log: log}
}

func (a *Avoider) notify(label string) {
	if a.Notify != nil {
		a.Notify(label)
	}
}

// Avoid measures the obstacle, circles it in legs while checking that it is
// still beside the robot, and rejoins the line. It only returns ctx's error
// if ctx was already done on entry.
func (a *Avoider) Avoid(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, w, ok := a.scanner.Scan()
	if ok {
		a.log.Info().Float64("width_cm", w).Float64("left_cm", r.LeftCM).Float64("right_cm", r.RightCM).Msg("obstacle measured")
		a.notify(fmt.Sprintf("OBW:%.1fcm", w))
	} else {
		a.log.Info().Bool("left", r.LeftFound).Bool("right", r.RightFound).Msg("obstacle width unknown")
	}

	a.turner.Turn90(device.Left)
	a.clk.Sleep(a.cfg.AfterTurn)
	a.encircle()

	a.scanner.Center()
	a.clk.Sleep(a.cfg.Recenter)
	maneuver.Run(a.motor, a.clk, a.cfg.Rejoin...)
	maneuver.Run(a.motor, a.clk, maneuver.Halt(a.cfg.Rest))
	return nil
}

func (a *Avoider) onLine() bool { return a.ir.ReadAnalog() > a.cfg.BlackRaw }

func (a *Avoider) encircle() {
	clear, legs := 0, 0
	for checks := 1; ; checks++ {
		out := a.turner.DriveUntil(a.cfg.CircleLeft, a.cfg.CircleRight, a.cfg.CirclePulses, func() bool {
			return legs >= a.cfg.Legs && a.onLine()
		})
		a.clk.Sleep(a.cfg.AfterLeg)
		if out == maneuver.Interrupted {
			a.log.Info().Int("checks", checks).Msg("line found while circling")
			return
		}

		if a.stillThere() {
			clear = 0
			a.turner.Turn90(device.Left)
		} else {
			clear++
			if clear >= a.cfg.ClearChecks && legs < a.cfg.Legs {
				a.turner.DriveUntil(a.cfg.CircleLeft, a.cfg.CircleRight, a.cfg.CirclePulses, nil)
				clear = 0
				legs++
			} else {
				a.turner.Turn90(device.Left)
			}
		}

		if checks >= a.cfg.MaxChecks {
			a.log.Warn().Int("legs", legs).Msg("circling gave up")
			maneuver.Run(a.motor, a.clk, a.cfg.GiveUp, maneuver.Halt(0))
			return
		}
		a.clk.Sleep(a.cfg.LoopPause)
	}
}

// stillThere turns toward the obstacle side and sweeps for it.
func (a *Avoider) stillThere() bool {
	a.turner.Turn90(device.Right)
	found := a.scanner.Sweep(a.cfg.CheckFrom, a.cfg.CheckTo, a.cfg.CheckStep, a.cfg.CheckSettle)
	a.clk.Sleep(a.cfg.AfterCheck)
	return found
}
