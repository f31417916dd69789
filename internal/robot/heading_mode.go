package robot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"LineBot/internal/clock"
	"LineBot/internal/control"
	"LineBot/internal/device"
	"LineBot/internal/imu"
	"LineBot/internal/model"
	"LineBot/internal/odometry"
	"LineBot/internal/telemetry"
)

// HeadingHold drives straight on a compass heading using the gain-scheduled
// controller. It is the alternative to the behavior machine.
type HeadingHold struct {
	cfg     model.RobotConfig
	clk     clock.Clock
	compass *imu.Compass
	motor   device.Motor
	pid     *control.Heading
	tracker *odometry.Tracker
	pub     telemetry.Publisher
	log     zerolog.Logger

	last       control.HeadingOutput
	yaw        float64
	lastReport time.Time
}

// NewHeadingHold wires the heading mode. pub may be nil.
func NewHeadingHold(cfg model.RobotConfig, pid *control.Heading, compass *imu.Compass, m device.Motor, odo device.Odometry, clk clock.Clock, pub telemetry.Publisher, log zerolog.Logger) *HeadingHold {
	if pub == nil {
		pub = telemetry.Discard{}
	}
	return &HeadingHold{
		cfg: cfg, clk: clk, compass: compass, motor: m, pid: pid,
		tracker: odometry.NewTracker(odo), pub: pub, log: log,
	}
}

// Calibrate replaces the setpoint with the current mean heading.
func (h *HeadingHold) Calibrate() error {
	sp, err := h.compass.CalibrateSetpoint(h.clk, h.cfg.CalibrateSamples, h.cfg.CalibrateInterval)
	if err != nil {
		return err
	}
	h.pid.SetSetpoint(sp)
	h.log.Info().Float64("setpoint", h.pid.Config().Setpoint).Msg("heading calibrated")
	return nil
}

// Step reads the compass once and drives. A failed read keeps the previous
// wheel command.
func (h *HeadingHold) Step() control.HeadingOutput {
	now := h.clk.Now()
	h.tracker.Update(now)
	yaw, err := h.compass.Heading()
	if err != nil {
		h.log.Debug().Err(err).Msg("compass read failed")
	} else {
		h.yaw = yaw
		h.last = h.pid.Update(yaw)
		h.motor.Drive(h.last.Left, h.last.Right)
	}
	if h.lastReport.IsZero() || now.Sub(h.lastReport) >= h.cfg.HeadingReport {
		h.lastReport = now
		h.pub.Publish(model.Telemetry{
			Speed:     h.tracker.Speed(),
			Distance:  h.tracker.Distance(),
			IMU:       model.IMUReading{Yaw: h.yaw},
			Range:     -1,
			State:     "HEADING",
			Timestamp: now.UTC().Format(time.RFC3339Nano),
		})
	}
	return h.last
}

// Run calibrates, then holds the heading until ctx is cancelled.
func (h *HeadingHold) Run(ctx context.Context) error {
	if err := h.Calibrate(); err != nil {
		h.log.Warn().Err(err).Float64("setpoint", h.pid.Config().Setpoint).Msg("keeping configured setpoint")
	}
	h.pid.Enable()
	defer func() {
		h.pid.Disable()
		h.motor.Stop()
	}()
	return every(ctx, h.cfg.HeadingPeriod, func() { h.Step() })
}
