// Package robot runs the behavior state machine: one control task that owns
// the motors and three watchers that only post hints to it.
package robot

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"LineBot/internal/barcode"
	"LineBot/internal/capture"
	"LineBot/internal/clock"
	"LineBot/internal/control"
	"LineBot/internal/device"
	"LineBot/internal/maneuver"
	"LineBot/internal/model"
	"LineBot/internal/odometry"
	"LineBot/internal/telemetry"
)

// Event labels published as the telemetry state on transitions.
const (
	EventObstacle  = "OBS_DET"
	EventAvoidDone = "AVOID_DONE"
	EventScanning  = "SCANNING"
	EventBarcode   = "BC_DONE:"
	EventBarcodeNG = "BC_FAIL"
	EventTurnDone  = "TURN_DONE"
	EventStopped   = "STOPPED"
)

// Avoider drives around an obstacle and back onto the line.
type Avoider interface {
	Avoid(ctx context.Context) error
}

// Turner executes a junction turn token.
type Turner interface {
	Turn(token string)
}

// HeadingSource supplies the compass heading for telemetry.
type HeadingSource interface {
	Heading() (float64, error)
}

// Deps are the collaborators of a Robot. Heading, Poller and Telemetry may be nil.
type Deps struct {
	Clock     clock.Clock
	Motor     device.Motor
	Range     device.RangeSensor
	IR        device.Reflectance
	Odometry  device.Odometry
	Heading   HeadingSource
	Capture   *capture.Capture
	Poller    *capture.Poller
	Decoder   *barcode.Decoder
	Line      *control.Line
	Avoider   Avoider
	Turner    Turner
	Telemetry telemetry.Publisher
}

// Robot is the behavior machine.
type Robot struct {
	cfg     model.RobotConfig
	clk     clock.Clock
	motor   device.Motor
	rng     device.RangeSensor
	ir      device.Reflectance
	heading HeadingSource
	capture *capture.Capture
	poller  *capture.Poller
	decoder *barcode.Decoder
	line    *control.Line
	avoider Avoider
	turner  Turner
	pub     telemetry.Publisher
	tracker *odometry.Tracker
	shared  *Shared
	log     zerolog.Logger

	rangeBits   atomic.Uint64
	paused      atomic.Bool
	defaultTurn atomic.Value // string

	// control task only
	avoided    bool
	following  bool
	halted     bool
	lastReport time.Time
	yaw        float64

	stepMu sync.Mutex
}

// New wires a Robot. The machine starts in LineFollowing.
func New(cfg model.RobotConfig, d Deps, log zerolog.Logger) *Robot {
	r := &Robot{
		cfg:     cfg,
		clk:     d.Clock,
		motor:   d.Motor,
		rng:     d.Range,
		ir:      d.IR,
		heading: d.Heading,
		capture: d.Capture,
		poller:  d.Poller,
		decoder: d.Decoder,
		line:    d.Line,
		avoider: d.Avoider,
		turner:  d.Turner,
		pub:     d.Telemetry,
		tracker: odometry.NewTracker(d.Odometry),
		shared:  NewShared(),
		log:     log,
	}
	if r.clk == nil {
		r.clk = clock.Real()
	}
	if r.pub == nil {
		r.pub = telemetry.Discard{}
	}
	r.defaultTurn.Store(cfg.DefaultTurn)
	r.setRange(-1)
	return r
}

// Shared exposes the hint variables.
func (r *Robot) Shared() *Shared { return r.shared }

// State returns the current behavior.
func (r *Robot) State() State { return r.shared.State() }

func (r *Robot) setRange(cm float64) { r.rangeBits.Store(math.Float64bits(cm)) }

// Range returns the last forward range, -1 when there was no echo.
func (r *Robot) Range() float64 { return math.Float64frombits(r.rangeBits.Load()) }

// DefaultTurn is the token used when a barcode gives no direction.
func (r *Robot) DefaultTurn() string { return r.defaultTurn.Load().(string) }

// Command applies a remote command. STOP parks the robot until FORWARD;
// LEFT and RIGHT replace the default turn.
func (r *Robot) Command(cmd barcode.Command, raw string) {
	switch cmd {
	case barcode.CmdStop:
		r.paused.Store(true)
	case barcode.CmdForward:
		r.paused.Store(false)
	case barcode.CmdLeft:
		r.defaultTurn.Store(barcode.TurnLeft)
	case barcode.CmdRight:
		r.defaultTurn.Store(barcode.TurnRight)
	default:
		r.log.Warn().Str("raw", raw).Msg("ignoring unknown command")
		return
	}
	r.log.Info().Stringer("cmd", cmd).Msg("remote command applied")
}

// Run starts the control task, the three watchers and, in poll mode, the
// edge poller. It returns when ctx is cancelled, with the motors stopped.
func (r *Robot) Run(ctx context.Context) error {
	r.log.Info().Stringer("state", r.State()).Msg("behavior loop started")
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return every(ctx, r.cfg.Tick, func() { r.Step(ctx) }) })
	g.Go(func() error { return every(ctx, r.cfg.ObstaclePeriod, r.checkObstacle) })
	g.Go(func() error { return every(ctx, r.cfg.BarcodePeriod, r.checkBarcode) })
	g.Go(func() error { return every(ctx, r.cfg.JunctionPeriod, r.checkJunction) })
	if r.poller != nil {
		g.Go(func() error { return r.poller.Run(ctx) })
	}
	err := g.Wait()
	r.motor.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Step runs one control tick.
func (r *Robot) Step(ctx context.Context) {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()

	now := r.clk.Now()
	r.tracker.Update(now)
	if r.paused.Load() {
		r.motor.Stop()
		if !r.halted {
			r.halted = true
			r.stopFollowing()
			r.event(EventStopped)
		}
		r.report(now)
		return
	}
	r.halted = false

	switch st := r.shared.State(); st {
	case LineFollowing:
		if r.obstacleAhead() {
			r.enterAvoidance()
			break
		}
		r.follow(now)
	case ObstacleAvoidance:
		r.avoid(ctx)
	case BarcodeScanning:
		r.scan()
	case WaitingForJunction:
		r.follow(now)
	case ExecutingTurn:
		r.turn()
	}
	r.report(r.clk.Now())
}

// obstacleAhead drains the flag. With AvoidOnce only the first obstacle counts.
func (r *Robot) obstacleAhead() bool {
	if !r.shared.DrainObstacle() {
		return false
	}
	if r.cfg.AvoidOnce && r.avoided {
		return false
	}
	return true
}

func (r *Robot) enterAvoidance() {
	if !r.shared.TransitionIf(LineFollowing, ObstacleAvoidance) {
		// A watcher moved the state first. The reading is dropped; the
		// obstacle watcher measures again once the robot is back on the line.
		r.log.Debug().Str("state", r.State().String()).Msg("obstacle signal superseded")
		return
	}
	r.stopFollowing()
	maneuver.Run(r.motor, r.clk, maneuver.Halt(r.cfg.ObstacleHalt))
	r.log.Info().Float64("range_cm", r.Range()).Msg("obstacle detected")
	r.event(EventObstacle)
}

func (r *Robot) follow(now time.Time) {
	if !r.following {
		r.line.Enable()
		r.following = true
	}
	out := r.line.Update(float64(r.ir.ReadAnalog()), now)
	r.motor.Drive(out.Left, out.Right)
}

func (r *Robot) stopFollowing() {
	r.following = false
	r.line.Disable()
}

func (r *Robot) avoid(ctx context.Context) {
	r.stopFollowing()
	if err := r.avoider.Avoid(ctx); err != nil {
		r.log.Warn().Err(err).Msg("avoidance aborted")
	}
	r.avoided = true
	r.capture.Reset()
	r.shared.SetState(LineFollowing)
	r.event(EventAvoidDone)
}

func (r *Robot) scan() {
	r.stopFollowing()
	r.event(EventScanning)
	maneuver.Run(r.motor, r.clk, maneuver.Halt(r.cfg.ScanHalt), r.cfg.ScanNudge, maneuver.Halt(0))

	res, err := r.decoder.Next()
	if err != nil {
		r.log.Warn().Err(err).Msg("barcode frame vanished")
	}
	token := barcode.TurnToken(res, r.DefaultTurn())
	if res.Valid {
		r.log.Info().Str("payload", res.Payload).Bool("checksum_ok", res.ChecksumOK).
			Bool("reversed", res.Reversed).Dur("scan", res.ScanDuration).Str("turn", token).Msg("barcode decoded")
		r.event(EventBarcode + res.Payload)
	} else {
		r.log.Warn().Dur("narrow", res.Narrow).Str("turn", token).Msg("barcode decode failed")
		r.event(EventBarcodeNG)
	}
	r.shared.SetTurn(token)
	r.shared.SetState(WaitingForJunction)
}

func (r *Robot) turn() {
	r.stopFollowing()
	token, ok := r.shared.TakeTurn()
	if !ok {
		token = r.DefaultTurn()
	}
	r.log.Info().Str("turn", token).Msg("junction turn")
	r.turner.Turn(token)
	r.capture.Reset()
	r.shared.SetState(LineFollowing)
	r.event(EventTurnDone)
}

// Snapshot builds a telemetry message labelled with label.
func (r *Robot) Snapshot(label string) model.Telemetry {
	if r.heading != nil {
		if yaw, err := r.heading.Heading(); err == nil {
			r.yaw = yaw
		}
	}
	return model.Telemetry{
		Speed:     r.tracker.Speed(),
		Distance:  r.tracker.Distance(),
		IMU:       model.IMUReading{Yaw: r.yaw},
		Range:     r.Range(),
		State:     label,
		Timestamp: r.clk.Now().UTC().Format(time.RFC3339Nano),
	}
}

func (r *Robot) event(label string) {
	r.pub.Publish(r.Snapshot(label))
}

// report publishes the periodic snapshot.
func (r *Robot) report(now time.Time) {
	if !r.lastReport.IsZero() && now.Sub(r.lastReport) < r.cfg.TelemetryInterval {
		return
	}
	r.lastReport = now
	r.pub.Publish(r.Snapshot(r.shared.State().String()))
}
