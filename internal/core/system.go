// Package core assembles the robot from configuration and manages the
// lifecycle of its parts: hardware, telemetry sinks and the control loop.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"LineBot/internal/barcode"
	"LineBot/internal/capture"
	"LineBot/internal/clock"
	"LineBot/internal/control"
	"LineBot/internal/device"
	"LineBot/internal/imu"
	"LineBot/internal/maneuver"
	"LineBot/internal/model"
	"LineBot/internal/obstacle"
	"LineBot/internal/parser"
	"LineBot/internal/robot"
	"LineBot/internal/telemetry"
	"LineBot/internal/util"
)

// Runner is a long-running mode of the robot.
type Runner interface {
	Run(ctx context.Context) error
}

// System owns every component built from one configuration.
type System struct {
	cfg model.Config
	clk clock.Clock
	log zerolog.Logger

	HW      *Hardware
	Robot   *robot.Robot
	Heading *robot.HeadingHold
	Sinks   telemetry.Multi

	mqtt    *telemetry.MQTT
	lora    *telemetry.LoRa
	hub     *telemetry.Hub
	journal *telemetry.Journal
	virt    *util.VirtualSerial
	capture *capture.Capture

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	started   bool
	startLock sync.Mutex
}

// NewSystem opens hardware (or the simulator) and the telemetry sinks and
// wires the selected mode.
func NewSystem(cfg model.Config) (*System, error) {
	s := &System{cfg: cfg, clk: clock.Real(), log: util.Component("system")}

	if cfg.Simulate {
		s.HW = NewSimHardware(s.clk)
	} else {
		hw, err := OpenHardware(cfg.Hardware)
		if err != nil {
			return nil, err
		}
		s.HW = hw
	}
	if err := s.openSinks(); err != nil {
		s.close()
		return nil, err
	}
	if err := s.build(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *System) openSinks() error {
	tc := s.cfg.Telemetry
	if tc.Journal.Enabled {
		j, err := telemetry.OpenJournal(tc.Journal.Path, util.Component("journal"))
		if err != nil {
			return err
		}
		s.journal = j
		s.Sinks = append(s.Sinks, j)
	}
	if tc.WebSocket.Enabled {
		s.hub = telemetry.NewHub(tc.WebSocket.Addr, util.Component("hub"))
		s.Sinks = append(s.Sinks, s.hub)
	}
	if tc.MQTT.Enabled {
		s.mqtt = telemetry.NewMQTT(tc.MQTT, util.Component("mqtt"))
		s.Sinks = append(s.Sinks, s.mqtt)
	}
	if tc.LoRa.Enabled {
		if err := s.openLoRa(); err != nil {
			return err
		}
		s.Sinks = append(s.Sinks, s.lora)
	}
	return nil
}

func (s *System) openLoRa() error {
	lc := s.cfg.Telemetry.LoRa
	if lc.Virtual {
		v, err := util.OpenVirtualSerial(lc.Device, lc.VirtualPeer, util.Component("virt-serial"))
		if err != nil {
			return err
		}
		s.virt = v
	}
	line, err := device.NewSerialDevice(lc.Device, lc.Baud)
	if err != nil {
		return err
	}
	enc, err := parser.ForFormat(s.cfg.Telemetry.WireFormat)
	if err != nil {
		_ = line.Close()
		return err
	}
	var framer *telemetry.Framer
	if lc.LoRaWAN.Enabled {
		if framer, err = telemetry.NewFramer(lc.LoRaWAN); err != nil {
			_ = line.Close()
			return err
		}
	}
	s.lora = telemetry.NewLoRa(line, enc, framer, util.Component("lora"))
	return nil
}

func (s *System) build() error {
	hw, cfg := s.HW, s.cfg
	compass := imu.NewCompass(hw.IMU, imu.DefaultWindow)

	if cfg.Mode == model.ModeHeading {
		s.Heading = robot.NewHeadingHold(cfg.Robot, control.NewHeading(cfg.Heading), compass,
			hw.Motor, hw.Odometry, s.clk, s.Sinks, util.Component("heading"))
		return nil
	}

	s.capture = capture.New(s.clk, capture.Options{
		Capacity:     cfg.Capture.Capacity,
		Quiet:        cfg.Capture.Quiet,
		MinDurations: cfg.Capture.MinDurations,
	})
	var poller *capture.Poller
	switch {
	case cfg.Capture.Mode == model.CaptureInterrupt && !cfg.Simulate:
		if err := hw.AttachEdges(cfg.Hardware, s.capture.RecordEdgeAt); err != nil {
			return err
		}
	default:
		poller = capture.NewPoller(s.capture, hw.IR, cfg.Capture.PollInterval)
	}

	turner := maneuver.NewTurner(hw.Motor, hw.Odometry, s.clk, cfg.Turn, util.Component("turn"))
	scanner := obstacle.NewScanner(hw.Servo, hw.Range, s.clk, cfg.Scan)
	avoider := obstacle.NewAvoider(scanner, turner, hw.Motor, hw.IR, s.clk, cfg.Avoid, util.Component("avoid"))

	s.Robot = robot.New(cfg.Robot, robot.Deps{
		Clock:     s.clk,
		Motor:     hw.Motor,
		Range:     hw.Range,
		IR:        hw.IR,
		Odometry:  hw.Odometry,
		Heading:   compass,
		Capture:   s.capture,
		Poller:    poller,
		Decoder:   barcode.NewDecoder(cfg.Barcode, s.capture),
		Line:      control.NewLine(cfg.Line),
		Avoider:   avoider,
		Turner:    maneuver.NewJunctionTurn(turner, cfg.Junction),
		Telemetry: s.Sinks,
	}, util.Component("robot"))
	avoider.Notify = func(label string) { s.Sinks.Publish(s.Robot.Snapshot(label)) }

	if s.mqtt != nil {
		s.mqtt.OnCommand = s.Robot.Command
	}
	if s.hub != nil {
		s.hub.OnCommand = s.Robot.Command
	}
	return nil
}

// Runner returns the configured mode.
func (s *System) Runner() Runner {
	if s.Heading != nil {
		return s.Heading
	}
	return s.Robot
}

// StartAll connects the sinks and starts the selected mode in the background.
func (s *System) StartAll(ctx context.Context) error {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		return nil
	}
	if s.mqtt != nil {
		if err := s.mqtt.Connect(); err != nil {
			// telemetry is best effort; the robot runs without it
			s.log.Warn().Err(err).Msg("mqtt unavailable")
		}
	}
	ctx, s.cancel = context.WithCancel(ctx)
	if s.hub != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.hub.Start(); err != nil {
				s.log.Error().Err(err).Msg("hub stopped")
			}
		}()
	}
	if s.HW.Sim != nil && s.Robot != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.HW.Sim.Course(ctx, s.Robot.DefaultTurn(), util.Component("sim")); err != nil {
				s.log.Error().Err(err).Msg("sim course")
			}
		}()
	}
	runner := s.Runner()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := runner.Run(ctx); err != nil {
			s.log.Error().Err(err).Msg("control loop stopped")
		}
	}()
	s.started = true
	s.log.Info().Str("mode", s.cfg.Mode).Bool("sim", s.cfg.Simulate).Int("sinks", len(s.Sinks)).Msg("system started")
	return nil
}

// StopAll stops the control loop and releases everything.
func (s *System) StopAll() error {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		s.cancel()
		if s.hub != nil {
			s.hub.Stop()
		}
		s.wg.Wait()
		s.started = false
	}
	return s.close()
}

func (s *System) close() error {
	var errs []error
	if s.hub != nil {
		s.hub.Stop()
	}
	if s.mqtt != nil {
		s.mqtt.Close()
	}
	if s.lora != nil {
		errs = append(errs, s.lora.Close())
	}
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	if s.virt != nil {
		errs = append(errs, s.virt.Close())
	}
	if s.HW != nil {
		errs = append(errs, s.HW.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
