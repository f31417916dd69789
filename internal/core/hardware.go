package core

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"LineBot/internal/clock"
	"LineBot/internal/device"
	"LineBot/internal/model"
)

// Hardware is the set of collaborators the robot core drives.
type Hardware struct {
	Motor    device.Motor
	Servo    device.Servo
	Range    device.RangeSensor
	IR       device.Reflectance
	IMU      device.OrientationSensor
	Odometry device.Odometry

	// Sim is set for simulated hardware.
	Sim *SimWorld

	closers []io.Closer
	rpio    bool
}

// Close releases every opened device.
func (h *Hardware) Close() error {
	var errs []error
	if h.Motor != nil {
		h.Motor.Stop()
	}
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if h.rpio {
		if err := rpio.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenHardware opens the Raspberry Pi peripherals described by cfg.
func OpenHardware(cfg model.HardwareConfig) (*Hardware, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	h := &Hardware{rpio: true}
	fail := func(err error) (*Hardware, error) {
		_ = h.Close()
		return nil, err
	}

	h.Motor = device.NewPWMMotor(device.MotorPins{
		LeftPWM: cfg.LeftPWM, RightPWM: cfg.RightPWM,
		LeftIn1: cfg.LeftIn1, LeftIn2: cfg.LeftIn2,
		RightIn1: cfg.RightIn1, RightIn2: cfg.RightIn2,
		Freq: cfg.MotorFreq,
	})

	servo, err := device.NewPCA9685Servo(cfg.ServoAddr, cfg.I2CBus, cfg.ServoChannel, cfg.ServoMinUs, cfg.ServoMaxUs)
	if err != nil {
		return fail(err)
	}
	h.Servo = servo
	h.closers = append(h.closers, servo)

	rng, err := device.NewUltrasonic(cfg.TrigPin, cfg.EchoPin)
	if err != nil {
		return fail(err)
	}
	h.Range = rng

	ir, err := device.NewIRSensor(cfg.I2CBus, cfg.ADCAddr, cfg.ADCChannel, cfg.IRPin)
	if err != nil {
		return fail(err)
	}
	h.IR = ir
	h.closers = append(h.closers, ir)

	lsm, err := device.NewLSM303(cfg.I2CBus, cfg.AccelAddr, cfg.MagAddr)
	if err != nil {
		return fail(err)
	}
	h.IMU = lsm
	h.closers = append(h.closers, lsm)

	enc, err := device.NewEncoders(cfg.GPIOChip, cfg.LeftEncoder, cfg.RightEncoder)
	if err != nil {
		return fail(err)
	}
	h.Odometry = enc
	h.closers = append(h.closers, enc)
	return h, nil
}

// NewSimHardware builds in-memory hardware on clk.
func NewSimHardware(clk clock.Clock) *Hardware {
	w := NewSimWorld(clk)
	return &Hardware{
		Motor:    w.Motor,
		Servo:    w.Servo,
		Range:    w.Range,
		IR:       w.IR,
		IMU:      w.IMU,
		Odometry: w.Odometry,
		Sim:      w,
	}
}

// AttachEdges feeds fn the kernel edge timestamps of the IR comparator line
// in interrupt capture mode.
func (h *Hardware) AttachEdges(cfg model.HardwareConfig, fn func(time.Duration)) error {
	src, err := device.NewEdgeSource(cfg.GPIOChip, cfg.IRPin, fn)
	if err != nil {
		return err
	}
	h.closers = append(h.closers, src)
	return nil
}
