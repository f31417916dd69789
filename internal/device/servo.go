package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	i2c "github.com/d2r2/go-i2c"
)

// PCA9685 registers.
const (
	pcaMode1    = 0x00
	pcaPrescale = 0xFE
	pcaLED0     = 0x06

	pcaSleep = 0x10
	pcaAI    = 0x20

	servoPeriodUs = 20000 // 50 Hz
	pcaSteps      = 4096
	// round(25MHz / (4096 * 50Hz)) - 1
	pcaPrescale50Hz = 121
)

// PCA9685Servo positions a hobby servo on one PCA9685 channel.
type PCA9685Servo struct {
	mu      sync.Mutex
	dev     *i2c.I2C
	channel int
	minUs   float64
	maxUs   float64
}

// NewPCA9685Servo opens the controller at addr on bus and sets 50 Hz.
func NewPCA9685Servo(addr uint8, bus, channel, minUs, maxUs int) (*PCA9685Servo, error) {
	dev, err := i2c.NewI2C(addr, bus)
	if err != nil {
		return nil, fmt.Errorf("open pca9685 0x%02x: %w", addr, err)
	}
	for _, w := range [][2]byte{
		{pcaMode1, pcaSleep},
		{pcaPrescale, pcaPrescale50Hz},
		{pcaMode1, 0},
	} {
		if err := dev.WriteRegU8(w[0], w[1]); err != nil {
			dev.Close()
			return nil, fmt.Errorf("init pca9685: %w", err)
		}
	}
	time.Sleep(500 * time.Microsecond)
	if err := dev.WriteRegU8(pcaMode1, pcaAI); err != nil {
		dev.Close()
		return nil, fmt.Errorf("init pca9685: %w", err)
	}
	return &PCA9685Servo{dev: dev, channel: channel, minUs: float64(minUs), maxUs: float64(maxUs)}, nil
}

// servoTicks maps 0-180 degrees to PCA9685 off-counts.
func servoTicks(deg, minUs, maxUs float64) uint16 {
	deg = math.Max(0, math.Min(180, deg))
	us := minUs + (maxUs-minUs)*deg/180
	return uint16(math.Round(us * pcaSteps / servoPeriodUs))
}

// SetAngle implements Servo. Bus errors are dropped; the next call retries.
func (s *PCA9685Servo) SetAngle(deg float64) {
	t := servoTicks(deg, s.minUs, s.maxUs)
	reg := byte(pcaLED0 + 4*s.channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range []byte{0, 0, byte(t), byte(t >> 8)} {
		if err := s.dev.WriteRegU8(reg+byte(i), v); err != nil {
			return
		}
	}
}

// Close releases the bus.
func (s *PCA9685Servo) Close() error { return s.dev.Close() }
