package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	i2c "github.com/d2r2/go-i2c"
	"github.com/stianeikeland/go-rpio/v4"
)

// ADS1115 registers and single-shot config bits.
const (
	adsConversion = 0x00
	adsConfig     = 0x01

	adsStart      = 1 << 15
	adsPGA4096    = 1 << 9
	adsSingleShot = 1 << 8
	adsRate860    = 7 << 5
	adsCompOff    = 0x3

	adsFullScaleV = 4.096
	// ReflectanceMax is the top of the 12-bit scale readings are reported on.
	ReflectanceMax = 4095
	reflectanceRef = 3.3
)

// adsConfigWord builds a single-ended single-shot conversion on channel 0-3.
func adsConfigWord(channel int) uint16 {
	mux := uint16(4+channel&3) << 12
	return adsStart | mux | adsPGA4096 | adsSingleShot | adsRate860 | adsCompOff
}

// scaleReflectance maps a signed ADS1115 count onto a 0-4095, 3.3 V scale.
func scaleReflectance(count int16) uint16 {
	if count <= 0 {
		return 0
	}
	v := float64(count) * adsFullScaleV / 32768
	raw := math.Round(v * ReflectanceMax / reflectanceRef)
	return uint16(math.Min(raw, ReflectanceMax))
}

// IRSensor reads the analog channel through an ADS1115 and the comparator
// output on a GPIO pin. rpio.Open must have succeeded.
type IRSensor struct {
	mu      sync.Mutex
	adc     *i2c.I2C
	channel int
	pin     rpio.Pin
	last    uint16
}

// NewIRSensor opens the ADC at addr on bus and sets pin as input.
func NewIRSensor(bus int, addr uint8, channel, pin int) (*IRSensor, error) {
	adc, err := i2c.NewI2C(addr, bus)
	if err != nil {
		return nil, fmt.Errorf("open ads1115 0x%02x: %w", addr, err)
	}
	p := rpio.Pin(pin)
	p.Input()
	return &IRSensor{adc: adc, channel: channel, pin: p}, nil
}

// ReadAnalog implements Reflectance. On a bus error the previous value is returned.
func (s *IRSensor) ReadAnalog() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.adc.WriteRegU16BE(adsConfig, adsConfigWord(s.channel)); err != nil {
		return s.last
	}
	time.Sleep(2 * time.Millisecond)
	v, err := s.adc.ReadRegU16BE(adsConversion)
	if err != nil {
		return s.last
	}
	s.last = scaleReflectance(int16(v))
	return s.last
}

// ReadDigital implements Reflectance. High means a dark surface.
func (s *IRSensor) ReadDigital() bool { return s.pin.Read() == rpio.High }

// Close releases the ADC.
func (s *IRSensor) Close() error { return s.adc.Close() }
