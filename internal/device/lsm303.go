package device

import (
	"fmt"
	"sync"

	i2c "github.com/d2r2/go-i2c"
)

// LSM303DLHC registers.
const (
	lsmCtrlReg1A = 0x20
	lsmOutXLA    = 0x28
	lsmAutoInc   = 0x80
	lsmCRARegM   = 0x00
	lsmCRBRegM   = 0x01
	lsmMRRegM    = 0x02
	lsmOutXHM    = 0x03
)

// LSM303 is the accelerometer/magnetometer pair on I2C.
type LSM303 struct {
	mu    sync.Mutex
	accel *i2c.I2C
	mag   *i2c.I2C
}

// NewLSM303 opens both devices on bus and starts continuous conversion.
func NewLSM303(bus int, accelAddr, magAddr uint8) (*LSM303, error) {
	a, err := i2c.NewI2C(accelAddr, bus)
	if err != nil {
		return nil, fmt.Errorf("open accel 0x%02x: %w", accelAddr, err)
	}
	m, err := i2c.NewI2C(magAddr, bus)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open magnetometer 0x%02x: %w", magAddr, err)
	}
	s := &LSM303{accel: a, mag: m}
	// 10 Hz, all axes; 15 Hz mag, ±1.3 gauss, continuous
	writes := []struct {
		dev      *i2c.I2C
		reg, val byte
	}{
		{a, lsmCtrlReg1A, 0x27},
		{m, lsmCRARegM, 0x14},
		{m, lsmCRBRegM, 0x20},
		{m, lsmMRRegM, 0x00},
	}
	for _, w := range writes {
		if err := w.dev.WriteRegU8(w.reg, w.val); err != nil {
			s.Close()
			return nil, fmt.Errorf("init lsm303: %w", err)
		}
	}
	return s, nil
}

// decodeAccel unpacks little endian 12-bit left aligned samples.
func decodeAccel(b []byte) (x, y, z int16) {
	x = int16(uint16(b[0])|uint16(b[1])<<8) >> 4
	y = int16(uint16(b[2])|uint16(b[3])<<8) >> 4
	z = int16(uint16(b[4])|uint16(b[5])<<8) >> 4
	return
}

// decodeMag unpacks big endian samples in X, Z, Y register order.
func decodeMag(b []byte) (x, y, z int16) {
	x = int16(uint16(b[0])<<8 | uint16(b[1]))
	z = int16(uint16(b[2])<<8 | uint16(b[3]))
	y = int16(uint16(b[4])<<8 | uint16(b[5]))
	return
}

// ReadAccel implements OrientationSensor.
func (s *LSM303) ReadAccel() (x, y, z int16, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, n, err := s.accel.ReadRegBytes(lsmOutXLA|lsmAutoInc, 6)
	if err != nil {
		return 0, 0, 0, err
	}
	if n < 6 {
		return 0, 0, 0, fmt.Errorf("accel: short read %d", n)
	}
	x, y, z = decodeAccel(b)
	return x, y, z, nil
}

// ReadMagnetometer implements OrientationSensor.
func (s *LSM303) ReadMagnetometer() (x, y, z int16, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, n, err := s.mag.ReadRegBytes(lsmOutXHM, 6)
	if err != nil {
		return 0, 0, 0, err
	}
	if n < 6 {
		return 0, 0, 0, fmt.Errorf("magnetometer: short read %d", n)
	}
	x, y, z = decodeMag(b)
	return x, y, z, nil
}

// Close releases both devices.
func (s *LSM303) Close() error {
	err := s.accel.Close()
	if merr := s.mag.Close(); err == nil {
		err = merr
	}
	return err
}
