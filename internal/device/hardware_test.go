package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServoTicks(t *testing.T) {
	assert.EqualValues(t, 102, servoTicks(0, 500, 2500))
	assert.EqualValues(t, 307, servoTicks(90, 500, 2500))
	assert.EqualValues(t, 512, servoTicks(180, 500, 2500))
	assert.EqualValues(t, 512, servoTicks(270, 500, 2500))
}

func TestEchoToCM(t *testing.T) {
	assert.InDelta(t, 17.16, echoToCM(1000*time.Microsecond), 1e-9)
}

func TestDecodeAccel(t *testing.T) {
	// x = 0x3E80 >> 4 = 1000, y = -16 >> 4 = -1, z = 0
	x, y, z := decodeAccel([]byte{0x80, 0x3E, 0xF0, 0xFF, 0x00, 0x00})
	assert.EqualValues(t, 1000, x)
	assert.EqualValues(t, -1, y)
	assert.EqualValues(t, 0, z)
}

func TestDecodeMagOrder(t *testing.T) {
	x, y, z := decodeMag([]byte{0x01, 0x2C, 0xFE, 0x70, 0x00, 0x0A})
	assert.EqualValues(t, 300, x)
	assert.EqualValues(t, 10, y)
	assert.EqualValues(t, -400, z)
}

func TestADSConfigAndScale(t *testing.T) {
	assert.EqualValues(t, 0xC3E3, adsConfigWord(0))
	assert.EqualValues(t, 0xF3E3, adsConfigWord(3))
	assert.Zero(t, scaleReflectance(-5))
	assert.EqualValues(t, ReflectanceMax, scaleReflectance(32767))
	assert.EqualValues(t, 1241, scaleReflectance(8000))
}
