package device

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// HC-SR04 timing.
const (
	soundCMPerUs   = 0.03432
	echoStartWait  = 30 * time.Millisecond
	echoLengthWait = 60 * time.Millisecond
	rangeAttempts  = 3
	MinRangeCM     = 2.0
	MaxRangeCM     = 400.0
)

// Ultrasonic is an HC-SR04 on two GPIO pins.
type Ultrasonic struct {
	mu   sync.Mutex
	trig gpio.PinIO
	echo gpio.PinIO
}

// NewUltrasonic initialises periph and looks the pins up by name (e.g. GPIO23).
func NewUltrasonic(trig, echo string) (*Ultrasonic, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}
	u := &Ultrasonic{trig: gpioreg.ByName(trig), echo: gpioreg.ByName(echo)}
	if u.trig == nil {
		return nil, fmt.Errorf("no GPIO trigger pin named %s", trig)
	}
	if u.echo == nil {
		return nil, fmt.Errorf("no GPIO echo pin named %s", echo)
	}
	if err := u.trig.Out(gpio.Low); err != nil {
		return nil, err
	}
	if err := u.echo.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, err
	}
	return u, nil
}

// echoToCM converts a round trip time to distance.
func echoToCM(d time.Duration) float64 {
	return float64(d.Microseconds()) * soundCMPerUs / 2
}

func (u *Ultrasonic) ping() (float64, error) {
	if err := u.echo.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return 0, err
	}
	if err := u.trig.Out(gpio.High); err != nil {
		return 0, err
	}
	time.Sleep(10 * time.Microsecond)
	if err := u.trig.Out(gpio.Low); err != nil {
		return 0, err
	}
	if !u.echo.WaitForEdge(echoStartWait) {
		return 0, ErrNoEcho
	}
	start := time.Now()
	if err := u.echo.In(gpio.PullDown, gpio.FallingEdge); err != nil {
		return 0, err
	}
	if !u.echo.WaitForEdge(echoLengthWait) {
		return 0, ErrNoEcho
	}
	cm := echoToCM(time.Since(start))
	if cm < MinRangeCM || cm > MaxRangeCM {
		return cm, ErrOutOfRange
	}
	return cm, nil
}

// MeasureDistance implements RangeSensor, trying up to three pings.
func (u *Ultrasonic) MeasureDistance() (float64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var err error
	for i := 0; i < rangeAttempts; i++ {
		var cm float64
		if cm, err = u.ping(); err == nil {
			return cm, nil
		}
		time.Sleep(time.Millisecond)
	}
	return -1, err
}
