package barcode

import (
	"fmt"
	"time"
)

// Synthesize renders payload as the interval sequence a sensor would capture,
// framed by start/stop characters and optionally carrying a check character.
func Synthesize(payload string, narrow, wide time.Duration, withCheck bool) ([]time.Duration, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("payload longer than %d characters", MaxPayload)
	}
	for i := 0; i < len(payload); i++ {
		if _, ok := Value(payload[i]); !ok {
			return nil, fmt.Errorf("character %q cannot be encoded", payload[i])
		}
	}
	text := payload
	if withCheck {
		sum, _ := Checksum(payload)
		c, ok := byValue[sum]
		if !ok {
			return nil, fmt.Errorf("check value %d has no character", sum)
		}
		text += string(c)
	}
	text = string(StartStop) + text + string(StartStop)

	out := make([]time.Duration, 0, len(text)*9)
	for i := 0; i < len(text); i++ {
		p, _ := Pattern(text[i])
		for j := 0; j < len(p); j++ {
			if p[j] == 'W' {
				out = append(out, wide)
			} else {
				out = append(out, narrow)
			}
		}
	}
	return out, nil
}
