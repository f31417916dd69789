package barcode

import (
	"errors"
	"slices"
	"time"

	"LineBot/internal/capture"
)

// ErrNoFrame is returned by Next when no finalized frame is waiting.
var ErrNoFrame = errors.New("barcode: no frame ready")

// Width is the class of a single bar or space.
type Width int

const (
	Narrow Width = iota
	Wide
	Invalid
)

func (w Width) String() string {
	switch w {
	case Narrow:
		return "narrow"
	case Wide:
		return "wide"
	default:
		return "invalid"
	}
}

// Config holds the decoder thresholds.
type Config struct {
	DefaultNarrow time.Duration `yaml:"default_narrow"` // used when too few intervals were captured
	MinNarrow     time.Duration `yaml:"min_narrow"`     // clamp range of the estimate
	MaxNarrow     time.Duration `yaml:"max_narrow"`
	PlausibleMin  time.Duration `yaml:"plausible_min"` // frames whose raw estimate falls outside are noise
	PlausibleMax  time.Duration `yaml:"plausible_max"`
	WideRatio     float64       `yaml:"wide_ratio"`
	MinSamples    int           `yaml:"min_samples"`
}

// DefaultConfig returns thresholds for a hand-pushed robot over printed bars.
func DefaultConfig() Config {
	return Config{
		DefaultNarrow: 100 * time.Millisecond,
		MinNarrow:     10 * time.Millisecond,
		MaxNarrow:     500 * time.Millisecond,
		PlausibleMin:  4 * time.Millisecond,
		PlausibleMax:  700 * time.Millisecond,
		WideRatio:     3,
		MinSamples:    10,
	}
}

// Result is one decode attempt.
type Result struct {
	Valid        bool
	ChecksumOK   bool
	Payload      string
	ScanDuration time.Duration
	Reversed     bool          // decoded from the reversed interval sequence
	Narrow       time.Duration // narrow unit used for classification
}

// EstimateNarrow returns the narrow unit used for classification and the raw
// estimate before clamping. The estimate is the mean of the lower third of the
// sorted intervals (at least five samples).
func EstimateNarrow(durations []time.Duration, cfg Config) (narrow, raw time.Duration) {
	if len(durations) < cfg.MinSamples {
		return cfg.DefaultNarrow, cfg.DefaultNarrow
	}
	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	k := len(sorted) / 3
	if k < 5 {
		k = 5
	}
	var sum time.Duration
	for _, d := range sorted[:k] {
		sum += d
	}
	raw = sum / time.Duration(k)
	return min(max(raw, cfg.MinNarrow), cfg.MaxNarrow), raw
}

// ClassifyWidth compares d against ratio times the narrow unit. A ratio of
// exactly the threshold is Invalid.
func ClassifyWidth(d, narrow time.Duration, ratio float64) Width {
	if narrow <= 0 {
		return Invalid
	}
	r := float64(d) / float64(narrow)
	switch {
	case r < ratio:
		return Narrow
	case r > ratio:
		return Wide
	default:
		return Invalid
	}
}

// Source yields finalized capture frames.
type Source interface {
	Ready() bool
	Take() (capture.Frame, bool)
}

// Decoder turns capture frames into payloads.
type Decoder struct {
	cfg Config
	src Source
}

// NewDecoder creates a Decoder reading frames from src. src may be nil when
// only Decode is used.
func NewDecoder(cfg Config, src Source) *Decoder {
	return &Decoder{cfg: cfg, src: src}
}

// FrameReady reports whether a finalized frame is waiting.
func (d *Decoder) FrameReady() bool {
	return d.src != nil && d.src.Ready()
}

// Next consumes the waiting frame and decodes it.
func (d *Decoder) Next() (Result, error) {
	if d.src == nil {
		return Result{}, ErrNoFrame
	}
	f, ok := d.src.Take()
	if !ok {
		return Result{}, ErrNoFrame
	}
	return d.Decode(f), nil
}

// Decode decodes a frame as captured, then reversed, and returns the first
// structurally valid result. An invalid Result still carries the scan duration
// and narrow unit for diagnostics.
func (d *Decoder) Decode(f capture.Frame) Result {
	res := Result{ScanDuration: f.Span()}
	narrow, raw := EstimateNarrow(f.Durations, d.cfg)
	res.Narrow = narrow
	if raw < d.cfg.PlausibleMin || raw > d.cfg.PlausibleMax {
		return res
	}

	if r, ok := d.attempt(f.Durations, narrow); ok {
		r.ScanDuration, r.Narrow = res.ScanDuration, narrow
		return r
	}
	rev := slices.Clone(f.Durations)
	slices.Reverse(rev)
	if r, ok := d.attempt(rev, narrow); ok {
		r.ScanDuration, r.Narrow = res.ScanDuration, narrow
		r.Reversed = true
		return r
	}
	return res
}

func (d *Decoder) attempt(durations []time.Duration, narrow time.Duration) (Result, bool) {
	var (
		chars   symbolBuf
		pattern [9]byte
		n       int
	)
	for _, dur := range durations {
		switch ClassifyWidth(dur, narrow, d.cfg.WideRatio) {
		case Narrow:
			pattern[n] = 'N'
		case Wide:
			pattern[n] = 'W'
		default:
			continue
		}
		n++
		if n < len(pattern) {
			continue
		}
		n = 0
		chars.append(Lookup(string(pattern[:])))
		if chars.full() {
			break
		}
	}
	return frame(chars.String())
}

// frame validates the start/stop framing, checks and strips the optional check
// character, and strips the sentinels.
func frame(s string) (Result, bool) {
	if len(s) < 3 || s[0] != StartStop || s[len(s)-1] != StartStop {
		return Result{}, false
	}
	body := s[1 : len(s)-1]
	res := Result{Valid: true}
	if len(s) >= 4 {
		data, check := body[:len(body)-1], body[len(body)-1]
		sum, ok := Checksum(data)
		if v, vok := Value(check); ok && vok && v == sum {
			res.ChecksumOK = true
			body = data
		}
	}
	res.Payload = body
	return res, true
}
