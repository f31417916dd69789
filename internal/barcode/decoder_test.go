package barcode

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LineBot/internal/capture"
	"LineBot/internal/clock"
)

const (
	unit = 20 * time.Millisecond
	wide = 70 * time.Millisecond
)

func decode(t *testing.T, durations []time.Duration) Result {
	t.Helper()
	return NewDecoder(DefaultConfig(), nil).Decode(capture.Frame{Durations: durations})
}

func TestClassifyWidthOverAlphabet(t *testing.T) {
	for _, s := range symbols {
		for i := 0; i < len(s.pattern); i++ {
			d, want := unit, Narrow
			if s.pattern[i] == 'W' {
				d, want = wide, Wide
			}
			assert.Equal(t, want, ClassifyWidth(d, unit, 3), "%c element %d", s.char, i)
		}
	}
}

func TestClassifyWidthExactRatioIsInvalid(t *testing.T) {
	assert.Equal(t, Invalid, ClassifyWidth(3*unit, unit, 3))
	assert.Equal(t, Narrow, ClassifyWidth(3*unit-time.Microsecond, unit, 3))
	assert.Equal(t, Wide, ClassifyWidth(3*unit+time.Microsecond, unit, 3))
	assert.Equal(t, Invalid, ClassifyWidth(unit, 0, 3))
}

func TestEstimateNarrow(t *testing.T) {
	cfg := DefaultConfig()

	durs := append(slices.Repeat([]time.Duration{unit}, 10), slices.Repeat([]time.Duration{wide}, 5)...)
	narrow, raw := EstimateNarrow(durs, cfg)
	assert.Equal(t, unit, narrow)
	assert.Equal(t, unit, raw)

	narrow, _ = EstimateNarrow(durs[:9], cfg)
	assert.Equal(t, cfg.DefaultNarrow, narrow)

	tiny := slices.Repeat([]time.Duration{5 * time.Millisecond}, 12)
	narrow, raw = EstimateNarrow(tiny, cfg)
	assert.Equal(t, cfg.MinNarrow, narrow)
	assert.Equal(t, 5*time.Millisecond, raw)
}

func TestRoundTripWithChecksum(t *testing.T) {
	durs, err := Synthesize("B", unit, wide, true)
	require.NoError(t, err)
	require.Len(t, durs, 36)

	r := decode(t, durs)
	assert.True(t, r.Valid)
	assert.True(t, r.ChecksumOK)
	assert.Equal(t, "B", r.Payload)
	assert.False(t, r.Reversed)
	assert.Equal(t, unit, r.Narrow)
}

func TestReversedInput(t *testing.T) {
	for _, payload := range []string{"B", "RIGHT", "L7"} {
		durs, err := Synthesize(payload, unit, wide, true)
		require.NoError(t, err)
		slices.Reverse(durs)

		r := decode(t, durs)
		assert.True(t, r.Valid, payload)
		assert.True(t, r.ChecksumOK, payload)
		assert.True(t, r.Reversed, payload)
		assert.Equal(t, payload, r.Payload)
	}
}

func TestChecksumMismatchKeepsPayload(t *testing.T) {
	durs, err := Synthesize("RIGHT", unit, wide, false)
	require.NoError(t, err)

	r := decode(t, durs)
	assert.True(t, r.Valid)
	assert.False(t, r.ChecksumOK)
	assert.Equal(t, "RIGHT", r.Payload)
}

func TestUnknownSymbolDegrades(t *testing.T) {
	start, _ := Pattern(StartStop)
	var durs []time.Duration
	for _, p := range []string{start, "WWWWNNNNN", start} {
		for i := 0; i < len(p); i++ {
			if p[i] == 'W' {
				durs = append(durs, wide)
			} else {
				durs = append(durs, unit)
			}
		}
	}
	r := decode(t, durs)
	assert.True(t, r.Valid)
	assert.False(t, r.ChecksumOK)
	assert.Equal(t, string(Unknown), r.Payload)
}

func TestAmbiguousElementIsDropped(t *testing.T) {
	durs, err := Synthesize("B", unit, wide, false)
	require.NoError(t, err)
	durs = slices.Insert(durs, 9, 3*unit)

	r := decode(t, durs)
	assert.True(t, r.Valid)
	assert.Equal(t, "B", r.Payload)
}

func TestRejectedFrames(t *testing.T) {
	cases := map[string][]time.Duration{
		"too short":   slices.Repeat([]time.Duration{unit}, 9),
		"implausible": slices.Repeat([]time.Duration{time.Millisecond}, 40),
		"no framing":  mustSynth(t, "AB")[9:27],
	}
	for name, durs := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, decode(t, durs).Valid)
		})
	}
}

func mustSynth(t *testing.T, payload string) []time.Duration {
	t.Helper()
	d, err := Synthesize(payload, unit, wide, false)
	require.NoError(t, err)
	return d
}

func TestSynthesizeErrors(t *testing.T) {
	_, err := Synthesize("LEFT", unit, wide, true)
	assert.Error(t, err, "LEFT has check value 36")

	_, err = Synthesize("a", unit, wide, false)
	assert.Error(t, err)
}

func TestDecoderConsumesCapturedFrame(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	c := capture.New(clk, capture.DefaultOptions())
	dec := NewDecoder(DefaultConfig(), c)

	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrNoFrame)

	durs := mustSynth(t, "RIGHT")
	ts := time.Duration(0)
	c.RecordEdge(ts)
	for _, d := range durs {
		ts += d
		c.RecordEdge(ts)
	}
	assert.False(t, c.PollReadiness(ts+10*time.Millisecond))
	clk.Advance(ts + 100*time.Millisecond)
	require.True(t, dec.FrameReady())

	r, err := dec.Next()
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.Equal(t, "RIGHT", r.Payload)
	assert.Equal(t, ts, r.ScanDuration)
	assert.False(t, dec.FrameReady())
}

func TestParseCommand(t *testing.T) {
	cases := map[string]Command{
		"LEFT":    CmdLeft,
		" left ":  CmdLeft,
		"L2":      CmdLeft,
		"RIGHT":   CmdRight,
		"R":       CmdRight,
		"STOP":    CmdStop,
		"S":       CmdStop,
		"FORWARD": CmdForward,
		"FWD":     CmdForward,
		"go":      CmdForward,
		"F":       CmdForward,
		"SPIN":    CmdUnknown,
		"":        CmdUnknown,
		"XYZ":     CmdUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseCommand(in), in)
	}
}

func TestTurnToken(t *testing.T) {
	assert.Equal(t, TurnRight, TurnToken(Result{}, TurnRight))
	assert.Equal(t, TurnLeft, TurnToken(Result{Valid: true, Payload: "L"}, TurnRight))
	assert.Equal(t, TurnRight, TurnToken(Result{Valid: true, Payload: "RIGHT"}, TurnLeft))
	assert.Equal(t, TurnLeft, TurnToken(Result{Valid: true, Payload: "7"}, TurnLeft))
}
