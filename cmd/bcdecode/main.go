// Command bcdecode decodes Code 39 edge captures offline. Each input line is
// one frame of inter-edge intervals in microseconds.
//
//	bcdecode capture.txt
//	bcdecode -synth LEFT | bcdecode
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"LineBot/internal/barcode"
	"LineBot/internal/capture"
	"LineBot/internal/parser"
	"LineBot/internal/util"
)

func main() {
	synth := flag.String("synth", "", "print the intervals for this payload instead of decoding")
	narrow := flag.Duration("narrow", 20*time.Millisecond, "narrow element for -synth")
	ratio := flag.Float64("ratio", 3.5, "wide/narrow ratio for -synth")
	check := flag.Bool("check", true, "append the mod 43 check character for -synth")
	flag.Parse()
	util.SetupLogger("warn", true)

	if *synth != "" {
		wide := time.Duration(float64(*narrow) * *ratio)
		durs, err := barcode.Synthesize(strings.ToUpper(*synth), *narrow, wide, *check)
		if err != nil {
			util.Error("%v", err)
			os.Exit(1)
		}
		if err := parser.FormatDurations(os.Stdout, durs); err != nil {
			util.Error("%v", err)
			os.Exit(1)
		}
		return
	}

	in := io.Reader(os.Stdin)
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			util.Error("%v", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	if err := decodeAll(in, os.Stdout, barcode.DefaultConfig()); err != nil {
		util.Error("%v", err)
		os.Exit(1)
	}
}

// decodeAll decodes one frame per non-empty input line.
func decodeAll(r io.Reader, w io.Writer, cfg barcode.Config) error {
	dec := barcode.NewDecoder(cfg, nil)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		durs, err := parser.ParseDurations(bytes.NewReader(sc.Bytes()))
		if err != nil {
			return fmt.Errorf("frame %d: %w", n+1, err)
		}
		if len(durs) == 0 {
			continue
		}
		n++
		var span time.Duration
		for _, d := range durs {
			span += d
		}
		res := dec.Decode(capture.Frame{Durations: durs, End: span})
		if res.Valid {
			fmt.Fprintf(w, "%d\tOK\t%q\tchecksum_ok=%t\treversed=%t\tnarrow=%s\tturn=%s\n",
				n, res.Payload, res.ChecksumOK, res.Reversed, res.Narrow, barcode.TurnToken(res, barcode.TurnRight))
		} else {
			fmt.Fprintf(w, "%d\tFAIL\tintervals=%d\tnarrow=%s\n", n, len(durs), res.Narrow)
		}
	}
	return sc.Err()
}
