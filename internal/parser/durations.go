package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ParseDurations reads edge intervals in microseconds separated by commas,
// whitespace or newlines. Lines starting with '#' are comments.
func ParseDurations(r io.Reader) ([]time.Duration, error) {
	var out []time.Duration
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ';'
		})
		for _, f := range fields {
			us, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid duration %q: %w", line, f, err)
			}
			out = append(out, time.Duration(us)*time.Microsecond)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read durations: %w", err)
	}
	return out, nil
}

// FormatDurations writes intervals as microseconds, one frame per line.
func FormatDurations(w io.Writer, durations []time.Duration) error {
	parts := make([]string, len(durations))
	for i, d := range durations {
		parts[i] = strconv.FormatInt(d.Microseconds(), 10)
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, ","))
	return err
}
