// Package util provides logging setup and small process helpers shared by the
// LineBot binaries.
package util

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger installs the global logger. level is a zerolog level name
// ("debug", "info", ...); unknown names fall back to info. pretty selects a
// human readable console writer instead of JSON lines.
func SetupLogger(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// Component returns a child of the global logger tagged with name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Info prints general system information messages.
func Info(msg string, args ...any) {
	log.Info().Msgf(msg, args...)
}

// Error prints error messages.
func Error(msg string, args ...any) {
	log.Error().Msgf(msg, args...)
}
