// Package logx builds the daemon's zerolog logger.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config selects the log level and output format.
type Config struct {
	Level string // trace, debug, info, warn, error
	// Format is "console" (human readable) or "json".
	Format string
	// Out defaults to stderr.
	Out io.Writer
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return lvl, nil
}

// New returns a logger for cfg. The level is applied process-wide so that
// SetLevel reaches every component logger derived from it. An invalid level
// falls back to info and is reported as an error alongside the usable logger.
func New(cfg Config) (zerolog.Logger, error) {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = consoleTimeFormat
	zerolog.ErrorFieldName = "err"

	var w io.Writer
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat}
	case "json":
		w = out
	default:
		return zerolog.New(out).With().Timestamp().Logger(), fmt.Errorf("unknown log format %q", cfg.Format)
	}

	lvl, err := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(w).With().Timestamp().Logger(), err
}

// SetLevel changes the process-wide log level. The level is left as is when
// name is invalid.
func SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
