// Package logger builds the structured loggers handed to every bitsgate
// component. There is no package-level logger: callers construct one with
// New and pass the *slog.Logger down.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Config holds logger configuration
type Config struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"` // stdout, stderr, or file path
}

// Logger wraps a *slog.Logger with a level that can be changed at runtime.
type Logger struct {
	*slog.Logger

	level  *slog.LevelVar
	closer io.Closer
}

// New creates a logger from cfg.
// Output can be "stdout", "stderr", or a file path.
func New(cfg Config) (*Logger, error) {
	var (
		w        io.Writer
		closer   io.Closer
		useColor bool
	)

	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		w = os.Stdout
		useColor = isTerminal(os.Stdout)
	case "stderr":
		w = os.Stderr
		useColor = isTerminal(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		w = f
		closer = f
	}

	l := NewWithWriter(w, cfg.Level, cfg.Format, useColor)
	l.closer = closer
	return l, nil
}

// NewWithWriter creates a logger writing to w.
// This is primarily useful for testing.
func NewWithWriter(w io.Writer, level, format string, enableColor bool) *Logger {
	lv := new(slog.LevelVar)
	if parsed, ok := ParseLevel(level); ok {
		lv.Set(parsed)
	} else {
		lv.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: lv}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = NewColorTextHandler(w, opts, enableColor)
	}

	return &Logger{
		Logger: slog.New(newContextHandler(h)),
		level:  lv,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler), level: new(slog.LevelVar)}
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR (any case) to slog levels.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// SetLevel changes the minimum level. Invalid levels are ignored and
// reported as false.
func (l *Logger) SetLevel(level string) bool {
	parsed, ok := ParseLevel(level)
	if !ok {
		return false
	}
	l.level.Set(parsed)
	return true
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Duration returns duration since start time in milliseconds
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
