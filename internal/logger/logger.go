// Package logger builds the zerolog loggers used by every binary and carries
// a request- or run-scoped logger through context.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New returns an unfiltered console logger, for tools that do not load
// configuration.
func New() zerolog.Logger {
	return NewWithWriter(consoleWriter())
}

// NewWithConfig creates a logger at the given level. pretty selects console
// output; otherwise one JSON object is written per line. Unknown levels fall
// back to info.
func NewWithConfig(level string, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stdout
	if pretty {
		w = consoleWriter()
	}
	return NewWithWriter(w).Level(ParseLevel(level))
}

// ParseLevel maps debug|info|warn|error to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored by WithContext, or a fresh console
// logger when there is none.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return log
	}
	return New()
}

func consoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
}
