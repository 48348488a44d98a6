package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the structured JSON logger. Output goes to stderr so the
// envelope on stdout stays machine-parseable. Level comes from
// SUDOSTAKE_LOG_LEVEL (default info).
func NewLogger(component string) zerolog.Logger {
	return NewLoggerWithWriter(component, os.Stderr)
}

func NewLoggerWithWriter(component string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(parseLogLevel(os.Getenv("SUDOSTAKE_LOG_LEVEL"))).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func parseLogLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
