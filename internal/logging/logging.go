// Package logging configures the process-wide zerolog logger. Output goes to
// stderr in console form so that the CLI's own tabular output on stdout stays
// machine-readable.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger. Packages that need a scoped logger should call
// Component rather than using Logger directly.
var Logger zerolog.Logger

func init() {
	Init("info")
}

// Init replaces the global logger with a console logger at the given level.
// An empty or unparsable level falls back to info.
func Init(level string) {
	// zerolog parses "" to NoLevel without error, which would mute output.
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	cw := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	Logger = zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a component name, e.g. "etl",
// "storage", "cli".
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
