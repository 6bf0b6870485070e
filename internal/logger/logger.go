// Package logger provides the configured zerolog logger for StoryPets.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a structured logger for the given component at the given level.
// Unknown levels fall back to info.
func New(component, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().
		Str("component", component).
		Timestamp().
		Logger()
}

// Nop returns a disabled logger for tests and optional dependencies.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
