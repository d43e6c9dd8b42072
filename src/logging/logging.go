// Package logging configures the process-wide zerolog logger and hands out
// child loggers tagged per bot or per component.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. Unknown levels fall back to info.
func Setup(level string, pretty bool) {
	SetupWriter(os.Stderr, level, pretty)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// ForBot returns a logger for one bot instance.
func ForBot(name, class string) zerolog.Logger {
	return log.With().Str("bot", name).Str("class", class).Logger()
}

// ForComponent returns a logger for a named subsystem.
func ForComponent(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
