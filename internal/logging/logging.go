package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger and returns it. level is a
// zerolog level name ("debug", "info", ...); unknown names fall back to info.
// With json set, lines are written as JSON instead of the console format.
func Setup(level string, json bool) zerolog.Logger {
	return setup(os.Stderr, level, json)
}

func setup(out io.Writer, level string, json bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	var logger zerolog.Logger
	if json {
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	logger = logger.With().Timestamp().Logger()

	// Set the global logger instance used by log.Debug(), log.Info(), etc.
	log.Logger = logger

	return logger
}
