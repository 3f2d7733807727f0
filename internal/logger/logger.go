// Package logger configures the global zerolog logger from command line
// options.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a go-flags option group.
type Logger struct {
	Level  string `long:"log-level"  env:"LOG_LEVEL"  description:"Log level" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	Format string `long:"log-format" env:"LOG_FORMAT" description:"Log format" choice:"console" choice:"json" default:"console"`
	Output string `long:"log-output" env:"LOG_OUTPUT" description:"Log file, stderr when empty"`
}

// Setup applies the options to the global logger.
func (l Logger) Setup() {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = os.Stderr
	if l.Output != "" {
		f, err := os.OpenFile(l.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Error().Err(err).Str("path", l.Output).Msg("Failed to open log file, using stderr")
		} else {
			w = f
		}
	}
	if l.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: l.Output != ""}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
