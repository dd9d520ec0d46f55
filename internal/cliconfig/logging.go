package cliconfig

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/wifiship/pkg/log"
)

// Logger returns the console logger used by the CLI.
func Logger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
}

// WithLevel returns l filtered at the named level.
func WithLevel(l zerolog.Logger, level string) zerolog.Logger {
	return l.Level(log.ParseLevel(level))
}
