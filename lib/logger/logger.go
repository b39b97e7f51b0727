// Package logger sets up the process wide zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var logger = log.Logger //nolint:gochecknoglobals // process logger

// Init sets the global level (debug, info, warn or error; info otherwise) and a console writer on stdout.
func Init(level string) {
	InitWriter(level, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

// InitWriter is Init writing to w.
func InitWriter(level string, w io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	log.Logger = log.Output(w)

	zerolog.SetGlobalLevel(Level(level))

	logger = log.With().Caller().Logger()
}

// Level parses a level name, defaulting to info.
func Level(level string) zerolog.Level {
	switch level {
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

// Get returns the process logger.
func Get() *zerolog.Logger {
	return &logger
}
