// Package logger builds the zerolog.Logger instance threaded through the
// executive (§9: singleton accessors become fields of an Executive
// context, and that includes logging — no package-level default logger).
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Setup builds a zerolog.Logger writing structured JSON to stdout unless
// pretty is requested, at the given level ("debug", "info", "warn",
// "error"; anything else defaults to "info").
func Setup(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out interface {
		Write(p []byte) (int, error)
	} = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	l := zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(level))
	return l
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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
