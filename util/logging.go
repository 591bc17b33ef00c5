package util

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	Logger zerolog.Logger
)

func LogInit(inlevel string) {
	Logger = zerolog.New(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
	).Level(ParseLevel(inlevel)).With().Timestamp().Caller().Logger()

	Logger.Info().Msgf("logging initialized at level %v", Logger.GetLevel())
}

func ParseLevel(inlevel string) zerolog.Level {
	switch strings.ToLower(inlevel) {
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "warn":
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// DebugSink routes a projector's debug stream into the debug level of the
// logger current at call time, tagged with the projector name. Clients are
// rebuilt after a reload, so a later LogInit is picked up by the new sink.
func DebugSink(projector string) func(string) {
	l := Logger.With().Str("projector", projector).Logger()
	return func(msg string) {
		l.Debug().Msg(msg)
	}
}

// ProjectorLogger is the logger handed to a projector client for warnings.
func ProjectorLogger(projector string) *zerolog.Logger {
	l := Logger.With().Str("projector", projector).Logger()
	return &l
}
