// Package logger builds the zerolog loggers used by the client and the CLI.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

type stackTracer interface{ StackTrace() pkgerrors.StackTrace }

func init() {
	// .Stack() on an error event renders a pkg/errors stack, attaching one
	// to plain errors first.
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}
}

// New returns a JSON logger on stdout tagged with serviceName.
func New(serviceName string) zerolog.Logger {
	return NewWithWriter(serviceName, os.Stdout, zerolog.InfoLevel)
}

// NewWithWriter returns a JSON logger writing to w at level.
func NewWithWriter(serviceName string, w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// NewConsole returns a human readable logger for interactive use.
func NewConsole(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
