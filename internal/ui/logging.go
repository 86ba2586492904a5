package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Logger struct {
	Debug bool
	zl    zerolog.Logger
}

func NewLogger(debug bool) *Logger {
	return NewLoggerTo(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}, debug)
}

func NewLoggerTo(w io.Writer, debug bool) *Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return &Logger{
		Debug: debug,
		zl:    zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// Nop discards everything; handy for tests and library callers.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		Debug: l.Debug,
		zl:    l.zl.With().Str("component", name).Logger(),
	}
}

// Zero exposes the structured logger for call sites that attach fields.
func (l *Logger) Zero() *zerolog.Logger {
	return &l.zl
}

func (l *Logger) Debugf(format string, args ...any) {
	l.zl.Debug().Msg(trim(format, args))
}

func (l *Logger) Infof(format string, args ...any) {
	l.zl.Info().Msg(trim(format, args))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.zl.Warn().Msg(trim(format, args))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.zl.Error().Msg(trim(format, args))
}

func trim(format string, args []any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
