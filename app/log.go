package app

import (
	"bytes"
	"time"

	"ember/hal"

	"github.com/rs/zerolog"
)

// lineWriter feeds zerolog output to the HAL logger one line at a time.
type lineWriter struct {
	l hal.Logger
}

func (w lineWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte{'\n'}) {
		w.l.WriteLineBytes(line)
	}
	return len(p), nil
}

func newLogger(l hal.Logger, level zerolog.Level) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	out := zerolog.ConsoleWriter{
		Out:        lineWriter{l: l},
		NoColor:    true,
		TimeFormat: time.TimeOnly,
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
