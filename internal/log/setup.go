// Package log wires structured logging for the scanner: a human-readable
// console writer when attached to a terminal, JSON lines otherwise, plus a
// terminal progress indicator for long batch scans.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Setup configures the global zerolog logger. When stderr is a terminal it
// writes a colorized console format; otherwise it emits plain JSON lines
// suitable for log aggregation.
func Setup(level zerolog.Level) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
