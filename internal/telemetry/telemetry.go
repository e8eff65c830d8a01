// Package telemetry wires corepipe's ambient structured logging: a thin
// construction helper over github.com/joeycumines/logiface, bound by default
// to github.com/joeycumines/izerolog (zerolog backend), the pairing the
// teacher repo uses throughout its own submodules (e.g. logiface-zerolog).
package telemetry

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the type every corepipe component logs through. Using the
// generic logiface.Event interface (rather than izerolog's concrete *Event)
// keeps this package substitutable with any logiface binding.
type Logger = logiface.Logger[logiface.Event]

// Disabled returns a Logger that drops everything, the default for
// components constructed without an explicit WithLogger option.
func Disabled() *Logger {
	return izerolog.L.New(izerolog.L.WithLevel(logiface.LevelDisabled)).Logger()
}

// New builds a Logger writing newline-delimited JSON to w at the given
// level. level follows the syslog-derived scale in logiface.Level; callers
// typically pass logiface.LevelInformational for production and
// logiface.LevelTrace for diagnosing per-message routing issues.
func New(w io.Writer, level logiface.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return izerolog.L.New(
		izerolog.L.WithZerolog(zerolog.New(w).With().Timestamp().Logger()),
		izerolog.L.WithLevel(level),
	).Logger()
}
