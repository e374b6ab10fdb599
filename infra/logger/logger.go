package logger

import corelogger "github.com/kilianp07/bayplan/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component, formatted according to the
// last Configure call.
func New(component string) Logger {
	return NewZerologLogger(component)
}
