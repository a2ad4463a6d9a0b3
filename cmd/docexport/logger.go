package main

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger builds the CLI logger. --quiet keeps errors only and
// --verbose turns on debug output.
func newLogger(w io.Writer, f commonFlags) *log.Logger {
	level := log.WarnLevel
	switch {
	case f.quiet:
		level = log.ErrorLevel
	case f.verbose:
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: f.verbose,
		TimeFormat:      time.TimeOnly,
		Prefix:          "docexport",
	})
}
