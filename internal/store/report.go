package store

import (
	"log"

	"github.com/Runemoro/knit/internal/mapping"
)

// Reporter receives format errors from mapping files the store had to
// replace with identity mappings. Report must not block.
type Reporter interface {
	Report(err *mapping.FormatError)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(err *mapping.FormatError)

// Report calls f.
func (f ReporterFunc) Report(err *mapping.FormatError) { f(err) }

// NopReporter discards reports.
type NopReporter struct{}

// Report does nothing.
func (NopReporter) Report(*mapping.FormatError) {}

// LogReporter logs reports. A nil Logger uses the standard logger.
type LogReporter struct {
	Logger *log.Logger
}

// Report logs err.
func (r LogReporter) Report(err *mapping.FormatError) {
	logf := log.Printf
	if r.Logger != nil {
		logf = r.Logger.Printf
	}
	if err.Line == 0 {
		logf("malformed mapping file %s: %s", err.File, err.Message)
		return
	}
	logf("malformed mapping file %s:%d: %s", err.File, err.Line, err.Message)
}
