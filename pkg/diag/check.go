// ABOUTME: Result validation that reports failures and returns a bool
// ABOUTME: Captures the caller location for each diagnostic
package diag

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"
)

// Diagnostic describes one failed operation
type Diagnostic struct {
	Operation string
	File      string
	Line      int
	Code      int32
	Err       error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %v (code %d)", d.File, d.Line, d.Operation, d.Err, d.Code)
}

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Report(Diagnostic)
}

var defaultSink atomic.Pointer[sinkHolder]

type sinkHolder struct{ sink Sink }

// SetSink installs the process-wide sink used by Check. A nil sink restores
// the default logging sink.
func SetSink(s Sink) {
	if s == nil {
		defaultSink.Store(nil)
		return
	}
	defaultSink.Store(&sinkHolder{sink: s})
}

// Default returns the process-wide sink
func Default() Sink {
	if h := defaultSink.Load(); h != nil {
		return h.sink
	}
	return fallbackSink()
}

var fallback atomic.Pointer[LogSink]

func fallbackSink() Sink {
	if s := fallback.Load(); s != nil {
		return s
	}
	fallback.CompareAndSwap(nil, NewLogSink(nil))
	return fallback.Load()
}

// Check returns true when err is nil. Otherwise it reports a diagnostic to the
// process-wide sink and returns false.
func Check(err error, operation string) bool {
	if err == nil {
		return true
	}
	report(Default(), err, operation, 2)
	return false
}

// Checker checks results against a specific sink
type Checker struct {
	Sink Sink
}

// Check behaves like the package-level Check but reports to c.Sink,
// falling back to the process-wide sink when c.Sink is nil.
func (c Checker) Check(err error, operation string) bool {
	if err == nil {
		return true
	}
	sink := c.Sink
	if sink == nil {
		sink = Default()
	}
	report(sink, err, operation, 2)
	return false
}

func report(sink Sink, err error, operation string, skip int) {
	d := Diagnostic{
		Operation: operation,
		File:      "???",
		Code:      CodeOf(err),
		Err:       err,
	}
	if _, file, line, ok := runtime.Caller(skip); ok {
		d.File = filepath.Base(file)
		d.Line = line
	}

	defer func() {
		// Sink panics stop here
		_ = recover()
	}()
	sink.Report(d)
}
