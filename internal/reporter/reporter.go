// Package reporter accumulates structured diagnostics produced while
// parsing, validating, and reformatting a package tree. It never panics
// or unwinds: callers get a bool/value pair back and decide whether to
// continue.
package reporter

import (
	"fmt"
	"log"
	"os"
)

// Sink receives one formatted diagnostic line at a time.
type Sink func(msg string)

// StderrSink returns a Sink backed by the standard library logger,
// matching the plain fmt/log style the rest of this module's ancestry
// uses for diagnostics (no structured-logging dependency).
func StderrSink() Sink {
	l := log.New(os.Stderr, "", 0)
	return func(msg string) { l.Println(msg) }
}

// DiscardSink returns a Sink that drops every message. Used by
// read-only probes (e.g. the trial parses in the registry and pipeline
// that run through NullBadVal) that must not leave side effects.
func DiscardSink() Sink { return func(string) {} }

// BadVal is the mutable error-accumulator threaded through a single
// file or row's worth of parsing. SourceName and LineNo give every
// diagnostic its location; Errors counts failures so callers can decide
// whether the overall run succeeded.
type BadVal struct {
	SourceName string
	LineNo     int
	Errors     int
	Warnings   int
	Sink       Sink
}

// New creates a BadVal bound to sourceName, reporting to sink. A nil
// sink is replaced with DiscardSink.
func New(sourceName string, sink Sink) *BadVal {
	if sink == nil {
		sink = DiscardSink()
	}
	return &BadVal{SourceName: sourceName, Sink: sink}
}

// NullBadVal is a BadVal whose sink silently discards every message.
// Intended for probes that parse speculatively and must not pollute the
// real diagnostic stream (e.g. "is this spec string a known type?").
func NullBadVal() *BadVal {
	return &BadVal{SourceName: "<probe>", Sink: DiscardSink()}
}

// AtLine returns a shallow copy of b positioned at a new line number,
// useful when iterating rows of the same source file.
func (b *BadVal) AtLine(line int) *BadVal {
	if b == nil {
		return NullBadVal()
	}
	cp := *b
	cp.LineNo = line
	return &cp
}

// Fail records a cell-level diagnostic:
//
//	Bad <kind>  in <source> on line <line>: '<value>' (<reason>)
//
// and increments Errors. It always returns false so callers can write
// `if !ok { return }`-style guards inline.
func (b *BadVal) Fail(kind, value, reason string) bool {
	if b == nil {
		return false
	}
	b.Errors++
	b.emit(kind, value, reason)
	return false
}

// Warn records a non-fatal diagnostic without incrementing Errors.
func (b *BadVal) Warn(kind, value, reason string) {
	if b == nil {
		return
	}
	b.Warnings++
	b.emit(kind, value, reason)
}

func (b *BadVal) emit(kind, value, reason string) {
	msg := fmt.Sprintf("Bad %s  in %s on line %d: '%s'", kind, b.SourceName, b.LineNo, value)
	if reason != "" {
		msg += fmt.Sprintf(" (%s)", reason)
	}
	if b.Sink != nil {
		b.Sink(msg)
	}
}

// OK reports whether no error-level diagnostic has been recorded yet.
func (b *BadVal) OK() bool {
	return b == nil || b.Errors == 0
}
