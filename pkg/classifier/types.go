// Package classifier turns raw go test / go build output into navigable
// diagnostic records.
//
// Every input line is tested against an ordered rule list; the first
// rule that matches consumes the line and its disposition decides what
// happens to the record currently being accumulated.
package classifier

import (
	"fmt"
	"time"
)

// Severity tags a record as an error or as informational.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityInfo  Severity = "info"
)

// Rank orders severities so callers can filter with a minimum level.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ParseSeverity parses a severity name.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityError, SeverityInfo:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("invalid severity %q (must be error or info)", s)
	}
}

// Disposition is the effect a matching rule has on the classifier state.
type Disposition string

const (
	// DispositionEmit closes the open record and starts a new one.
	DispositionEmit Disposition = "emit"

	// DispositionContinue appends the captured text to the open record.
	DispositionContinue Disposition = "continue"

	// DispositionIgnore consumes the line without touching any record.
	DispositionIgnore Disposition = "ignore"

	// DispositionInfoOnly records context on the open record (a standard
	// library frame) without changing its location or message.
	DispositionInfoOnly Disposition = "info-only"

	// DispositionTerminal finalizes the open multi-line record.
	DispositionTerminal Disposition = "terminal"
)

// Frame is a stack frame seen while a record was open.
type Frame struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// Record is a structured diagnostic extracted from log text.
// Zero File, Line and Column mean the value is absent.
type Record struct {
	// File is the source path the diagnostic points at.
	File string `json:"file,omitempty"`

	// Line is the 1-based source line number.
	Line int `json:"line,omitempty"`

	// Column is the 1-based source column, only present for compiler output.
	Column int `json:"column,omitempty"`

	// Message is the diagnostic text; multi-line messages are newline-joined.
	Message string `json:"message"`

	// Severity is error or info.
	Severity Severity `json:"severity"`

	// Multiline is set when the record spans more than one input line.
	Multiline bool `json:"multiline,omitempty"`

	// Test is the name of the test the diagnostic belongs to, if known.
	Test string `json:"test,omitempty"`

	// Elapsed is the duration reported alongside the record, if any.
	Elapsed time.Duration `json:"elapsed,omitempty"`

	// Rule is the name of the rule that created the record.
	Rule string `json:"rule"`

	// InputLine is the 1-based position of the line that created the record.
	InputLine int `json:"input_line"`

	// Frames lists standard library frames skipped while the record was open.
	Frames []Frame `json:"frames,omitempty"`
}

// HasLocation reports whether the record points at a file and line.
func (r *Record) HasLocation() bool {
	return r.File != "" && r.Line > 0
}

// Location renders file:line[:column], or an empty string when absent.
func (r *Record) Location() string {
	if !r.HasLocation() {
		return r.File
	}
	if r.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Column)
	}
	return fmt.Sprintf("%s:%d", r.File, r.Line)
}
