package output

import (
	"context"
	"fmt"
	"io"
)

// Formatter renders reports in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// Name returns the format name (text, json, quickfix).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose adds stdlib frames, rule names and run statistics.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool

	// Color enables terminal styling in text output.
	Color bool
}

// New returns the formatter registered under name.
func New(name string, opts FormatOptions) (Formatter, error) {
	switch name {
	case "", "text":
		return NewTextFormatter(opts), nil
	case "json":
		return NewJSONFormatter(opts), nil
	case "quickfix":
		return NewQuickfixFormatter(opts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (must be text, json, or quickfix)", name)
	}
}
