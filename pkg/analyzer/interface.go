package analyzer

import (
	"context"

	"github.com/ccollicutt/gotestlog/pkg/parser"
)

// Engine consumes the lines of one log source and produces its records.
// An engine is used by a single goroutine.
type Engine interface {
	// Source returns the name of the source the engine is reading.
	Source() string

	// Process handles a single log line, updating internal state.
	Process(ctx context.Context, line *parser.LogLine) error

	// Finalize closes any open record and returns the result.
	// Called after all lines of the source have been processed.
	Finalize(ctx context.Context) (*FileResult, error)

	// Reset clears internal state for reuse.
	Reset()
}
