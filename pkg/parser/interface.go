package parser

import (
	"context"
)

// LogSource provides an iterator over log lines.
// Implementations are meant for sequential access, not concurrent.
type LogSource interface {
	// Next returns the next line.
	// Returns io.EOF when no more lines are available.
	Next(ctx context.Context) (*LogLine, error)

	// Close releases any resources held by the source.
	Close() error
}
