// Package parser reads go test and go build output from files and streams.
package parser

// LogLine is one line of tool output after cleaning.
type LogLine struct {
	// Content is the cleaned line text, without the trailing newline.
	Content string

	// Source is the file path this line came from, or "<stdin>".
	Source string

	// LineNum is the 1-based line number in the source.
	LineNum int
}
