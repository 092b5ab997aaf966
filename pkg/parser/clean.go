package parser

import (
	"regexp"

	"github.com/charmbracelet/x/ansi"
)

var (
	// ciJobPrefixPattern matches the job and step columns GitHub Actions
	// prepends to downloaded logs: "Job\tStep\t2026-01-26T14:49:40.77Z ".
	ciJobPrefixPattern = regexp.MustCompile(`^[^\t]+\t[^\t]+\t\d{4}-\d{2}-\d{2}T\S+ `)

	// ciTimestampPattern matches a bare RFC 3339 timestamp prefix.
	// Only a single space is consumed so leading tabs of test output survive.
	ciTimestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}) ?`)
)

// Cleaner removes decoration that CI systems and terminals add around tool
// output, so lines reach the classifier in the shape go test printed them.
// A nil *Cleaner leaves lines untouched.
type Cleaner struct {
	stripCI   bool
	stripANSI bool
	prefix    *regexp.Regexp
}

// CleanerOption configures a Cleaner.
type CleanerOption func(*Cleaner)

// WithCIPrefixes strips GitHub Actions job columns and timestamps.
func WithCIPrefixes() CleanerOption {
	return func(c *Cleaner) { c.stripCI = true }
}

// WithANSI strips terminal escape sequences.
func WithANSI() CleanerOption {
	return func(c *Cleaner) { c.stripANSI = true }
}

// WithPrefixPattern strips whatever re matches at the start of a line.
func WithPrefixPattern(re *regexp.Regexp) CleanerOption {
	return func(c *Cleaner) { c.prefix = re }
}

// NewCleaner builds a cleaner. With no options it returns nil.
func NewCleaner(opts ...CleanerOption) *Cleaner {
	if len(opts) == 0 {
		return nil
	}
	c := &Cleaner{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean applies the configured steps in order: escapes, CI prefixes, then
// the custom prefix.
func (c *Cleaner) Clean(line string) string {
	if c == nil {
		return line
	}
	if c.stripANSI {
		line = ansi.Strip(line)
	}
	if c.stripCI {
		line = ciJobPrefixPattern.ReplaceAllString(line, "")
		line = ciTimestampPattern.ReplaceAllString(line, "")
	}
	if c.prefix != nil {
		if loc := c.prefix.FindStringIndex(line); loc != nil && loc[0] == 0 {
			line = line[loc[1]:]
		}
	}
	return line
}
