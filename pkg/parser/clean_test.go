package parser

import (
	"regexp"
	"testing"
)

func TestCleaner_Clean(t *testing.T) {
	tests := []struct {
		name    string
		cleaner *Cleaner
		line    string
		want    string
	}{
		{
			name:    "nil cleaner",
			cleaner: nil,
			line:    "\x1b[31mFAIL\x1b[0m",
			want:    "\x1b[31mFAIL\x1b[0m",
		},
		{
			name:    "ansi colors",
			cleaner: NewCleaner(WithANSI()),
			line:    "=== \x1b[31mFAIL\x1b[0m: TestName",
			want:    "=== FAIL: TestName",
		},
		{
			name:    "github timestamp",
			cleaner: NewCleaner(WithCIPrefixes()),
			line:    "2026-01-26T14:49:40.7760945Z --- FAIL: TestName (0.00s)",
			want:    "--- FAIL: TestName (0.00s)",
		},
		{
			name:    "timestamp keeps tab",
			cleaner: NewCleaner(WithCIPrefixes()),
			line:    "2026-01-26T14:49:40Z \tfoo_test.go:3: bad",
			want:    "\tfoo_test.go:3: bad",
		},
		{
			name:    "timestamp keeps indentation",
			cleaner: NewCleaner(WithCIPrefixes()),
			line:    "2026-01-26T14:49:40.1+02:00     foo_test.go:3: bad",
			want:    "    foo_test.go:3: bad",
		},
		{
			name:    "job and step columns",
			cleaner: NewCleaner(WithCIPrefixes()),
			line:    "Test\tRun tests\t2026-01-26T14:49:40.7760945Z panic: boom",
			want:    "panic: boom",
		},
		{
			name:    "ci prefix absent",
			cleaner: NewCleaner(WithCIPrefixes()),
			line:    "\t/usr/local/go/src/testing/testing.go:1576 +0x10b",
			want:    "\t/usr/local/go/src/testing/testing.go:1576 +0x10b",
		},
		{
			name:    "custom prefix",
			cleaner: NewCleaner(WithPrefixPattern(regexp.MustCompile(`^\[\w+\] `))),
			line:    "[unit] \ta_test.go:1: x",
			want:    "\ta_test.go:1: x",
		},
		{
			name:    "custom prefix not at start",
			cleaner: NewCleaner(WithPrefixPattern(regexp.MustCompile(`\[\w+\] `))),
			line:    "msg [unit] tail",
			want:    "msg [unit] tail",
		},
		{
			name:    "all steps",
			cleaner: NewCleaner(WithANSI(), WithCIPrefixes(), WithPrefixPattern(regexp.MustCompile(`^> `))),
			line:    "2026-01-26T14:49:40Z > \x1b[1mexit status 1\x1b[0m",
			want:    "exit status 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cleaner.Clean(tt.line); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestNewCleaner_NoOptions(t *testing.T) {
	if c := NewCleaner(); c != nil {
		t.Errorf("NewCleaner() = %+v, want nil", c)
	}
}
