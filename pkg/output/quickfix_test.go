package output

import (
	"bytes"
	"context"
	"testing"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
)

func TestQuickfixFormatter_Format(t *testing.T) {
	report := createTestReport()
	report.Records = append(report.Records, ReportRecord{
		Source: "c.out",
		Record: classifier.Record{
			File:     "./x.go",
			Line:     3,
			Column:   7,
			Message:  "undefined: y",
			Severity: classifier.SeverityError,
		},
	})

	var buf bytes.Buffer
	if err := NewQuickfixFormatter(FormatOptions{}).Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	want := "a_test.go:10: got 1\n" +
		"\twant 2\n" +
		"info: test timed out after 1m0s\n" +
		"./x.go:3:7: undefined: y\n"
	if buf.String() != want {
		t.Errorf("Format() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestQuickfixFormatter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	if err := NewQuickfixFormatter(FormatOptions{Quiet: true}).Format(context.Background(), createTestReport(), &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	want := "a_test.go:10: got 1\n\twant 2\n"
	if buf.String() != want {
		t.Errorf("Format() = %q, want %q", buf.String(), want)
	}
}
