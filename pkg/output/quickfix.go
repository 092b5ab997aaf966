package output

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
)

// QuickfixFormatter writes one "file:line:col: message" entry per record,
// the shape editors parse with their default Go error format. Further
// message lines follow tab-indented.
type QuickfixFormatter struct {
	opts FormatOptions
}

// NewQuickfixFormatter creates a new quickfix formatter.
func NewQuickfixFormatter(opts FormatOptions) *QuickfixFormatter {
	return &QuickfixFormatter{opts: opts}
}

// Name returns the format name.
func (f *QuickfixFormatter) Name() string {
	return "quickfix"
}

// Format renders the records. Quiet mode prints only located records.
func (f *QuickfixFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	bw := bufio.NewWriter(w)

	for i := range report.Records {
		rec := &report.Records[i]
		if f.opts.Quiet && !rec.HasLocation() {
			continue
		}

		lines := strings.Split(rec.Message, "\n")
		head := lines[0]
		if rec.Severity == classifier.SeverityInfo {
			head = "info: " + head
		}

		if loc := rec.Location(); loc != "" {
			bw.WriteString(loc)
			bw.WriteString(": ")
		}
		bw.WriteString(head)
		bw.WriteByte('\n')

		for _, line := range lines[1:] {
			bw.WriteByte('\t')
			bw.WriteString(line)
			bw.WriteByte('\n')
		}
	}

	return bw.Flush()
}
