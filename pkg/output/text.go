package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/termenv"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

type textStyles struct {
	header   lipgloss.Style
	source   lipgloss.Style
	location lipgloss.Style
	test     lipgloss.Style
	errorTag lipgloss.Style
	infoTag  lipgloss.Style
	faint    lipgloss.Style
	clean    lipgloss.Style
}

func (f *TextFormatter) styles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	if f.opts.Color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}

	return textStyles{
		header:   r.NewStyle().Bold(true),
		source:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		location: r.NewStyle().Foreground(lipgloss.Color("214")),
		test:     r.NewStyle().Foreground(lipgloss.Color("245")),
		errorTag: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		infoTag:  r.NewStyle().Foreground(lipgloss.Color("39")),
		faint:    r.NewStyle().Faint(true),
		clean:    r.NewStyle().Foreground(lipgloss.Color("2")),
	}
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	s := f.styles(w)
	if f.opts.Quiet {
		return f.formatQuiet(report, s, w)
	}
	return f.formatFull(report, s, w)
}

func (f *TextFormatter) formatQuiet(report *Report, s textStyles, w io.Writer) error {
	_, err := fmt.Fprintf(w, "gotestlog: %d files, %d with errors, %s, %d info\n",
		report.Summary.Files,
		report.Summary.FilesWithErrors,
		plural(report.Summary.Errors, "error"),
		report.Summary.Info)
	return err
}

func (f *TextFormatter) formatFull(report *Report, s textStyles, w io.Writer) error {
	fmt.Fprintln(w, s.header.Render("=== gotestlog report ==="))
	fmt.Fprintln(w)

	bySource := make(map[string][]*ReportRecord)
	for i := range report.Records {
		rec := &report.Records[i]
		bySource[rec.Source] = append(bySource[rec.Source], rec)
	}

	for _, file := range report.Files {
		fmt.Fprintln(w, s.source.Render(file.Source))

		records := bySource[file.Source]
		if len(records) == 0 {
			fmt.Fprintf(w, "  %s\n\n", s.clean.Render("No failures detected"))
			continue
		}

		for _, rec := range records {
			f.formatRecord(rec, s, w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d files checked, %d files with errors, %s, %d info\n",
		report.Summary.Files,
		report.Summary.FilesWithErrors,
		plural(report.Summary.Errors, "error"),
		report.Summary.Info)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Lines processed: %d\n", report.Summary.LinesProcessed)
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
		fmt.Fprintf(w, "Stdlib roots: %s\n", strings.Join(report.Metadata.StdlibRoots, ", "))
		fmt.Fprintf(w, "Run: %s\n", report.Metadata.RunID)
	}

	return nil
}

func (f *TextFormatter) formatRecord(rec *ReportRecord, s textStyles, w io.Writer) {
	tag := s.errorTag.Render("FAIL")
	if rec.Severity == classifier.SeverityInfo {
		tag = s.infoTag.Render("INFO")
	}

	head := "  " + tag
	if loc := rec.Location(); loc != "" {
		head += " " + s.location.Render(loc)
	}
	if rec.Test != "" {
		head += " " + s.test.Render("("+rec.Test+")")
	}
	if f.opts.Verbose {
		head += " " + s.faint.Render("["+rec.Rule+"]")
	}
	fmt.Fprintln(w, head)

	if rec.Message != "" {
		fmt.Fprintln(w, indent.String(rec.Message, 6))
	}

	if f.opts.Verbose {
		for _, fr := range rec.Frames {
			fmt.Fprintln(w, s.faint.Render(fmt.Sprintf("      stdlib %s:%d", fr.File, fr.Line)))
		}
		if rec.Elapsed > 0 {
			fmt.Fprintf(w, "      elapsed %s\n", rec.Elapsed)
		}
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
