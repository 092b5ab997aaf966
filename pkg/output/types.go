// Package output provides formatting and output generation for classification results.
package output

import (
	"time"

	"github.com/google/uuid"

	"github.com/ccollicutt/gotestlog/pkg/analyzer"
	"github.com/ccollicutt/gotestlog/pkg/classifier"
)

// Report is the complete classification output.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Records contains every kept record across sources, in order.
	Records []ReportRecord `json:"records"`

	// Files summarizes each source.
	Files []FileSummary `json:"files"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// ReportRecord is a record together with the source it was read from.
type ReportRecord struct {
	Source string `json:"source"`
	classifier.Record
}

// Summary provides aggregate statistics.
type Summary struct {
	// Files is the number of sources classified.
	Files int `json:"files"`

	// FilesWithErrors is the number of sources with error records.
	FilesWithErrors int `json:"files_with_errors"`

	// Errors is the number of error records.
	Errors int `json:"errors"`

	// Info is the number of info records kept.
	Info int `json:"info"`

	// LinesProcessed is the total number of lines classified.
	LinesProcessed int `json:"lines_processed"`
}

// FileSummary describes one source.
type FileSummary struct {
	Source         string `json:"source"`
	Errors         int    `json:"errors"`
	Info           int    `json:"info"`
	LinesProcessed int    `json:"lines_processed"`
}

// Metadata provides context about the run.
type Metadata struct {
	// RunID uniquely identifies this run; webhooks carry it as a header.
	RunID string `json:"run_id"`

	// ConfigFile is the path to the configuration file used, if any.
	ConfigFile string `json:"config_file,omitempty"`

	// Sources lists the sources that were classified.
	Sources []string `json:"sources"`

	// StdlibRoots are the standard library roots frames were matched against.
	StdlibRoots []string `json:"stdlib_roots"`

	// AnalyzedAt is when the run completed.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`

	// RuleHits counts the lines consumed by each rule.
	RuleHits map[string]int `json:"rule_hits,omitempty"`
}

// NewReport creates a Report from analysis results.
func NewReport(result *analyzer.AnalysisResult) *Report {
	report := &Report{
		Records: make([]ReportRecord, 0, result.TotalRecords()),
		Files:   make([]FileSummary, 0, len(result.Files)),
		Metadata: Metadata{
			RunID:       uuid.NewString(),
			ConfigFile:  result.Metadata.ConfigFile,
			Sources:     result.Metadata.Sources,
			StdlibRoots: result.Metadata.StdlibRoots,
			AnalyzedAt:  result.Metadata.EndTime,
			Duration:    result.Metadata.EndTime.Sub(result.Metadata.StartTime),
			RuleHits:    result.Metadata.RuleHits,
		},
		Summary: Summary{
			Files:           len(result.Files),
			FilesWithErrors: result.FilesWithErrors(),
			Errors:          result.ErrorCount(),
			Info:            result.InfoCount(),
			LinesProcessed:  result.Metadata.LinesProcessed,
		},
	}

	for i := range result.Files {
		f := &result.Files[i]
		fs := FileSummary{
			Source:         f.Source,
			LinesProcessed: f.Stats.LinesProcessed,
		}
		for _, rec := range f.Records {
			report.Records = append(report.Records, ReportRecord{Source: f.Source, Record: rec})
			if rec.Severity == classifier.SeverityError {
				fs.Errors++
			} else {
				fs.Info++
			}
		}
		report.Files = append(report.Files, fs)
	}

	return report
}

// HasErrors returns true if any error records were found.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}
