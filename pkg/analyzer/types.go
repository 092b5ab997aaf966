// Package analyzer classifies go test output from one or more sources.
package analyzer

import (
	"time"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
)

// FileResult contains the records produced from a single source.
type FileResult struct {
	// Source is the file path, or "<stdin>".
	Source string

	// Records are the records kept after severity filtering, in input order.
	Records []classifier.Record

	// Stats provides execution statistics.
	Stats FileStats
}

// FileStats contains execution statistics for a source.
type FileStats struct {
	// LinesProcessed is the total number of lines examined.
	LinesProcessed int

	// RecordsFound counts records before severity filtering.
	RecordsFound int

	// RecordsFiltered counts records dropped by the minimum severity.
	RecordsFiltered int

	// RuleHits counts the lines consumed by each rule.
	RuleHits map[string]int

	// StartTime is when processing began.
	StartTime time.Time

	// EndTime is when processing completed.
	EndTime time.Time
}

// ErrorCount returns the number of error records.
func (r *FileResult) ErrorCount() int {
	return countSeverity(r.Records, classifier.SeverityError)
}

// HasErrors returns true if any error records were kept.
func (r *FileResult) HasErrors() bool {
	return r.ErrorCount() > 0
}

// AnalysisResult contains the complete analysis output.
type AnalysisResult struct {
	// Files contains one result per source, in argument order.
	Files []FileResult

	// Metadata provides context about the analysis.
	Metadata AnalysisMetadata
}

// AnalysisMetadata provides context about the analysis run.
type AnalysisMetadata struct {
	// ConfigFile is the path to the configuration file used.
	ConfigFile string

	// Sources lists the sources that were analyzed.
	Sources []string

	// StdlibRoots are the resolved standard library roots.
	StdlibRoots []string

	// MinSeverity is the lowest severity kept.
	MinSeverity classifier.Severity

	// StartTime is when analysis began.
	StartTime time.Time

	// EndTime is when analysis completed.
	EndTime time.Time

	// LinesProcessed is the total number of lines examined.
	LinesProcessed int

	// RuleHits aggregates rule hits over all sources.
	RuleHits map[string]int
}

// Records returns every kept record across sources, in order.
func (r *AnalysisResult) Records() []classifier.Record {
	var out []classifier.Record
	for _, f := range r.Files {
		out = append(out, f.Records...)
	}
	return out
}

// TotalRecords returns the number of kept records.
func (r *AnalysisResult) TotalRecords() int {
	total := 0
	for _, f := range r.Files {
		total += len(f.Records)
	}
	return total
}

// ErrorCount returns the number of error records across sources.
func (r *AnalysisResult) ErrorCount() int {
	total := 0
	for i := range r.Files {
		total += r.Files[i].ErrorCount()
	}
	return total
}

// InfoCount returns the number of info records across sources.
func (r *AnalysisResult) InfoCount() int {
	total := 0
	for _, f := range r.Files {
		total += countSeverity(f.Records, classifier.SeverityInfo)
	}
	return total
}

// HasErrors returns true if any source produced an error record.
func (r *AnalysisResult) HasErrors() bool {
	return r.ErrorCount() > 0
}

// FilesWithErrors returns the count of sources with error records.
func (r *AnalysisResult) FilesWithErrors() int {
	count := 0
	for i := range r.Files {
		if r.Files[i].HasErrors() {
			count++
		}
	}
	return count
}

func countSeverity(records []classifier.Record, s classifier.Severity) int {
	n := 0
	for _, rec := range records {
		if rec.Severity == s {
			n++
		}
	}
	return n
}
