package analyzer

import (
	"context"
	"time"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
	"github.com/ccollicutt/gotestlog/pkg/parser"
)

// RuleTraceFunc observes the rule that consumed each line. It is called
// from the goroutine classifying that source, so implementations must be
// safe for concurrent use when several sources are analyzed.
type RuleTraceFunc func(source string, lineNum int, rule string, line string)

// ClassifyEngine implements Engine with a classifier session.
type ClassifyEngine struct {
	source      string
	classifier  *classifier.Classifier
	minSeverity classifier.Severity
	trace       RuleTraceFunc

	// State
	session *classifier.Session
	records []classifier.Record
	stats   FileStats
	lastRaw int
}

// NewClassifyEngine creates an engine for one source.
func NewClassifyEngine(source string, c *classifier.Classifier, minSeverity classifier.Severity, trace RuleTraceFunc) *ClassifyEngine {
	e := &ClassifyEngine{
		source:      source,
		classifier:  c,
		minSeverity: minSeverity,
		trace:       trace,
	}
	e.Reset()
	return e
}

// Source returns the source name.
func (e *ClassifyEngine) Source() string {
	return e.source
}

// Process pushes one line through the session.
func (e *ClassifyEngine) Process(ctx context.Context, line *parser.LogLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.stats.LinesProcessed++
	e.lastRaw = line.LineNum
	e.keep(e.session.Push(line.Content))

	return nil
}

// Finalize flushes the open record and returns the result.
func (e *ClassifyEngine) Finalize(ctx context.Context) (*FileResult, error) {
	e.keep(e.session.Flush())
	e.stats.EndTime = time.Now()

	return &FileResult{
		Source:  e.source,
		Records: e.records,
		Stats:   e.stats,
	}, nil
}

// Reset clears internal state for reuse.
func (e *ClassifyEngine) Reset() {
	e.records = nil
	e.lastRaw = 0
	e.stats = FileStats{
		RuleHits:  make(map[string]int),
		StartTime: time.Now(),
	}
	e.session = e.classifier.NewSession(classifier.WithTrace(e.observe))
}

func (e *ClassifyEngine) observe(rule *classifier.Rule, _ int, line string) {
	e.stats.RuleHits[rule.Name]++
	if e.trace != nil {
		e.trace(e.source, e.lastRaw, rule.Name, line)
	}
}

func (e *ClassifyEngine) keep(records []classifier.Record) {
	for _, rec := range records {
		e.stats.RecordsFound++
		if rec.Severity.Rank() < e.minSeverity.Rank() {
			e.stats.RecordsFiltered++
			continue
		}
		e.records = append(e.records, rec)
	}
}
