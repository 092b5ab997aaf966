package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
	"github.com/ccollicutt/gotestlog/pkg/parser"
)

// DefaultConcurrency bounds how many sources are classified at once.
const DefaultConcurrency = 4

// Analyzer orchestrates classification across multiple sources.
type Analyzer struct {
	resolver classifier.StdlibResolver

	// Options
	minSeverity classifier.Severity
	concurrency int
	cleaner     *parser.Cleaner
	trace       RuleTraceFunc
	configFile  string
	stdin       io.Reader
}

// AnalyzerOption configures analyzer behavior.
type AnalyzerOption func(*Analyzer)

// WithMinSeverity drops records below the given severity.
func WithMinSeverity(s classifier.Severity) AnalyzerOption {
	return func(a *Analyzer) {
		a.minSeverity = s
	}
}

// WithConcurrency sets how many sources are classified in parallel.
func WithConcurrency(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithCleaner pre-processes every line before classification.
func WithCleaner(c *parser.Cleaner) AnalyzerOption {
	return func(a *Analyzer) {
		a.cleaner = c
	}
}

// WithRuleTrace reports the rule that consumed each line.
func WithRuleTrace(fn RuleTraceFunc) AnalyzerOption {
	return func(a *Analyzer) {
		a.trace = fn
	}
}

// WithConfigFile records the configuration path in the result metadata.
func WithConfigFile(path string) AnalyzerOption {
	return func(a *Analyzer) {
		a.configFile = path
	}
}

// WithStdin sets the reader used for the path "-" in Analyze.
func WithStdin(r io.Reader) AnalyzerOption {
	return func(a *Analyzer) {
		a.stdin = r
	}
}

// NewAnalyzer creates a new analyzer that resolves stdlib roots with resolver.
func NewAnalyzer(resolver classifier.StdlibResolver, opts ...AnalyzerOption) (*Analyzer, error) {
	if resolver == nil {
		return nil, errors.New("no stdlib resolver configured")
	}

	a := &Analyzer{
		resolver:    resolver,
		minSeverity: classifier.SeverityError,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// prepare resolves the environment once for a run. A resolver failure is
// returned as *classifier.EnvironmentResolutionError.
func (a *Analyzer) prepare(ctx context.Context) (*classifier.Classifier, error) {
	env, err := classifier.ResolveEnvironment(ctx, a.resolver)
	if err != nil {
		return nil, err
	}
	return classifier.New(env)
}

// Analyze classifies each file with its own session and returns the results
// in argument order. No file is read when the environment cannot be resolved.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*AnalysisResult, error) {
	start := time.Now()

	c, err := a.prepare(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*FileResult, len(files))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)

	for i, path := range files {
		i, path := i, path
		eg.Go(func() error {
			src := parser.NewFileSource([]string{path}, a.cleaner)
			if a.stdin != nil {
				src.WithStdin(a.stdin)
			}
			defer src.Close()

			res, err := a.run(egCtx, NewClassifyEngine(displayName(path), c, a.minSeverity, a.trace), src)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return a.collect(start, c, results), nil
}

// AnalyzeSource classifies a single already opened source.
func (a *Analyzer) AnalyzeSource(ctx context.Context, name string, src parser.LogSource) (*AnalysisResult, error) {
	start := time.Now()

	c, err := a.prepare(ctx)
	if err != nil {
		return nil, err
	}

	res, err := a.run(ctx, NewClassifyEngine(name, c, a.minSeverity, a.trace), src)
	if err != nil {
		return nil, err
	}

	return a.collect(start, c, []*FileResult{res}), nil
}

func (a *Analyzer) run(ctx context.Context, engine Engine, src parser.LogSource) (*FileResult, error) {
	for {
		line, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading log source: %w", err)
		}

		if err := engine.Process(ctx, line); err != nil {
			return nil, fmt.Errorf("processing %s line %d: %w", engine.Source(), line.LineNum, err)
		}
	}

	res, err := engine.Finalize(ctx)
	if err != nil {
		return nil, fmt.Errorf("finalizing %s: %w", engine.Source(), err)
	}
	return res, nil
}

func (a *Analyzer) collect(start time.Time, c *classifier.Classifier, results []*FileResult) *AnalysisResult {
	out := &AnalysisResult{
		Files: make([]FileResult, 0, len(results)),
		Metadata: AnalysisMetadata{
			ConfigFile:  a.configFile,
			StdlibRoots: c.Environment().StdlibRoots,
			MinSeverity: a.minSeverity,
			StartTime:   start,
			RuleHits:    make(map[string]int),
		},
	}

	for _, res := range results {
		out.Files = append(out.Files, *res)
		out.Metadata.Sources = append(out.Metadata.Sources, res.Source)
		out.Metadata.LinesProcessed += res.Stats.LinesProcessed
		for rule, n := range res.Stats.RuleHits {
			out.Metadata.RuleHits[rule] += n
		}
	}

	out.Metadata.EndTime = time.Now()
	return out
}

func displayName(path string) string {
	if path == parser.StdinPath {
		return parser.StdinName
	}
	return path
}
