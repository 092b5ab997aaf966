// Package detector samples a log and reports which kinds of go tool
// output it contains.
package detector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
	"github.com/ccollicutt/gotestlog/pkg/config"
	"github.com/ccollicutt/gotestlog/pkg/parser"
)

// DefaultSampleSize is the number of lines read when none is configured.
const DefaultSampleSize = 500

// DetectionResult holds the result of sampling a log.
type DetectionResult struct {
	Matches         []ShapeMatch // Shapes seen, most lines first
	SampledLines    int          // Number of lines sampled
	ClassifiedLines int          // Lines consumed by a rule other than the fallback
	Records         int          // Records the sample produced
	CIPrefixedLines int          // Lines carrying CI job or timestamp prefixes
	ANSILines       int          // Lines carrying terminal escape sequences
}

// ShapeMatch is a shape seen in the sample.
type ShapeMatch struct {
	Shape      *Shape
	Confidence float64 // Share of sampled lines consumed by the shape's rules
	MatchCount int     // Number of lines consumed by the shape's rules
	SampleLine string  // First line consumed by the shape's rules
}

// Detector classifies a sample of lines to identify output shapes.
type Detector struct {
	classifier *classifier.Classifier
	shapes     []*Shape
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample.
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// New creates a Detector that classifies samples with c.
func New(c *classifier.Classifier, opts ...Option) (*Detector, error) {
	if c == nil {
		return nil, errors.New("detector requires a classifier")
	}
	d := &Detector{
		classifier: c,
		shapes:     DefaultShapes(),
		sampleSize: DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// DetectFromFile samples the head of a file ("-" reads stdin).
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	src := parser.NewFileSource([]string{path}, nil)
	defer src.Close()

	result, err := d.DetectFromSource(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("sampling %s: %w", path, err)
	}
	return result, nil
}

// DetectFromSource samples up to the configured number of lines from src.
func (d *Detector) DetectFromSource(ctx context.Context, src parser.LogSource) (*DetectionResult, error) {
	var lines []string
	for len(lines) < d.sampleSize {
		ll, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, ll.Content)
	}

	return d.DetectFromLines(lines), nil
}

// DetectFromLines classifies lines and tallies the shapes they belong to.
// Lines are cleaned of CI prefixes and escape sequences first, so a
// decorated log is detected the same as a plain one.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{SampledLines: len(lines)}
	if len(lines) == 0 {
		return result
	}

	ciOnly := parser.NewCleaner(parser.WithCIPrefixes())
	ansiOnly := parser.NewCleaner(parser.WithANSI())
	cleaner := parser.NewCleaner(parser.WithANSI(), parser.WithCIPrefixes())

	type shapeStats struct {
		count  int
		sample string
	}
	idx := shapeIndex(d.shapes)
	order := make(map[*Shape]int, len(d.shapes))
	for i, s := range d.shapes {
		order[s] = i
	}
	stats := make(map[*Shape]*shapeStats)

	sess := d.classifier.NewSession(classifier.WithTrace(func(rule *classifier.Rule, _ int, line string) {
		if rule.Name != classifier.RuleOther {
			result.ClassifiedLines++
		}
		shape, ok := idx[rule.Name]
		if !ok {
			return
		}
		st := stats[shape]
		if st == nil {
			st = &shapeStats{sample: line}
			stats[shape] = st
		}
		st.count++
	}))

	for _, line := range lines {
		plain := ansiOnly.Clean(line)
		if plain != line {
			result.ANSILines++
		}
		if ciOnly.Clean(plain) != plain {
			result.CIPrefixedLines++
		}
		result.Records += len(sess.Push(cleaner.Clean(line)))
	}
	result.Records += len(sess.Flush())

	for shape, st := range stats {
		result.Matches = append(result.Matches, ShapeMatch{
			Shape:      shape,
			Confidence: float64(st.count) / float64(len(lines)),
			MatchCount: st.count,
			SampleLine: st.sample,
		})
	}

	sort.Slice(result.Matches, func(i, j int) bool {
		if result.Matches[i].MatchCount != result.Matches[j].MatchCount {
			return result.Matches[i].MatchCount > result.Matches[j].MatchCount
		}
		return order[result.Matches[i].Shape] < order[result.Matches[j].Shape]
	})

	return result
}

// BestMatch returns the shape with the most lines, or nil if none was seen.
func (r *DetectionResult) BestMatch() *ShapeMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one shape was seen.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}

// Has reports whether the named shape was seen.
func (r *DetectionResult) Has(name string) bool {
	for _, m := range r.Matches {
		if m.Shape.Name == name {
			return true
		}
	}
	return false
}

// StarterConfig builds a configuration for source that enables the
// cleaning steps the sample needs. Stdlib roots are left empty so they
// are resolved from the go toolchain.
func (r *DetectionResult) StarterConfig(source string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.LogSources = []string{source}
	cfg.Clean.StripCIPrefixes = r.CIPrefixedLines > 0
	cfg.Clean.StripANSI = r.ANSILines > 0
	cfg.Output.IncludeInfo = r.Has("timeout")
	return cfg
}
