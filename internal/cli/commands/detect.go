package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
	"github.com/ccollicutt/gotestlog/pkg/config"
	"github.com/ccollicutt/gotestlog/pkg/detector"
	"github.com/ccollicutt/gotestlog/pkg/parser"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
	StdlibRoots []string
	GoBinary    string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>",
		Short: "Detect which kinds of go tool output a log contains",
		Long: `Sample a log and report the kinds of go tool output it contains.

Recognizes:
  - go test failures (plain and -v)
  - failing examples
  - compiler and vet diagnostics
  - panics with goroutine traces
  - test timeouts

Also reports CI job/timestamp prefixes and terminal escape sequences that
need stripping. With --write-config a starter config enabling the right
cleaning steps is written.

Example:
  gotestlog detect go-test.out
  go test ./... 2>&1 | gotestlog detect -
  gotestlog detect --write-config gotestlog.yaml ci.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", detector.DefaultSampleSize, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all detected shapes, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")
	cmd.Flags().StringArrayVar(&opts.StdlibRoots, "stdlib-root", nil, "Standard library root (can be repeated; default: go env GOROOT)")
	cmd.Flags().StringVar(&opts.GoBinary, "go", config.DefaultGoBinary, "Go toolchain used to resolve GOROOT")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if logFile != parser.StdinPath {
		if _, err := os.Stat(logFile); os.IsNotExist(err) {
			return fmt.Errorf("log file not found: %s", logFile)
		}
	}

	env, err := classifier.ResolveEnvironment(ctx, newResolver(&config.Config{
		StdlibRoots: opts.StdlibRoots,
		GoBinary:    opts.GoBinary,
	}))
	if err != nil {
		return err
	}
	c, err := classifier.New(env)
	if err != nil {
		return err
	}

	d, err := detector.New(c, detector.WithSampleSize(opts.SampleSize))
	if err != nil {
		return err
	}

	var result *detector.DetectionResult
	if logFile == parser.StdinPath {
		src := parser.NewReaderSource(parser.StdinName, cmd.InOrStdin(), nil)
		defer src.Close()
		result, err = d.DetectFromSource(ctx, src)
	} else {
		result, err = d.DetectFromFile(ctx, logFile)
	}
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	w := cmd.OutOrStdout()

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(w, result, logFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(w, result, logFile, opts)
	case "text":
		return outputDetectText(w, result, logFile, opts)
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Output Shape Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintf(w, "Lines recognized: %d\n", result.ClassifiedLines)
	fmt.Fprintf(w, "Records found: %d\n", result.Records)
	fmt.Fprintln(w)

	if result.CIPrefixedLines > 0 {
		fmt.Fprintf(w, "CI prefixes: %d lines (use --strip-ci or clean.strip_ci_prefixes)\n", result.CIPrefixedLines)
	}
	if result.ANSILines > 0 {
		fmt.Fprintf(w, "Escape sequences: %d lines (use --strip-ansi or clean.strip_ansi)\n", result.ANSILines)
	}
	if result.CIPrefixedLines > 0 || result.ANSILines > 0 {
		fmt.Fprintln(w)
	}

	if !result.HasMatch() {
		fmt.Fprintln(w, "No go tool output detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: Lines may carry a prefix gotestlog does not know.")
		fmt.Fprintln(w, "Set clean.prefix_pattern to a regex matching it.")
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected: %s\n", best.Shape.Name)
	fmt.Fprintf(w, "  %s\n", best.Shape.Description)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d lines)\n",
		best.Confidence*100, best.MatchCount, result.SampledLines)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sample line:\n  %s\n", truncate(best.SampleLine, 120))
	fmt.Fprintln(w)

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Also detected ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%d lines, %.1f%%)\n", i+2, m.Shape.Name, m.MatchCount, m.Confidence*100)
			fmt.Fprintf(w, "   %s\n", truncate(m.SampleLine, 120))
		}
		fmt.Fprintln(w)
	}

	return nil
}

// JSONShape represents a detected shape in JSON output.
type JSONShape struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rules       []string `json:"rules"`
	Confidence  float64  `json:"confidence"`
	MatchCount  int      `json:"match_count"`
	SampleLine  string   `json:"sample_line"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File            string      `json:"file"`
	Shapes          []JSONShape `json:"shapes"`
	SampledLines    int         `json:"sampled_lines"`
	ClassifiedLines int         `json:"classified_lines"`
	Records         int         `json:"records"`
	CIPrefixedLines int         `json:"ci_prefixed_lines"`
	ANSILines       int         `json:"ansi_lines"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	out := JSONOutput{
		File:            logFile,
		SampledLines:    result.SampledLines,
		ClassifiedLines: result.ClassifiedLines,
		Records:         result.Records,
		CIPrefixedLines: result.CIPrefixedLines,
		ANSILines:       result.ANSILines,
		Shapes:          make([]JSONShape, 0),
	}

	matches := result.Matches
	if !opts.ShowAll && len(matches) > 1 {
		matches = matches[:1]
	}

	for _, m := range matches {
		out.Shapes = append(out.Shapes, JSONShape{
			Name:        m.Shape.Name,
			Description: m.Shape.Description,
			Rules:       m.Shape.Rules,
			Confidence:  m.Confidence,
			MatchCount:  m.MatchCount,
			SampleLine:  m.SampleLine,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig writes a config tuned to the sampled log.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, logFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if !result.HasMatch() {
		return fmt.Errorf("cannot generate config: no go tool output detected")
	}

	content, err := generateStarterConfig(result, logFile)
	if err != nil {
		return err
	}

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig renders the starter config with a short header.
func generateStarterConfig(result *detector.DetectionResult, logFile string) ([]byte, error) {
	source := logFile
	if logFile != parser.StdinPath {
		if abs, err := filepath.Abs(logFile); err == nil {
			source = abs
		}
	}

	data, err := config.Marshal(result.StarterConfig(source))
	if err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}

	best := result.BestMatch()
	header := fmt.Sprintf(`# gotestlog configuration
# Generated by: gotestlog detect
# Detected: %s (%.0f%% of sampled lines)
#
# stdlib_roots is resolved with "go env GOROOT" when left empty.

`, best.Shape.Name, best.Confidence*100)

	return append([]byte(header), data...), nil
}
