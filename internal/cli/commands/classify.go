package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/gotestlog/internal/logging"
	"github.com/ccollicutt/gotestlog/pkg/analyzer"
	"github.com/ccollicutt/gotestlog/pkg/classifier"
	"github.com/ccollicutt/gotestlog/pkg/config"
	"github.com/ccollicutt/gotestlog/pkg/goenv"
	"github.com/ccollicutt/gotestlog/pkg/output"
	"github.com/ccollicutt/gotestlog/pkg/parser"
	"github.com/ccollicutt/gotestlog/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// ClassifyOptions holds command-line options for the classify command.
type ClassifyOptions struct {
	ConfigFile  string
	Output      string
	StdlibRoots []string
	GoBinary    string
	IncludeInfo bool
	StripCI     bool
	StripANSI   bool
	Color       string
	Concurrency int
	Watch       bool
	Verbose     bool
	Quiet       bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand() *cobra.Command {
	opts := &ClassifyOptions{}

	cmd := &cobra.Command{
		Use:     "classify [log-file...]",
		Aliases: []string{"c"},
		Short:   "Extract failures from go test and go build output",
		Long: `Classify go test / go build output into located diagnostics.

Reads the given files (globs allowed), the log_sources of the config file,
or standard input when neither is given or a file is "-".

Reports:
  - test failures with file:line and the test name
  - compiler and vet errors with file:line:column
  - panics, located at the first frame outside the standard library
  - test timeouts (info, shown with --include-info)

Exit codes:
  0 - No failures found
  1 - Failures found
  2 - Configuration or runtime error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (YAML or TOML)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", string(config.DefaultOutputFormat), "Output format (text|json|quickfix)")
	cmd.Flags().StringArrayVar(&opts.StdlibRoots, "stdlib-root", nil, "Standard library root (can be repeated; default: go env GOROOT)")
	cmd.Flags().StringVar(&opts.GoBinary, "go", config.DefaultGoBinary, "Go toolchain used to resolve GOROOT")
	cmd.Flags().BoolVar(&opts.IncludeInfo, "include-info", false, "Include info records such as test timeouts")
	cmd.Flags().BoolVar(&opts.StripCI, "strip-ci", false, "Strip CI job and timestamp prefixes")
	cmd.Flags().BoolVar(&opts.StripANSI, "strip-ansi", false, "Strip terminal escape sequences")
	cmd.Flags().StringVar(&opts.Color, "color", string(config.DefaultColorMode), "Colorize text output (auto|always|never)")
	cmd.Flags().IntVarP(&opts.Concurrency, "jobs", "j", analyzer.DefaultConcurrency, "Number of files classified concurrently")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run whenever an input file changes")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show rules, stack frames and run details")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", string(config.WebhookTriggerOnIssues), "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string, opts *ClassifyOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadOrDefault(ctx, opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyClassifyFlags(cmd, cfg, opts); err != nil {
		return err
	}

	files, err := classifyInputs(args, cfg)
	if err != nil {
		return err
	}

	a, err := newClassifyAnalyzer(cfg, opts, cmd.InOrStdin())
	if err != nil {
		return err
	}

	run := func(ctx context.Context) error {
		report, err := classifyOnce(ctx, cmd, a, files, cfg, opts)
		if err != nil {
			return err
		}
		ExitCode = 0
		if report.HasErrors() {
			ExitCode = 1
		}
		return nil
	}

	if opts.Watch {
		if isStdin(files) {
			return errors.New("--watch needs files; standard input cannot be watched")
		}
		return watchFiles(ctx, files, cmd.ErrOrStderr(), run)
	}
	return run(ctx)
}

// applyClassifyFlags overlays explicitly set flags on the loaded config
// and validates the result.
func applyClassifyFlags(cmd *cobra.Command, cfg *config.Config, opts *ClassifyOptions) error {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Format = config.OutputFormat(opts.Output)
	}
	if flags.Changed("color") {
		cfg.Output.Color = config.ColorMode(opts.Color)
	}
	if flags.Changed("stdlib-root") {
		cfg.StdlibRoots = opts.StdlibRoots
	}
	if flags.Changed("go") {
		cfg.GoBinary = opts.GoBinary
	}
	if opts.IncludeInfo {
		cfg.Output.IncludeInfo = true
	}
	if opts.StripCI {
		cfg.Clean.StripCIPrefixes = true
	}
	if opts.StripANSI {
		cfg.Clean.StripANSI = true
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// classifyInputs picks the files to read: arguments first, then the
// config's log sources, then standard input.
func classifyInputs(args []string, cfg *config.Config) ([]string, error) {
	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.LogSources
	}
	if len(patterns) == 0 {
		patterns = []string{parser.StdinPath}
	}

	files, err := parser.ExpandGlobs(patterns)
	if err != nil {
		return nil, fmt.Errorf("expanding log sources: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no log files matched patterns: %v", patterns)
	}
	return files, nil
}

// newResolver returns the configured roots when there are any, and asks
// the go toolchain otherwise.
func newResolver(cfg *config.Config) classifier.StdlibResolver {
	if len(cfg.StdlibRoots) > 0 {
		return goenv.Static(cfg.StdlibRoots)
	}
	return goenv.New(cfg.GoBinary)
}

func newClassifyAnalyzer(cfg *config.Config, opts *ClassifyOptions, stdin io.Reader) (*analyzer.Analyzer, error) {
	minSeverity := classifier.SeverityError
	if cfg.Output.IncludeInfo {
		minSeverity = classifier.SeverityInfo
	}

	analyzerOpts := []analyzer.AnalyzerOption{
		analyzer.WithMinSeverity(minSeverity),
		analyzer.WithCleaner(cfg.Clean.Cleaner()),
		analyzer.WithConfigFile(opts.ConfigFile),
		analyzer.WithStdin(stdin),
	}
	if opts.Concurrency > 0 {
		analyzerOpts = append(analyzerOpts, analyzer.WithConcurrency(opts.Concurrency))
	}
	if logging.Logger().Enabled(context.Background(), slog.LevelDebug) {
		analyzerOpts = append(analyzerOpts, analyzer.WithRuleTrace(traceRule))
	}

	a, err := analyzer.NewAnalyzer(newResolver(cfg), analyzerOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}
	return a, nil
}

func traceRule(source string, lineNum int, rule string, line string) {
	logging.Debug("rule matched", "source", source, "line", lineNum, "rule", rule, "text", line)
}

func classifyOnce(ctx context.Context, cmd *cobra.Command, a *analyzer.Analyzer, files []string, cfg *config.Config, opts *ClassifyOptions) (*output.Report, error) {
	var (
		result *analyzer.AnalysisResult
		err    error
	)
	if isStdin(files) {
		src := parser.NewReaderSource(parser.StdinName, cmd.InOrStdin(), cfg.Clean.Cleaner())
		defer src.Close()
		result, err = a.AnalyzeSource(ctx, parser.StdinName, src)
	} else {
		result, err = a.Analyze(ctx, files)
	}
	if err != nil {
		var envErr *classifier.EnvironmentResolutionError
		if errors.As(err, &envErr) {
			return nil, fmt.Errorf("%w (set stdlib_roots or pass --stdlib-root)", err)
		}
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	logging.Debug("classification finished",
		"files", len(result.Files),
		"lines", result.Metadata.LinesProcessed,
		"stdlib_roots", result.Metadata.StdlibRoots)

	report := output.NewReport(result)

	w := cmd.OutOrStdout()
	formatter, err := createFormatter(cfg, opts, w)
	if err != nil {
		return nil, err
	}
	if err := formatter.Format(ctx, report, w); err != nil {
		return nil, fmt.Errorf("formatting output: %w", err)
	}

	// Webhook failures are reported but don't fail the run
	sendWebhooks(ctx, cfg, opts, report, cmd.ErrOrStderr())

	return report, nil
}

func createFormatter(cfg *config.Config, opts *ClassifyOptions, w io.Writer) (output.Formatter, error) {
	out, _ := w.(*os.File)
	formatOpts := output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
		Color:   output.ColorEnabled(string(cfg.Output.Color), out, os.Getenv),
	}
	return output.New(string(cfg.Output.Format), formatOpts)
}

// sendWebhooks sends the report to all configured webhooks.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *ClassifyOptions, report *output.Report, stderr io.Writer) {
	hooks := collectWebhooks(cfg, opts)
	if len(hooks) == 0 {
		return
	}

	d := webhook.NewDispatcher(webhook.NewClient(), webhook.DefaultInterval)
	results, err := d.Dispatch(ctx, hooks, report)
	for _, r := range results {
		switch {
		case r.Skipped:
			logging.Debug("webhook skipped", "webhook", r.Name(), "trigger", r.Webhook.Trigger)
		case r.Response.Success():
			fmt.Fprintf(stderr, "Webhook %s: sent (%d, %s)\n", r.Name(), r.Response.StatusCode, r.Response.Duration)
		default:
			fmt.Fprintf(stderr, "Webhook %s: failed (%v)\n", r.Name(), r.Response.Error)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Webhooks interrupted: %v\n", err)
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ClassifyOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

func isStdin(files []string) bool {
	return len(files) == 1 && files[0] == parser.StdinPath
}
