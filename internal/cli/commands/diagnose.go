package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
	"github.com/ccollicutt/gotestlog/pkg/config"
	"github.com/ccollicutt/gotestlog/pkg/detector"
	"github.com/ccollicutt/gotestlog/pkg/parser"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose [config-file]",
		Short: "Diagnose common setup issues",
		Long: `Diagnose common setup issues.

This command checks:
- Config file syntax and structure (when given)
- Log source file existence and accessibility
- Standard library root resolution
- Whether the logs contain go tool output gotestlog recognizes
- Webhook configuration

Example:
  gotestlog diagnose
  gotestlog diagnose gotestlog.yaml
  gotestlog diagnose -v gotestlog.yaml  # verbose output`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			configPath := ""
			if len(args) == 1 {
				configPath = args[0]
			}
			return runDiagnose(ctx, cmd.OutOrStdout(), configPath, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	var cfg *config.Config
	if configPath == "" {
		loaded, err := config.LoadOrDefault(ctx, "")
		if err != nil {
			results = append(results, DiagnosticResult{
				Check:   "Config",
				Status:  "error",
				Message: fmt.Sprintf("Invalid environment overrides: %v", err),
			})
			printDiagnostics(w, results, opts)
			return nil
		}
		cfg = loaded
		results = append(results, DiagnosticResult{
			Check:   "Config",
			Status:  "ok",
			Message: "No config file given; using defaults and environment overrides",
		})
	} else {
		result := checkConfigExists(configPath)
		results = append(results, result)
		if result.Status == "error" {
			printDiagnostics(w, results, opts)
			return nil
		}

		var parsed DiagnosticResult
		cfg, parsed = checkConfigParseable(ctx, configPath)
		results = append(results, parsed)
		if parsed.Status == "error" {
			printDiagnostics(w, results, opts)
			return nil
		}
	}

	results = append(results, checkLogSources(cfg)...)

	env, rootResults := checkStdlibRoots(ctx, cfg, opts)
	results = append(results, rootResults...)

	if env != nil {
		results = append(results, checkSampleOutput(ctx, cfg, *env, opts)...)
	}

	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(w, results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'gotestlog detect <log-file> --write-config gotestlog.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = "error"
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'gotestlog detect <log-file> --write-config gotestlog.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			result.Suggests = []string{"Check TOML syntax - strings must be quoted"}
		} else if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		return nil, result
	}

	result.Status = "ok"
	result.Message = "Config file parsed successfully"
	result.Details = []string{
		fmt.Sprintf("Log sources: %d", len(cfg.LogSources)),
		fmt.Sprintf("Stdlib roots: %d configured", len(cfg.StdlibRoots)),
		fmt.Sprintf("Output: %s", cfg.Output.Format),
	}
	return cfg, result
}

func checkLogSources(cfg *config.Config) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.LogSources) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Log Sources",
			Status:  "ok",
			Message: "No log sources configured; files are given on the command line or read from stdin",
		})
		return results
	}

	totalFiles := 0
	for _, source := range cfg.LogSources {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Log Source: %s", source),
		}

		switch {
		case source == parser.StdinPath:
			result.Status = "ok"
			result.Message = "Standard input"
			totalFiles++

		case strings.ContainsAny(source, "*?["):
			matches, err := filepath.Glob(source)
			if err != nil {
				result.Status = "error"
				result.Message = fmt.Sprintf("Invalid glob pattern: %v", err)
			} else if len(matches) == 0 {
				result.Status = "warning"
				result.Message = "Glob pattern matches no files"
				result.Suggests = []string{
					"Check if the log files exist at this path",
					"Verify the glob pattern syntax",
				}
			} else {
				result.Status = "ok"
				result.Message = fmt.Sprintf("Matches %d file(s)", len(matches))
				result.Details = append(result.Details, matches...)
				totalFiles += len(matches)
			}

		default:
			info, err := os.Stat(source)
			if os.IsNotExist(err) {
				result.Status = "error"
				result.Message = "File does not exist"
				result.Suggests = []string{
					"Check if the log file path is correct",
					"Save test output with: go test ./... > go-test.out 2>&1",
				}
			} else if err != nil {
				result.Status = "error"
				result.Message = fmt.Sprintf("Cannot access file: %v", err)
				result.Suggests = []string{"Check file permissions"}
			} else if info.IsDir() {
				result.Status = "error"
				result.Message = "Path is a directory, not a file"
				result.Suggests = []string{
					"Use a glob pattern to match files in directory",
					"Example: build/logs/*.out",
				}
			} else if info.Size() == 0 {
				result.Status = "warning"
				result.Message = "File is empty (0 bytes)"
			} else {
				result.Status = "ok"
				result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
				totalFiles++
			}
		}
		results = append(results, result)
	}

	if totalFiles == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Log Files Summary",
			Status:  "error",
			Message: "No accessible log files found",
			Suggests: []string{
				"Ensure at least one log file exists and is readable",
			},
		})
	}

	return results
}

// checkStdlibRoots resolves the classification environment the same way
// classify does. The environment is nil when resolution failed.
func checkStdlibRoots(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) (*classifier.Environment, []DiagnosticResult) {
	results := []DiagnosticResult{}

	result := DiagnosticResult{
		Check: "Stdlib Roots",
	}

	env, err := classifier.ResolveEnvironment(ctx, newResolver(cfg))
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		var envErr *classifier.EnvironmentResolutionError
		if errors.As(err, &envErr) && len(cfg.StdlibRoots) == 0 {
			result.Suggests = []string{
				fmt.Sprintf("Check that %q is installed and on PATH", cfg.GoBinary),
				"Set stdlib_roots in the config or pass --stdlib-root",
			}
		}
		return nil, append(results, result)
	}

	source := fmt.Sprintf("resolved with %s env GOROOT", cfg.GoBinary)
	if len(cfg.StdlibRoots) > 0 {
		source = "configured"
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("%d root(s), %s", len(env.StdlibRoots), source)
	if opts.Verbose {
		result.Details = append(result.Details, env.StdlibRoots...)
	}
	results = append(results, result)

	var missing []string
	for _, root := range env.StdlibRoots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			missing = append(missing, root)
		}
	}
	if len(missing) > 0 && len(missing) == len(env.StdlibRoots) {
		results = append(results, DiagnosticResult{
			Check:   "Stdlib Root Directories",
			Status:  "warning",
			Message: "No root exists on this machine",
			Details: missing,
			Suggests: []string{
				"Fine for logs copied from CI; roots only need to match the paths printed in the log",
			},
		})
	}

	return &env, results
}

// checkSampleOutput classifies the head of the first readable source.
func checkSampleOutput(ctx context.Context, cfg *config.Config, env classifier.Environment, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	c, err := classifier.New(env)
	if err != nil {
		return results
	}
	d, err := detector.New(c, detector.WithSampleSize(200))
	if err != nil {
		return results
	}

	for _, source := range cfg.LogSources {
		if source == parser.StdinPath {
			continue
		}
		files, _ := filepath.Glob(source)
		if len(files) == 0 {
			continue
		}

		logFile := files[0]
		result := DiagnosticResult{
			Check: fmt.Sprintf("Sample Output: %s", filepath.Base(logFile)),
		}

		det, err := d.DetectFromFile(ctx, logFile)
		if err != nil {
			result.Status = "warning"
			result.Message = fmt.Sprintf("Cannot read file: %v", err)
			results = append(results, result)
			continue
		}

		switch {
		case !det.HasMatch():
			result.Status = "warning"
			result.Message = fmt.Sprintf("No go tool output recognized in %d sampled lines", det.SampledLines)
			result.Suggests = []string{
				"Lines may carry a prefix; set clean.prefix_pattern",
				"Use 'gotestlog detect " + logFile + "' to inspect the file",
			}
		case det.CIPrefixedLines > 0 && !cfg.Clean.StripCIPrefixes:
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d sampled lines carry CI prefixes", det.CIPrefixedLines)
			result.Suggests = []string{"Set clean.strip_ci_prefixes: true or pass --strip-ci"}
		case det.ANSILines > 0 && !cfg.Clean.StripANSI:
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d sampled lines carry escape sequences", det.ANSILines)
			result.Suggests = []string{"Set clean.strip_ansi: true or pass --strip-ansi"}
		default:
			result.Status = "ok"
			result.Message = fmt.Sprintf("Detected %s (%d record(s) in sample)", det.BestMatch().Shape.Name, det.Records)
			if opts.Verbose {
				result.Details = []string{
					"Sample line:",
					truncate(det.BestMatch().SampleLine, 80),
				}
			}
		}

		results = append(results, result)
		break // Only sample the first matching file
	}

	return results
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== gotestlog Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before running classify.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nSetup is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nSetup looks good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		issues := []string{}
		warnings := []string{}

		if wh.URL == "" {
			issues = append(issues, "Missing url")
		} else {
			u, err := url.Parse(wh.URL)
			if err != nil {
				issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
			} else if u.Scheme != "http" && u.Scheme != "https" {
				issues = append(issues, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
			} else if u.Host == "" {
				issues = append(issues, "URL must have a host")
			}
		}

		if wh.Trigger != "" {
			switch wh.Trigger {
			case config.WebhookTriggerOnIssues, config.WebhookTriggerAlways, config.WebhookTriggerNever:
			default:
				issues = append(issues, fmt.Sprintf("Invalid trigger %q (use on_issues, always, or never)", wh.Trigger))
			}
		}

		// Load expands ${VAR}; a leftover $ means the variable was unset
		if strings.HasPrefix(wh.Token, "$") {
			warnings = append(warnings, fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
		}

		if len(issues) > 0 {
			result.Status = "error"
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		} else if len(warnings) > 0 {
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		} else {
			result.Status = "ok"
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			if wh.URL == "" {
				continue
			}

			name := wh.Name
			if name == "" {
				name = wh.URL
			}

			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, result)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = "ok"
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
