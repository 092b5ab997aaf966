package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/gotestlog/pkg/config"
	"github.com/ccollicutt/gotestlog/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a gotestlog configuration file without classifying anything.

Checks:
  - YAML or TOML syntax
  - Output format and color mode
  - Prefix pattern regex validity
  - Webhook URLs and triggers
  - Log source file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Log sources:  %d pattern(s)\n", len(cfg.LogSources))
	if len(cfg.StdlibRoots) > 0 {
		fmt.Fprintf(w, "  Stdlib roots: %d configured\n", len(cfg.StdlibRoots))
		for _, r := range cfg.StdlibRoots {
			fmt.Fprintf(w, "    - %s\n", r)
		}
	} else {
		fmt.Fprintf(w, "  Stdlib roots: from %s env GOROOT\n", cfg.GoBinary)
	}
	fmt.Fprintf(w, "  Output:       %s (color %s, include info %t)\n", cfg.Output.Format, cfg.Output.Color, cfg.Output.IncludeInfo)
	printCleanSteps(w, &cfg.Clean)
	fmt.Fprintf(w, "  Webhooks:     %d\n", len(cfg.Webhooks))

	if len(cfg.LogSources) == 0 {
		return nil
	}

	// Log sources are only warned about
	files, err := parser.ExpandGlobs(cfg.LogSources)
	if err != nil {
		fmt.Fprintf(w, "\nWarning: Error expanding log source patterns: %v\n", err)
	} else if len(files) == 0 {
		fmt.Fprintf(w, "\nWarning: No files match log source patterns\n")
	} else {
		fmt.Fprintf(w, "\nLog files matched: %d\n", len(files))
		for _, f := range files {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}

	return nil
}

func printCleanSteps(w io.Writer, c *config.CleanConfig) {
	var steps []string
	if c.StripANSI {
		steps = append(steps, "escape sequences")
	}
	if c.StripCIPrefixes {
		steps = append(steps, "CI prefixes")
	}
	if c.PrefixPattern != "" {
		steps = append(steps, fmt.Sprintf("prefix %q", c.PrefixPattern))
	}
	if len(steps) == 0 {
		fmt.Fprintf(w, "  Cleaning:     none\n")
		return
	}
	fmt.Fprintf(w, "  Cleaning:     %s\n", strings.Join(steps, ", "))
}
