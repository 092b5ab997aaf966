// Package cli provides the command-line interface for gotestlog.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/gotestlog/internal/cli/commands"
	"github.com/ccollicutt/gotestlog/internal/cli/plugins"
	"github.com/ccollicutt/gotestlog/internal/logging"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return run(ctx, NewRootCommand(), os.Args[1:], plugins.FindPlugin)
}

func run(ctx context.Context, rootCmd *cobra.Command, args []string, find func(string) (string, error)) int {
	if name, ok := pluginCandidate(rootCmd, args); ok {
		if pluginPath, err := find(name); err == nil {
			return plugins.Execute(ctx, pluginPath, args[1:])
		}
	}

	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if name, ok := pluginCandidate(rootCmd, args); ok {
			_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), plugins.FormatNotFoundError(name))
			return 2
		}
		// SilenceErrors stops cobra from printing this itself
		_, _ = fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return 2
	}
	return commands.ExitCode
}

// pluginCandidate returns the first argument when it names neither a flag
// nor a built-in command.
func pluginCandidate(rootCmd *cobra.Command, args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	name := args[0]
	if name == "" || name[0] == '-' || isBuiltinCommand(rootCmd, name) {
		return "", false
	}
	return name, true
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	return name == "help" || name == "completion"
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	rootCmd := &cobra.Command{
		Use:   "gotestlog",
		Short: "Turn go test and go build output into navigable diagnostics",
		Long: `gotestlog reads the output of go test and go build and reports each failure
at the source location it points to.

It understands:
  - test failures in every go test output shape (plain, -v, nested subtests)
  - compiler and vet diagnostics with columns
  - panics, located at the first frame outside the standard library
  - test timeouts

Feed it a saved log or pipe output straight in:
  go test ./... 2>&1 | gotestlog classify

PLUGINS:
  Unknown commands run a gotestlog-<command> binary if one is found in
  (searched in order):
    1. Same directory as the gotestlog binary
    2. ~/.gotestlog/plugins/
    3. Anywhere in PATH`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			switch logging.Format(logFormat) {
			case logging.FormatText, logging.FormatJSON:
			default:
				return fmt.Errorf("invalid log format %q (must be text or json)", logFormat)
			}
			logging.Init(cmd.ErrOrStderr(), level, logging.Format(logFormat))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Diagnostic log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", string(logging.FormatText), "Diagnostic log format (text|json)")

	rootCmd.AddCommand(commands.NewClassifyCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
