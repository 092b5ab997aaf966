// Package plugins provides exec-based plugin support for gotestlog.
// Plugins are separate binaries named gotestlog-<command> that are discovered
// and executed when an unknown command is invoked, the way kubectl and git
// find theirs.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// Prefix is prepended to a command name to form the plugin binary name.
	Prefix = "gotestlog-"

	// EnvBinary tells a plugin where the gotestlog binary that ran it lives.
	EnvBinary = "GOTESTLOG_BIN"
)

// KnownPlugins maps command names users commonly try to a hint.
var KnownPlugins = map[string]string{
	"watch": "Watching is built in: gotestlog classify --watch <files>",
	"run":   "gotestlog does not run tests; pipe them in: go test ./... 2>&1 | gotestlog classify",
}

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// Finder locates plugin binaries.
type Finder struct {
	// ExecDir is the directory of the running gotestlog binary.
	ExecDir string

	// PluginDir is the per-user plugin directory.
	PluginDir string

	// LookPath searches PATH; nil skips the PATH search.
	LookPath func(file string) (string, error)
}

// DefaultFinder searches next to the executable, in ~/.gotestlog/plugins
// and in PATH.
func DefaultFinder() *Finder {
	f := &Finder{LookPath: exec.LookPath}
	if execPath, err := os.Executable(); err == nil {
		f.ExecDir = filepath.Dir(execPath)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		f.PluginDir = filepath.Join(homeDir, ".gotestlog", "plugins")
	}
	return f
}

// Find returns the full path of gotestlog-<command>, searching in order:
//  1. ExecDir
//  2. PluginDir
//  3. PATH
func (f *Finder) Find(command string) (string, error) {
	if command == "" || strings.ContainsAny(command, `/\`) {
		return "", ErrPluginNotFound
	}
	pluginName := Prefix + command

	for _, dir := range []string{f.ExecDir, f.PluginDir} {
		if dir == "" {
			continue
		}
		if candidate := filepath.Join(dir, pluginName); isExecutable(candidate) {
			return candidate, nil
		}
	}

	if f.LookPath != nil {
		if path, err := f.LookPath(pluginName); err == nil {
			return path, nil
		}
	}

	return "", ErrPluginNotFound
}

// FindPlugin searches the default locations for gotestlog-<command>.
func FindPlugin(command string) (string, error) {
	return DefaultFinder().Find(command)
}

// Execute runs a plugin with the given arguments, connected to the
// current stdin, stdout and stderr, and returns the plugin's exit code.
func Execute(ctx context.Context, pluginPath string, args []string) int {
	cmd := exec.CommandContext(ctx, pluginPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if self, err := os.Executable(); err == nil {
		cmd.Env = append(cmd.Env, EnvBinary+"="+self)
	}

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing plugin: %v\n", err)
		return 2
	}

	return 0
}

// FormatNotFoundError returns a helpful error message when a plugin is not found.
func FormatNotFoundError(command string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "unknown command %q for \"gotestlog\"\n", command)

	if hint, ok := KnownPlugins[command]; ok {
		sb.WriteString("\n")
		sb.WriteString(hint)
		sb.WriteString("\n")
	} else {
		sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")
		fmt.Fprintf(&sb, "  - %s%s in the same directory as gotestlog\n", Prefix, command)
		fmt.Fprintf(&sb, "  - ~/.gotestlog/plugins/%s%s\n", Prefix, command)
		fmt.Fprintf(&sb, "  - %s%s anywhere in your PATH\n", Prefix, command)
	}

	sb.WriteString("\nRun 'gotestlog --help' for usage.")

	return sb.String()
}

// isExecutable checks if a file exists and has an execute bit set.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
