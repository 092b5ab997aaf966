package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default values for configuration.
const (
	DefaultGoBinary       = "go"
	DefaultWebhookTimeout = 10 * time.Second
	DefaultOutputFormat   = OutputText
	DefaultColorMode      = ColorAuto
)

// Environment variable names. List values use the OS path list separator.
const (
	EnvLogSources  = "GOTESTLOG_LOG_SOURCES"
	EnvStdlibRoots = "GOTESTLOG_STDLIB_ROOTS"
	EnvGoBinary    = "GOTESTLOG_GO_BINARY"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogSources: []string{},
		GoBinary:   DefaultGoBinary,
		Output: OutputConfig{
			Format: DefaultOutputFormat,
			Color:  DefaultColorMode,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if v := os.Getenv(EnvLogSources); v != "" {
		c.LogSources = splitList(v)
	}
	if v := os.Getenv(EnvStdlibRoots); v != "" {
		c.StdlibRoots = splitList(v)
	}
	if v := os.Getenv(EnvGoBinary); v != "" {
		c.GoBinary = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range filepath.SplitList(v) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
