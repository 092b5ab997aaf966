// Package config provides configuration loading and validation for gotestlog.
package config

import (
	"regexp"
	"time"
)

// Config is the root configuration structure loaded from YAML or TOML.
type Config struct {
	// LogSources lists files or globs to classify. "-" reads standard input.
	LogSources []string `yaml:"log_sources" toml:"log_sources"`

	// StdlibRoots are explicit standard library roots. When empty the roots
	// are resolved from GoBinary.
	StdlibRoots []string `yaml:"stdlib_roots,omitempty" toml:"stdlib_roots"`

	// GoBinary is the toolchain asked for GOROOT.
	GoBinary string `yaml:"go_binary,omitempty" toml:"go_binary"`

	Clean    CleanConfig     `yaml:"clean,omitempty" toml:"clean"`
	Output   OutputConfig    `yaml:"output,omitempty" toml:"output"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" toml:"webhooks"`
}

// CleanConfig controls pre-processing of lines before classification.
type CleanConfig struct {
	// StripCIPrefixes removes CI job columns and timestamps.
	StripCIPrefixes bool `yaml:"strip_ci_prefixes,omitempty" toml:"strip_ci_prefixes"`

	// StripANSI removes terminal escape sequences.
	StripANSI bool `yaml:"strip_ansi,omitempty" toml:"strip_ansi"`

	// PrefixPattern is a regex removed from the start of every line.
	PrefixPattern string `yaml:"prefix_pattern,omitempty" toml:"prefix_pattern"`

	// compiledPrefix is the pre-compiled prefix regex (populated during validation).
	compiledPrefix *regexp.Regexp
}

// OutputFormat names a report formatter.
type OutputFormat string

const (
	OutputText     OutputFormat = "text"
	OutputJSON     OutputFormat = "json"
	OutputQuickfix OutputFormat = "quickfix"
)

// ColorMode controls terminal styling of text output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// OutputConfig controls how reports are rendered.
type OutputConfig struct {
	Format OutputFormat `yaml:"format,omitempty" toml:"format"`

	// IncludeInfo reports info records such as test timeouts.
	IncludeInfo bool `yaml:"include_info,omitempty" toml:"include_info"`

	Color ColorMode `yaml:"color,omitempty" toml:"color"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when error records are found (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty" toml:"name"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url" toml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty" toml:"token"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty" toml:"trigger"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout"`
}
