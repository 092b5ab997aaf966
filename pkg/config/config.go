package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/gotestlog/pkg/parser"
)

// Load reads and validates a configuration file. Files ending in .toml are
// decoded as TOML, everything else as YAML.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, or returns the validated defaults with
// environment overrides when path is empty.
func LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	if path != "" {
		return Load(ctx, path)
	}
	cfg := DefaultConfig()
	cfg.applyEnvironmentOverrides()
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Marshal renders cfg as YAML, the format written by detect --write-config.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Validate checks a configuration for errors, compiles regex patterns and
// fills in defaults.
func Validate(cfg *Config) error {
	for i, src := range cfg.LogSources {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("log_sources[%d]: empty path", i)
		}
	}

	var roots []string
	for _, r := range cfg.StdlibRoots {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, r)
		}
	}
	cfg.StdlibRoots = roots

	if strings.TrimSpace(cfg.GoBinary) == "" {
		cfg.GoBinary = DefaultGoBinary
	}

	if err := validateClean(&cfg.Clean); err != nil {
		return fmt.Errorf("clean: %w", err)
	}

	if err := validateOutput(&cfg.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateClean(c *CleanConfig) error {
	c.compiledPrefix = nil
	if c.PrefixPattern == "" {
		return nil
	}

	re, err := regexp.Compile(c.PrefixPattern)
	if err != nil {
		return fmt.Errorf("invalid prefix_pattern: %w", err)
	}
	c.compiledPrefix = re

	return nil
}

// Cleaner builds the line cleaner described by the clean section.
// It returns nil when no cleaning is configured.
func (c *CleanConfig) Cleaner() *parser.Cleaner {
	var opts []parser.CleanerOption
	if c.StripANSI {
		opts = append(opts, parser.WithANSI())
	}
	if c.StripCIPrefixes {
		opts = append(opts, parser.WithCIPrefixes())
	}
	if c.compiledPrefix != nil {
		opts = append(opts, parser.WithPrefixPattern(c.compiledPrefix))
	}
	return parser.NewCleaner(opts...)
}

func validateOutput(o *OutputConfig) error {
	switch o.Format {
	case "":
		o.Format = DefaultOutputFormat
	case OutputText, OutputJSON, OutputQuickfix:
	default:
		return fmt.Errorf("invalid format %q (must be text, json, or quickfix)", o.Format)
	}

	switch o.Color {
	case "":
		o.Color = DefaultColorMode
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color %q (must be auto, always, or never)", o.Color)
	}

	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	switch wh.Trigger {
	case "":
		wh.Trigger = WebhookTriggerOnIssues
	case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
	default:
		return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands a token given as ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		return os.Getenv(s[1:])
	}

	return s
}
