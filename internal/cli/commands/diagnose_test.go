package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
	"github.com/ccollicutt/gotestlog/pkg/config"
)

func TestCheckConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	good := writeFile(t, tmpDir, "gotestlog.yaml", "go_binary: go\n")
	empty := writeFile(t, tmpDir, "empty.yaml", "")

	tests := []struct {
		name   string
		path   string
		status string
	}{
		{"exists", good, "ok"},
		{"missing", filepath.Join(tmpDir, "missing.yaml"), "error"},
		{"empty", empty, "error"},
		{"directory", tmpDir, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checkConfigExists(tt.path)
			if result.Status != tt.status {
				t.Errorf("Status = %s, want %s (%s)", result.Status, tt.status, result.Message)
			}
		})
	}
}

func TestCheckConfigParseable(t *testing.T) {
	tmpDir := t.TempDir()

	path := writeFile(t, tmpDir, "good.yaml", "stdlib_roots:\n  - /usr/local/go\n")
	cfg, result := checkConfigParseable(context.Background(), path)
	if result.Status != "ok" || cfg == nil {
		t.Fatalf("Status = %s (%s)", result.Status, result.Message)
	}
	if len(cfg.StdlibRoots) != 1 {
		t.Errorf("StdlibRoots = %v", cfg.StdlibRoots)
	}

	path = writeFile(t, tmpDir, "bad.toml", "go_binary = go\n")
	cfg, result = checkConfigParseable(context.Background(), path)
	if result.Status != "error" || cfg != nil {
		t.Errorf("Expected TOML parse error, got %s", result.Status)
	}
	if len(result.Suggests) == 0 || !strings.Contains(result.Suggests[0], "TOML") {
		t.Errorf("Suggests = %v", result.Suggests)
	}
}

func TestCheckLogSources(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := writeFile(t, tmpDir, "go-test.out", failingTestLog)
	writeFile(t, tmpDir, "empty.out", "")

	tests := []struct {
		name     string
		sources  []string
		statuses []string
	}{
		{"none", nil, []string{"ok"}},
		{"file", []string{logPath}, []string{"ok"}},
		{"stdin", []string{"-"}, []string{"ok"}},
		{"glob", []string{filepath.Join(tmpDir, "*.out")}, []string{"ok"}},
		{"empty glob", []string{filepath.Join(tmpDir, "*.log")}, []string{"warning", "error"}},
		{"missing", []string{filepath.Join(tmpDir, "nope.out")}, []string{"error", "error"}},
		{"empty file", []string{filepath.Join(tmpDir, "empty.out")}, []string{"warning", "error"}},
		{"directory", []string{tmpDir}, []string{"error", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := checkLogSources(&config.Config{LogSources: tt.sources})
			if len(results) != len(tt.statuses) {
				t.Fatalf("got %d results, want %d: %+v", len(results), len(tt.statuses), results)
			}
			for i, r := range results {
				if r.Status != tt.statuses[i] {
					t.Errorf("results[%d].Status = %s, want %s (%s)", i, r.Status, tt.statuses[i], r.Message)
				}
			}
		})
	}
}

func TestCheckStdlibRoots(t *testing.T) {
	goroot := t.TempDir()

	env, results := checkStdlibRoots(context.Background(), &config.Config{StdlibRoots: []string{goroot}}, &DiagnoseOptions{})
	if env == nil {
		t.Fatalf("Expected environment, got %+v", results)
	}
	if len(results) != 1 || results[0].Status != "ok" {
		t.Errorf("results = %+v", results)
	}

	env, results = checkStdlibRoots(context.Background(), &config.Config{StdlibRoots: []string{"/nonexistent/goroot"}}, &DiagnoseOptions{})
	if env == nil {
		t.Fatal("Configured roots should resolve even when missing on disk")
	}
	if len(results) != 2 || results[1].Status != "warning" {
		t.Errorf("Expected missing-directory warning, got %+v", results)
	}

	env, results = checkStdlibRoots(context.Background(), &config.Config{GoBinary: "/nonexistent/bin/go"}, &DiagnoseOptions{})
	if env != nil {
		t.Error("Expected nil environment when go cannot be run")
	}
	if len(results) != 1 || results[0].Status != "error" || len(results[0].Suggests) == 0 {
		t.Errorf("results = %+v", results)
	}
}

func TestCheckSampleOutput(t *testing.T) {
	tmpDir := t.TempDir()
	env := classifier.Environment{StdlibRoots: []string{"/usr/local/go"}}
	plain := writeFile(t, tmpDir, "plain.out", failingTestLog)
	decorated := writeFile(t, tmpDir, "ci.out", "2026-01-26T14:49:40.7712345Z --- FAIL: TestAdd (0.00s)\n")
	noise := writeFile(t, tmpDir, "app.log", "server started\n")

	tests := []struct {
		name   string
		cfg    *config.Config
		status string
	}{
		{"recognized", &config.Config{LogSources: []string{plain}}, "ok"},
		{"unstripped CI prefixes", &config.Config{LogSources: []string{decorated}}, "warning"},
		{"stripped CI prefixes", &config.Config{LogSources: []string{decorated}, Clean: config.CleanConfig{StripCIPrefixes: true}}, "ok"},
		{"nothing recognized", &config.Config{LogSources: []string{noise}}, "warning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := checkSampleOutput(context.Background(), tt.cfg, env, &DiagnoseOptions{})
			if len(results) != 1 {
				t.Fatalf("got %d results, want 1", len(results))
			}
			if results[0].Status != tt.status {
				t.Errorf("Status = %s, want %s (%s)", results[0].Status, tt.status, results[0].Message)
			}
		})
	}
}

func TestCheckWebhooks(t *testing.T) {
	cfg := &config.Config{
		Webhooks: []config.WebhookConfig{
			{Name: "good", URL: "https://hooks.example.com", Trigger: config.WebhookTriggerAlways},
			{Name: "scheme", URL: "ftp://hooks.example.com"},
			{Name: "token", URL: "https://hooks.example.com", Token: "$UNSET_TOKEN"},
		},
	}

	results := checkWebhooks(cfg, &DiagnoseOptions{})
	want := []string{"ok", "error", "warning"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, r := range results {
		if r.Status != want[i] {
			t.Errorf("%s: Status = %s, want %s", r.Check, r.Status, want[i])
		}
	}

	if results := checkWebhooks(&config.Config{}, &DiagnoseOptions{}); len(results) != 0 {
		t.Errorf("Expected no results without webhooks, got %d", len(results))
	}
}

func TestCheckWebhookConnectivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Method = %s, want HEAD", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if r := checkWebhookConnectivity(config.WebhookConfig{URL: server.URL, Token: "secret"}); r.Status != "ok" {
		t.Errorf("Status = %s (%s)", r.Status, r.Message)
	}
	if r := checkWebhookConnectivity(config.WebhookConfig{URL: server.URL}); r.Status != "warning" {
		t.Errorf("Expected warning for 401, got %s", r.Status)
	}
}

func TestRunDiagnose(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := writeFile(t, tmpDir, "go-test.out", failingTestLog)
	configPath := writeFile(t, tmpDir, "gotestlog.yaml", `log_sources:
  - `+logPath+`
stdlib_roots:
  - `+tmpDir+`
`)

	var buf bytes.Buffer
	if err := runDiagnose(context.Background(), &buf, configPath, &DiagnoseOptions{}); err != nil {
		t.Fatalf("runDiagnose() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"=== gotestlog Diagnostics ===",
		"[PASS] Config File",
		"[PASS] Config Syntax",
		"[PASS] Stdlib Roots",
		"[PASS] Sample Output: go-test.out",
		"Summary: 5 passed, 0 warnings, 0 errors",
		"Setup looks good!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestRunDiagnose_MissingConfig(t *testing.T) {
	var buf bytes.Buffer
	if err := runDiagnose(context.Background(), &buf, "/nonexistent/gotestlog.yaml", &DiagnoseOptions{}); err != nil {
		t.Fatalf("runDiagnose() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[FAIL] Config File") || !strings.Contains(out, "0 passed, 0 warnings, 1 errors") {
		t.Errorf("Unexpected output:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("a longer line of text", 10); got != "a longe..." {
		t.Errorf("truncate() = %q", got)
	}
}
