package analyzer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
	"github.com/ccollicutt/gotestlog/pkg/goenv"
	"github.com/ccollicutt/gotestlog/pkg/parser"
)

// mockSource is a test LogSource that returns predefined lines.
type mockSource struct {
	lines []string
	index int
	err   error
}

func (m *mockSource) Next(ctx context.Context) (*parser.LogLine, error) {
	if m.index >= len(m.lines) {
		if m.err != nil {
			return nil, m.err
		}
		return nil, io.EOF
	}
	m.index++
	return &parser.LogLine{Content: m.lines[m.index-1], Source: "mock", LineNum: m.index}, nil
}

func (m *mockSource) Close() error {
	return nil
}

type failingResolver struct{}

func (failingResolver) StdlibRoots(ctx context.Context) ([]string, error) {
	return nil, errors.New("go: not found")
}

var testRoots = goenv.Static{"/usr/local/go"}

const failingTestLog = `=== RUN   TestA
    a_test.go:10: got 1
        want 2
--- FAIL: TestA (0.00s)
panic: test timed out after 1s
FAIL	example.com/a	1.002s
`

const panicLog = `panic: runtime error: index out of range [3] with length 3

goroutine 7 [running]:
	/usr/local/go/src/testing/testing.go:1576 +0x10b
	/home/dev/b/b.go:12 +0x1d
exit status 2
`

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewAnalyzer(t *testing.T) {
	a, err := NewAnalyzer(testRoots)
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	if a.minSeverity != classifier.SeverityError {
		t.Errorf("minSeverity = %q, want error", a.minSeverity)
	}
	if a.concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", a.concurrency, DefaultConcurrency)
	}
}

func TestNewAnalyzer_NoResolver(t *testing.T) {
	if _, err := NewAnalyzer(nil); err == nil {
		t.Error("NewAnalyzer(nil) expected error")
	}
}

func TestAnalyzer_Analyze(t *testing.T) {
	a := writeLog(t, "a.out", failingTestLog)
	b := writeLog(t, "b.out", panicLog)

	an, err := NewAnalyzer(testRoots, WithConfigFile("gotestlog.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	result, err := an.Analyze(context.Background(), []string{a, b})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(result.Files) != 2 {
		t.Fatalf("Files = %d, want 2", len(result.Files))
	}
	if result.Files[0].Source != a || result.Files[1].Source != b {
		t.Errorf("sources out of order: %s, %s", result.Files[0].Source, result.Files[1].Source)
	}

	first := result.Files[0]
	if len(first.Records) != 1 {
		t.Fatalf("a.out records = %d, want 1 (timeout filtered)", len(first.Records))
	}
	if first.Records[0].Message != "got 1\nwant 2" || first.Records[0].Test != "TestA" {
		t.Errorf("record = %+v", first.Records[0])
	}
	if first.Stats.RecordsFound != 2 || first.Stats.RecordsFiltered != 1 {
		t.Errorf("stats = %+v, want 2 found and 1 filtered", first.Stats)
	}

	second := result.Files[1].Records
	if len(second) != 1 || second[0].File != "/home/dev/b/b.go" || second[0].Line != 12 {
		t.Errorf("b.out records = %+v", second)
	}

	if result.ErrorCount() != 2 || result.InfoCount() != 0 {
		t.Errorf("counts = %d errors, %d info", result.ErrorCount(), result.InfoCount())
	}
	if result.FilesWithErrors() != 2 || !result.HasErrors() {
		t.Errorf("FilesWithErrors() = %d", result.FilesWithErrors())
	}
	if result.Metadata.ConfigFile != "gotestlog.yaml" {
		t.Errorf("ConfigFile = %q", result.Metadata.ConfigFile)
	}
	if result.Metadata.LinesProcessed != 12 {
		t.Errorf("LinesProcessed = %d, want 12", result.Metadata.LinesProcessed)
	}
	if result.Metadata.RuleHits[classifier.RuleStdlibFrame] != 1 {
		t.Errorf("RuleHits = %v", result.Metadata.RuleHits)
	}
	if len(result.Metadata.StdlibRoots) != 1 {
		t.Errorf("StdlibRoots = %v", result.Metadata.StdlibRoots)
	}
}

func TestAnalyzer_IncludeInfo(t *testing.T) {
	path := writeLog(t, "a.out", failingTestLog)

	an, err := NewAnalyzer(testRoots, WithMinSeverity(classifier.SeverityInfo))
	if err != nil {
		t.Fatal(err)
	}

	result, err := an.Analyze(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	records := result.Records()
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[1].Severity != classifier.SeverityInfo || records[1].Elapsed.String() != "1s" {
		t.Errorf("timeout record = %+v", records[1])
	}
	if result.InfoCount() != 1 || result.TotalRecords() != 2 {
		t.Errorf("InfoCount() = %d, TotalRecords() = %d", result.InfoCount(), result.TotalRecords())
	}
}

func TestAnalyzer_ResolutionFailureReadsNothing(t *testing.T) {
	an, err := NewAnalyzer(failingResolver{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = an.Analyze(context.Background(), []string{"/nonexistent/never-opened.out"})

	var resErr *classifier.EnvironmentResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("Analyze() error = %v, want EnvironmentResolutionError", err)
	}
}

func TestAnalyzer_MissingFile(t *testing.T) {
	an, err := NewAnalyzer(testRoots)
	if err != nil {
		t.Fatal(err)
	}

	_, err = an.Analyze(context.Background(), []string{"/nonexistent/go-test.out"})
	if err == nil || !strings.Contains(err.Error(), "go-test.out") {
		t.Errorf("Analyze() error = %v, want missing file error", err)
	}
}

func TestAnalyzer_ContextCancellation(t *testing.T) {
	path := writeLog(t, "a.out", failingTestLog)

	an, err := NewAnalyzer(testRoots)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := an.Analyze(ctx, []string{path}); !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze() error = %v, want context.Canceled", err)
	}
}

func TestAnalyzer_ManyFilesBoundedConcurrency(t *testing.T) {
	var files []string
	for i := 0; i < 12; i++ {
		files = append(files, writeLog(t, "f.out", panicLog))
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	trace := func(source string, lineNum int, rule string, line string) {
		mu.Lock()
		defer mu.Unlock()
		seen[source] = true
	}

	an, err := NewAnalyzer(testRoots, WithConcurrency(3), WithRuleTrace(trace))
	if err != nil {
		t.Fatal(err)
	}

	result, err := an.Analyze(context.Background(), files)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	for i, f := range result.Files {
		if f.Source != files[i] {
			t.Errorf("Files[%d].Source = %s, want %s", i, f.Source, files[i])
		}
		if len(f.Records) != 1 {
			t.Errorf("Files[%d] records = %d, want 1", i, len(f.Records))
		}
	}
	if len(seen) != len(files) {
		t.Errorf("trace saw %d sources, want %d", len(seen), len(files))
	}
}

func TestAnalyzer_WithCleaner(t *testing.T) {
	path := writeLog(t, "ci.out", "2026-01-26T14:49:40.7760945Z \ta_test.go:3: \x1b[31mbad\x1b[0m\n")

	an, err := NewAnalyzer(testRoots, WithCleaner(parser.NewCleaner(parser.WithCIPrefixes(), parser.WithANSI())))
	if err != nil {
		t.Fatal(err)
	}

	result, err := an.Analyze(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	records := result.Records()
	if len(records) != 1 || records[0].Message != "bad" || records[0].File != "a_test.go" {
		t.Errorf("records = %+v", records)
	}
}

func TestAnalyzer_AnalyzeSource(t *testing.T) {
	an, err := NewAnalyzer(testRoots)
	if err != nil {
		t.Fatal(err)
	}

	src := &mockSource{lines: strings.Split(panicLog, "\n")}
	result, err := an.AnalyzeSource(context.Background(), parser.StdinName, src)
	if err != nil {
		t.Fatalf("AnalyzeSource() error = %v", err)
	}

	if len(result.Files) != 1 || result.Files[0].Source != parser.StdinName {
		t.Fatalf("Files = %+v", result.Files)
	}
	if result.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d, want 1", result.ErrorCount())
	}
}

func TestAnalyzer_OverlongLineKeepsLaterRecords(t *testing.T) {
	an, err := NewAnalyzer(testRoots)
	if err != nil {
		t.Fatal(err)
	}

	input := "--- FAIL: TestBar (0.00s)\n" +
		"\tbar_test.go:1: first " + strings.Repeat("{}", parser.MaxLineSize) + "\n" +
		"\tbar_test.go:2: second\n"
	src := parser.NewReaderSource(parser.StdinName, strings.NewReader(input), nil)

	result, err := an.AnalyzeSource(context.Background(), parser.StdinName, src)
	if err != nil {
		t.Fatalf("AnalyzeSource() error = %v", err)
	}

	records := result.Files[0].Records
	if len(records) != 2 {
		t.Fatalf("Records = %d, want 2", len(records))
	}
	if records[0].Line != 1 || !strings.HasPrefix(records[0].Message, "first {}") {
		t.Errorf("first record = %s:%d", records[0].File, records[0].Line)
	}
	if records[1].File != "bar_test.go" || records[1].Line != 2 || records[1].Message != "second" {
		t.Errorf("second record = %+v", records[1])
	}
}

func TestAnalyzer_AnalyzeSourceReadError(t *testing.T) {
	an, err := NewAnalyzer(testRoots)
	if err != nil {
		t.Fatal(err)
	}

	src := &mockSource{lines: []string{"panic: boom"}, err: errors.New("broken pipe")}
	if _, err := an.AnalyzeSource(context.Background(), "pipe", src); err == nil {
		t.Error("AnalyzeSource() expected read error")
	}
}

func TestClassifyEngine_Reset(t *testing.T) {
	c, err := classifier.New(classifier.Environment{StdlibRoots: testRoots})
	if err != nil {
		t.Fatal(err)
	}

	var traced []string
	e := NewClassifyEngine("mock", c, classifier.SeverityInfo, func(_ string, lineNum int, rule string, _ string) {
		traced = append(traced, rule)
	})

	ctx := context.Background()
	if err := e.Process(ctx, &parser.LogLine{Content: "\ta_test.go:1: x", LineNum: 1}); err != nil {
		t.Fatal(err)
	}
	e.Reset()

	res, err := e.Finalize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 0 || res.Stats.LinesProcessed != 0 {
		t.Errorf("after Reset() result = %+v, want empty", res)
	}
	if len(traced) != 1 || traced[0] != classifier.RuleTestOutput {
		t.Errorf("traced = %v", traced)
	}
}
