package detector

import "github.com/ccollicutt/gotestlog/pkg/classifier"

// Shape is a recognizable kind of go tool output, identified by the
// classifier rules that consume its lines.
type Shape struct {
	Name        string   // Human-readable name
	Description string   // What the shape looks like
	Rules       []string // Classifier rules whose hits indicate this shape
}

// DefaultShapes returns the output shapes the detector reports, most
// common first.
func DefaultShapes() []*Shape {
	return []*Shape{
		{
			Name:        "go test",
			Description: "test failures with tab-indented file:line output",
			Rules: []string{
				classifier.RuleFailBanner,
				classifier.RuleTestOutput,
				classifier.RuleTestContinuation,
				classifier.RuleFailSummary,
				classifier.RuleExitStatus,
			},
		},
		{
			Name:        "verbose go test",
			Description: "go test -v output with RUN and PASS banners",
			Rules: []string{
				classifier.RuleRunBanner,
				classifier.RulePassBanner,
				classifier.RuleVerboseTestOutput,
				classifier.RuleIndentedTestOutput,
				classifier.RuleIndentedContinuation,
			},
		},
		{
			Name:        "example failures",
			Description: "failing Example functions",
			Rules:       []string{classifier.RuleExampleFailure},
		},
		{
			Name:        "build diagnostics",
			Description: "compiler and vet errors as file:line[:col]: message",
			Rules: []string{
				classifier.RuleCompileErrorColumn,
				classifier.RuleCompileError,
			},
		},
		{
			Name:        "panic",
			Description: "panics and fatal errors with goroutine stack traces",
			Rules: []string{
				classifier.RulePanic,
				classifier.RuleRecoveredPanic,
				classifier.RuleTabPanic,
				classifier.RuleGoroutineHeader,
				classifier.RuleStdlibFrame,
				classifier.RuleUserFrame,
				classifier.RuleParkedGoroutine,
				classifier.RuleStdlibFrameNoAddress,
				classifier.RuleStackFrame,
			},
		},
		{
			Name:        "timeout",
			Description: "test binary killed by the -timeout alarm",
			Rules:       []string{classifier.RuleTimeoutPanic},
		},
	}
}

// shapeIndex maps each rule name to the shape it belongs to.
func shapeIndex(shapes []*Shape) map[string]*Shape {
	idx := make(map[string]*Shape)
	for _, s := range shapes {
		for _, r := range s.Rules {
			idx[r] = s
		}
	}
	return idx
}
