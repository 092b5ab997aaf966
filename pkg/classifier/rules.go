package classifier

import (
	"regexp"
)

// Rule names. They are stable and appear in records and rule traces.
const (
	RuleRunBanner            = "run-banner"
	RulePassBanner           = "pass-banner"
	RuleExampleFailure       = "example-failure"
	RuleFailBanner           = "fail-banner"
	RuleTestOutput           = "test-output"
	RuleTestContinuation     = "test-continuation"
	RuleVerboseTestOutput    = "verbose-test-output"
	RuleIndentedTestOutput   = "indented-test-output"
	RuleIndentedContinuation = "indented-continuation"
	RuleTimeoutPanic         = "timeout-panic"
	RuleRecoveredPanic       = "recovered-panic"
	RulePanic                = "panic"
	RuleGoroutineHeader      = "goroutine-header"
	RuleStdlibFrame          = "stdlib-frame"
	RuleUserFrame            = "user-frame"
	RuleParkedGoroutine      = "parked-goroutine"
	RuleStdlibFrameNoAddress = "stdlib-frame-no-address"
	RuleStackFrame           = "stack-frame"
	RuleExitStatus           = "exit-status"
	RuleFailSummary          = "fail-summary"
	RuleCompileErrorColumn   = "compile-error-column"
	RuleCompileError         = "compile-error"
	RuleTabPanic             = "tab-panic"
	RuleTabContinuation      = "tab-continuation"
	RuleOther                = "other"
)

const (
	// indentUnit is one level of test nesting in go test output.
	indentUnit = "    "
	indentExpr = `(?:    )`

	fileExpr    = `(?P<file>(?:[A-Za-z]:)?[^:\s]+)`
	lineExpr    = `(?P<line>\d+)`
	addressExpr = ` \+0x[0-9A-Fa-f]+(?:\s.*)?$`
)

// Rule is one ordered entry of the classification grammar.
type Rule struct {
	// Name identifies the rule.
	Name string

	// Pattern is matched against the whole line. Named groups file, line,
	// column, message, test, elapsed and indent are extracted when present.
	Pattern *regexp.Regexp

	// Disposition decides what a match does to the open record.
	Disposition Disposition

	// Severity is assigned to records this rule creates.
	Severity Severity

	// Multiline marks records that stay open until a terminal rule closes them.
	Multiline bool

	// InBlock restricts the rule to lines seen while a multi-line record is open.
	InBlock bool

	// Standalone terminal rules close the open record and emit their own,
	// already finalized record.
	Standalone bool

	// SetsTest stores the captured test name as context for later records.
	SetsTest bool

	// UsesTest attaches the current test context to created records.
	UsesTest bool

	groups map[string]int
}

type ruleOption func(*Rule)

func multiline() ruleOption  { return func(r *Rule) { r.Multiline = true } }
func inBlock() ruleOption    { return func(r *Rule) { r.InBlock = true } }
func standalone() ruleOption { return func(r *Rule) { r.Standalone = true } }
func setsTest() ruleOption   { return func(r *Rule) { r.SetsTest = true } }
func usesTest() ruleOption   { return func(r *Rule) { r.UsesTest = true } }
func severity(s Severity) ruleOption {
	return func(r *Rule) { r.Severity = s }
}

func newRule(name, expr string, d Disposition, opts ...ruleOption) *Rule {
	r := &Rule{
		Name:        name,
		Pattern:     regexp.MustCompile(expr),
		Disposition: d,
		Severity:    SeverityError,
		groups:      make(map[string]int),
	}
	for i, n := range r.Pattern.SubexpNames() {
		if n != "" {
			r.groups[n] = i
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// group returns the named capture from m, or "" when the rule has none.
func (r *Rule) group(m []string, name string) string {
	i, ok := r.groups[name]
	if !ok || i >= len(m) {
		return ""
	}
	return m[i]
}

// buildRules returns the rule list in priority order. The stdlib frame
// rules embed the environment's roots, so a rule list belongs to exactly
// one environment.
func buildRules(env Environment) []*Rule {
	roots := env.rootsExpr()

	return []*Rule{
		newRule(RuleRunBanner,
			`^`+indentExpr+`*=== (?:RUN|PAUSE|CONT|NAME)\s+(?P<test>\S+)`,
			DispositionIgnore, setsTest()),
		newRule(RulePassBanner,
			`^`+indentExpr+`*--- PASS: (?P<test>\S+)`,
			DispositionIgnore),
		newRule(RuleExampleFailure,
			`^--- FAIL: (?P<test>(?P<message>Example\S*)) \((?P<elapsed>[^)]*)\)`,
			DispositionEmit),
		newRule(RuleFailBanner,
			`^`+indentExpr+`*--- FAIL: (?P<test>\S+) \([^)]*\)`,
			DispositionIgnore, setsTest()),

		// Go 1.10 shape: tabs introduce the file:line.
		newRule(RuleTestOutput,
			`^(?P<indent>`+indentExpr+`*)\t+`+fileExpr+`:`+lineExpr+`:(?: (?P<message>.*))?$`,
			DispositionEmit, usesTest()),
		newRule(RuleTestContinuation,
			`^`+indentExpr+`*\t\t(?P<message>.*)$`,
			DispositionContinue),

		// Go 1.14 verbose shape: the test name precedes file:line.
		newRule(RuleVerboseTestOutput,
			`^(?P<indent>`+indentExpr+`+)(?P<test>[^:\s]+): `+fileExpr+`:`+lineExpr+`:(?: (?P<message>.*))?$`,
			DispositionEmit),

		// Go 1.11 shape: plain indentation instead of tabs.
		newRule(RuleIndentedTestOutput,
			`^(?P<indent>`+indentExpr+`+)`+fileExpr+`:`+lineExpr+`:(?: (?P<message>.*))?$`,
			DispositionEmit, usesTest()),
		newRule(RuleIndentedContinuation,
			`^(?P<indent>`+indentExpr+`{2,})(?P<message>.*)$`,
			DispositionContinue),

		newRule(RuleTimeoutPanic,
			`^panic: (?P<message>test timed out after (?P<elapsed>\S+))`,
			DispositionTerminal, standalone(), severity(SeverityInfo)),
		newRule(RuleRecoveredPanic,
			`^(?:fatal error|panic): (?P<message>.*) \[recovered(?:, [^\]]*)?\]$`,
			DispositionEmit, multiline(), usesTest()),
		newRule(RulePanic,
			`^(?:fatal error|panic): (?P<message>.*)$`,
			DispositionEmit, multiline(), usesTest()),

		newRule(RuleGoroutineHeader,
			`^goroutine \d+\b.*\]:$`,
			DispositionIgnore),
		// Compiler-generated wrappers have no source to jump to.
		newRule(RuleStdlibFrame,
			`^\t(?P<file>`+roots+`[^\t]*?|<autogenerated>):`+lineExpr+addressExpr,
			DispositionInfoOnly, inBlock()),
		newRule(RuleUserFrame,
			`^\t(?P<file>[^\t]+?):`+lineExpr+addressExpr,
			DispositionTerminal, inBlock()),
		newRule(RuleParkedGoroutine,
			`^runtime\.goparkunlock\(`,
			DispositionIgnore),
		newRule(RuleStdlibFrameNoAddress,
			`^\t`+roots+`[^\t]*:\d+$`,
			DispositionIgnore),
		newRule(RuleStackFrame,
			`^\t[^\t]+:\d+`+addressExpr,
			DispositionIgnore),

		newRule(RuleExitStatus,
			`^exit status \d+$`,
			DispositionIgnore),
		newRule(RuleFailSummary,
			`^FAIL\t`,
			DispositionIgnore),

		newRule(RuleCompileErrorColumn,
			`^`+fileExpr+`:`+lineExpr+`:(?P<column>\d+): (?P<message>.*)$`,
			DispositionEmit),
		newRule(RuleCompileError,
			`^`+fileExpr+`:`+lineExpr+`: (?P<message>.*)$`,
			DispositionEmit),

		newRule(RuleTabPanic,
			`^\tpanic: `,
			DispositionIgnore),
		newRule(RuleTabContinuation,
			`^\t(?P<message>.*)$`,
			DispositionContinue),

		newRule(RuleOther,
			``,
			DispositionIgnore),
	}
}
