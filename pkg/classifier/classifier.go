package classifier

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Classifier holds a compiled rule list for one environment.
// It is immutable and safe for concurrent use; all per-input state lives
// in a Session.
type Classifier struct {
	env   Environment
	rules []*Rule
}

// New compiles the rule list for env.
func New(env Environment) (*Classifier, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		env:   env,
		rules: buildRules(env),
	}, nil
}

// Environment returns the environment the classifier was built for.
func (c *Classifier) Environment() Environment {
	return c.env
}

// Rules returns the rules in priority order.
func (c *Classifier) Rules() []*Rule {
	out := make([]*Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify runs a fresh session over lines and returns every record.
func (c *Classifier) Classify(lines []string) []Record {
	s := c.NewSession()
	var out []Record
	for _, line := range lines {
		out = append(out, s.Push(line)...)
	}
	return append(out, s.Flush()...)
}

// Classify builds a classifier for env and classifies lines with it.
// The only error is an invalid environment.
func Classify(lines []string, env Environment) ([]Record, error) {
	c, err := New(env)
	if err != nil {
		return nil, err
	}
	return c.Classify(lines), nil
}

// ClassifyWith resolves the environment once and classifies lines.
// A resolver failure is returned as *EnvironmentResolutionError before
// any line is looked at.
func ClassifyWith(ctx context.Context, lines []string, r StdlibResolver) ([]Record, error) {
	env, err := ResolveEnvironment(ctx, r)
	if err != nil {
		return nil, err
	}
	return Classify(lines, env)
}

// TraceFunc observes which rule consumed each line.
type TraceFunc func(rule *Rule, lineNum int, line string)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithTrace installs a callback invoked for every consumed line.
func WithTrace(fn TraceFunc) SessionOption {
	return func(s *Session) {
		s.trace = fn
	}
}

// Session is the per-input state machine. It is either idle (no open
// record) or accumulating a single open record.
type Session struct {
	rules []*Rule
	trace TraceFunc

	open       *Record
	openIndent int  // width of the leading indentation of the opening line
	inBlock    bool // open record awaits a terminal stack frame
	test       string
	lineNum    int
}

// NewSession starts an idle session.
func (c *Classifier) NewSession(opts ...SessionOption) *Session {
	s := &Session{rules: c.rules}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push classifies one line and returns the records it finalized.
func (s *Session) Push(line string) []Record {
	s.lineNum++
	line = strings.TrimRight(line, "\r\n")

	rule, m := s.match(line)
	if s.trace != nil {
		s.trace(rule, s.lineNum, line)
	}

	switch rule.Disposition {
	case DispositionIgnore:
		if rule.SetsTest {
			s.test = rule.group(m, "test")
		}
		return nil

	case DispositionEmit:
		out := s.close()
		s.start(rule, m, line)
		return out

	case DispositionContinue:
		if s.open == nil {
			return nil
		}
		s.appendMessage(s.continuationText(rule, m, line))
		return nil

	case DispositionInfoOnly:
		if s.open == nil {
			return nil
		}
		lineNo, _ := strconv.Atoi(rule.group(m, "line"))
		s.open.Frames = append(s.open.Frames, Frame{File: rule.group(m, "file"), Line: lineNo})
		return nil

	case DispositionTerminal:
		if rule.Standalone {
			out := s.close()
			s.start(rule, m, line)
			return append(out, s.close()...)
		}
		if s.open == nil {
			return nil
		}
		s.open.File = rule.group(m, "file")
		s.open.Line, _ = strconv.Atoi(rule.group(m, "line"))
		s.open.Column = 0
		return s.close()
	}

	return nil
}

// Flush finalizes the open record at end of input.
func (s *Session) Flush() []Record {
	return s.close()
}

// Open returns a copy of the record being accumulated, if any.
func (s *Session) Open() (Record, bool) {
	if s.open == nil {
		return Record{}, false
	}
	return *s.open, true
}

func (s *Session) match(line string) (*Rule, []string) {
	for _, rule := range s.rules {
		if rule.InBlock && !s.inBlock {
			continue
		}
		if m := rule.Pattern.FindStringSubmatch(line); m != nil {
			return rule, m
		}
	}
	// The last rule matches everything, so this is unreachable with the
	// built-in rule list.
	last := s.rules[len(s.rules)-1]
	return last, []string{line}
}

func (s *Session) start(rule *Rule, m []string, line string) {
	rec := &Record{
		File:      rule.group(m, "file"),
		Message:   rule.group(m, "message"),
		Severity:  rule.Severity,
		Multiline: rule.Multiline,
		Rule:      rule.Name,
		InputLine: s.lineNum,
	}
	rec.Line, _ = strconv.Atoi(rule.group(m, "line"))
	rec.Column, _ = strconv.Atoi(rule.group(m, "column"))

	if elapsed := rule.group(m, "elapsed"); elapsed != "" {
		if d, err := time.ParseDuration(elapsed); err == nil {
			rec.Elapsed = d
		}
	}

	switch {
	case rule.group(m, "test") != "":
		rec.Test = rule.group(m, "test")
	case rule.UsesTest:
		rec.Test = s.test
	}

	s.open = rec
	s.openIndent = leadingSpaces(line)
	s.inBlock = rule.Multiline
}

func (s *Session) close() []Record {
	if s.open == nil {
		return nil
	}
	rec := *s.open
	s.open = nil
	s.inBlock = false
	s.openIndent = 0
	return []Record{rec}
}

func (s *Session) appendMessage(text string) {
	if s.open.Message == "" {
		s.open.Message = text
	} else {
		s.open.Message += "\n" + text
	}
	s.open.Multiline = true
}

// continuationText extracts the text a continue rule appends. Tab shapes
// append the captured text verbatim; the indented shape strips one level
// beyond the opening line's indentation and keeps the rest.
func (s *Session) continuationText(rule *Rule, m []string, line string) string {
	if rule.Name != RuleIndentedContinuation {
		return rule.group(m, "message")
	}
	strip := s.openIndent + len(indentUnit)
	if n := leadingSpaces(line); n < strip {
		strip = n
	}
	return line[strip:]
}

func leadingSpaces(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}
