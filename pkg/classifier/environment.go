package classifier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrNoStdlibRoots is returned when an environment carries no roots.
// Classifying without roots would misreport every standard library frame
// as a user frame.
var ErrNoStdlibRoots = errors.New("no standard library roots configured")

// Environment is the read-only context a classification runs against.
type Environment struct {
	// StdlibRoots are path prefixes identifying standard library sources,
	// typically GOROOT.
	StdlibRoots []string
}

// StdlibResolver supplies standard library roots, usually by asking the
// go toolchain.
type StdlibResolver interface {
	StdlibRoots(ctx context.Context) ([]string, error)
}

// EnvironmentResolutionError reports that the stdlib root lookup failed.
// Classification is aborted when it occurs; no partial results exist.
type EnvironmentResolutionError struct {
	Err error
}

func (e *EnvironmentResolutionError) Error() string {
	return fmt.Sprintf("resolving standard library roots: %v", e.Err)
}

func (e *EnvironmentResolutionError) Unwrap() error {
	return e.Err
}

// ResolveEnvironment asks the resolver for stdlib roots once.
func ResolveEnvironment(ctx context.Context, r StdlibResolver) (Environment, error) {
	if r == nil {
		return Environment{}, &EnvironmentResolutionError{Err: errors.New("no resolver configured")}
	}
	roots, err := r.StdlibRoots(ctx)
	if err != nil {
		return Environment{}, &EnvironmentResolutionError{Err: err}
	}
	env := Environment{StdlibRoots: roots}
	if err := env.Validate(); err != nil {
		return Environment{}, &EnvironmentResolutionError{Err: err}
	}
	return env, nil
}

// Validate checks that at least one non-empty root is present.
func (e Environment) Validate() error {
	if len(e.normalizedRoots()) == 0 {
		return ErrNoStdlibRoots
	}
	return nil
}

// IsStdlib reports whether path lies under one of the stdlib roots.
func (e Environment) IsStdlib(path string) bool {
	for _, root := range e.normalizedRoots() {
		if len(path) > len(root) && strings.HasPrefix(path, root) && isSeparator(path[len(root)]) {
			return true
		}
	}
	return false
}

// normalizedRoots returns every root without trailing separators, in
// both native and forward-slash spelling, longest first.
func (e Environment) normalizedRoots() []string {
	seen := make(map[string]bool)
	var roots []string
	add := func(r string) {
		r = strings.TrimRight(r, `/\`)
		if r == "" || seen[r] {
			return
		}
		seen[r] = true
		roots = append(roots, r)
	}
	for _, root := range e.StdlibRoots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		add(root)
		add(filepath.ToSlash(root))
		add(strings.ReplaceAll(root, `\`, "/"))
	}
	sort.SliceStable(roots, func(i, j int) bool { return len(roots[i]) > len(roots[j]) })
	return roots
}

// rootsExpr is a regexp alternation matching any root followed by a separator.
func (e Environment) rootsExpr() string {
	roots := e.normalizedRoots()
	quoted := make([]string, len(roots))
	for i, r := range roots {
		quoted[i] = regexp.QuoteMeta(r)
	}
	return `(?:` + strings.Join(quoted, "|") + `)[/\\]`
}

func isSeparator(b byte) bool {
	return b == '/' || b == '\\'
}
