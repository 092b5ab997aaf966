// Package goenv locates the standard library sources of a Go toolchain.
package goenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	// DefaultGoBinary is used when no toolchain is configured.
	DefaultGoBinary = "go"

	defaultExpiration = 10 * time.Minute
	cleanupInterval   = 30 * time.Minute
)

var (
	// ErrEmptyGOROOT is returned when the toolchain reports no GOROOT.
	ErrEmptyGOROOT = errors.New("go env GOROOT returned an empty path")

	// ErrNoRoots is returned by an empty Static resolver.
	ErrNoRoots = errors.New("no standard library roots given")
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec. Standard error is folded into
// the returned error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- the toolchain path is user configuration
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Resolver asks a go toolchain for its GOROOT. Results are cached per
// binary, so repeated runs in watch mode do not fork the toolchain again.
type Resolver struct {
	goBinary string
	run      Runner
	cache    *cache.Cache
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRunner replaces the command runner.
func WithRunner(run Runner) Option {
	return func(r *Resolver) {
		r.run = run
	}
}

// WithCache shares a cache between resolvers.
func WithCache(c *cache.Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// New creates a resolver for goBinary, or "go" when empty.
func New(goBinary string, opts ...Option) *Resolver {
	if goBinary == "" {
		goBinary = DefaultGoBinary
	}
	r := &Resolver{
		goBinary: goBinary,
		run:      ExecRunner,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = cache.New(defaultExpiration, cleanupInterval)
	}
	return r
}

// GoBinary returns the toolchain the resolver queries.
func (r *Resolver) GoBinary() string {
	return r.goBinary
}

// StdlibRoots returns GOROOT and its alternate spellings. Any failure is
// returned as is; nothing is guessed.
func (r *Resolver) StdlibRoots(ctx context.Context) ([]string, error) {
	if cached, found := r.cache.Get(r.goBinary); found {
		return append([]string(nil), cached.([]string)...), nil
	}

	out, err := r.run(ctx, r.goBinary, "env", "GOROOT")
	if err != nil {
		return nil, fmt.Errorf("running %s env GOROOT: %w", r.goBinary, err)
	}

	goroot := strings.TrimSpace(string(out))
	if goroot == "" {
		return nil, ErrEmptyGOROOT
	}

	roots := Variants(goroot)
	r.cache.Set(r.goBinary, roots, cache.DefaultExpiration)
	return append([]string(nil), roots...), nil
}

// Variants returns root, its symlink-resolved form and the forward-slash
// spelling of both, without duplicates.
func Variants(root string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	add(root)
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		add(resolved)
	}
	for _, p := range append([]string(nil), out...) {
		add(filepath.ToSlash(p))
	}
	return out
}

// Static serves a fixed list of roots, typically from configuration.
type Static []string

// StdlibRoots returns the configured roots.
func (s Static) StdlibRoots(ctx context.Context) ([]string, error) {
	var roots []string
	for _, r := range s {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, r)
		}
	}
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	return roots, nil
}
