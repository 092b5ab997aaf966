package parser

import (
	"fmt"
	"path/filepath"
)

// ExpandGlobs expands file paths and glob patterns into a deduplicated list.
// Arguments keep their order; the matches of one pattern are sorted.
// Patterns that match nothing are returned as-is so the caller reports the
// missing file, and "-" passes through as standard input.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	for _, pattern := range patterns {
		if pattern == StdinPath {
			add(pattern)
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			add(pattern)
			continue
		}

		for _, match := range matches {
			add(match)
		}
	}

	return result, nil
}
