// Package pathmatch normalises workspace paths and evaluates glob-pattern
// ownership scopes against them.
package pathmatch

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Normalize converts an absolute or relative path to a workspace-relative
// form using forward slashes. If path is already relative it is cleaned and
// slash-converted as-is; if it is absolute and lies under workspaceRoot, the
// workspace-relative portion is returned.
func Normalize(path, workspaceRoot string) string {
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(workspaceRoot, path); err == nil {
			path = rel
		}
	}
	path = filepath.ToSlash(filepath.Clean(path))
	return strings.TrimPrefix(path, "./")
}

// MatchesAny reports whether the workspace-relative form of path matches any
// of patterns (logical OR). patterns must be non-empty; an empty list always
// returns false and is treated by callers as a configuration error.
func MatchesAny(path string, patterns []string, workspaceRoot string) bool {
	if len(patterns) == 0 {
		return false
	}

	normalized := Normalize(path, workspaceRoot)

	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			continue
		}
		if g.Match(normalized) {
			return true
		}
	}
	return false
}

// CompiledMatcher caches compiled glob patterns for an owned scope so that a
// busy intent does not recompile its patterns on every write.
type CompiledMatcher struct {
	globs []glob.Glob
}

// Compile compiles every pattern in patterns once. Invalid patterns are
// skipped rather than causing Compile to fail, matching the tolerant style
// of MatchesAny.
func Compile(patterns []string) *CompiledMatcher {
	m := &CompiledMatcher{globs: make([]glob.Glob, 0, len(patterns))}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			continue
		}
		m.globs = append(m.globs, g)
	}
	return m
}

// Matches reports whether the workspace-relative form of path matches any
// compiled pattern.
func (m *CompiledMatcher) Matches(path, workspaceRoot string) bool {
	normalized := Normalize(path, workspaceRoot)
	for _, g := range m.globs {
		if g.Match(normalized) {
			return true
		}
	}
	return false
}
