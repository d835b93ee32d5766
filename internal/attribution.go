package internal

import (
	"path/filepath"
	"strings"
)

// PathMatcher decides whether a session recorded under sessionPath belongs
// to the project at projectPath. Vendors that mix unrelated projects in one
// store (notably codex) rely on this policy, so it is pluggable rather
// than fixed logic.
type PathMatcher interface {
	Match(sessionPath, projectPath string) bool
}

// MatcherFunc adapts a function to the PathMatcher interface.
type MatcherFunc func(sessionPath, projectPath string) bool

// Match implements PathMatcher.
func (f MatcherFunc) Match(sessionPath, projectPath string) bool {
	return f(sessionPath, projectPath)
}

// DefaultMatcher is the standard attribution chain: exact working-directory
// match first, then ancestor-path in either direction, then best-effort
// trailing-component match.
func DefaultMatcher() PathMatcher {
	return MatcherFunc(func(sessionPath, projectPath string) bool {
		s := normalizePath(sessionPath)
		p := normalizePath(projectPath)
		if s == "" || p == "" {
			return false
		}
		return s == p || isAncestor(s, p) || isAncestor(p, s) || filepath.Base(s) == filepath.Base(p)
	})
}

// ExactMatcher matches only an identical normalized path. Useful for tests
// and for callers that must not cross project boundaries.
func ExactMatcher() PathMatcher {
	return MatcherFunc(func(sessionPath, projectPath string) bool {
		s := normalizePath(sessionPath)
		return s != "" && s == normalizePath(projectPath)
	})
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(p, "/")
}

// isAncestor reports whether ancestor is a proper path prefix of child on a
// component boundary. Root ("/") is never treated as an ancestor so that a
// session at / cannot swallow every project.
func isAncestor(ancestor, child string) bool {
	if len(ancestor) <= 1 || len(child) <= len(ancestor) {
		return false
	}
	return strings.HasPrefix(child, ancestor) && child[len(ancestor)] == '/'
}
