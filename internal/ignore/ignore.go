package ignore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns are the directories every scan skips regardless of
// project configuration: version control, dependency caches, build output
// and our own state directory.
var DefaultPatterns = []string{
	".git",
	"node_modules",
	"build",
	"dist",
	"__pycache__",
	".venv",
	".docdrift",
}

// RuleSet is an ordered list of project-relative glob patterns.
//
// A bare name without a slash or glob metacharacters (".git", "node_modules")
// matches any path component, so it excludes that directory at any depth.
// Anything else is matched with doublestar semantics against the full
// project-relative path, so "**/*.gen.go" and "docs/*.tmp" work as expected.
type RuleSet struct {
	patterns    []string
	fingerprint string
}

// NewRuleSet validates patterns and returns a rule set. The caller supplies
// the fully resolved list; combine with DefaultPatterns as needed.
func NewRuleSet(patterns []string) (*RuleSet, error) {
	for _, p := range patterns {
		if p == "" {
			return nil, fmt.Errorf("empty ignore pattern")
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return &RuleSet{
		patterns:    append([]string(nil), patterns...),
		fingerprint: fingerprintPatterns(patterns),
	}, nil
}

// Default returns a rule set holding only the built-in patterns.
func Default() *RuleSet {
	rs, err := NewRuleSet(DefaultPatterns)
	if err != nil {
		panic(err) // built-in patterns are static and valid
	}
	return rs
}

// Match reports whether the project-relative path rel is excluded.
func (r *RuleSet) Match(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	for _, p := range r.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if strings.Contains(p, "/") {
			continue
		}
		// Component-wise match for bare patterns.
		for _, part := range strings.Split(rel, "/") {
			if ok, _ := doublestar.Match(p, part); ok {
				return true
			}
		}
	}
	return false
}

// Patterns returns the ordered pattern list.
func (r *RuleSet) Patterns() []string {
	return append([]string(nil), r.patterns...)
}

// Fingerprint identifies this exact ordered pattern list. A snapshot built
// under a different fingerprint cannot be diffed against the current tree:
// a pattern change can hide or reveal files, so the baseline must be rebuilt.
func (r *RuleSet) Fingerprint() string {
	return r.fingerprint
}

func fingerprintPatterns(patterns []string) string {
	h := sha256.New()
	for _, p := range patterns {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
