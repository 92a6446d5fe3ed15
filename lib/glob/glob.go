// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package glob implements the engine's path selection language:
//
//   - Exact match: "package.json" matches only "package.json"
//   - Single-segment wildcard: "src/*.ts" matches "src/a.ts" but not
//     "src/sub/a.ts"
//   - Recursive wildcard: "src/**" matches everything under src, at
//     any depth, including zero additional segments
//   - Character wildcard: "?" matches a single non-slash character
//   - Negation: a leading "!" excludes matching paths
//
// Wildcards * and ? never cross a "/" boundary — this is standard
// path.Match behavior and matches the gitignore convention. Use "**"
// to match across hierarchy boundaries. Matching is case-sensitive
// and operates on canonical workspace-relative paths, so results are
// identical on every host filesystem.
//
// A GlobSet is an ordered pattern list evaluated with a single
// override rule: the last pattern that matches a path decides, and it
// includes the path iff it is not negated. A path matched by no
// pattern is excluded, so a set with no inclusive patterns matches
// nothing.
package glob

import (
	"fmt"
	"path"
	"strings"

	"github.com/strata-build/strata/lib/workpath"
)

// Pattern is a single compiled glob pattern. Compile via
// CompilePattern; the zero value matches nothing.
type Pattern struct {
	raw      string
	segments []string
}

// CompilePattern validates and compiles one pattern. Returns an error
// for empty patterns, patterns with empty segments (consecutive
// slashes), and segments that path.Match rejects as malformed
// (unterminated character classes and similar).
func CompilePattern(raw string) (Pattern, error) {
	if raw == "" {
		return Pattern{}, fmt.Errorf("glob: empty pattern")
	}
	segments := strings.Split(raw, "/")
	for _, segment := range segments {
		if segment == "" {
			return Pattern{}, fmt.Errorf("glob: pattern %q has an empty segment", raw)
		}
		if segment == "**" {
			continue
		}
		// path.Match reports malformed patterns lazily, only when the
		// scan reaches the defect. Matching against a probe string
		// that exercises the full pattern surfaces ErrBadPattern at
		// compile time instead of silently never matching.
		if _, err := path.Match(segment, probeFor(segment)); err != nil {
			return Pattern{}, fmt.Errorf("glob: malformed pattern %q: %w", raw, err)
		}
	}
	return Pattern{raw: raw, segments: segments}, nil
}

// probeFor builds a candidate string long enough that path.Match
// scans the entire pattern (and therefore reports any defect in it).
func probeFor(segment string) string {
	return strings.Repeat("x", len(segment)+1)
}

// String returns the pattern source text.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether the pattern matches the given path.
func (p Pattern) Match(target workpath.Anchored) bool {
	if p.raw == "" {
		return false
	}
	return matchSegments(p.segments, strings.Split(string(target), "/"))
}

// matchSegments matches pattern segments against path segments.
// "**" may consume zero or more path segments; every other pattern
// segment consumes exactly one, matched with path.Match semantics.
// Evaluation is independent per path — no state survives a call.
func matchSegments(pattern, target []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			// Zero segments consumed.
			if matchSegments(pattern[1:], target) {
				return true
			}
			// One more segment consumed; retry with the same "**".
			if len(target) == 0 {
				return false
			}
			target = target[1:]
			continue
		}
		if len(target) == 0 {
			return false
		}
		// The segment was validated at compile time, so an error here
		// is unreachable; treat it as a non-match regardless.
		matched, err := path.Match(pattern[0], target[0])
		if err != nil || !matched {
			return false
		}
		pattern = pattern[1:]
		target = target[1:]
	}
	return len(target) == 0
}

// entry is one GlobSet element: a pattern plus its negation flag.
type entry struct {
	pattern Pattern
	negated bool
}

// GlobSet is an ordered sequence of inclusive and negated patterns.
// Compile via Compile. The zero value and the nil set match nothing.
type GlobSet struct {
	entries []entry
}

// Compile builds a GlobSet from raw pattern strings. A leading "!"
// marks a pattern as a negation; "!!" and deeper stacking is not a
// thing — only the first "!" is stripped. Pattern order is
// significant and preserved.
func Compile(raw []string) (*GlobSet, error) {
	set := &GlobSet{entries: make([]entry, 0, len(raw))}
	for _, text := range raw {
		negated := strings.HasPrefix(text, "!")
		if negated {
			text = text[1:]
		}
		pattern, err := CompilePattern(text)
		if err != nil {
			return nil, err
		}
		set.entries = append(set.entries, entry{pattern: pattern, negated: negated})
	}
	return set, nil
}

// Match applies the ordered-override rule: the last pattern matching
// the path decides, and includes it iff not negated. No pattern
// matching means excluded.
func (g *GlobSet) Match(target workpath.Anchored) bool {
	if g == nil {
		return false
	}
	included := false
	for _, e := range g.entries {
		if e.pattern.Match(target) {
			included = !e.negated
		}
	}
	return included
}

// Empty reports whether the set contains no patterns at all.
func (g *GlobSet) Empty() bool {
	return g == nil || len(g.entries) == 0
}

// Patterns returns the source text of every pattern in order, with
// "!" prefixes restored. Used to serialize a compiled set back across
// the call boundary.
func (g *GlobSet) Patterns() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.entries))
	for i, e := range g.entries {
		if e.negated {
			out[i] = "!" + e.pattern.raw
		} else {
			out[i] = e.pattern.raw
		}
	}
	return out
}

// MatchName matches a pattern against a flat name (no slash
// hierarchy), with * and ? spanning the whole name. Used for
// environment variable name patterns, where "*" must match
// "MY_PREFIX_ANYTHING" in full.
func MatchName(pattern, name string) bool {
	if strings.ContainsRune(name, '/') {
		return false
	}
	matched, err := path.Match(pattern, name)
	return err == nil && matched
}
