// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package envscan resolves which environment variables participate in
// global hash inputs. Callers configure name patterns ("CI",
// "NEXT_PUBLIC_*", "!*_TOKEN"); the resolver matches them against a
// process environment and returns the selected name/value pairs. A
// negation always wins over any inclusive match, mirroring the
// path-glob override rule, so secrets can be carved out of a broad
// inclusion with one pattern.
package envscan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/strata-build/strata/lib/glob"
)

// Pair is one resolved environment variable.
type Pair struct {
	Name  string
	Value string
}

// Resolve matches the given name patterns against environ (entries in
// the os.Environ "NAME=value" form) and returns the selected pairs
// sorted by name. Patterns support * and ? spanning the whole name; a
// leading "!" negates. Values never participate in matching.
func Resolve(patterns []string, environ []string) ([]Pair, error) {
	type compiled struct {
		pattern string
		negated bool
	}

	rules := make([]compiled, 0, len(patterns))
	for _, text := range patterns {
		negated := strings.HasPrefix(text, "!")
		if negated {
			text = text[1:]
		}
		if text == "" {
			return nil, fmt.Errorf("envscan: empty pattern")
		}
		// Reuse the glob compiler for validation; env names have no
		// hierarchy, so a slash in a pattern can never match.
		if _, err := glob.CompilePattern(text); err != nil {
			return nil, fmt.Errorf("envscan: %w", err)
		}
		rules = append(rules, compiled{pattern: text, negated: negated})
	}

	var selected []Pair
	for _, entry := range environ {
		name, value, found := strings.Cut(entry, "=")
		if !found || name == "" {
			continue
		}

		included := false
		excluded := false
		for _, rule := range rules {
			if !glob.MatchName(rule.pattern, name) {
				continue
			}
			if rule.negated {
				excluded = true
			} else {
				included = true
			}
		}
		if included && !excluded {
			selected = append(selected, Pair{Name: name, Value: value})
		}
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Name < selected[j].Name })
	return selected, nil
}
