// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package glob

import (
	"testing"

	"github.com/strata-build/strata/lib/workpath"
)

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    workpath.Anchored
		want    bool
	}{
		{"package.json", "package.json", true},
		{"package.json", "src/package.json", false},
		{"src/*.ts", "src/a.ts", true},
		{"src/*.ts", "src/sub/a.ts", false},
		{"src/**", "src/a.ts", true},
		{"src/**", "src/sub/deep/a.ts", true},
		{"src/**", "other/a.ts", false},
		{"**/*.ts", "a.ts", true},
		{"**/*.ts", "src/sub/a.ts", true},
		{"**/*.ts", "a.js", false},
		{"**", "anything/at/all", true},
		{"src/**/test/*.ts", "src/test/a.ts", true},
		{"src/**/test/*.ts", "src/x/y/test/a.ts", true},
		{"src/**/test/*.ts", "src/test/sub/a.ts", false},
		{"file.?s", "file.ts", true},
		{"file.?s", "file.tsx", false},
		{"dist", "dist", true},
		{"dist", "distance", false},
	}

	for _, test := range tests {
		pattern, err := CompilePattern(test.pattern)
		if err != nil {
			t.Fatalf("CompilePattern(%q): %v", test.pattern, err)
		}
		if got := pattern.Match(test.path); got != test.want {
			t.Errorf("Match(%q, %q) = %v, want %v", test.pattern, test.path, got, test.want)
		}
	}
}

func TestCompilePatternRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"empty", ""},
		{"empty segment", "src//main.go"},
		{"unterminated class", "src/[abc"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := CompilePattern(test.pattern); err == nil {
				t.Errorf("CompilePattern(%q) should fail", test.pattern)
			}
		})
	}
}

func TestGlobSetLastMatchWins(t *testing.T) {
	set, err := Compile([]string{"**/*.ts", "!**/*.test.ts"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tests := []struct {
		path workpath.Anchored
		want bool
	}{
		{"a.ts", true},
		{"a.test.ts", false},
		{"b.js", false},
		{"deep/nested/c.ts", true},
		{"deep/nested/c.test.ts", false},
	}

	for _, test := range tests {
		if got := set.Match(test.path); got != test.want {
			t.Errorf("Match(%q) = %v, want %v", test.path, got, test.want)
		}
	}
}

func TestGlobSetReinclusion(t *testing.T) {
	// A later inclusive pattern overrides an earlier negation.
	set, err := Compile([]string{"**/*.ts", "!src/**", "src/keep/*.ts"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if set.Match("src/dropped.ts") {
		t.Error("src/dropped.ts should be excluded by !src/**")
	}
	if !set.Match("src/keep/wanted.ts") {
		t.Error("src/keep/wanted.ts should be re-included by the final pattern")
	}
}

func TestGlobSetEmptyMatchesNothing(t *testing.T) {
	set, err := Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if set.Match("anything") {
		t.Error("empty GlobSet should match nothing")
	}

	var nilSet *GlobSet
	if nilSet.Match("anything") {
		t.Error("nil GlobSet should match nothing")
	}
}

func TestGlobSetOnlyNegationsMatchesNothing(t *testing.T) {
	set, err := Compile([]string{"!**/*.log", "!dist/**"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	for _, path := range []workpath.Anchored{"a.log", "dist/bundle.js", "src/main.go"} {
		if set.Match(path) {
			t.Errorf("negation-only set matched %q", path)
		}
	}
}

func TestPatternsRoundTrip(t *testing.T) {
	raw := []string{"**/*.ts", "!**/*.test.ts", "docs/**"}
	set, err := Compile(raw)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	got := set.Patterns()
	if len(got) != len(raw) {
		t.Fatalf("Patterns length = %d, want %d", len(got), len(raw))
	}
	for i := range raw {
		if got[i] != raw[i] {
			t.Errorf("Patterns[%d] = %q, want %q", i, got[i], raw[i])
		}
	}
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"CI", "CI", true},
		{"CI", "CIRCLE", false},
		{"NEXT_PUBLIC_*", "NEXT_PUBLIC_API_URL", true},
		{"NEXT_PUBLIC_*", "NEXT_PRIVATE_KEY", false},
		{"*", "ANYTHING", true},
	}

	for _, test := range tests {
		if got := MatchName(test.pattern, test.name); got != test.want {
			t.Errorf("MatchName(%q, %q) = %v, want %v", test.pattern, test.name, got, test.want)
		}
	}
}
