// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package workpath

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Anchored
	}{
		{"plain", "src/main.go", "src/main.go"},
		{"backslashes", `src\main.go`, "src/main.go"},
		{"leading dot-slash", "./src/main.go", "src/main.go"},
		{"interior dot", "src/./main.go", "src/main.go"},
		{"interior parent", "src/sub/../main.go", "src/main.go"},
		{"trailing slash", "src/", "src"},
		{"single file", "README.md", "README.md"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Normalize(test.input)
			if err != nil {
				t.Fatalf("Normalize(%q): %v", test.input, err)
			}
			if got != test.want {
				t.Errorf("Normalize(%q) = %q, want %q", test.input, got, test.want)
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"absolute", "/etc/passwd"},
		{"escape", "../outside"},
		{"deep escape", "src/../../outside"},
		{"root itself", "."},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Normalize(test.input); err == nil {
				t.Errorf("Normalize(%q) should fail", test.input)
			}
		})
	}
}

func TestSortIsLexicographic(t *testing.T) {
	paths := []Anchored{"b/a", "a/z", "a/b/c", "a"}
	Sort(paths)

	want := []Anchored{"a", "a/b/c", "a/z", "b/a"}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("Sort = %v, want %v", paths, want)
		}
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		path   Anchored
		prefix Anchored
		want   bool
	}{
		{"foo/bar/baz", "foo/bar", true},
		{"foo/bar", "foo/bar", true},
		{"foo/barbaz", "foo/bar", false},
		{"foo", "foo/bar", false},
	}

	for _, test := range tests {
		if got := test.path.HasPrefix(test.prefix); got != test.want {
			t.Errorf("%q.HasPrefix(%q) = %v, want %v", test.path, test.prefix, got, test.want)
		}
	}
}

func TestDir(t *testing.T) {
	if got := Anchored("a/b/c").Dir(); got != "a/b" {
		t.Errorf("Dir = %q, want a/b", got)
	}
	if got := Anchored("top.txt").Dir(); got != "" {
		t.Errorf("Dir of top-level file = %q, want empty", got)
	}
}

func TestJoin(t *testing.T) {
	if got := Join("apps/web", "src/index.ts"); got != "apps/web/src/index.ts" {
		t.Errorf("Join = %q, want apps/web/src/index.ts", got)
	}
	if got := Join("", "package.json"); got != "package.json" {
		t.Errorf("Join at root = %q, want package.json", got)
	}
	if got := Join("a/b", "c").Dir(); got != "a/b" {
		t.Errorf("Dir of joined path = %q, want a/b", got)
	}
}
