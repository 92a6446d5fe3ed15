// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package workpath defines the workspace-relative path type used
// throughout the engine. Every file the engine hashes, diffs, globs,
// or copies is identified by an Anchored path: relative to the
// workspace root, forward-slash separated, and cleaned. Two paths are
// equal iff their string forms are byte-equal, which makes Anchored
// safe as a map key and gives manifests a canonical sort order on all
// platforms.
package workpath

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Anchored is a workspace-relative path in canonical form: forward
// slashes, no leading "./", no ".." segments, no trailing slash.
// Construct values through Normalize; the zero value is invalid.
type Anchored string

// ErrEmpty is returned by Normalize for an empty input path.
var ErrEmpty = errors.New("workpath: empty path")

// Normalize converts a caller-supplied relative path into canonical
// Anchored form. Backslash separators are converted to forward
// slashes so Windows-discovered paths hash identically to their Unix
// forms. Absolute paths and paths that escape the workspace root
// (leading "..") are rejected.
func Normalize(p string) (Anchored, error) {
	if p == "" {
		return "", ErrEmpty
	}
	slashed := strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(slashed, "/") {
		return "", fmt.Errorf("workpath: %q is absolute, want workspace-relative", p)
	}
	cleaned := path.Clean(slashed)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("workpath: %q escapes the workspace root", p)
	}
	if cleaned == "." {
		return "", fmt.Errorf("workpath: %q names the workspace root, not a file", p)
	}
	return Anchored(cleaned), nil
}

// String returns the canonical forward-slash form.
func (a Anchored) String() string {
	return string(a)
}

// OnSystem joins the anchored path onto an absolute workspace root
// using the host separator. The inverse of FromSystem.
func (a Anchored) OnSystem(root string) string {
	return filepath.Join(root, filepath.FromSlash(string(a)))
}

// Dir returns the anchored path of the containing directory, or ""
// when the path is a direct child of the workspace root.
func (a Anchored) Dir() Anchored {
	parent := path.Dir(string(a))
	if parent == "." {
		return ""
	}
	return Anchored(parent)
}

// Join anchors file beneath the anchored directory dir. A dir of ""
// names the workspace root, so file passes through unchanged. Both
// inputs are already canonical and the concatenation preserves that,
// so no re-validation happens.
func Join(dir, file Anchored) Anchored {
	if dir == "" {
		return file
	}
	return Anchored(string(dir) + "/" + string(file))
}

// HasPrefix reports whether the path is prefix itself or lies under
// the directory named by prefix. Segment-aware: "foo/barbaz" is not
// under "foo/bar".
func (a Anchored) HasPrefix(prefix Anchored) bool {
	if a == prefix {
		return true
	}
	return strings.HasPrefix(string(a), string(prefix)+"/")
}

// FromSystem converts a host-native path under root into Anchored
// form. Returns an error if p does not lie under root.
func FromSystem(root, p string) (Anchored, error) {
	relative, err := filepath.Rel(root, p)
	if err != nil {
		return "", fmt.Errorf("workpath: relativizing %s against %s: %w", p, root, err)
	}
	return Normalize(relative)
}

// Sort sorts anchored paths lexicographically in place. Because
// Anchored forms are canonical, lexicographic order is the same on
// every platform.
func Sort(paths []Anchored) {
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
}
