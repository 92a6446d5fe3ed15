// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Strata packages.
//
// [WriteTree] materializes a workspace fixture from a path-to-content
// map in a fresh temporary directory. [WriteFile] adds one file to an
// existing fixture. [ReadBack] reads a file out of a fixture and fails
// the test on any error.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since fixture setup failures are not recoverable.
//
// This package has no Strata-internal dependencies.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree creates a temporary directory populated with the given
// files. Map keys are slash-separated paths relative to the returned
// root; parent directories are created as needed. The directory is
// removed when the test completes.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		WriteFile(t, root, path, content)
	}
	return root
}

// WriteFile writes one file under root, creating parent directories as
// needed. path is slash-separated and relative to root.
func WriteFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

// ReadBack reads the file at the slash-separated path under root.
func ReadBack(t *testing.T, root, path string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return string(content)
}
