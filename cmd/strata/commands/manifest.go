// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/strata-build/strata/lib/hash"
	"github.com/strata-build/strata/lib/workpath"
)

// Manifest files use one "digest  path" line per entry, sorted by
// path, in the style of sha256sum output. The format is stable: it is
// what diff reads back as a baseline.

// writeManifestTo writes a manifest in file form.
func writeManifestTo(w io.Writer, manifest *hash.FileManifest) error {
	for _, entry := range manifest.Entries() {
		if _, err := fmt.Fprintf(w, "%s  %s\n", hash.Format(entry.Digest), entry.Path); err != nil {
			return err
		}
	}
	return nil
}

// readManifestFile parses a manifest file written by writeManifestTo.
func readManifestFile(path string) (*hash.FileManifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	defer file.Close()

	var entries []hash.Entry
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		digestText, pathText, found := strings.Cut(text, "  ")
		if !found {
			return nil, fmt.Errorf("%s:%d: not a \"digest  path\" line", path, line)
		}
		digest, err := hash.Parse(digestText)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		anchored, err := workpath.Normalize(pathText)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		entries = append(entries, hash.Entry{Path: anchored, Digest: digest})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return hash.NewManifest(entries)
}

// anchorArgs normalizes positional path arguments.
func anchorArgs(args []string) ([]workpath.Anchored, error) {
	paths := make([]workpath.Anchored, len(args))
	for i, arg := range args {
		anchored, err := workpath.Normalize(arg)
		if err != nil {
			return nil, err
		}
		paths[i] = anchored
	}
	return paths, nil
}
