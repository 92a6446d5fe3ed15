// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package walk enumerates workspace files deterministically. The
// walker produces sorted workspace-relative paths, prunes ignored
// subtrees, never follows symlinks (a symlink is recorded under its
// own path, preventing cycles), and collects unreadable entries as a
// partial-failure list instead of aborting — one permission-locked
// subtree must not prevent hashing the rest of the workspace.
package walk

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/strata-build/strata/lib/glob"
	"github.com/strata-build/strata/lib/workpath"
)

// Skipped records one entry the walker could not read.
type Skipped struct {
	// Path is workspace-relative; for a failed directory it names the
	// directory whose entire subtree was skipped.
	Path workpath.Anchored

	// Err is the underlying filesystem error.
	Err error
}

// Result is the outcome of a walk: the files found plus whatever
// could not be read.
type Result struct {
	// Files is the sorted list of regular files and symlinks found.
	Files []workpath.Anchored

	// Skipped lists entries that could not be read. A non-empty list
	// with a non-empty Files is a partial success.
	Skipped []Skipped
}

// Options adjusts walker behavior.
type Options struct {
	// Ignore prunes matching paths. A file matching the set is
	// omitted; a directory matching the set is skipped without
	// descending (so to prune "node_modules" everywhere, ignore
	// "**/node_modules"). Nil ignores nothing.
	Ignore *glob.GlobSet

	// Logger, when set, receives a debug record per skipped entry.
	Logger *slog.Logger
}

// Walk enumerates files under root. Regular files and symlinks are
// reported; directories are traversed but not reported. The returned
// error is reserved for structural failures (root missing or
// unreadable); per-entry failures land in Result.Skipped.
func Walk(root string, options Options) (*Result, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("walking %s: not a directory", root)
	}

	result := &Result{}

	walkErr := filepath.WalkDir(root, func(current string, entry fs.DirEntry, err error) error {
		if current == root {
			if err != nil {
				return err
			}
			return nil
		}

		anchored, pathErr := workpath.FromSystem(root, current)
		if pathErr != nil {
			return pathErr
		}

		if err != nil {
			// Unreadable entry: record and move on. For directories
			// WalkDir already declines to descend.
			result.skip(anchored, err, options.Logger)
			return nil
		}

		if entry.IsDir() {
			if options.Ignore.Match(anchored) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are recorded as themselves and never resolved —
		// following them could loop and would make the manifest
		// depend on link-target state outside the recorded path.
		if !entry.Type().IsRegular() && entry.Type()&fs.ModeSymlink == 0 {
			// Sockets, devices, FIFOs: not hashable input.
			return nil
		}

		if options.Ignore.Match(anchored) {
			return nil
		}
		result.Files = append(result.Files, anchored)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking %s: %w", root, walkErr)
	}

	workpath.Sort(result.Files)
	return result, nil
}

// Match walks root and keeps only files selected by the GlobSet,
// using its ordered-override rule. An empty set selects no files;
// that is the semantics of the selection language, not a walker quirk.
func Match(root string, set *glob.GlobSet, options Options) (*Result, error) {
	walked, err := Walk(root, options)
	if err != nil {
		return nil, err
	}

	matched := &Result{Skipped: walked.Skipped}
	for _, file := range walked.Files {
		if set.Match(file) {
			matched.Files = append(matched.Files, file)
		}
	}
	return matched, nil
}

func (r *Result) skip(path workpath.Anchored, err error, logger *slog.Logger) {
	r.Skipped = append(r.Skipped, Skipped{Path: path, Err: err})
	if logger != nil {
		logger.Debug("skipping unreadable entry", "path", string(path), "error", err)
	}
}
