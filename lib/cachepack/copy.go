// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package cachepack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/strata-build/strata/lib/glob"
	"github.com/strata-build/strata/lib/walk"
	"github.com/strata-build/strata/lib/workpath"
)

// CopyFailure records one entry that could not be copied.
type CopyFailure struct {
	Path workpath.Anchored
	Err  error
}

// CopyResult reports what a recursive copy did.
type CopyResult struct {
	// Copied is the sorted list of files restored under the
	// destination.
	Copied []workpath.Anchored

	// Failed lists entries that could not be read or written.
	// Non-empty Failed with non-empty Copied is a partial success;
	// callers decide whether that suffices.
	Failed []CopyFailure
}

// CopyTree recursively copies src to dst, skipping paths matched by
// exclude. Directory structure is created on demand; symlinks are
// recreated as symlinks (never followed). Per-entry failures are
// collected in the result; only a structurally unusable source or
// destination aborts the operation.
func CopyTree(src, dst string, exclude *glob.GlobSet) (*CopyResult, error) {
	walked, err := walk.Walk(src, walk.Options{Ignore: exclude})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, fmt.Errorf("cachepack: creating destination %s: %w", dst, err)
	}

	result := &CopyResult{}
	for _, skipped := range walked.Skipped {
		result.Failed = append(result.Failed, CopyFailure{Path: skipped.Path, Err: skipped.Err})
	}

	for _, file := range walked.Files {
		if err := copyEntry(src, dst, file); err != nil {
			result.Failed = append(result.Failed, CopyFailure{Path: file, Err: err})
			continue
		}
		result.Copied = append(result.Copied, file)
	}
	return result, nil
}

func copyEntry(src, dst string, file workpath.Anchored) error {
	sourcePath := file.OnSystem(src)
	destPath := file.OnSystem(dst)

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}

	info, err := os.Lstat(sourcePath)
	if err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(sourcePath)
		if err != nil {
			return err
		}
		return os.Symlink(target, destPath)
	}

	source, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(destination, source); err != nil {
		destination.Close()
		return err
	}
	return destination.Close()
}
