// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/strata-build/strata/lib/glob"
	"github.com/strata-build/strata/lib/hash"
	"github.com/strata-build/strata/lib/walk"
	"github.com/strata-build/strata/lib/workpath"
)

// PackageMarker is the file whose presence makes a directory a
// package.
const PackageMarker = "package.json"

// alwaysIgnored prunes dependency trees and VCS metadata from every
// workspace traversal. Package content globs never reach into these.
var alwaysIgnored = []string{"**/node_modules", "**/.git", "**/.strata"}

// baseIgnore is alwaysIgnored in compiled form. The patterns are
// constants, so compilation cannot fail.
var baseIgnore = func() *glob.GlobSet {
	set, err := glob.Compile(alwaysIgnored)
	if err != nil {
		panic("workspace: compiling base ignore globs: " + err.Error())
	}
	return set
}()

// Discover returns the sorted package directories of the workspace:
// directories matching a workspaces.yaml glob that contain a package
// marker file. The workspace root itself is never a package.
func Discover(root string) ([]workpath.Anchored, error) {
	globs, err := ReadWorkspaceGlobs(filepath.Join(root, WorkspacesFileName))
	if err != nil {
		return nil, err
	}

	set, err := glob.Compile(globs)
	if err != nil {
		return nil, fmt.Errorf("workspace: compiling package globs: %w", err)
	}
	walked, err := walk.Walk(root, walk.Options{Ignore: baseIgnore})
	if err != nil {
		return nil, err
	}

	var packages []workpath.Anchored
	for _, file := range walked.Files {
		if path.Base(string(file)) != PackageMarker {
			continue
		}
		dir := file.Dir()
		if dir == "" {
			// Root marker: the workspace itself, not a member.
			continue
		}
		if set.Match(dir) {
			packages = append(packages, dir)
		}
	}

	workpath.Sort(packages)
	return packages, nil
}

// PackageResult is the manifest outcome for one package. Err is set
// when the package's manifest could not be computed; the aggregate
// hash of such a package is undefined and must not be substituted
// with a default (a wrong hash is worse than no hash).
type PackageResult struct {
	Dir      workpath.Anchored
	Manifest *hash.FileManifest
	Skipped  []walk.Skipped
	Err      error
}

// PackageManifests computes one file manifest per package directory.
// Manifest paths are anchored at the workspace root, so manifests of
// different packages merge without collision. Per-package failures
// are recorded in the result rather than failing the batch; within a
// single package, hashing is all-or-nothing.
func PackageManifests(root string, packages []workpath.Anchored, ignore *glob.GlobSet) []PackageResult {
	results := make([]PackageResult, len(packages))
	for i, dir := range packages {
		results[i] = packageManifest(root, dir, ignore)
	}
	return results
}

func packageManifest(root string, dir workpath.Anchored, ignore *glob.GlobSet) PackageResult {
	result := PackageResult{Dir: dir}

	walked, err := walk.Walk(dir.OnSystem(root), walk.Options{Ignore: baseIgnore})
	if err != nil {
		result.Err = err
		return result
	}
	result.Skipped = walked.Skipped

	files := make([]workpath.Anchored, 0, len(walked.Files))
	for _, file := range walked.Files {
		// Re-anchor from package dir to workspace root before the
		// ignore check, so ignore patterns mean the same thing
		// everywhere.
		anchored := workpath.Join(dir, file)
		if ignore.Match(anchored) {
			continue
		}
		files = append(files, anchored)
	}

	manifest, err := hash.ManifestOfFiles(root, files)
	if err != nil {
		result.Err = err
		return result
	}
	result.Manifest = manifest
	return result
}

// DataDirName is the workspace-local data directory.
const DataDirName = ".strata"

// DataDir returns the workspace data directory for root, creating it
// if needed. Snapshots and locally cached artifacts live here.
func DataDir(root string) (string, error) {
	if _, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("workspace: %w", err)
	}

	dir := filepath.Join(root, DataDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("workspace: creating data directory: %w", err)
	}
	return dir, nil
}
