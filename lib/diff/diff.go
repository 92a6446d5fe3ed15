// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package diff compares file-hash manifests. The comparison is pure
// set arithmetic over sorted manifests, so its output is canonical:
// same inputs, byte-identical result, on every platform.
package diff

import (
	"errors"
	"fmt"

	"github.com/strata-build/strata/lib/hash"
	"github.com/strata-build/strata/lib/workpath"
)

// ErrUntrackedDelete reports a patch operation deleting a path its
// baseline manifest does not track.
var ErrUntrackedDelete = errors.New("diff: patch deletes untracked path")

// Result partitions paths into three disjoint sorted sets relative to
// a baseline manifest.
type Result struct {
	// Changed: present in both manifests with differing digests.
	Changed []workpath.Anchored

	// Added: present only in the current manifest.
	Added []workpath.Anchored

	// Removed: present only in the baseline manifest.
	Removed []workpath.Anchored
}

// Empty reports whether the diff found no differences.
func (r *Result) Empty() bool {
	return len(r.Changed) == 0 && len(r.Added) == 0 && len(r.Removed) == 0
}

// Paths returns all affected paths (changed, added, removed) as one
// sorted list. This is the seed set fed to graph closure queries.
func (r *Result) Paths() []workpath.Anchored {
	out := make([]workpath.Anchored, 0, len(r.Changed)+len(r.Added)+len(r.Removed))
	out = append(out, r.Changed...)
	out = append(out, r.Added...)
	out = append(out, r.Removed...)
	workpath.Sort(out)
	return out
}

// Diff compares a baseline manifest against a current one. Either
// side may be nil, which reads as an empty manifest: a nil baseline
// reports everything as added, a nil current reports everything as
// removed. The two manifests are merged in sorted order, so the
// result sets come out sorted without a separate pass.
func Diff(baseline, current *hash.FileManifest) *Result {
	result := &Result{}

	before := baseline.Entries()
	after := current.Entries()

	i, j := 0, 0
	for i < len(before) && j < len(after) {
		switch {
		case before[i].Path == after[j].Path:
			if before[i].Digest != after[j].Digest {
				result.Changed = append(result.Changed, before[i].Path)
			}
			i++
			j++
		case before[i].Path < after[j].Path:
			result.Removed = append(result.Removed, before[i].Path)
			i++
		default:
			result.Added = append(result.Added, after[j].Path)
			j++
		}
	}
	for ; i < len(before); i++ {
		result.Removed = append(result.Removed, before[i].Path)
	}
	for ; j < len(after); j++ {
		result.Added = append(result.Added, after[j].Path)
	}

	return result
}

// OpKind says what a patch operation does to its path.
type OpKind uint8

const (
	// OpSet records a new digest for the path, adding it if absent.
	OpSet OpKind = iota

	// OpDelete removes the path from the manifest.
	OpDelete
)

// Op is one patch operation.
type Op struct {
	Kind   OpKind
	Path   workpath.Anchored
	Digest hash.Digest // ignored for OpDelete
}

// Patch is an ordered list of manifest edits. Later operations see
// the effect of earlier ones, so Set followed by Delete of the same
// path nets to a delete.
type Patch struct {
	Ops []Op
}

// Apply replays the patch against a baseline manifest and returns the
// resulting manifest plus the diff it induces. Deleting a path the
// baseline does not track is an error — a patch built against a
// different baseline is a caller bug worth surfacing, not skipping.
func Apply(baseline *hash.FileManifest, patch Patch) (*hash.FileManifest, *Result, error) {
	state := make(map[workpath.Anchored]hash.Digest, baseline.Len())
	for _, entry := range baseline.Entries() {
		state[entry.Path] = entry.Digest
	}

	for index, op := range patch.Ops {
		switch op.Kind {
		case OpSet:
			state[op.Path] = op.Digest
		case OpDelete:
			if _, tracked := state[op.Path]; !tracked {
				return nil, nil, fmt.Errorf("%w: op %d, path %q", ErrUntrackedDelete, index, op.Path)
			}
			delete(state, op.Path)
		default:
			return nil, nil, fmt.Errorf("diff: patch op %d has unknown kind %d", index, op.Kind)
		}
	}

	entries := make([]hash.Entry, 0, len(state))
	for path, digest := range state {
		entries = append(entries, hash.Entry{Path: path, Digest: digest})
	}
	patched, err := hash.NewManifest(entries)
	if err != nil {
		return nil, nil, err
	}
	return patched, Diff(baseline, patched), nil
}
