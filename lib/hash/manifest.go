// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package hash

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/strata-build/strata/lib/codec"
	"github.com/strata-build/strata/lib/workpath"
)

// Entry is one manifest row: a workspace-relative path and the
// file-domain digest of its content.
type Entry struct {
	Path   workpath.Anchored
	Digest Digest
}

// FileManifest is an immutable ordered mapping from path to content
// digest. Entries are unique and sorted by path, so two manifests
// with the same logical content are deeply equal regardless of the
// order their entries were discovered in.
type FileManifest struct {
	entries []Entry
}

// NewManifest builds a manifest from entries in any order. Duplicate
// paths are rejected — a manifest with two digests for one path has
// no meaningful aggregate hash.
func NewManifest(entries []Entry) (*FileManifest, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Path == sorted[i-1].Path {
			return nil, fmt.Errorf("hash: duplicate manifest path %q", sorted[i].Path)
		}
	}
	return &FileManifest{entries: sorted}, nil
}

// ManifestOfFiles hashes the given files under root and returns their
// manifest. Hashing runs on a bounded worker pool; output order is
// canonical (sorted by path) regardless of completion order. The
// operation is all-or-nothing: any file that cannot be hashed fails
// the whole manifest with a *PathError naming it, because a package
// hash computed from a partial file set would be silently wrong.
func ManifestOfFiles(root string, files []workpath.Anchored) (*FileManifest, error) {
	entries := make([]Entry, len(files))

	workers := runtime.NumCPU()
	if workers > len(files) {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}

	var wait sync.WaitGroup
	var errOnce sync.Once
	var firstErr error
	indexes := make(chan int)

	for w := 0; w < workers; w++ {
		wait.Add(1)
		go func() {
			defer wait.Done()
			for i := range indexes {
				digest, err := HashFile(files[i].OnSystem(root))
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					continue
				}
				entries[i] = Entry{Path: files[i], Digest: digest}
			}
		}()
	}

	for i := range files {
		indexes <- i
	}
	close(indexes)
	wait.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return NewManifest(entries)
}

// Len returns the number of entries.
func (m *FileManifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Lookup returns the digest recorded for path.
func (m *FileManifest) Lookup(path workpath.Anchored) (Digest, bool) {
	if m == nil {
		return Digest{}, false
	}
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Path >= path })
	if i < len(m.entries) && m.entries[i].Path == path {
		return m.entries[i].Digest, true
	}
	return Digest{}, false
}

// Entries returns a copy of the sorted entry list.
func (m *FileManifest) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Paths returns the sorted path list.
func (m *FileManifest) Paths() []workpath.Anchored {
	if m == nil {
		return nil
	}
	out := make([]workpath.Anchored, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Path
	}
	return out
}

// ExtraInput is a non-file hash input: a resolved environment
// variable, a global cache key, a lockfile hash. The key namespaces
// the value; keys are unique within one Inputs value.
type ExtraInput struct {
	Key   string
	Value string
}

// Inputs bundles everything that participates in a package or task
// aggregate hash: the file manifest plus extra key-value inputs.
type Inputs struct {
	Manifest *FileManifest
	Extra    []ExtraInput
}

// hashableManifest is the canonical wire shape fed to the aggregate
// hash: parallel sorted lists rather than a map, so the encoded form
// is position-stable. Field names are part of the hash protocol.
type hashableManifest struct {
	Files []hashableFile  `cbor:"files"`
	Extra []hashableExtra `cbor:"extra"`
}

type hashableFile struct {
	Path   string `cbor:"path"`
	Digest string `cbor:"digest"`
}

type hashableExtra struct {
	Key   string `cbor:"key"`
	Value string `cbor:"value"`
}

// Aggregate computes the manifest-domain digest summarizing the
// manifest and extra inputs. The manifest is already path-sorted;
// extras are sorted by key here, so the result is independent of the
// order inputs were collected (the core cache-correctness property).
// Duplicate extra keys are rejected for the same reason duplicate
// manifest paths are.
func (in Inputs) Aggregate() (Digest, error) {
	hashable := hashableManifest{
		Files: make([]hashableFile, 0, in.Manifest.Len()),
		Extra: make([]hashableExtra, 0, len(in.Extra)),
	}
	for _, e := range in.Manifest.Entries() {
		hashable.Files = append(hashable.Files, hashableFile{
			Path:   string(e.Path),
			Digest: Format(e.Digest),
		})
	}

	extras := make([]ExtraInput, len(in.Extra))
	copy(extras, in.Extra)
	sort.Slice(extras, func(i, j int) bool { return extras[i].Key < extras[j].Key })
	for i, extra := range extras {
		if i > 0 && extra.Key == extras[i-1].Key {
			return Digest{}, fmt.Errorf("hash: duplicate extra input key %q", extra.Key)
		}
		hashable.Extra = append(hashable.Extra, hashableExtra{Key: extra.Key, Value: extra.Value})
	}

	encoded, err := codec.Marshal(hashable)
	if err != nil {
		return Digest{}, fmt.Errorf("hash: encoding aggregate inputs: %w", err)
	}
	return keyedHash(manifestDomainKey, encoded), nil
}
