// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/strata-build/strata/lib/hash"
	"github.com/strata-build/strata/lib/workpath"
)

// ErrNotTracked is returned by PreviousContent for a path the
// snapshot does not record.
var ErrNotTracked = errors.New("diff: path not tracked in snapshot")

// Snapshot retrieves the last known content of workspace paths.
// Snapshot storage is owned by the caller; the engine only performs
// lookups through whatever handle it is given.
type Snapshot interface {
	// PreviousContent returns the recorded bytes for path, or
	// ErrNotTracked if the snapshot does not cover it.
	PreviousContent(path workpath.Anchored) ([]byte, error)
}

// BlobSnapshot is the shipped Snapshot implementation: a manifest
// plus a directory of content-addressed zstd-compressed blobs. Blobs
// are stored under a two-character fan-out ("ab/abcdef....zst") keyed
// by the content digest, so identical content across snapshots
// deduplicates to a single blob.
type BlobSnapshot struct {
	manifest *hash.FileManifest
	dir      string
}

// WriteBlobSnapshot stores the content of every manifest entry
// (read from the live workspace under root) into dir and returns the
// snapshot handle. Existing blobs are reused without rewriting.
func WriteBlobSnapshot(dir, root string, manifest *hash.FileManifest) (*BlobSnapshot, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("diff: creating zstd encoder: %w", err)
	}
	defer encoder.Close()

	for _, entry := range manifest.Entries() {
		blobPath := blobPath(dir, entry.Digest)
		if _, err := os.Stat(blobPath); err == nil {
			continue
		}

		content, err := os.ReadFile(entry.Path.OnSystem(root))
		if err != nil {
			return nil, fmt.Errorf("diff: snapshotting %s: %w", entry.Path, err)
		}
		if hash.HashBytes(content) != entry.Digest {
			return nil, fmt.Errorf("diff: %s changed while snapshotting", entry.Path)
		}

		if err := os.MkdirAll(filepath.Dir(blobPath), 0755); err != nil {
			return nil, fmt.Errorf("diff: creating blob directory: %w", err)
		}
		compressed := encoder.EncodeAll(content, nil)
		if err := os.WriteFile(blobPath, compressed, 0644); err != nil {
			return nil, fmt.Errorf("diff: writing blob for %s: %w", entry.Path, err)
		}
	}

	return &BlobSnapshot{manifest: manifest, dir: dir}, nil
}

// OpenBlobSnapshot wraps an existing blob directory and its manifest
// as a Snapshot handle. No validation happens here; missing or
// corrupt blobs surface on lookup.
func OpenBlobSnapshot(dir string, manifest *hash.FileManifest) *BlobSnapshot {
	return &BlobSnapshot{manifest: manifest, dir: dir}
}

// Manifest returns the manifest this snapshot was taken against.
func (s *BlobSnapshot) Manifest() *hash.FileManifest {
	return s.manifest
}

// PreviousContent returns the stored bytes for path. The blob is
// decompressed and re-hashed before returning; a digest mismatch
// means the blob store is corrupt, which is an error rather than
// silently wrong content.
func (s *BlobSnapshot) PreviousContent(path workpath.Anchored) ([]byte, error) {
	digest, tracked := s.manifest.Lookup(path)
	if !tracked {
		return nil, fmt.Errorf("%w: %s", ErrNotTracked, path)
	}

	compressed, err := os.ReadFile(blobPath(s.dir, digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("diff: blob for %s missing from snapshot: %w", path, err)
		}
		return nil, fmt.Errorf("diff: reading blob for %s: %w", path, err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("diff: creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	content, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("diff: decompressing blob for %s: %w", path, err)
	}
	if hash.HashBytes(content) != digest {
		return nil, fmt.Errorf("diff: blob for %s fails digest verification", path)
	}
	return content, nil
}

// blobPath returns the fan-out path for a digest within dir.
func blobPath(dir string, digest hash.Digest) string {
	hexDigest := hash.Format(digest)
	return filepath.Join(dir, hexDigest[:2], hexDigest+".zst")
}
