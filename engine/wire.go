// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/strata-build/strata/lib/codec"
	"github.com/strata-build/strata/lib/hash"
	"github.com/strata-build/strata/lib/workpath"
)

// Op names one engine operation on the wire.
type Op string

const (
	OpDataDir           Op = "data-dir"
	OpDiff              Op = "diff"
	OpPreviousContent   Op = "previous-content"
	OpCopyTree          Op = "copy-tree"
	OpVerifySignature   Op = "verify-signature"
	OpPackageManifests  Op = "package-manifests"
	OpManifestOfFiles   Op = "manifest-of-files"
	OpGlobMatch         Op = "glob-match"
	OpCompileGlobs      Op = "compile-globs"
	OpResolveEnv        Op = "resolve-env"
	OpTransitiveClosure Op = "transitive-closure"
	OpSubgraph          Op = "subgraph"
	OpApplyPatch        Op = "apply-patch"
	OpGlobalChange      Op = "global-change"
)

// request is the call envelope: an op name plus its CBOR-encoded body.
type request struct {
	Op   Op               `cbor:"op"`
	Body codec.RawMessage `cbor:"body,omitempty"`
}

// response is the reply envelope. Exactly one of Body and Err is
// meaningful, selected by OK.
type response struct {
	OK   bool             `cbor:"ok"`
	Body codec.RawMessage `cbor:"body,omitempty"`
	Err  *Error           `cbor:"err,omitempty"`
}

// ManifestEntry is one manifest line on the wire: a workspace-relative
// path and its hex digest.
type ManifestEntry struct {
	Path   string `cbor:"path"`
	Digest string `cbor:"digest"`
}

// fromManifest converts a manifest to its wire form.
func fromManifest(m *hash.FileManifest) []ManifestEntry {
	entries := m.Entries()
	out := make([]ManifestEntry, len(entries))
	for i, entry := range entries {
		out[i] = ManifestEntry{Path: string(entry.Path), Digest: hash.Format(entry.Digest)}
	}
	return out
}

// toManifest parses wire entries into a manifest.
func toManifest(entries []ManifestEntry) (*hash.FileManifest, *Error) {
	parsed := make([]hash.Entry, len(entries))
	for i, entry := range entries {
		path, err := workpath.Normalize(entry.Path)
		if err != nil {
			return nil, malformed("manifest entry %d: %v", i, err)
		}
		digest, err := hash.Parse(entry.Digest)
		if err != nil {
			return nil, malformed("manifest entry %d: %v", i, err)
		}
		parsed[i] = hash.Entry{Path: path, Digest: digest}
	}
	manifest, err := hash.NewManifest(parsed)
	if err != nil {
		return nil, malformed("%v", err)
	}
	return manifest, nil
}

// anchorPaths normalizes a list of wire paths.
func anchorPaths(paths []string) ([]workpath.Anchored, *Error) {
	out := make([]workpath.Anchored, len(paths))
	for i, p := range paths {
		anchored, err := workpath.Normalize(p)
		if err != nil {
			return nil, malformed("path %d: %v", i, err)
		}
		out[i] = anchored
	}
	return out, nil
}

// wirePaths converts anchored paths back to plain strings.
func wirePaths(paths []workpath.Anchored) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = string(p)
	}
	return out
}

// DataDirRequest resolves (and creates if absent) the workspace data
// directory.
type DataDirRequest struct {
	Root string `cbor:"root"`
}

type DataDirResponse struct {
	Path string `cbor:"path"`
}

// DiffRequest compares two manifests.
type DiffRequest struct {
	Baseline []ManifestEntry `cbor:"baseline"`
	Current  []ManifestEntry `cbor:"current"`
}

type DiffResponse struct {
	Changed []string `cbor:"changed,omitempty"`
	Added   []string `cbor:"added,omitempty"`
	Removed []string `cbor:"removed,omitempty"`
}

// PreviousContentRequest looks up one path in a blob snapshot. The
// snapshot handle is its directory plus the manifest it was taken
// against.
type PreviousContentRequest struct {
	SnapshotDir string          `cbor:"snapshotDir"`
	Manifest    []ManifestEntry `cbor:"manifest"`
	Path        string          `cbor:"path"`
}

type PreviousContentResponse struct {
	Content []byte `cbor:"content"`
}

// CopyTreeRequest recursively copies a tree, minus excluded paths.
type CopyTreeRequest struct {
	Source      string   `cbor:"source"`
	Destination string   `cbor:"destination"`
	Exclude     []string `cbor:"exclude,omitempty"`
}

// CopyFailureReport is one entry that could not be copied.
type CopyFailureReport struct {
	Path  string `cbor:"path"`
	Error string `cbor:"error"`
}

type CopyTreeResponse struct {
	Copied []string            `cbor:"copied,omitempty"`
	Failed []CopyFailureReport `cbor:"failed,omitempty"`
}

// VerifySignatureRequest checks an artifact signature.
type VerifySignatureRequest struct {
	Payload   []byte `cbor:"payload"`
	Signature []byte `cbor:"signature"`
	Secret    []byte `cbor:"secret"`
}

type VerifySignatureResponse struct {
	Authentic bool `cbor:"authentic"`
}

// PackageManifestsRequest hashes a batch of package directories.
type PackageManifestsRequest struct {
	Root     string   `cbor:"root"`
	Packages []string `cbor:"packages"`
	Ignore   []string `cbor:"ignore,omitempty"`
}

// PackageManifestReport is the outcome for one package. A failed
// package carries Err and no entries or hash; there is deliberately no
// way to express "failed but here is a hash anyway".
type PackageManifestReport struct {
	Dir     string          `cbor:"dir"`
	Entries []ManifestEntry `cbor:"entries,omitempty"`
	Hash    string          `cbor:"hash,omitempty"`
	Skipped []SkipReport    `cbor:"skipped,omitempty"`
	Err     *Error          `cbor:"err,omitempty"`
}

type PackageManifestsResponse struct {
	Packages []PackageManifestReport `cbor:"packages"`
}

// ManifestOfFilesRequest hashes an explicit file list under a root.
type ManifestOfFilesRequest struct {
	Root  string   `cbor:"root"`
	Files []string `cbor:"files"`
}

type ManifestOfFilesResponse struct {
	Entries []ManifestEntry `cbor:"entries,omitempty"`
	Hash    string          `cbor:"hash"`
}

// GlobMatchRequest walks a root and selects files by glob set.
type GlobMatchRequest struct {
	Root     string   `cbor:"root"`
	Patterns []string `cbor:"patterns"`
}

// SkipReport is one unreadable entry encountered during the walk.
type SkipReport struct {
	Path  string `cbor:"path"`
	Error string `cbor:"error"`
}

type GlobMatchResponse struct {
	Paths   []string     `cbor:"paths,omitempty"`
	Skipped []SkipReport `cbor:"skipped,omitempty"`
}

// CompileGlobsRequest validates a pattern list without touching the
// filesystem. The response echoes the patterns in canonical form;
// callers use this to fail fast on malformed configuration.
type CompileGlobsRequest struct {
	Patterns []string `cbor:"patterns"`
}

type CompileGlobsResponse struct {
	Patterns []string `cbor:"patterns,omitempty"`
}

// ResolveEnvRequest selects environment variables by name pattern.
// A nil Environ means the engine process's own environment.
type ResolveEnvRequest struct {
	Patterns []string `cbor:"patterns"`
	Environ  []string `cbor:"environ,omitempty"`
}

// EnvPair is one resolved variable.
type EnvPair struct {
	Name  string `cbor:"name"`
	Value string `cbor:"value"`
}

type ResolveEnvResponse struct {
	Pairs []EnvPair `cbor:"pairs,omitempty"`
}

// TransitiveClosureRequest computes reachability over an edge map.
type TransitiveClosureRequest struct {
	Edges map[string][]string `cbor:"edges"`
	Seeds []string            `cbor:"seeds"`
}

type TransitiveClosureResponse struct {
	Nodes []string `cbor:"nodes,omitempty"`
}

// SubgraphRequest induces a subgraph over a node set.
type SubgraphRequest struct {
	Edges map[string][]string `cbor:"edges"`
	Nodes []string            `cbor:"nodes"`
}

type SubgraphResponse struct {
	Edges map[string][]string `cbor:"edges"`
}

// PatchOp is one manifest edit on the wire.
type PatchOp struct {
	// Kind is "set" or "delete".
	Kind   string `cbor:"kind"`
	Path   string `cbor:"path"`
	Digest string `cbor:"digest,omitempty"`
}

// ApplyPatchRequest replays ordered edits against a baseline manifest.
type ApplyPatchRequest struct {
	Baseline []ManifestEntry `cbor:"baseline"`
	Ops      []PatchOp       `cbor:"ops"`
}

type ApplyPatchResponse struct {
	Manifest []ManifestEntry `cbor:"manifest,omitempty"`
	Changed  []string        `cbor:"changed,omitempty"`
	Added    []string        `cbor:"added,omitempty"`
	Removed  []string        `cbor:"removed,omitempty"`
}

// GlobalChangeRequest compares two dependency graphs.
type GlobalChangeRequest struct {
	Before map[string][]string `cbor:"before"`
	After  map[string][]string `cbor:"after"`
}

type GlobalChangeResponse struct {
	Nodes []string `cbor:"nodes,omitempty"`
}
