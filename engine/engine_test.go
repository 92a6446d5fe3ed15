// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/strata-build/strata/lib/codec"
	"github.com/strata-build/strata/lib/diff"
	"github.com/strata-build/strata/lib/hash"
	"github.com/strata-build/strata/lib/signature"
	"github.com/strata-build/strata/lib/testutil"
	"github.com/strata-build/strata/lib/workpath"
)

func newTestEngine() *Engine {
	return New(Options{})
}

// call performs one operation and decodes the successful response body
// into out.
func call(t *testing.T, e *Engine, op Op, req, out any) {
	t.Helper()
	resp := envelope(t, e, op, req)
	if !resp.OK {
		t.Fatalf("%s failed: %v", op, resp.Err)
	}
	if err := codec.Unmarshal(resp.Body, out); err != nil {
		t.Fatalf("decoding %s response: %v", op, err)
	}
}

// callExpectError performs one operation and returns its error
// envelope.
func callExpectError(t *testing.T, e *Engine, op Op, req any) *Error {
	t.Helper()
	resp := envelope(t, e, op, req)
	if resp.OK {
		t.Fatalf("%s succeeded, want error", op)
	}
	if resp.Err == nil {
		t.Fatalf("%s failed without an error envelope", op)
	}
	return resp.Err
}

func envelope(t *testing.T, e *Engine, op Op, req any) response {
	t.Helper()
	body, err := codec.Marshal(req)
	if err != nil {
		t.Fatalf("encoding %s request: %v", op, err)
	}

	buffer := e.Call(op, body)
	payload, err := buffer.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	var resp response
	if err := codec.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("decoding %s envelope: %v", op, err)
	}
	if err := buffer.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	return resp
}

func entry(path string, content string) ManifestEntry {
	return ManifestEntry{Path: path, Digest: hash.Format(hash.HashBytes([]byte(content)))}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestUnknownOp(t *testing.T) {
	callErr := callExpectError(t, newTestEngine(), Op("bogus"), struct{}{})
	if callErr.Kind != KindMalformed {
		t.Errorf("Kind = %s, want %s", callErr.Kind, KindMalformed)
	}
}

func TestDiffOp(t *testing.T) {
	var resp DiffResponse
	call(t, newTestEngine(), OpDiff, DiffRequest{
		Baseline: []ManifestEntry{entry("a.ts", "one"), entry("b.ts", "two")},
		Current:  []ManifestEntry{entry("a.ts", "one"), entry("c.ts", "three")},
	}, &resp)

	if !equalStrings(resp.Added, []string{"c.ts"}) {
		t.Errorf("Added = %v", resp.Added)
	}
	if !equalStrings(resp.Removed, []string{"b.ts"}) {
		t.Errorf("Removed = %v", resp.Removed)
	}
	if len(resp.Changed) != 0 {
		t.Errorf("Changed = %v", resp.Changed)
	}
}

func TestDiffOpMalformedDigest(t *testing.T) {
	callErr := callExpectError(t, newTestEngine(), OpDiff, DiffRequest{
		Baseline: []ManifestEntry{{Path: "a.ts", Digest: "zz"}},
	})
	if callErr.Kind != KindMalformed {
		t.Errorf("Kind = %s, want %s", callErr.Kind, KindMalformed)
	}
}

func TestTransitiveClosureOp(t *testing.T) {
	edges := map[string][]string{
		"app":   {"lib"},
		"lib":   {"core"},
		"core":  {"app"}, // cycle
		"other": nil,
	}

	var resp TransitiveClosureResponse
	call(t, newTestEngine(), OpTransitiveClosure, TransitiveClosureRequest{
		Edges: edges,
		Seeds: []string{"lib"},
	}, &resp)

	if !equalStrings(resp.Nodes, []string{"app", "core", "lib"}) {
		t.Errorf("Nodes = %v", resp.Nodes)
	}
}

func TestTransitiveClosureOpUnknownSeed(t *testing.T) {
	callErr := callExpectError(t, newTestEngine(), OpTransitiveClosure, TransitiveClosureRequest{
		Edges: map[string][]string{"app": nil},
		Seeds: []string{"ghost"},
	})
	if callErr.Kind != KindUnknownReference {
		t.Errorf("Kind = %s, want %s", callErr.Kind, KindUnknownReference)
	}
	if callErr.Subject != "ghost" {
		t.Errorf("Subject = %q, want ghost", callErr.Subject)
	}
}

func TestSubgraphOp(t *testing.T) {
	var resp SubgraphResponse
	call(t, newTestEngine(), OpSubgraph, SubgraphRequest{
		Edges: map[string][]string{
			"app":   {"lib", "tools"},
			"lib":   {"core"},
			"core":  nil,
			"tools": nil,
		},
		Nodes: []string{"app", "lib"},
	}, &resp)

	if len(resp.Edges) != 2 {
		t.Fatalf("Edges = %v", resp.Edges)
	}
	// The app->tools and lib->core edges leave the node set.
	if !equalStrings(resp.Edges["app"], []string{"lib"}) {
		t.Errorf("app deps = %v", resp.Edges["app"])
	}
	if len(resp.Edges["lib"]) != 0 {
		t.Errorf("lib deps = %v", resp.Edges["lib"])
	}
}

func TestGlobalChangeOp(t *testing.T) {
	var resp GlobalChangeResponse
	call(t, newTestEngine(), OpGlobalChange, GlobalChangeRequest{
		Before: map[string][]string{"app": {"lib"}, "lib": nil, "old": nil},
		After:  map[string][]string{"app": {"lib", "util"}, "lib": nil, "util": nil},
	}, &resp)

	if !equalStrings(resp.Nodes, []string{"app", "old", "util"}) {
		t.Errorf("Nodes = %v", resp.Nodes)
	}
}

func TestApplyPatchOp(t *testing.T) {
	var resp ApplyPatchResponse
	call(t, newTestEngine(), OpApplyPatch, ApplyPatchRequest{
		Baseline: []ManifestEntry{entry("a.ts", "one"), entry("b.ts", "two")},
		Ops: []PatchOp{
			{Kind: "set", Path: "c.ts", Digest: hash.Format(hash.HashBytes([]byte("three")))},
			{Kind: "delete", Path: "b.ts"},
		},
	}, &resp)

	if len(resp.Manifest) != 2 {
		t.Fatalf("Manifest = %v", resp.Manifest)
	}
	if !equalStrings(resp.Added, []string{"c.ts"}) {
		t.Errorf("Added = %v", resp.Added)
	}
	if !equalStrings(resp.Removed, []string{"b.ts"}) {
		t.Errorf("Removed = %v", resp.Removed)
	}
}

func TestApplyPatchOpUntrackedDelete(t *testing.T) {
	callErr := callExpectError(t, newTestEngine(), OpApplyPatch, ApplyPatchRequest{
		Baseline: []ManifestEntry{entry("a.ts", "one")},
		Ops:      []PatchOp{{Kind: "delete", Path: "ghost.ts"}},
	})
	if callErr.Kind != KindUnknownReference {
		t.Errorf("Kind = %s, want %s", callErr.Kind, KindUnknownReference)
	}
}

func TestCompileGlobsOp(t *testing.T) {
	var resp CompileGlobsResponse
	call(t, newTestEngine(), OpCompileGlobs, CompileGlobsRequest{
		Patterns: []string{"src/**", "!**/*.test.ts"},
	}, &resp)

	if !equalStrings(resp.Patterns, []string{"src/**", "!**/*.test.ts"}) {
		t.Errorf("Patterns = %v", resp.Patterns)
	}
}

func TestCompileGlobsOpMalformed(t *testing.T) {
	callErr := callExpectError(t, newTestEngine(), OpCompileGlobs, CompileGlobsRequest{
		Patterns: []string{"src/[unterminated"},
	})
	if callErr.Kind != KindMalformed {
		t.Errorf("Kind = %s, want %s", callErr.Kind, KindMalformed)
	}
}

func TestResolveEnvOp(t *testing.T) {
	var resp ResolveEnvResponse
	call(t, newTestEngine(), OpResolveEnv, ResolveEnvRequest{
		Patterns: []string{"NEXT_PUBLIC_*", "!*_SECRET"},
		Environ:  []string{"NEXT_PUBLIC_URL=https://example.test", "NEXT_PUBLIC_SECRET=x", "HOME=/home/u"},
	}, &resp)

	if len(resp.Pairs) != 1 || resp.Pairs[0].Name != "NEXT_PUBLIC_URL" {
		t.Errorf("Pairs = %v", resp.Pairs)
	}
}

func TestManifestOfFilesOp(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"src/index.ts": "export {};",
		"package.json": `{"name": "web"}`,
	})

	var resp ManifestOfFilesResponse
	call(t, newTestEngine(), OpManifestOfFiles, ManifestOfFilesRequest{
		Root:  root,
		Files: []string{"src/index.ts", "package.json"},
	}, &resp)

	if len(resp.Entries) != 2 {
		t.Fatalf("Entries = %v", resp.Entries)
	}
	if resp.Entries[0].Path != "package.json" {
		t.Errorf("entries not sorted: %v", resp.Entries)
	}
	if resp.Hash == "" {
		t.Error("aggregate hash missing")
	}
}

func TestManifestOfFilesOpMissingFile(t *testing.T) {
	callErr := callExpectError(t, newTestEngine(), OpManifestOfFiles, ManifestOfFilesRequest{
		Root:  t.TempDir(),
		Files: []string{"ghost.ts"},
	})
	if callErr.Kind != KindNotFound {
		t.Errorf("Kind = %s, want %s", callErr.Kind, KindNotFound)
	}
}

func TestGlobMatchOp(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"src/app.ts":      "",
		"src/app.test.ts": "",
		"README.md":       "",
	})

	var resp GlobMatchResponse
	call(t, newTestEngine(), OpGlobMatch, GlobMatchRequest{
		Root:     root,
		Patterns: []string{"src/**", "!**/*.test.ts"},
	}, &resp)

	if !equalStrings(resp.Paths, []string{"src/app.ts"}) {
		t.Errorf("Paths = %v", resp.Paths)
	}
}

func TestDataDirOp(t *testing.T) {
	root := t.TempDir()

	var resp DataDirResponse
	call(t, newTestEngine(), OpDataDir, DataDirRequest{Root: root}, &resp)

	if resp.Path != filepath.Join(root, ".strata") {
		t.Errorf("Path = %q", resp.Path)
	}
	if info, err := os.Stat(resp.Path); err != nil || !info.IsDir() {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestDataDirOpMissingRoot(t *testing.T) {
	callErr := callExpectError(t, newTestEngine(), OpDataDir, DataDirRequest{
		Root: filepath.Join(t.TempDir(), "absent"),
	})
	if callErr.Kind != KindNotFound {
		t.Errorf("Kind = %s, want %s", callErr.Kind, KindNotFound)
	}
}

func TestVerifySignatureOp(t *testing.T) {
	payload := []byte("artifact body")
	secret := []byte("team-secret")
	sig, err := signature.Sign(payload, secret)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	var resp VerifySignatureResponse
	call(t, newTestEngine(), OpVerifySignature, VerifySignatureRequest{
		Payload: payload, Signature: sig, Secret: secret,
	}, &resp)
	if !resp.Authentic {
		t.Error("valid signature reported inauthentic")
	}

	corrupted := bytes.Clone(sig)
	corrupted[0] ^= 0xFF
	call(t, newTestEngine(), OpVerifySignature, VerifySignatureRequest{
		Payload: payload, Signature: corrupted, Secret: secret,
	}, &resp)
	if resp.Authentic {
		t.Error("corrupted signature reported authentic")
	}
}

func TestVerifySignatureOpWrongLength(t *testing.T) {
	callErr := callExpectError(t, newTestEngine(), OpVerifySignature, VerifySignatureRequest{
		Payload: []byte("p"), Signature: []byte("short"), Secret: []byte("s"),
	})
	if callErr.Kind != KindMalformed {
		t.Errorf("Kind = %s, want %s", callErr.Kind, KindMalformed)
	}
}

func TestCopyTreeOp(t *testing.T) {
	src := testutil.WriteTree(t, map[string]string{
		"dist/bundle.js": "bundle",
		"dist/cache.tmp": "scratch",
	})
	dst := t.TempDir()

	var resp CopyTreeResponse
	call(t, newTestEngine(), OpCopyTree, CopyTreeRequest{
		Source:      src,
		Destination: dst,
		Exclude:     []string{"**/*.tmp"},
	}, &resp)

	if !equalStrings(resp.Copied, []string{"dist/bundle.js"}) {
		t.Errorf("Copied = %v", resp.Copied)
	}
	if len(resp.Failed) != 0 {
		t.Errorf("Failed = %v", resp.Failed)
	}
}

func TestPreviousContentOp(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"src/app.ts": "original content"})
	manifest, err := hash.ManifestOfFiles(root, []workpath.Anchored{"src/app.ts"})
	if err != nil {
		t.Fatalf("ManifestOfFiles: %v", err)
	}
	snapshotDir := t.TempDir()
	if _, err := diff.WriteBlobSnapshot(snapshotDir, root, manifest); err != nil {
		t.Fatalf("WriteBlobSnapshot: %v", err)
	}

	wireManifest := make([]ManifestEntry, 0, manifest.Len())
	for _, e := range manifest.Entries() {
		wireManifest = append(wireManifest, ManifestEntry{Path: string(e.Path), Digest: hash.Format(e.Digest)})
	}

	var resp PreviousContentResponse
	call(t, newTestEngine(), OpPreviousContent, PreviousContentRequest{
		SnapshotDir: snapshotDir,
		Manifest:    wireManifest,
		Path:        "src/app.ts",
	}, &resp)
	if string(resp.Content) != "original content" {
		t.Errorf("Content = %q", resp.Content)
	}

	callErr := callExpectError(t, newTestEngine(), OpPreviousContent, PreviousContentRequest{
		SnapshotDir: snapshotDir,
		Manifest:    wireManifest,
		Path:        "src/ghost.ts",
	})
	if callErr.Kind != KindNotFound {
		t.Errorf("Kind = %s, want %s", callErr.Kind, KindNotFound)
	}
}

func TestPackageManifestsOp(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"apps/web/package.json": `{"name": "web"}`,
		"apps/web/src/index.ts": "export {};",
	})

	var resp PackageManifestsResponse
	call(t, newTestEngine(), OpPackageManifests, PackageManifestsRequest{
		Root:     root,
		Packages: []string{"apps/web", "apps/ghost"},
	}, &resp)

	if len(resp.Packages) != 2 {
		t.Fatalf("Packages = %v", resp.Packages)
	}

	web := resp.Packages[0]
	if web.Err != nil {
		t.Fatalf("web: %v", web.Err)
	}
	if len(web.Entries) != 2 || web.Hash == "" {
		t.Errorf("web = %+v", web)
	}

	ghost := resp.Packages[1]
	if ghost.Err == nil {
		t.Fatal("missing package should carry an error")
	}
	if ghost.Err.Kind != KindNotFound {
		t.Errorf("ghost.Err.Kind = %s, want %s", ghost.Err.Kind, KindNotFound)
	}
	if len(ghost.Entries) != 0 || ghost.Hash != "" {
		t.Error("failed package must not carry entries or a hash")
	}
}

func TestBufferReleaseExactlyOnce(t *testing.T) {
	buffer := newTestEngine().Call(OpCompileGlobs, mustEncode(t, CompileGlobsRequest{Patterns: []string{"src/**"}}))

	if err := buffer.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := buffer.Release(); !errors.Is(err, ErrReleased) {
		t.Errorf("second Release = %v, want ErrReleased", err)
	}
	if _, err := buffer.Bytes(); !errors.Is(err, ErrReleased) {
		t.Errorf("Bytes after Release = %v, want ErrReleased", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("Len after Release = %d, want 0", buffer.Len())
	}
}

func TestCallFrame(t *testing.T) {
	reqBody := mustEncode(t, DiffRequest{
		Baseline: nil,
		Current:  []ManifestEntry{entry("a.ts", "one")},
	})
	envelopeBytes := mustEncode(t, request{Op: OpDiff, Body: reqBody})

	buffer := newTestEngine().CallFrame(EncodeFrame(envelopeBytes))
	framed, err := buffer.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	payload, err := DecodeFrame(framed)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}

	var resp response
	if err := codec.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if !resp.OK {
		t.Fatalf("call failed: %v", resp.Err)
	}

	var body DiffResponse
	if err := codec.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !equalStrings(body.Added, []string{"a.ts"}) {
		t.Errorf("Added = %v", body.Added)
	}
}

func TestCallFrameTruncated(t *testing.T) {
	buffer := newTestEngine().CallFrame([]byte{0x00, 0x00})
	framed, err := buffer.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	payload, err := DecodeFrame(framed)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}

	var resp response
	if err := codec.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if resp.OK || resp.Err == nil || resp.Err.Kind != KindMalformed {
		t.Errorf("resp = %+v, want malformed error", resp)
	}
}

func TestServe(t *testing.T) {
	var in, out bytes.Buffer
	for _, patterns := range [][]string{{"src/**"}, {"dist/**"}} {
		body := mustEncode(t, CompileGlobsRequest{Patterns: patterns})
		if err := WriteFrame(&in, mustEncode(t, request{Op: OpCompileGlobs, Body: body})); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	if err := newTestEngine().Serve(&in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	for i := 0; i < 2; i++ {
		payload, err := ReadFrame(&out)
		if err != nil {
			t.Fatalf("ReadFrame(%d): %v", i, err)
		}
		var resp response
		if err := codec.Unmarshal(payload, &resp); err != nil {
			t.Fatalf("decoding envelope %d: %v", i, err)
		}
		if !resp.OK {
			t.Errorf("response %d failed: %v", i, resp.Err)
		}
	}
	if _, err := ReadFrame(&out); !errors.Is(err, io.EOF) {
		t.Errorf("expected exactly two responses, got extra: %v", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var stream bytes.Buffer
	if err := WriteFrame(&stream, []byte("payload")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	payload, err := ReadFrame(&stream)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(payload) != "payload" {
		t.Errorf("payload = %q", payload)
	}
}

func mustEncode(t *testing.T, value any) []byte {
	t.Helper()
	encoded, err := codec.Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return encoded
}
