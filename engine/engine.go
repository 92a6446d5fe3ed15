// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine is the call boundary of the hashing and graph
// machinery. Each operation is a request struct in and a response
// struct out, CBOR-encoded in a length-prefixed envelope, so an
// orchestrator in another process (or another language) can drive the
// engine over any byte pipe.
//
// The engine is stateless: every request carries everything the
// operation needs, and no state survives a call. Failures cross the
// boundary as a typed error envelope carrying a Kind and the offending
// path or identifier; a failed operation never yields a partial or
// default result in Body.
package engine

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/strata-build/strata/lib/cachepack"
	"github.com/strata-build/strata/lib/codec"
	"github.com/strata-build/strata/lib/depgraph"
	"github.com/strata-build/strata/lib/diff"
	"github.com/strata-build/strata/lib/envscan"
	"github.com/strata-build/strata/lib/glob"
	"github.com/strata-build/strata/lib/hash"
	"github.com/strata-build/strata/lib/signature"
	"github.com/strata-build/strata/lib/walk"
	"github.com/strata-build/strata/lib/workpath"
	"github.com/strata-build/strata/lib/workspace"
)

// Options configures an Engine.
type Options struct {
	// Logger receives per-call debug records. Nil means slog.Default.
	Logger *slog.Logger
}

// Engine dispatches boundary calls. Safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// New returns an Engine.
func New(options Options) *Engine {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Call dispatches one operation. body is the CBOR-encoded request
// struct for op; the returned buffer holds the CBOR-encoded response
// envelope. Call never returns a Go error: every failure, including a
// body that does not decode, is reported inside the envelope so the
// caller has exactly one result path.
func (e *Engine) Call(op Op, body []byte) *Buffer {
	result, callErr := e.dispatch(op, body)

	resp := response{OK: callErr == nil, Err: callErr}
	if callErr == nil {
		encoded, err := codec.Marshal(result)
		if err != nil {
			resp = response{Err: &Error{Kind: KindIOFailure, Message: "encoding response body: " + err.Error()}}
		} else {
			resp.Body = encoded
		}
	} else {
		e.logger.Debug("call failed", "op", string(op), "kind", string(callErr.Kind), "subject", callErr.Subject)
	}

	return newBuffer(mustMarshal(resp))
}

// CallFrame is Call for framed transports: frame is a length-prefixed
// CBOR request envelope, and the returned buffer holds a
// length-prefixed response envelope.
func (e *Engine) CallFrame(frame []byte) *Buffer {
	payload, err := DecodeFrame(frame)
	if err != nil {
		resp := response{Err: malformed("%v", err)}
		return newBuffer(EncodeFrame(mustMarshal(resp)))
	}
	return newBuffer(EncodeFrame(e.handleEnvelope(payload)))
}

// Serve processes framed request envelopes from r until EOF, writing
// one framed response per request to w. A clean EOF between frames
// ends the loop without error; a torn frame or write failure aborts.
func (e *Engine) Serve(r io.Reader, w io.Writer) error {
	for {
		payload, err := ReadFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := WriteFrame(w, e.handleEnvelope(payload)); err != nil {
			return err
		}
	}
}

// handleEnvelope decodes one request envelope and returns the encoded
// response envelope.
func (e *Engine) handleEnvelope(payload []byte) []byte {
	var req request
	if err := codec.Unmarshal(payload, &req); err != nil {
		return mustMarshal(response{Err: malformed("decoding request envelope: %v", err)})
	}

	buffer := e.Call(req.Op, req.Body)
	envelope, err := buffer.Bytes()
	if err != nil {
		// Unreachable: the buffer was just created and not released.
		return mustMarshal(response{Err: &Error{Kind: KindIOFailure, Message: err.Error()}})
	}
	out := make([]byte, len(envelope))
	copy(out, envelope)
	buffer.Release()
	return out
}

// mustMarshal encodes a response envelope. The envelope types contain
// nothing CBOR cannot encode, so failure is a programming error.
func mustMarshal(resp response) []byte {
	encoded, err := codec.Marshal(resp)
	if err != nil {
		panic("engine: encoding response envelope: " + err.Error())
	}
	return encoded
}

// decodeBody decodes a CBOR request body into its struct.
func decodeBody[T any](body codec.RawMessage) (*T, *Error) {
	var req T
	if err := codec.Unmarshal(body, &req); err != nil {
		return nil, malformed("decoding request body: %v", err)
	}
	return &req, nil
}

func (e *Engine) dispatch(op Op, body codec.RawMessage) (any, *Error) {
	switch op {
	case OpDataDir:
		return e.dataDir(body)
	case OpDiff:
		return e.diff(body)
	case OpPreviousContent:
		return e.previousContent(body)
	case OpCopyTree:
		return e.copyTree(body)
	case OpVerifySignature:
		return e.verifySignature(body)
	case OpPackageManifests:
		return e.packageManifests(body)
	case OpManifestOfFiles:
		return e.manifestOfFiles(body)
	case OpGlobMatch:
		return e.globMatch(body)
	case OpCompileGlobs:
		return e.compileGlobs(body)
	case OpResolveEnv:
		return e.resolveEnv(body)
	case OpTransitiveClosure:
		return e.transitiveClosure(body)
	case OpSubgraph:
		return e.subgraph(body)
	case OpApplyPatch:
		return e.applyPatch(body)
	case OpGlobalChange:
		return e.globalChange(body)
	default:
		return nil, malformed("unknown operation %q", op)
	}
}

func (e *Engine) dataDir(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[DataDirRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	dir, err := workspace.DataDir(req.Root)
	if err != nil {
		return nil, classify(err)
	}
	return DataDirResponse{Path: dir}, nil
}

func (e *Engine) diff(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[DiffRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	baseline, callErr := toManifest(req.Baseline)
	if callErr != nil {
		return nil, callErr
	}
	current, callErr := toManifest(req.Current)
	if callErr != nil {
		return nil, callErr
	}

	result := diff.Diff(baseline, current)
	return DiffResponse{
		Changed: wirePaths(result.Changed),
		Added:   wirePaths(result.Added),
		Removed: wirePaths(result.Removed),
	}, nil
}

func (e *Engine) previousContent(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[PreviousContentRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	manifest, callErr := toManifest(req.Manifest)
	if callErr != nil {
		return nil, callErr
	}
	path, err := workpath.Normalize(req.Path)
	if err != nil {
		return nil, malformed("%v", err)
	}

	snapshot := diff.OpenBlobSnapshot(req.SnapshotDir, manifest)
	content, err := snapshot.PreviousContent(path)
	if err != nil {
		return nil, classify(err)
	}
	return PreviousContentResponse{Content: content}, nil
}

func (e *Engine) copyTree(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[CopyTreeRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	exclude, err := glob.Compile(req.Exclude)
	if err != nil {
		return nil, malformed("%v", err)
	}

	result, err := cachepack.CopyTree(req.Source, req.Destination, exclude)
	if err != nil {
		return nil, classify(err)
	}

	resp := CopyTreeResponse{Copied: wirePaths(result.Copied)}
	for _, failure := range result.Failed {
		resp.Failed = append(resp.Failed, CopyFailureReport{
			Path:  string(failure.Path),
			Error: failure.Err.Error(),
		})
	}
	return resp, nil
}

func (e *Engine) verifySignature(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[VerifySignatureRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	authentic, err := signature.Verify(req.Payload, req.Signature, req.Secret)
	if err != nil {
		// Wrong-length signature or empty secret: a malformed request,
		// not an inauthentic artifact.
		return nil, malformed("%v", err)
	}
	return VerifySignatureResponse{Authentic: authentic}, nil
}

func (e *Engine) packageManifests(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[PackageManifestsRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	packages, callErr := anchorPaths(req.Packages)
	if callErr != nil {
		return nil, callErr
	}
	ignore, err := glob.Compile(req.Ignore)
	if err != nil {
		return nil, malformed("%v", err)
	}

	results := workspace.PackageManifests(req.Root, packages, ignore)
	resp := PackageManifestsResponse{Packages: make([]PackageManifestReport, len(results))}
	for i, result := range results {
		report := PackageManifestReport{Dir: string(result.Dir)}
		for _, skipped := range result.Skipped {
			report.Skipped = append(report.Skipped, SkipReport{
				Path:  string(skipped.Path),
				Error: skipped.Err.Error(),
			})
		}
		if result.Err != nil {
			report.Err = classify(result.Err)
			resp.Packages[i] = report
			continue
		}

		digest, err := hash.Inputs{Manifest: result.Manifest}.Aggregate()
		if err != nil {
			report.Err = classify(err)
			resp.Packages[i] = report
			continue
		}
		report.Entries = fromManifest(result.Manifest)
		report.Hash = hash.Format(digest)
		resp.Packages[i] = report
	}
	return resp, nil
}

func (e *Engine) manifestOfFiles(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[ManifestOfFilesRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	files, callErr := anchorPaths(req.Files)
	if callErr != nil {
		return nil, callErr
	}

	manifest, err := hash.ManifestOfFiles(req.Root, files)
	if err != nil {
		return nil, classify(err)
	}
	digest, err := hash.Inputs{Manifest: manifest}.Aggregate()
	if err != nil {
		return nil, classify(err)
	}
	return ManifestOfFilesResponse{
		Entries: fromManifest(manifest),
		Hash:    hash.Format(digest),
	}, nil
}

func (e *Engine) globMatch(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[GlobMatchRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	set, err := glob.Compile(req.Patterns)
	if err != nil {
		return nil, malformed("%v", err)
	}

	result, err := walk.Match(req.Root, set, walk.Options{Logger: e.logger})
	if err != nil {
		return nil, classify(err)
	}

	resp := GlobMatchResponse{Paths: wirePaths(result.Files)}
	for _, skipped := range result.Skipped {
		resp.Skipped = append(resp.Skipped, SkipReport{
			Path:  string(skipped.Path),
			Error: skipped.Err.Error(),
		})
	}
	return resp, nil
}

func (e *Engine) compileGlobs(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[CompileGlobsRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	set, err := glob.Compile(req.Patterns)
	if err != nil {
		return nil, malformed("%v", err)
	}
	return CompileGlobsResponse{Patterns: set.Patterns()}, nil
}

func (e *Engine) resolveEnv(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[ResolveEnvRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	environ := req.Environ
	if environ == nil {
		environ = os.Environ()
	}

	pairs, err := envscan.Resolve(req.Patterns, environ)
	if err != nil {
		return nil, malformed("%v", err)
	}

	resp := ResolveEnvResponse{Pairs: make([]EnvPair, len(pairs))}
	for i, pair := range pairs {
		resp.Pairs[i] = EnvPair{Name: pair.Name, Value: pair.Value}
	}
	return resp, nil
}

func (e *Engine) transitiveClosure(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[TransitiveClosureRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	graph, err := depgraph.New(req.Edges)
	if err != nil {
		return nil, malformed("%v", err)
	}
	nodes, err := graph.TransitiveClosure(req.Seeds)
	if err != nil {
		return nil, classify(err)
	}
	return TransitiveClosureResponse{Nodes: nodes}, nil
}

func (e *Engine) subgraph(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[SubgraphRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	graph, err := depgraph.New(req.Edges)
	if err != nil {
		return nil, malformed("%v", err)
	}
	induced, err := graph.Subgraph(req.Nodes)
	if err != nil {
		return nil, classify(err)
	}
	return SubgraphResponse{Edges: induced.Edges()}, nil
}

func (e *Engine) applyPatch(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[ApplyPatchRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	baseline, callErr := toManifest(req.Baseline)
	if callErr != nil {
		return nil, callErr
	}

	patch := diff.Patch{Ops: make([]diff.Op, len(req.Ops))}
	for i, op := range req.Ops {
		path, err := workpath.Normalize(op.Path)
		if err != nil {
			return nil, malformed("patch op %d: %v", i, err)
		}
		switch op.Kind {
		case "set":
			digest, err := hash.Parse(op.Digest)
			if err != nil {
				return nil, malformed("patch op %d: %v", i, err)
			}
			patch.Ops[i] = diff.Op{Kind: diff.OpSet, Path: path, Digest: digest}
		case "delete":
			patch.Ops[i] = diff.Op{Kind: diff.OpDelete, Path: path}
		default:
			return nil, malformed("patch op %d: unknown kind %q", i, op.Kind)
		}
	}

	patched, induced, err := diff.Apply(baseline, patch)
	if err != nil {
		if errors.Is(err, diff.ErrUntrackedDelete) {
			return nil, &Error{Kind: KindUnknownReference, Message: err.Error()}
		}
		return nil, classify(err)
	}
	return ApplyPatchResponse{
		Manifest: fromManifest(patched),
		Changed:  wirePaths(induced.Changed),
		Added:    wirePaths(induced.Added),
		Removed:  wirePaths(induced.Removed),
	}, nil
}

func (e *Engine) globalChange(body codec.RawMessage) (any, *Error) {
	req, callErr := decodeBody[GlobalChangeRequest](body)
	if callErr != nil {
		return nil, callErr
	}

	before, err := depgraph.New(req.Before)
	if err != nil {
		return nil, malformed("before graph: %v", err)
	}
	after, err := depgraph.New(req.After)
	if err != nil {
		return nil, malformed("after graph: %v", err)
	}
	return GlobalChangeResponse{Nodes: depgraph.GlobalChange(before, after)}, nil
}
