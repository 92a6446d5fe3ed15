// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/strata-build/strata/lib/depgraph"
	"github.com/strata-build/strata/lib/diff"
)

// Kind classifies a boundary error. The values are wire constants.
type Kind string

const (
	// KindNotFound: a path, file, or snapshot entry is absent.
	KindNotFound Kind = "not_found"

	// KindPermissionDenied: an unreadable file or directory.
	KindPermissionDenied Kind = "permission_denied"

	// KindMalformed: invalid pattern, invalid request encoding,
	// wrong-length signature.
	KindMalformed Kind = "malformed"

	// KindUnknownReference: a graph query named a node absent from
	// the graph.
	KindUnknownReference Kind = "unknown_reference"

	// KindIOFailure: any other read/copy failure.
	KindIOFailure Kind = "io_failure"
)

// Error is the typed error envelope returned across the boundary.
// The orchestrator surfaces Kind and Subject to the user; it never
// substitutes a default result for a failed computation.
type Error struct {
	// Kind is the error class.
	Kind Kind `cbor:"kind"`

	// Message is a human-readable description.
	Message string `cbor:"message"`

	// Subject is the offending path or identifier, when there is one.
	Subject string `cbor:"subject,omitempty"`
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// classify converts an internal error into its boundary form,
// preserving the offending subject where the error carries one.
func classify(err error) *Error {
	var unknown *depgraph.UnknownNodeError
	if errors.As(err, &unknown) {
		return &Error{Kind: KindUnknownReference, Message: err.Error(), Subject: unknown.Name}
	}

	var pathErr *fs.PathError
	subject := ""
	if errors.As(err, &pathErr) {
		subject = pathErr.Path
	}

	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, diff.ErrNotTracked):
		return &Error{Kind: KindNotFound, Message: err.Error(), Subject: subject}
	case errors.Is(err, fs.ErrPermission):
		return &Error{Kind: KindPermissionDenied, Message: err.Error(), Subject: subject}
	default:
		return &Error{Kind: KindIOFailure, Message: err.Error(), Subject: subject}
	}
}

// malformed builds a KindMalformed error.
func malformed(format string, args ...any) *Error {
	return &Error{Kind: KindMalformed, Message: fmt.Sprintf(format, args...)}
}
