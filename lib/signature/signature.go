// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package signature authenticates cache artifacts. Signatures are
// HMAC-SHA256 tags over the artifact payload, keyed by a signing key
// derived from the caller's shared secret with HKDF-SHA256 under a
// fixed domain string. The derivation gives domain separation: the
// same team secret can never produce a valid artifact signature from
// some other protocol's HMAC output.
//
// Verification treats a mismatched signature as a boolean outcome,
// not an error — only structurally invalid input (wrong-length tag,
// empty secret) is an error. The expected-vs-actual comparison is
// constant time.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Size is the byte length of a signature (an HMAC-SHA256 tag).
const Size = sha256.Size

// hkdfInfo is the domain separation string for signing-key
// derivation. Changing it invalidates every existing signature.
var hkdfInfo = []byte("strata.artifact.v1")

// ErrEmptySecret is returned when the caller supplies no secret.
var ErrEmptySecret = errors.New("signature: empty secret")

// Sign computes the signature for payload under the given secret.
func Sign(payload, secret []byte) ([]byte, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return mac.Sum(nil), nil
}

// Verify reports whether sig is the authentic signature of payload
// under secret. A wrong-length signature is malformed input and
// returns an error; a correctly-sized but wrong signature returns
// (false, nil).
func Verify(payload, sig, secret []byte) (bool, error) {
	if len(sig) != Size {
		return false, fmt.Errorf("signature: tag is %d bytes, want %d", len(sig), Size)
	}

	expected, err := Sign(payload, secret)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(expected, sig) == 1, nil
}

// deriveKey derives the 32-byte HMAC key from the caller secret with
// HKDF-SHA256 under the package domain string.
func deriveKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("signature: deriving signing key: %w", err)
	}
	return key, nil
}
