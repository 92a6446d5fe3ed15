// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package hash computes the content digests and aggregate hashes that
// identify a package's or task's inputs. File digests are BLAKE3
// keyed hashes; the key provides domain separation so that file
// content, manifest aggregates, and any future hash domain can never
// collide with each other. Aggregate hashes are computed over a
// canonical deterministic encoding, which is what makes cache keys
// reproducible across machines and across input discovery order.
package hash

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest. All engine hashes (file content,
// manifest aggregate) are this size.
type Digest [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. The byte
// values are the ASCII encoding of the domain name, zero-padded to 32
// bytes, so keys are inspectable in hex dumps without sacrificing any
// cryptographic property. These are protocol constants — changing
// them invalidates every stored hash in that domain.
type domainKey [32]byte

var (
	fileDomainKey = domainKey{
		's', 't', 'r', 'a', 't', 'a', '.', 'f', 'i', 'l', 'e', 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	manifestDomainKey = domainKey{
		's', 't', 'r', 'a', 't', 'a', '.', 'm', 'a', 'n', 'i', 'f', 'e', 's', 't', 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// PathError is the typed error for a failed file hash. Callers
// distinguish a vanished file (stale manifest, rehash the package)
// from a permission problem (surface to the user) via errors.Is with
// fs.ErrNotExist / fs.ErrPermission on the wrapped error.
type PathError struct {
	// Path is the file whose hash failed, as supplied by the caller.
	Path string

	// Err is the underlying failure.
	Err error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("hashing %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// HashFile computes the file-domain digest of the file at path. The
// file is streamed through the hash in chunks so memory stays
// constant regardless of file size. Failures are returned as a
// *PathError identifying the path.
func HashFile(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, &PathError{Path: path, Err: err}
	}
	defer file.Close()

	hasher := newKeyed(fileDomainKey)
	if _, err := io.Copy(hasher, file); err != nil {
		return Digest{}, &PathError{Path: path, Err: err}
	}

	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// HashBytes computes the file-domain digest of in-memory content.
// Produces the same digest as HashFile over a file with that content.
func HashBytes(content []byte) Digest {
	return keyedHash(fileDomainKey, content)
}

// IsNotFound reports whether err (typically a *PathError) was caused
// by the file not existing.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Format returns the hex-encoded form of a digest. This is the
// canonical format used in manifests, logs, and the call boundary.
func Format(digest Digest) string {
	return hex.EncodeToString(digest[:])
}

// Parse parses a 64-character hex string into a Digest.
func Parse(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != 32 {
		return digest, fmt.Errorf("digest is %d bytes, want 32", len(decoded))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// newKeyed returns a BLAKE3 hasher keyed with the given domain key.
func newKeyed(key domainKey) *blake3.Hasher {
	// NewKeyed only fails for a wrong-length key, which the fixed-size
	// domainKey type rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("hash: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

// keyedHash computes the BLAKE3 keyed hash of data in one call.
func keyedHash(key domainKey, data []byte) Digest {
	hasher := newKeyed(key)
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}
