// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package cachepack reads and writes cache artifact containers. A
// container is a tar stream of task outputs behind a tagged
// compression layer (none, lz4, or zstd) and a short header. The
// signed variant carries an HMAC signature over the compressed body,
// verified before a single byte of the tar stream is unpacked.
//
// Containers are deterministic: entries are written in sorted path
// order with normalized metadata, so packing the same outputs twice
// yields byte-identical artifacts (a requirement for signature
// stability and remote-cache dedup).
package cachepack

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/strata-build/strata/lib/signature"
	"github.com/strata-build/strata/lib/workpath"
)

// CompressionTag identifies the compression algorithm of a container
// body. Stored as one header byte; protocol constants.
type CompressionTag uint8

const (
	// CompressionNone stores the tar stream uncompressed. For output
	// sets dominated by already-compressed content.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 favors speed over ratio. Default for mixed or
	// unknown content.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd favors ratio; right for text-heavy outputs
	// (JS bundles, sourcemaps, logs).
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// Container format constants.
var (
	magicUnsigned = [4]byte{'S', 'T', 'R', 'A'}
	magicSigned   = [4]byte{'S', 'T', 'R', 'S'}
)

// formatVersion is the container format version byte. Bumped on any
// incompatible layout change.
const formatVersion byte = 0x01

// ErrUnauthentic is returned by UnpackSigned when the signature does
// not verify. Deliberately carries no detail — there is nothing safe
// to report about a forged artifact.
var ErrUnauthentic = errors.New("cachepack: artifact signature does not verify")

// Pack writes an unsigned container of the given workspace files to
// w. Files are read from under root and stored by their anchored
// paths in sorted order with normalized tar metadata.
func Pack(w io.Writer, root string, files []workpath.Anchored, tag CompressionTag) error {
	body, err := packBody(root, files, tag)
	if err != nil {
		return err
	}

	header := append(append([]byte{}, magicUnsigned[:]...), formatVersion, byte(tag))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("cachepack: writing header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("cachepack: writing body: %w", err)
	}
	return nil
}

// PackSigned writes a signed container: same layout as Pack with the
// HMAC signature of the compressed body between header and body.
func PackSigned(w io.Writer, root string, files []workpath.Anchored, tag CompressionTag, secret []byte) error {
	body, err := packBody(root, files, tag)
	if err != nil {
		return err
	}

	sig, err := signature.Sign(body, secret)
	if err != nil {
		return err
	}

	header := append(append([]byte{}, magicSigned[:]...), formatVersion, byte(tag))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("cachepack: writing header: %w", err)
	}
	if _, err := w.Write(sig); err != nil {
		return fmt.Errorf("cachepack: writing signature: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("cachepack: writing body: %w", err)
	}
	return nil
}

// Unpack restores an unsigned container under dest and returns the
// restored paths in sorted order.
func Unpack(r io.Reader, dest string) ([]workpath.Anchored, error) {
	tag, err := readHeader(r, magicUnsigned)
	if err != nil {
		return nil, err
	}
	return unpackBody(r, dest, tag)
}

// UnpackSigned verifies the container signature against secret, then
// restores the contents under dest. An unauthentic artifact fails
// with ErrUnauthentic before anything touches the filesystem.
func UnpackSigned(r io.Reader, dest string, secret []byte) ([]workpath.Anchored, error) {
	tag, err := readHeader(r, magicSigned)
	if err != nil {
		return nil, err
	}

	sig := make([]byte, signature.Size)
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, fmt.Errorf("cachepack: reading signature: %w", err)
	}

	// The body must be buffered: the signature covers all of it, and
	// none of it may be unpacked before verification passes.
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cachepack: reading body: %w", err)
	}

	authentic, err := signature.Verify(body, sig, secret)
	if err != nil {
		return nil, err
	}
	if !authentic {
		return nil, ErrUnauthentic
	}

	return unpackBody(bytes.NewReader(body), dest, tag)
}

// packBody builds the compressed tar body for the given files.
func packBody(root string, files []workpath.Anchored, tag CompressionTag) ([]byte, error) {
	sorted := make([]workpath.Anchored, len(files))
	copy(sorted, files)
	workpath.Sort(sorted)

	var buffer bytes.Buffer
	compressor, err := newCompressor(&buffer, tag)
	if err != nil {
		return nil, err
	}

	tarWriter := tar.NewWriter(compressor)
	for _, file := range sorted {
		if err := writeEntry(tarWriter, root, file); err != nil {
			return nil, err
		}
	}
	if err := tarWriter.Close(); err != nil {
		return nil, fmt.Errorf("cachepack: finalizing tar stream: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return nil, fmt.Errorf("cachepack: finalizing %s stream: %w", tag, err)
	}
	return buffer.Bytes(), nil
}

// writeEntry adds one file to the tar stream with normalized
// metadata: zero timestamps, owner cleared, mode reduced to the
// executable bit. Anything else would leak machine state into the
// artifact bytes and break determinism.
func writeEntry(tarWriter *tar.Writer, root string, file workpath.Anchored) error {
	systemPath := file.OnSystem(root)
	info, err := os.Lstat(systemPath)
	if err != nil {
		return fmt.Errorf("cachepack: %w", err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(systemPath)
		if err != nil {
			return fmt.Errorf("cachepack: reading symlink %s: %w", file, err)
		}
		return tarWriter.WriteHeader(&tar.Header{
			Typeflag: tar.TypeSymlink,
			Name:     string(file),
			Linkname: target,
		})
	}

	mode := int64(0644)
	if info.Mode()&0111 != 0 {
		mode = 0755
	}
	if err := tarWriter.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     string(file),
		Size:     info.Size(),
		Mode:     mode,
	}); err != nil {
		return fmt.Errorf("cachepack: writing header for %s: %w", file, err)
	}

	source, err := os.Open(systemPath)
	if err != nil {
		return fmt.Errorf("cachepack: %w", err)
	}
	defer source.Close()

	if _, err := io.Copy(tarWriter, source); err != nil {
		return fmt.Errorf("cachepack: packing %s: %w", file, err)
	}
	return nil
}

// unpackBody restores a compressed tar body under dest.
func unpackBody(r io.Reader, dest string, tag CompressionTag) ([]workpath.Anchored, error) {
	decompressor, err := newDecompressor(r, tag)
	if err != nil {
		return nil, err
	}
	defer decompressor.Close()

	var restored []workpath.Anchored
	symlinked := make(map[workpath.Anchored]bool)
	tarReader := tar.NewReader(decompressor)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cachepack: reading tar stream: %w", err)
		}

		// Normalize validates the entry name: absolute paths and ".."
		// escapes in a hostile artifact are rejected here. Symlinks
		// need two further checks below: a link target must stay
		// inside dest, and no entry may be written through a link
		// restored earlier in the stream.
		anchored, err := workpath.Normalize(header.Name)
		if err != nil {
			return nil, fmt.Errorf("cachepack: invalid entry name %q: %w", header.Name, err)
		}
		if dir := symlinkedAncestor(symlinked, anchored); dir != "" {
			return nil, fmt.Errorf("cachepack: entry %s passes through symlinked directory %s", anchored, dir)
		}

		systemPath := anchored.OnSystem(dest)
		if err := os.MkdirAll(filepath.Dir(systemPath), 0755); err != nil {
			return nil, fmt.Errorf("cachepack: creating directory for %s: %w", anchored, err)
		}

		switch header.Typeflag {
		case tar.TypeSymlink:
			if linkEscapes(anchored, header.Linkname) {
				return nil, fmt.Errorf("cachepack: symlink %s targets %q outside the restore root", anchored, header.Linkname)
			}
			if err := os.Symlink(header.Linkname, systemPath); err != nil {
				return nil, fmt.Errorf("cachepack: restoring symlink %s: %w", anchored, err)
			}
			symlinked[anchored] = true
		case tar.TypeReg:
			if err := restoreFile(tarReader, systemPath, os.FileMode(header.Mode)); err != nil {
				return nil, fmt.Errorf("cachepack: restoring %s: %w", anchored, err)
			}
		default:
			return nil, fmt.Errorf("cachepack: unsupported tar entry type %d for %s", header.Typeflag, anchored)
		}
		restored = append(restored, anchored)
	}

	workpath.Sort(restored)
	return restored, nil
}

// symlinkedAncestor returns the closest ancestor directory of anchored
// that was restored as a symlink earlier in the stream, or "" when
// there is none. Writing an entry through such a link would land it
// wherever the link points instead of the subtree its name promises.
func symlinkedAncestor(symlinked map[workpath.Anchored]bool, anchored workpath.Anchored) workpath.Anchored {
	for dir := anchored.Dir(); dir != ""; dir = dir.Dir() {
		if symlinked[dir] {
			return dir
		}
	}
	return ""
}

// linkEscapes reports whether a symlink at anchored with the given
// target resolves outside the restore root. The resolution is lexical,
// against the link's own directory; chains through other links are
// covered by symlinkedAncestor instead.
func linkEscapes(anchored workpath.Anchored, target string) bool {
	slashed := filepath.ToSlash(target)
	if slashed == "" || path.IsAbs(slashed) {
		return true
	}
	resolved := path.Clean(path.Join(path.Dir(string(anchored)), slashed))
	return resolved == ".." || strings.HasPrefix(resolved, "../")
}

func restoreFile(content io.Reader, systemPath string, mode os.FileMode) error {
	destination, err := os.OpenFile(systemPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(destination, content); err != nil {
		destination.Close()
		return err
	}
	return destination.Close()
}

// readHeader consumes and validates the 6-byte container header,
// returning the compression tag.
func readHeader(r io.Reader, wantMagic [4]byte) (CompressionTag, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, fmt.Errorf("cachepack: reading header: %w", err)
	}
	if !bytes.Equal(header[:4], wantMagic[:]) {
		return 0, fmt.Errorf("cachepack: bad magic %q", header[:4])
	}
	if header[4] != formatVersion {
		return 0, fmt.Errorf("cachepack: unsupported format version %d", header[4])
	}

	tag := CompressionTag(header[5])
	switch tag {
	case CompressionNone, CompressionLZ4, CompressionZstd:
		return tag, nil
	default:
		return 0, fmt.Errorf("cachepack: unknown compression tag %d", header[5])
	}
}

// closableWriter lets the no-compression path share the Close-based
// flush handling of the real compressors.
type closableWriter struct {
	io.Writer
}

func (closableWriter) Close() error { return nil }

func newCompressor(w io.Writer, tag CompressionTag) (io.WriteCloser, error) {
	switch tag {
	case CompressionNone:
		return closableWriter{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("cachepack: creating zstd encoder: %w", err)
		}
		return encoder, nil
	default:
		return nil, fmt.Errorf("cachepack: unknown compression tag %d", tag)
	}
}

// closableReader mirrors closableWriter for the read side.
type closableReader struct {
	io.Reader
}

func (closableReader) Close() error { return nil }

// zstdReadCloser adapts zstd.Decoder's Close (no error) to io.ReadCloser.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

func newDecompressor(r io.Reader, tag CompressionTag) (io.ReadCloser, error) {
	switch tag {
	case CompressionNone:
		return closableReader{r}, nil
	case CompressionLZ4:
		return closableReader{lz4.NewReader(r)}, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("cachepack: creating zstd decoder: %w", err)
		}
		return zstdReadCloser{decoder}, nil
	default:
		return nil, fmt.Errorf("cachepack: unknown compression tag %d", tag)
	}
}
