// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrReleased is returned when a Buffer is used or released after its
// Release call.
var ErrReleased = errors.New("engine: buffer already released")

// Buffer is a response payload whose lifetime the caller controls.
// Callers must call Release exactly once when done; a second Release,
// or any access after Release, is reported as an error instead of
// corrupting memory.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	released bool
}

func newBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the payload. The slice is only valid until Release.
func (b *Buffer) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrReleased
	}
	return b.data, nil
}

// Len returns the payload length, or 0 after release.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return 0
	}
	return len(b.data)
}

// Release frees the buffer. Exactly one call succeeds; every further
// call returns ErrReleased.
func (b *Buffer) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return ErrReleased
	}
	b.released = true
	b.data = nil
	return nil
}

// maxFrameSize bounds a single frame payload. Responses carry file
// content and manifests, never whole artifacts, so 1 GiB is far above
// any legitimate frame.
const maxFrameSize = 1 << 30

// frameHeaderSize is the big-endian u32 length prefix.
const frameHeaderSize = 4

// EncodeFrame prefixes payload with its big-endian u32 length.
func EncodeFrame(payload []byte) []byte {
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)
	return frame
}

// DecodeFrame strips the length prefix from a complete frame. The
// frame must contain exactly one payload, no trailing bytes.
func DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("engine: frame truncated at %d bytes", len(frame))
	}
	size := binary.BigEndian.Uint32(frame)
	if size > maxFrameSize {
		return nil, fmt.Errorf("engine: frame payload of %d bytes exceeds limit", size)
	}
	payload := frame[frameHeaderSize:]
	if uint32(len(payload)) != size {
		return nil, fmt.Errorf("engine: frame declares %d payload bytes, carries %d", size, len(payload))
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("engine: frame payload of %d bytes exceeds limit", len(payload))
	}
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("engine: writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("engine: writing frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("engine: reading frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("engine: frame payload of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("engine: reading frame payload: %w", err)
	}
	return payload, nil
}
