// SPDX-License-Identifier: EPL-2.0

// Package bytestream wraps a seekable byte source with endianness-aware
// scalar reads and absolute positioning. It is the low-level supply used
// by the bitstream layer; it never buffers, so the underlying source
// position always matches the logical read position.
package bytestream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reader reads typed values from a seekable byte stream.
type Reader struct {
	rs    io.ReadSeeker
	order binary.ByteOrder
	size  int64
	buf   [4]byte
}

// New creates a Reader over rs using the given byte order for scalar
// reads. The total stream size is captured once at construction; the
// read position is left where it was.
func New(rs io.ReadSeeker, order binary.ByteOrder) (*Reader, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("query position: %w", err)
	}

	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("query size: %w", err)
	}

	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return nil, fmt.Errorf("restore position: %w", err)
	}

	return &Reader{rs: rs, order: order, size: size}, nil
}

// SetByteOrder changes the byte order used by subsequent scalar reads.
func (r *Reader) SetByteOrder(order binary.ByteOrder) {
	r.order = order
}

// Size reports the total stream length in bytes.
func (r *Reader) Size() int64 { return r.size }

// Position reports the current read offset from the start of the stream.
func (r *Reader) Position() (int64, error) {
	return r.rs.Seek(0, io.SeekCurrent)
}

// SetPosition moves the read cursor to an absolute offset.
func (r *Reader) SetPosition(offset int64) error {
	if _, err := r.rs.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", offset, err)
	}
	return nil
}

// SkipBytes advances the read cursor by n bytes without reading them.
func (r *Reader) SkipBytes(n int64) error {
	if _, err := r.rs.Seek(n, io.SeekCurrent); err != nil {
		return fmt.Errorf("skip %d bytes: %w", n, err)
	}
	return nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, error) {
	if _, err := io.ReadFull(r.rs, r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

// Uint16 reads a 2-byte integer in the configured byte order.
func (r *Reader) Uint16() (uint16, error) {
	if _, err := io.ReadFull(r.rs, r.buf[:2]); err != nil {
		return 0, err
	}
	return r.order.Uint16(r.buf[:2]), nil
}

// Uint32 reads a 4-byte integer in the configured byte order.
func (r *Reader) Uint32() (uint32, error) {
	if _, err := io.ReadFull(r.rs, r.buf[:4]); err != nil {
		return 0, err
	}
	return r.order.Uint32(r.buf[:4]), nil
}

// ReadBytes fills dst from the stream. It reads exactly len(dst) bytes
// or fails; a partial fill reports io.ErrUnexpectedEOF.
func (r *Reader) ReadBytes(dst []byte) (int, error) {
	return io.ReadFull(r.rs, dst)
}
