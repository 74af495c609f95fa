// Package util provides the bounded byte cursor (spec §4.1) used by every
// section and expression reader: a view over an immutable byte slice with
// primitive fixed-width and sliced reads. It never copies the underlying
// bytes.
package util

import (
	"encoding/binary"
	"io"
)

// ByteReader is a bounded cursor over an immutable byte view.
type ByteReader struct {
	b   []byte
	pos int
}

// NewByteReader wraps b for sequential reading starting at offset 0.
func NewByteReader(b []byte) *ByteReader {
	return &ByteReader{b: b}
}

// Len returns the number of unread bytes remaining.
func (r *ByteReader) Len() int { return len(r.b) - r.pos }

// Pos returns the current cursor offset into the original byte slice.
func (r *ByteReader) Pos() int { return r.pos }

// RequireRemaining fails if fewer than n bytes remain.
func (r *ByteReader) RequireRemaining(n int) error {
	if r.Len() < n {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// ReadByte reads a single byte, advancing the cursor. Implements io.ByteReader.
func (r *ByteReader) ReadByte() (byte, error) {
	if err := r.RequireRemaining(1); err != nil {
		return 0, err
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}

// PeekByte returns the next byte without advancing the cursor.
func (r *ByteReader) PeekByte() (byte, error) {
	if err := r.RequireRemaining(1); err != nil {
		return 0, err
	}
	return r.b[r.pos], nil
}

// ReadBytes reads exactly n bytes and advances the cursor. The returned
// slice aliases the underlying view; callers that retain it past further
// parsing must copy.
func (r *ByteReader) ReadBytes(n uint32) ([]byte, error) {
	if err := r.RequireRemaining(int(n)); err != nil {
		return nil, err
	}
	b := r.b[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// Skip advances the cursor by n bytes without returning them.
func (r *ByteReader) Skip(n uint32) error {
	if err := r.RequireRemaining(int(n)); err != nil {
		return err
	}
	r.pos += int(n)
	return nil
}

// ReadFixed32 reads a little-endian uint32.
func (r *ByteReader) ReadFixed32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadFixed64 reads a little-endian uint64.
func (r *ByteReader) ReadFixed64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Remaining returns the unread tail of the view, aliasing the underlying
// buffer.
func (r *ByteReader) Remaining() []byte { return r.b[r.pos:] }

// SubReader carves out a bounded reader over exactly the next n bytes and
// advances the parent cursor past them, used to scope a section body so it
// cannot read beyond its declared size.
func (r *ByteReader) SubReader(n uint32) (*ByteReader, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return NewByteReader(b), nil
}
