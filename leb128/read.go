// Package leb128 decodes canonical LEB128 integers (spec §4.1, §6) over a
// util.ByteReader. Canonical here means the unique shortest encoding: the
// decoder enforces both the maximum byte count for a given width and that
// the unused high bits of the final byte are a correct zero-fill (unsigned)
// or sign-extension (signed), rejecting any other encoding as malformed.
package leb128

import (
	"errors"

	"github.com/vertexdlt/wasmcore/util"
)

// ErrOverflow indicates a LEB128 value used more bytes than its declared
// width permits (5 for 32-bit, 10 for 64-bit).
var ErrOverflow = errors.New("leb128: integer representation too long")

// ErrMalformed indicates a non-canonical encoding: the padding bits in the
// final byte don't match what a canonical encoder would have produced.
var ErrMalformed = errors.New("leb128: integer representation malformed")

func maxBytes(bits uint) int {
	return int((bits + 6) / 7)
}

func readUnsigned(r *util.ByteReader, bits uint) (uint64, error) {
	var result uint64
	var shift uint
	limit := maxBytes(bits)
	for i := 0; ; i++ {
		if i >= limit {
			return 0, ErrOverflow
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		payload := uint64(b & 0x7f)
		if shift < bits {
			remaining := bits - shift
			if remaining < 7 && payload>>remaining != 0 {
				return 0, ErrMalformed
			}
		} else if payload != 0 {
			return 0, ErrMalformed
		}
		result |= payload << shift
		shift += 7
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

func readSigned(r *util.ByteReader, bits uint) (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	limit := maxBytes(bits)
	for i := 0; ; i++ {
		if i >= limit {
			return 0, ErrOverflow
		}
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		payload := int64(b & 0x7f)
		if shift < bits {
			remaining := bits - shift
			if remaining < 7 {
				signBit := (payload >> (remaining - 1)) & 1
				highMask := (int64(-1) << remaining) & 0x7f
				expect := int64(0)
				if signBit == 1 {
					expect = highMask
				}
				if payload&highMask != expect {
					return 0, ErrMalformed
				}
			}
		}
		result |= payload << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && (b&0x40) != 0 {
		result |= int64(-1) << shift
	}
	return result, nil
}

// ReadU32 reads a canonical unsigned 32-bit LEB128 integer.
func ReadU32(r *util.ByteReader) (uint32, error) {
	v, err := readUnsigned(r, 32)
	return uint32(v), err
}

// ReadU64 reads a canonical unsigned 64-bit LEB128 integer.
func ReadU64(r *util.ByteReader) (uint64, error) {
	return readUnsigned(r, 64)
}

// ReadS32 reads a canonical signed 32-bit LEB128 integer.
func ReadS32(r *util.ByteReader) (int32, error) {
	v, err := readSigned(r, 32)
	return int32(v), err
}

// ReadS64 reads a canonical signed 64-bit LEB128 integer.
func ReadS64(r *util.ByteReader) (int64, error) {
	return readSigned(r, 64)
}
