package util

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadByte(t *testing.T) {
	r := NewByteReader([]byte{0x01, 0x02})
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)
	assert.Equal(t, 1, r.Pos())
	assert.Equal(t, 1, r.Len())
}

func TestReadByteEOF(t *testing.T) {
	r := NewByteReader(nil)
	_, err := r.ReadByte()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestPeekByteDoesNotAdvance(t *testing.T) {
	r := NewByteReader([]byte{0x42})
	b, err := r.PeekByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), b)
	assert.Equal(t, 0, r.Pos())
}

func TestReadBytes(t *testing.T) {
	r := NewByteReader([]byte{1, 2, 3, 4})
	b, err := r.ReadBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)
	assert.Equal(t, 1, r.Len())
}

func TestReadBytesShort(t *testing.T) {
	r := NewByteReader([]byte{1, 2})
	_, err := r.ReadBytes(3)
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestSkip(t *testing.T) {
	r := NewByteReader([]byte{1, 2, 3})
	require.NoError(t, r.Skip(2))
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(3), b)
}

func TestReadFixed32And64(t *testing.T) {
	r := NewByteReader([]byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	v32, err := r.ReadFixed32()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v32)

	v64, err := r.ReadFixed64()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v64)
}

func TestSubReaderIsBounded(t *testing.T) {
	r := NewByteReader([]byte{1, 2, 3, 4, 5})
	sub, err := r.SubReader(3)
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Len())
	_, err = sub.ReadBytes(4)
	assert.Error(t, err, "sub-reader must not see past its carved-out window")

	// parent cursor advanced past the sub-reader's window.
	assert.Equal(t, 2, r.Len())
}

func TestRemainingAliasesUnderlyingBuffer(t *testing.T) {
	r := NewByteReader([]byte{1, 2, 3})
	_, _ = r.ReadByte()
	assert.Equal(t, []byte{2, 3}, r.Remaining())
}
