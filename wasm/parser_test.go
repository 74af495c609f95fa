package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexdlt/wasmcore/types"
)

// uleb encodes a ULEB128 unsigned integer, used here to hand-assemble
// minimal section bytes the same way the interpreter package's own test
// module builder does.
func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

func header() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

func sec(id byte, body []byte) []byte {
	return append([]byte{id}, append(uleb(uint32(len(body))), body...)...)
}

func TestParseEmptyModule(t *testing.T) {
	m, err := Parse(header())
	require.NoError(t, err)
	assert.Equal(t, 0, len(m.Types))
	assert.False(t, m.HasMemory())
}

func TestParseBadMagicRejected(t *testing.T) {
	b := append([]byte{0x00, 0x61, 0x73, 0x6d + 1}, header()[4:]...)
	_, err := Parse(b)
	assert.Error(t, err)
}

func TestParseBadVersionRejected(t *testing.T) {
	b := append(append([]byte{}, header()[:4]...), 0x02, 0x00, 0x00, 0x00)
	_, err := Parse(b)
	assert.Error(t, err)
}

func TestParseTruncatedHeaderRejected(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x61, 0x73})
	assert.Error(t, err)
}

func TestParseUnknownSectionIDRejected(t *testing.T) {
	b := append(append([]byte{}, header()...), sec(12, nil)...)
	_, err := Parse(b)
	assert.Error(t, err)
}

func TestParseSectionsMustBeOrdered(t *testing.T) {
	// memory section (5) followed by a type section (1): out of order.
	memSec := sec(secMemory, append(uleb(1), append([]byte{0x00}, uleb(1)...)...))
	typeSec := sec(secType, uleb(0))
	b := append(append(append([]byte{}, header()...), memSec...), typeSec...)
	_, err := Parse(b)
	assert.Error(t, err)
}

func TestParseFuncCodeCountMismatchRejected(t *testing.T) {
	// one type, one declared function, but zero code bodies.
	typeSec := sec(secType, append(uleb(1), append([]byte{0x60}, append(uleb(0), uleb(0)...)...)...))
	funcSec := sec(secFunction, append(uleb(1), uleb(0)))
	b := append(append(append([]byte{}, header()...), typeSec...), funcSec...)
	_, err := Parse(b)
	assert.Error(t, err)
}

func TestParseSimpleMemoryModule(t *testing.T) {
	memSec := sec(secMemory, append(uleb(1), append([]byte{0x00}, uleb(1)...)...))
	exportSec := sec(secExport, append(uleb(1), append(append(uleb(3), []byte("mem")...), append([]byte{byte(ExportKindMemory)}, uleb(0)...)...)...))
	b := append(append(append([]byte{}, header()...), memSec...), exportSec...)
	m, err := Parse(b)
	require.NoError(t, err)
	require.True(t, m.HasMemory())
	assert.Equal(t, uint32(1), m.Memory.Limits.Min)
	exp, ok := m.ExportsByName["mem"]
	require.True(t, ok)
	assert.Equal(t, ExportKindMemory, exp.Kind)
}

func TestParseExportOutOfRangeFunctionRejected(t *testing.T) {
	exportSec := sec(secExport, append(uleb(1), append(append(uleb(2), []byte("fn")...), append([]byte{byte(ExportKindFunc)}, uleb(0)...)...)...))
	b := append(append([]byte{}, header()...), exportSec...)
	_, err := Parse(b)
	assert.Error(t, err)
}

func TestModuleFuncTypeByIndexImportsFirst(t *testing.T) {
	m := &Module{
		Types:           []types.FuncType{{Results: []types.ValueType{types.I32}}, {Params: []types.ValueType{types.I64}}},
		Imports:         []Import{{Kind: ImportKindFunc, FuncTypeIdx: 0}},
		FuncTypeIndices: []uint32{1},
	}
	m.populateDerived()
	ft, ok := m.FuncTypeByIndex(0)
	require.True(t, ok)
	assert.Equal(t, []types.ValueType{types.I32}, ft.Results, "index 0 is the imported function")

	ft, ok = m.FuncTypeByIndex(1)
	require.True(t, ok)
	assert.Equal(t, []types.ValueType{types.I64}, ft.Params, "index 1 is the first defined function")

	_, ok = m.FuncTypeByIndex(2)
	assert.False(t, ok)
}
