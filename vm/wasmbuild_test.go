package vm

import (
	"encoding/binary"
	"math"

	"github.com/vertexdlt/wasmcore/types"
)

// This file hand-assembles minimal WebAssembly binaries for the tests in
// this package, the same way the pack's other low-level wasm encoders
// (e.g. wazero's wasm package) build fixtures in Go rather than shelling
// out to wat2wasm: it keeps the test suite self-contained and independent
// of any toolchain not present in this module.

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb64(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), []byte(s)...)
}

func vecOf(n int, items []byte) []byte {
	return append(uleb(uint32(n)), items...)
}

func section(id byte, body []byte) []byte {
	return append([]byte{id}, append(uleb(uint32(len(body))), body...)...)
}

func valTypeByte(t types.ValueType) byte { return byte(t) }

// funcSig encodes a (params -> results) function type entry.
func funcSig(params, results []types.ValueType) []byte {
	var b []byte
	b = append(b, 0x60)
	b = append(b, uleb(uint32(len(params)))...)
	for _, p := range params {
		b = append(b, valTypeByte(p))
	}
	b = append(b, uleb(uint32(len(results)))...)
	for _, r := range results {
		b = append(b, valTypeByte(r))
	}
	return b
}

// moduleBuilder assembles a module byte-for-byte from its logical pieces,
// emitting sections in binary-format order (spec §3).
type moduleBuilder struct {
	types    [][]byte
	imports  [][]byte
	funcs    []uint32 // type index per defined function
	codes    [][]byte
	exports  [][]byte
	globals  [][]byte
	table    []byte
	memory   []byte
	elements [][]byte
	data     [][]byte
	start    *uint32

	funcImportCount uint32
}

func newModuleBuilder() *moduleBuilder { return &moduleBuilder{} }

func (b *moduleBuilder) addType(params, results []types.ValueType) uint32 {
	b.types = append(b.types, funcSig(params, results))
	return uint32(len(b.types) - 1)
}

// importFunc registers a function import and returns its GLOBAL function
// index (imported functions occupy the low end of the function index
// space, ahead of every module-defined function).
func (b *moduleBuilder) importFunc(module, field string, typeIdx uint32) uint32 {
	entry := append(name(module), name(field)...)
	entry = append(entry, 0x00)
	entry = append(entry, uleb(typeIdx)...)
	b.imports = append(b.imports, entry)
	idx := b.funcImportCount
	b.funcImportCount++
	return idx
}

func (b *moduleBuilder) importMemory(module, field string, min uint32, max uint32, hasMax bool) {
	entry := append(name(module), name(field)...)
	entry = append(entry, 0x02)
	entry = append(entry, limitsBytes(min, max, hasMax)...)
	b.imports = append(b.imports, entry)
}

func (b *moduleBuilder) importGlobal(module, field string, vt types.ValueType, mutable bool) {
	entry := append(name(module), name(field)...)
	entry = append(entry, 0x03, valTypeByte(vt))
	if mutable {
		entry = append(entry, 0x01)
	} else {
		entry = append(entry, 0x00)
	}
	b.imports = append(b.imports, entry)
}

func limitsBytes(min, max uint32, hasMax bool) []byte {
	if !hasMax {
		return append([]byte{0x00}, uleb(min)...)
	}
	b := append([]byte{0x01}, uleb(min)...)
	return append(b, uleb(max)...)
}

// addFunc registers a defined function: its type index, its declared
// locals (encoded here as same-type runs) and its raw instruction bytes
// ("end" appended automatically).
func (b *moduleBuilder) addFunc(typeIdx uint32, locals []types.ValueType, body []byte) uint32 {
	b.funcs = append(b.funcs, typeIdx)
	var code []byte
	// group locals into runs, one entry per contiguous same-type run
	var runs [][2]interface{}
	for _, l := range locals {
		if n := len(runs); n > 0 && runs[n-1][1].(types.ValueType) == l {
			runs[n-1][0] = runs[n-1][0].(uint32) + 1
			continue
		}
		runs = append(runs, [2]interface{}{uint32(1), l})
	}
	code = append(code, uleb(uint32(len(runs)))...)
	for _, r := range runs {
		code = append(code, uleb(r[0].(uint32))...)
		code = append(code, valTypeByte(r[1].(types.ValueType)))
	}
	code = append(code, body...)
	code = append(code, byte(types.OpEnd))
	funcBody := append(uleb(uint32(len(code))), code...)
	b.codes = append(b.codes, funcBody)
	return b.funcImportCount + uint32(len(b.funcs)-1) // global function index
}

func (b *moduleBuilder) exportFunc(fieldName string, funcIdx uint32) {
	e := append(name(fieldName), 0x00)
	e = append(e, uleb(funcIdx)...)
	b.exports = append(b.exports, e)
}

func (b *moduleBuilder) exportMemory(fieldName string) {
	e := append(name(fieldName), 0x02)
	e = append(e, uleb(0)...)
	b.exports = append(b.exports, e)
}

func (b *moduleBuilder) exportGlobal(fieldName string, idx uint32) {
	e := append(name(fieldName), 0x03)
	e = append(e, uleb(idx)...)
	b.exports = append(b.exports, e)
}

func (b *moduleBuilder) exportTable(fieldName string) {
	e := append(name(fieldName), 0x01)
	e = append(e, uleb(0)...)
	b.exports = append(b.exports, e)
}

func (b *moduleBuilder) addGlobal(vt types.ValueType, mutable bool, initI32 int32) {
	g := []byte{valTypeByte(vt)}
	if mutable {
		g = append(g, 0x01)
	} else {
		g = append(g, 0x00)
	}
	g = append(g, byte(types.OpI32Const))
	g = append(g, sleb64(int64(initI32))...)
	g = append(g, byte(types.OpEnd))
	b.globals = append(b.globals, g)
}

func (b *moduleBuilder) setMemory(min, max uint32, hasMax bool) {
	b.memory = limitsBytes(min, max, hasMax)
}

func (b *moduleBuilder) setTable(min, max uint32, hasMax bool) {
	b.table = append([]byte{types.ElemTypeFuncRef}, limitsBytes(min, max, hasMax)...)
}

func (b *moduleBuilder) addElement(offset uint32, funcIndices []uint32) {
	e := uleb(0) // table index 0
	e = append(e, byte(types.OpI32Const))
	e = append(e, sleb64(int64(offset))...)
	e = append(e, byte(types.OpEnd))
	e = append(e, uleb(uint32(len(funcIndices)))...)
	for _, fi := range funcIndices {
		e = append(e, uleb(fi)...)
	}
	b.elements = append(b.elements, e)
}

func (b *moduleBuilder) addData(offset uint32, bytes []byte) {
	d := uleb(0) // memory index 0
	d = append(d, byte(types.OpI32Const))
	d = append(d, sleb64(int64(offset))...)
	d = append(d, byte(types.OpEnd))
	d = append(d, uleb(uint32(len(bytes)))...)
	d = append(d, bytes...)
	b.data = append(b.data, d)
}

func (b *moduleBuilder) setStart(idx uint32) { b.start = &idx }

func concatAll(items [][]byte) []byte {
	var out []byte
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func (b *moduleBuilder) build() []byte {
	var out []byte
	out = append(out, 0x00, 0x61, 0x73, 0x6d) // \0asm
	out = append(out, 0x01, 0x00, 0x00, 0x00) // version 1

	if len(b.types) > 0 {
		out = append(out, section(1, vecOf(len(b.types), concatAll(b.types)))...)
	}
	if len(b.imports) > 0 {
		out = append(out, section(2, vecOf(len(b.imports), concatAll(b.imports)))...)
	}
	if len(b.funcs) > 0 {
		var fb []byte
		for _, t := range b.funcs {
			fb = append(fb, uleb(t)...)
		}
		out = append(out, section(3, vecOf(len(b.funcs), fb))...)
	}
	if b.table != nil {
		out = append(out, section(4, vecOf(1, b.table))...)
	}
	if b.memory != nil {
		out = append(out, section(5, vecOf(1, b.memory))...)
	}
	if len(b.globals) > 0 {
		out = append(out, section(6, vecOf(len(b.globals), concatAll(b.globals)))...)
	}
	if len(b.exports) > 0 {
		out = append(out, section(7, vecOf(len(b.exports), concatAll(b.exports)))...)
	}
	if b.start != nil {
		out = append(out, section(8, uleb(*b.start))...)
	}
	if len(b.elements) > 0 {
		out = append(out, section(9, vecOf(len(b.elements), concatAll(b.elements)))...)
	}
	if len(b.codes) > 0 {
		out = append(out, section(10, vecOf(len(b.codes), concatAll(b.codes)))...)
	}
	if len(b.data) > 0 {
		out = append(out, section(11, vecOf(len(b.data), concatAll(b.data)))...)
	}
	return out
}

// --- small instruction-encoding helpers used throughout the test bodies ---

func i32Const(v int32) []byte { return append([]byte{byte(types.OpI32Const)}, sleb64(int64(v))...) }
func i64Const(v int64) []byte { return append([]byte{byte(types.OpI64Const)}, sleb64(v)...) }

func f32Const(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return append([]byte{byte(types.OpF32Const)}, b...)
}

func f64Const(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return append([]byte{byte(types.OpF64Const)}, b...)
}

func op(o types.Opcode) []byte { return []byte{byte(o)} }

func opIdx(o types.Opcode, idx uint32) []byte { return append([]byte{byte(o)}, uleb(idx)...) }

// callIndirectOp encodes call_indirect's typeidx plus the MVP's reserved
// table-index byte (always 0, since WebAssembly 1.0 has at most one table).
func callIndirectOp(typeIdx uint32) []byte {
	return append(opIdx(types.OpCallIndirect, typeIdx), 0x00)
}

func memArg(o types.Opcode, align, offset uint32) []byte {
	return append(append([]byte{byte(o)}, uleb(align)...), uleb(offset)...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
