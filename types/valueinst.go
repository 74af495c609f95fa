package types

import "math"

// Value is a typed WebAssembly runtime value, used at the public API
// boundary (call arguments/results, exported globals). Internally the
// interpreter's operand stack stores untyped 64-bit words instead, since
// validation has already established every slot's type statically; Value
// exists so callers across the API boundary don't need to know that
// representation.
type Value struct {
	Type ValueType
	bits uint64
}

// I32Value builds an i32 value.
func I32Value(v int32) Value { return Value{Type: I32, bits: uint64(uint32(v))} }

// I64Value builds an i64 value.
func I64Value(v int64) Value { return Value{Type: I64, bits: uint64(v)} }

// F32Value builds an f32 value.
func F32Value(v float32) Value { return Value{Type: F32, bits: uint64(math.Float32bits(v))} }

// F64Value builds an f64 value.
func F64Value(v float64) Value { return Value{Type: F64, bits: math.Float64bits(v)} }

// ValueFromBits builds a Value of the given type from its raw bit pattern,
// used when lifting a stack slot or global cell back across the API boundary.
func ValueFromBits(t ValueType, bits uint64) Value { return Value{Type: t, bits: bits} }

// I32 returns the value as a signed 32-bit integer; the caller must know
// Type == I32.
func (v Value) I32() int32 { return int32(uint32(v.bits)) }

// I64 returns the value as a signed 64-bit integer.
func (v Value) I64() int64 { return int64(v.bits) }

// F32 returns the value as a float32.
func (v Value) F32() float32 { return math.Float32frombits(uint32(v.bits)) }

// F64 returns the value as a float64.
func (v Value) F64() float64 { return math.Float64frombits(v.bits) }

// Bits returns the value's raw underlying bit pattern.
func (v Value) Bits() uint64 { return v.bits }
