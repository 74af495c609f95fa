// Package types holds the pure value/type model shared by the module loader
// and the interpreter: value types, function types, limits, the opcode table,
// the re-emitted bytecode shape, and the three error kinds. Nothing in this
// package parses bytes or executes instructions.
package types

import "fmt"

// ValueType is one of the four WebAssembly 1.0 value types. Its underlying
// byte matches the binary encoding so it can be read directly off the wire.
type ValueType int8

const (
	ByteI32 byte = 0x7f
	ByteI64 byte = 0x7e
	ByteF32 byte = 0x7d
	ByteF64 byte = 0x7c
)

const (
	I32 ValueType = ValueType(ByteI32)
	I64 ValueType = ValueType(ByteI64)
	F32 ValueType = ValueType(ByteF32)
	F64 ValueType = ValueType(ByteF64)
)

// ValueTypeFromByte decodes a value-type byte, rejecting anything else.
func ValueTypeFromByte(b byte) (ValueType, bool) {
	switch b {
	case ByteI32:
		return I32, true
	case ByteI64:
		return I64, true
	case ByteF32:
		return F32, true
	case ByteF64:
		return F64, true
	default:
		return 0, false
	}
}

func (v ValueType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("valtype(%d)", int8(v))
	}
}

// IsInt reports whether v is i32 or i64.
func (v ValueType) IsInt() bool { return v == I32 || v == I64 }

// IsFloat reports whether v is f32 or f64.
func (v ValueType) IsFloat() bool { return v == F32 || v == F64 }

// BlockTypeEmpty is the byte that marks a block/loop/if with no result type.
const BlockTypeEmpty byte = 0x40

// Mut is a global's mutability flag.
type Mut uint8

const (
	Const Mut = 0
	Var   Mut = 1
)

// Limits is the min/max pair shared by table and memory types.
// Invariant: Min <= Max when HasMax is true (enforced by the parser).
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// FuncType is an ordered list of parameter types and zero-or-one result
// type, per the WebAssembly 1.0 (no multi-value) restriction.
type FuncType struct {
	Params  []ValueType
	Results []ValueType // length 0 or 1
}

// Equal reports structural equality of two function types.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

func (f FuncType) String() string {
	return fmt.Sprintf("%v -> %v", f.Params, f.Results)
}

// ResultArity is 0 or 1 for a WebAssembly 1.0 function/block result type.
func (f FuncType) ResultArity() int { return len(f.Results) }

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// TableType describes the (currently funcref-only) table element type and
// its size limits.
type TableType struct {
	ElemType byte // always ElemTypeFuncRef in WebAssembly 1.0
	Limits   Limits
}

// ElemTypeFuncRef is the only element type WebAssembly 1.0 permits.
const ElemTypeFuncRef byte = 0x70

// MemType describes a linear memory's page-count limits.
type MemType struct {
	Limits Limits
}
