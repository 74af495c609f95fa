package validate

import (
	"github.com/vertexdlt/wasmcore/leb128"
	"github.com/vertexdlt/wasmcore/types"
	"github.com/vertexdlt/wasmcore/util"
)

// ConstExpr type-checks a constant expression (a global initializer or an
// element/data segment offset) against an expected result type. WebAssembly
// 1.0 restricts constant expressions to a single i32.const/i64.const/
// f32.const/f64.const, or a global.get of an imported, immutable global,
// followed by `end` (spec §4.2).
func ConstExpr(exprBytes []byte, expected types.ValueType, importedGlobalCount uint32, ctx ModuleContext) error {
	r := util.NewByteReader(exprBytes)
	op, err := r.ReadByte()
	if err != nil {
		return err
	}

	var actual types.ValueType
	switch types.Opcode(op) {
	case types.OpI32Const:
		if _, err := leb128.ReadS32(r); err != nil {
			return err
		}
		actual = types.I32
	case types.OpI64Const:
		if _, err := leb128.ReadS64(r); err != nil {
			return err
		}
		actual = types.I64
	case types.OpF32Const:
		if _, err := r.ReadFixed32(); err != nil {
			return err
		}
		actual = types.F32
	case types.OpF64Const:
		if _, err := r.ReadFixed64(); err != nil {
			return err
		}
		actual = types.F64
	case types.OpGlobalGet:
		idx, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		if idx >= importedGlobalCount {
			return errf("constant expression may only reference an imported global")
		}
		gt, ok := ctx.GlobalTypeByIndex(idx)
		if !ok {
			return errf("global index %d out of range", idx)
		}
		if gt.Mutable {
			return errf("constant expression may not reference a mutable global")
		}
		actual = gt.ValType
	default:
		return errf("invalid constant expression opcode 0x%02x", op)
	}

	endByte, err := r.ReadByte()
	if err != nil || types.Opcode(endByte) != types.OpEnd {
		return errf("constant expression must contain exactly one instruction before end")
	}
	if r.Len() != 0 {
		return errf("constant expression has trailing bytes")
	}
	if actual != expected {
		return errf("constant expression type mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}
