package vm

import (
	"math"
	"math/bits"

	"github.com/chewxy/math32"

	"github.com/vertexdlt/wasmcore/number"
	"github.com/vertexdlt/wasmcore/types"
)

// i32BinOp applies a signed-32-bit binary opcode to two stack words, trapping
// on division/remainder by zero and on the single i32 overflow case
// (MinInt32 / -1), per spec §4.5.
func i32BinOp(op types.Opcode, aw, bw uint64) uint64 {
	a, b := int32(uint32(aw)), int32(uint32(bw))
	switch op {
	case types.OpI32Add:
		return uint64(uint32(a + b))
	case types.OpI32Sub:
		return uint64(uint32(a - b))
	case types.OpI32Mul:
		return uint64(uint32(a * b))
	case types.OpI32DivS:
		if b == 0 {
			trap(types.TrapIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			trap(types.TrapIntegerOverflow)
		}
		return uint64(uint32(a / b))
	case types.OpI32DivU:
		ua, ub := uint32(a), uint32(b)
		if ub == 0 {
			trap(types.TrapIntegerDivideByZero)
		}
		return uint64(ua / ub)
	case types.OpI32RemS:
		if b == 0 {
			trap(types.TrapIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			return 0
		}
		return uint64(uint32(a % b))
	case types.OpI32RemU:
		ua, ub := uint32(a), uint32(b)
		if ub == 0 {
			trap(types.TrapIntegerDivideByZero)
		}
		return uint64(ua % ub)
	case types.OpI32And:
		return uint64(uint32(a) & uint32(b))
	case types.OpI32Or:
		return uint64(uint32(a) | uint32(b))
	case types.OpI32Xor:
		return uint64(uint32(a) ^ uint32(b))
	case types.OpI32Shl:
		return uint64(uint32(a) << (uint32(b) % 32))
	case types.OpI32ShrS:
		return uint64(uint32(a >> (uint32(b) % 32)))
	case types.OpI32ShrU:
		return uint64(uint32(a) >> (uint32(b) % 32))
	case types.OpI32Rotl:
		return uint64(bits.RotateLeft32(uint32(a), int(b)))
	case types.OpI32Rotr:
		return uint64(bits.RotateLeft32(uint32(a), -int(b)))
	}
	panic("unreachable: unhandled i32 binop " + op.Name())
}

func i32UnOp(op types.Opcode, aw uint64) uint64 {
	a := uint32(aw)
	switch op {
	case types.OpI32Clz:
		return uint64(bits.LeadingZeros32(a))
	case types.OpI32Ctz:
		return uint64(bits.TrailingZeros32(a))
	case types.OpI32Popcnt:
		return uint64(bits.OnesCount32(a))
	}
	panic("unreachable: unhandled i32 unop " + op.Name())
}

func i32CmpOp(op types.Opcode, aw, bw uint64) uint64 {
	a, b := int32(uint32(aw)), int32(uint32(bw))
	ua, ub := uint32(a), uint32(b)
	var r bool
	switch op {
	case types.OpI32Eq:
		r = a == b
	case types.OpI32Ne:
		r = a != b
	case types.OpI32LtS:
		r = a < b
	case types.OpI32LtU:
		r = ua < ub
	case types.OpI32GtS:
		r = a > b
	case types.OpI32GtU:
		r = ua > ub
	case types.OpI32LeS:
		r = a <= b
	case types.OpI32LeU:
		r = ua <= ub
	case types.OpI32GeS:
		r = a >= b
	case types.OpI32GeU:
		r = ua >= ub
	default:
		panic("unreachable: unhandled i32 cmp " + op.Name())
	}
	return boolWord(r)
}

func i64BinOp(op types.Opcode, aw, bw uint64) uint64 {
	a, b := int64(aw), int64(bw)
	switch op {
	case types.OpI64Add:
		return uint64(a + b)
	case types.OpI64Sub:
		return uint64(a - b)
	case types.OpI64Mul:
		return uint64(a * b)
	case types.OpI64DivS:
		if b == 0 {
			trap(types.TrapIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			trap(types.TrapIntegerOverflow)
		}
		return uint64(a / b)
	case types.OpI64DivU:
		ua, ub := uint64(a), uint64(b)
		if ub == 0 {
			trap(types.TrapIntegerDivideByZero)
		}
		return ua / ub
	case types.OpI64RemS:
		if b == 0 {
			trap(types.TrapIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			return 0
		}
		return uint64(a % b)
	case types.OpI64RemU:
		ua, ub := uint64(a), uint64(b)
		if ub == 0 {
			trap(types.TrapIntegerDivideByZero)
		}
		return ua % ub
	case types.OpI64And:
		return uint64(a) & uint64(b)
	case types.OpI64Or:
		return uint64(a) | uint64(b)
	case types.OpI64Xor:
		return uint64(a) ^ uint64(b)
	case types.OpI64Shl:
		return uint64(a) << (uint64(b) % 64)
	case types.OpI64ShrS:
		return uint64(a >> (uint64(b) % 64))
	case types.OpI64ShrU:
		return uint64(a) >> (uint64(b) % 64)
	case types.OpI64Rotl:
		return bits.RotateLeft64(uint64(a), int(b))
	case types.OpI64Rotr:
		return bits.RotateLeft64(uint64(a), -int(b))
	}
	panic("unreachable: unhandled i64 binop " + op.Name())
}

func i64UnOp(op types.Opcode, aw uint64) uint64 {
	switch op {
	case types.OpI64Clz:
		return uint64(bits.LeadingZeros64(aw))
	case types.OpI64Ctz:
		return uint64(bits.TrailingZeros64(aw))
	case types.OpI64Popcnt:
		return uint64(bits.OnesCount64(aw))
	}
	panic("unreachable: unhandled i64 unop " + op.Name())
}

func i64CmpOp(op types.Opcode, aw, bw uint64) uint64 {
	a, b := int64(aw), int64(bw)
	var r bool
	switch op {
	case types.OpI64Eq:
		r = a == b
	case types.OpI64Ne:
		r = a != b
	case types.OpI64LtS:
		r = a < b
	case types.OpI64LtU:
		r = aw < bw
	case types.OpI64GtS:
		r = a > b
	case types.OpI64GtU:
		r = aw > bw
	case types.OpI64LeS:
		r = a <= b
	case types.OpI64LeU:
		r = aw <= bw
	case types.OpI64GeS:
		r = a >= b
	case types.OpI64GeU:
		r = aw >= bw
	default:
		panic("unreachable: unhandled i64 cmp " + op.Name())
	}
	return boolWord(r)
}

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// f32nearest rounds to the nearest integer, ties to even, matching the
// WebAssembly `nearest` rounding mode (unlike math32.Round, which rounds
// ties away from zero).
func f32nearest(f float32) float32 {
	return float32(math.RoundToEven(float64(f)))
}

func f32BinOp(op types.Opcode, aw, bw uint64) uint64 {
	a := math.Float32frombits(uint32(aw))
	b := math.Float32frombits(uint32(bw))
	var r float32
	switch op {
	case types.OpF32Add:
		r = a + b
	case types.OpF32Sub:
		r = a - b
	case types.OpF32Mul:
		r = a * b
	case types.OpF32Div:
		r = a / b
	case types.OpF32Min:
		r = f32min(a, b)
	case types.OpF32Max:
		r = f32max(a, b)
	case types.OpF32Copysign:
		r = math32.Copysign(a, b)
	default:
		panic("unreachable: unhandled f32 binop " + op.Name())
	}
	return uint64(math.Float32bits(r))
}

func f32min(a, b float32) float32 {
	if math32.IsNaN(a) || math32.IsNaN(b) {
		return math32.NaN()
	}
	if a == 0 && b == 0 {
		if math32.Signbit(a) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func f32max(a, b float32) float32 {
	if math32.IsNaN(a) || math32.IsNaN(b) {
		return math32.NaN()
	}
	if a == 0 && b == 0 {
		if math32.Signbit(a) {
			return b
		}
		return a
	}
	if a > b {
		return a
	}
	return b
}

func f32UnOp(op types.Opcode, aw uint64) uint64 {
	a := math.Float32frombits(uint32(aw))
	var r float32
	switch op {
	case types.OpF32Abs:
		r = math32.Abs(a)
	case types.OpF32Neg:
		r = -a
	case types.OpF32Ceil:
		r = math32.Ceil(a)
	case types.OpF32Floor:
		r = math32.Floor(a)
	case types.OpF32Trunc:
		r = math32.Trunc(a)
	case types.OpF32Nearest:
		r = f32nearest(a)
	case types.OpF32Sqrt:
		r = math32.Sqrt(a)
	default:
		panic("unreachable: unhandled f32 unop " + op.Name())
	}
	return uint64(math.Float32bits(r))
}

func f32CmpOp(op types.Opcode, aw, bw uint64) uint64 {
	a := math.Float32frombits(uint32(aw))
	b := math.Float32frombits(uint32(bw))
	var r bool
	switch op {
	case types.OpF32Eq:
		r = a == b
	case types.OpF32Ne:
		r = a != b
	case types.OpF32Lt:
		r = a < b
	case types.OpF32Gt:
		r = a > b
	case types.OpF32Le:
		r = a <= b
	case types.OpF32Ge:
		r = a >= b
	default:
		panic("unreachable: unhandled f32 cmp " + op.Name())
	}
	return boolWord(r)
}

func f64min(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func f64max(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return b
		}
		return a
	}
	if a > b {
		return a
	}
	return b
}

func f64BinOp(op types.Opcode, aw, bw uint64) uint64 {
	a := math.Float64frombits(aw)
	b := math.Float64frombits(bw)
	var r float64
	switch op {
	case types.OpF64Add:
		r = a + b
	case types.OpF64Sub:
		r = a - b
	case types.OpF64Mul:
		r = a * b
	case types.OpF64Div:
		r = a / b
	case types.OpF64Min:
		r = f64min(a, b)
	case types.OpF64Max:
		r = f64max(a, b)
	case types.OpF64Copysign:
		r = math.Copysign(a, b)
	default:
		panic("unreachable: unhandled f64 binop " + op.Name())
	}
	return math.Float64bits(r)
}

func f64UnOp(op types.Opcode, aw uint64) uint64 {
	a := math.Float64frombits(aw)
	var r float64
	switch op {
	case types.OpF64Abs:
		r = math.Abs(a)
	case types.OpF64Neg:
		r = -a
	case types.OpF64Ceil:
		r = math.Ceil(a)
	case types.OpF64Floor:
		r = math.Floor(a)
	case types.OpF64Trunc:
		r = math.Trunc(a)
	case types.OpF64Nearest:
		r = math.RoundToEven(a)
	case types.OpF64Sqrt:
		r = math.Sqrt(a)
	default:
		panic("unreachable: unhandled f64 unop " + op.Name())
	}
	return math.Float64bits(r)
}

func f64CmpOp(op types.Opcode, aw, bw uint64) uint64 {
	a := math.Float64frombits(aw)
	b := math.Float64frombits(bw)
	var r bool
	switch op {
	case types.OpF64Eq:
		r = a == b
	case types.OpF64Ne:
		r = a != b
	case types.OpF64Lt:
		r = a < b
	case types.OpF64Gt:
		r = a > b
	case types.OpF64Le:
		r = a <= b
	case types.OpF64Ge:
		r = a >= b
	default:
		panic("unreachable: unhandled f64 cmp " + op.Name())
	}
	return boolWord(r)
}

// truncToInt converts the float-to-int *.trunc_f* opcodes, trapping on NaN
// or out-of-range source values rather than silently saturating (spec §4.5,
// §7 invalid-conversion-to-integer).
func truncToInt(op types.Opcode, aw uint64) uint64 {
	var from, to number.Type
	var bits uint64
	switch op {
	case types.OpI32TruncF32S:
		from, to, bits = number.F32, number.I32, uint64(uint32(aw))
	case types.OpI32TruncF32U:
		from, to, bits = number.F32, number.U32, uint64(uint32(aw))
	case types.OpI32TruncF64S:
		from, to, bits = number.F64, number.I32, aw
	case types.OpI32TruncF64U:
		from, to, bits = number.F64, number.U32, aw
	case types.OpI64TruncF32S:
		from, to, bits = number.F32, number.I64, uint64(uint32(aw))
	case types.OpI64TruncF32U:
		from, to, bits = number.F32, number.U64, uint64(uint32(aw))
	case types.OpI64TruncF64S:
		from, to, bits = number.F64, number.I64, aw
	case types.OpI64TruncF64U:
		from, to, bits = number.F64, number.U64, aw
	default:
		panic("unreachable: unhandled trunc " + op.Name())
	}
	v, tr := number.FloatTruncate(from, to, bits)
	switch tr {
	case number.NanTrap, number.ConvertTrap:
		trap(types.TrapInvalidConversionToInteger)
	}
	return v
}

// convert implements every remaining numeric conversion opcode: wrap,
// extend, convert (int-to-float), demote/promote, and the bit-level
// reinterpret casts (spec §4.5).
func convert(op types.Opcode, aw uint64) uint64 {
	switch op {
	case types.OpI32WrapI64:
		return uint64(uint32(aw))
	case types.OpI64ExtendI32S:
		return uint64(int64(int32(uint32(aw))))
	case types.OpI64ExtendI32U:
		return uint64(uint32(aw))
	case types.OpF32ConvertI32S:
		return uint64(math.Float32bits(float32(int32(uint32(aw)))))
	case types.OpF32ConvertI32U:
		return uint64(math.Float32bits(float32(uint32(aw))))
	case types.OpF32ConvertI64S:
		return uint64(math.Float32bits(float32(int64(aw))))
	case types.OpF32ConvertI64U:
		return uint64(math.Float32bits(float32(aw)))
	case types.OpF64ConvertI32S:
		return math.Float64bits(float64(int32(uint32(aw))))
	case types.OpF64ConvertI32U:
		return math.Float64bits(float64(uint32(aw)))
	case types.OpF64ConvertI64S:
		return math.Float64bits(float64(int64(aw)))
	case types.OpF64ConvertI64U:
		return math.Float64bits(float64(aw))
	case types.OpF32DemoteF64:
		return uint64(math.Float32bits(float32(math.Float64frombits(aw))))
	case types.OpF64PromoteF32:
		return math.Float64bits(float64(math.Float32frombits(uint32(aw))))
	case types.OpI32ReinterpretF32, types.OpF32ReinterpretI32:
		return uint64(uint32(aw))
	case types.OpI64ReinterpretF64, types.OpF64ReinterpretI64:
		return aw
	}
	panic("unreachable: unhandled conversion " + op.Name())
}
