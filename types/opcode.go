package types

import "fmt"

// Opcode is a WebAssembly 1.0 instruction byte.
type Opcode byte

// Control instructions.
const (
	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpBlock       Opcode = 0x02
	OpLoop        Opcode = 0x03
	OpIf          Opcode = 0x04
	OpElse        Opcode = 0x05
	OpEnd         Opcode = 0x0B
	OpBr          Opcode = 0x0C
	OpBrIf        Opcode = 0x0D
	OpBrTable     Opcode = 0x0E
	OpReturn      Opcode = 0x0F
	OpCall        Opcode = 0x10
	OpCallIndirect Opcode = 0x11
)

// Parametric instructions.
const (
	OpDrop   Opcode = 0x1A
	OpSelect Opcode = 0x1B
)

// Variable instructions.
const (
	OpLocalGet  Opcode = 0x20
	OpLocalSet  Opcode = 0x21
	OpLocalTee  Opcode = 0x22
	OpGlobalGet Opcode = 0x23
	OpGlobalSet Opcode = 0x24
)

// Memory instructions.
const (
	OpI32Load    Opcode = 0x28
	OpI64Load    Opcode = 0x29
	OpF32Load    Opcode = 0x2A
	OpF64Load    Opcode = 0x2B
	OpI32Load8S  Opcode = 0x2C
	OpI32Load8U  Opcode = 0x2D
	OpI32Load16S Opcode = 0x2E
	OpI32Load16U Opcode = 0x2F
	OpI64Load8S  Opcode = 0x30
	OpI64Load8U  Opcode = 0x31
	OpI64Load16S Opcode = 0x32
	OpI64Load16U Opcode = 0x33
	OpI64Load32S Opcode = 0x34
	OpI64Load32U Opcode = 0x35
	OpI32Store   Opcode = 0x36
	OpI64Store   Opcode = 0x37
	OpF32Store   Opcode = 0x38
	OpF64Store   Opcode = 0x39
	OpI32Store8  Opcode = 0x3A
	OpI32Store16 Opcode = 0x3B
	OpI64Store8  Opcode = 0x3C
	OpI64Store16 Opcode = 0x3D
	OpI64Store32 Opcode = 0x3E
	OpMemorySize Opcode = 0x3F
	OpMemoryGrow Opcode = 0x40
)

// Numeric const instructions.
const (
	OpI32Const Opcode = 0x41
	OpI64Const Opcode = 0x42
	OpF32Const Opcode = 0x43
	OpF64Const Opcode = 0x44
)

// i32 comparisons.
const (
	OpI32Eqz Opcode = 0x45
	OpI32Eq  Opcode = 0x46
	OpI32Ne  Opcode = 0x47
	OpI32LtS Opcode = 0x48
	OpI32LtU Opcode = 0x49
	OpI32GtS Opcode = 0x4A
	OpI32GtU Opcode = 0x4B
	OpI32LeS Opcode = 0x4C
	OpI32LeU Opcode = 0x4D
	OpI32GeS Opcode = 0x4E
	OpI32GeU Opcode = 0x4F
)

// i64 comparisons.
const (
	OpI64Eqz Opcode = 0x50
	OpI64Eq  Opcode = 0x51
	OpI64Ne  Opcode = 0x52
	OpI64LtS Opcode = 0x53
	OpI64LtU Opcode = 0x54
	OpI64GtS Opcode = 0x55
	OpI64GtU Opcode = 0x56
	OpI64LeS Opcode = 0x57
	OpI64LeU Opcode = 0x58
	OpI64GeS Opcode = 0x59
	OpI64GeU Opcode = 0x5A
)

// f32/f64 comparisons.
const (
	OpF32Eq Opcode = 0x5B
	OpF32Ne Opcode = 0x5C
	OpF32Lt Opcode = 0x5D
	OpF32Gt Opcode = 0x5E
	OpF32Le Opcode = 0x5F
	OpF32Ge Opcode = 0x60
	OpF64Eq Opcode = 0x61
	OpF64Ne Opcode = 0x62
	OpF64Lt Opcode = 0x63
	OpF64Gt Opcode = 0x64
	OpF64Le Opcode = 0x65
	OpF64Ge Opcode = 0x66
)

// i32 arithmetic.
const (
	OpI32Clz    Opcode = 0x67
	OpI32Ctz    Opcode = 0x68
	OpI32Popcnt Opcode = 0x69
	OpI32Add    Opcode = 0x6A
	OpI32Sub    Opcode = 0x6B
	OpI32Mul    Opcode = 0x6C
	OpI32DivS   Opcode = 0x6D
	OpI32DivU   Opcode = 0x6E
	OpI32RemS   Opcode = 0x6F
	OpI32RemU   Opcode = 0x70
	OpI32And    Opcode = 0x71
	OpI32Or     Opcode = 0x72
	OpI32Xor    Opcode = 0x73
	OpI32Shl    Opcode = 0x74
	OpI32ShrS   Opcode = 0x75
	OpI32ShrU   Opcode = 0x76
	OpI32Rotl   Opcode = 0x77
	OpI32Rotr   Opcode = 0x78
)

// i64 arithmetic.
const (
	OpI64Clz    Opcode = 0x79
	OpI64Ctz    Opcode = 0x7A
	OpI64Popcnt Opcode = 0x7B
	OpI64Add    Opcode = 0x7C
	OpI64Sub    Opcode = 0x7D
	OpI64Mul    Opcode = 0x7E
	OpI64DivS   Opcode = 0x7F
	OpI64DivU   Opcode = 0x80
	OpI64RemS   Opcode = 0x81
	OpI64RemU   Opcode = 0x82
	OpI64And    Opcode = 0x83
	OpI64Or     Opcode = 0x84
	OpI64Xor    Opcode = 0x85
	OpI64Shl    Opcode = 0x86
	OpI64ShrS   Opcode = 0x87
	OpI64ShrU   Opcode = 0x88
	OpI64Rotl   Opcode = 0x89
	OpI64Rotr   Opcode = 0x8A
)

// f32 arithmetic.
const (
	OpF32Abs      Opcode = 0x8B
	OpF32Neg      Opcode = 0x8C
	OpF32Ceil     Opcode = 0x8D
	OpF32Floor    Opcode = 0x8E
	OpF32Trunc    Opcode = 0x8F
	OpF32Nearest  Opcode = 0x90
	OpF32Sqrt     Opcode = 0x91
	OpF32Add      Opcode = 0x92
	OpF32Sub      Opcode = 0x93
	OpF32Mul      Opcode = 0x94
	OpF32Div      Opcode = 0x95
	OpF32Min      Opcode = 0x96
	OpF32Max      Opcode = 0x97
	OpF32Copysign Opcode = 0x98
)

// f64 arithmetic.
const (
	OpF64Abs      Opcode = 0x99
	OpF64Neg      Opcode = 0x9A
	OpF64Ceil     Opcode = 0x9B
	OpF64Floor    Opcode = 0x9C
	OpF64Trunc    Opcode = 0x9D
	OpF64Nearest  Opcode = 0x9E
	OpF64Sqrt     Opcode = 0x9F
	OpF64Add      Opcode = 0xA0
	OpF64Sub      Opcode = 0xA1
	OpF64Mul      Opcode = 0xA2
	OpF64Div      Opcode = 0xA3
	OpF64Min      Opcode = 0xA4
	OpF64Max      Opcode = 0xA5
	OpF64Copysign Opcode = 0xA6
)

// Conversions.
const (
	OpI32WrapI64        Opcode = 0xA7
	OpI32TruncF32S      Opcode = 0xA8
	OpI32TruncF32U      Opcode = 0xA9
	OpI32TruncF64S      Opcode = 0xAA
	OpI32TruncF64U      Opcode = 0xAB
	OpI64ExtendI32S     Opcode = 0xAC
	OpI64ExtendI32U     Opcode = 0xAD
	OpI64TruncF32S      Opcode = 0xAE
	OpI64TruncF32U      Opcode = 0xAF
	OpI64TruncF64S      Opcode = 0xB0
	OpI64TruncF64U      Opcode = 0xB1
	OpF32ConvertI32S    Opcode = 0xB2
	OpF32ConvertI32U    Opcode = 0xB3
	OpF32ConvertI64S    Opcode = 0xB4
	OpF32ConvertI64U    Opcode = 0xB5
	OpF32DemoteF64      Opcode = 0xB6
	OpF64ConvertI32S    Opcode = 0xB7
	OpF64ConvertI32U    Opcode = 0xB8
	OpF64ConvertI64S    Opcode = 0xB9
	OpF64ConvertI64U    Opcode = 0xBA
	OpF64PromoteF32     Opcode = 0xBB
	OpI32ReinterpretF32 Opcode = 0xBC
	OpI64ReinterpretF64 Opcode = 0xBD
	OpF32ReinterpretI32 Opcode = 0xBE
	OpF64ReinterpretI64 Opcode = 0xBF
)

var opcodeNames = map[Opcode]string{}

func init() {
	for op, info := range instrTypes {
		opcodeNames[op] = info.Name
	}
	extra := map[Opcode]string{
		OpUnreachable: "unreachable", OpNop: "nop", OpBlock: "block", OpLoop: "loop",
		OpIf: "if", OpElse: "else", OpEnd: "end", OpBr: "br", OpBrIf: "br_if",
		OpBrTable: "br_table", OpReturn: "return", OpCall: "call", OpCallIndirect: "call_indirect",
		OpDrop: "drop", OpSelect: "select",
		OpLocalGet: "local.get", OpLocalSet: "local.set", OpLocalTee: "local.tee",
		OpGlobalGet: "global.get", OpGlobalSet: "global.set",
		OpI32Const: "i32.const", OpI64Const: "i64.const", OpF32Const: "f32.const", OpF64Const: "f64.const",
		OpMemorySize: "memory.size", OpMemoryGrow: "memory.grow",
	}
	for op, name := range extra {
		opcodeNames[op] = name
	}
	for op, info := range memoryOps {
		opcodeNames[op] = info.Name
	}
}

// Name returns a human-readable mnemonic for op, or a numeric fallback.
func (op Opcode) Name() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return fmt.Sprintf("opcode(0x%02x)", byte(op))
}

// InstrType is the declared input/output shape of a non-structural,
// non-polymorphic instruction, used by the validator's table-driven
// per-instruction rule (spec §4.3).
type InstrType struct {
	Name    string
	Inputs  []ValueType
	Output  *ValueType // nil if the instruction produces nothing
}

func out(v ValueType) *ValueType { return &v }

func binOp(name string, t ValueType) InstrType {
	return InstrType{Name: name, Inputs: []ValueType{t, t}, Output: out(t)}
}

func unOp(name string, t ValueType) InstrType {
	return InstrType{Name: name, Inputs: []ValueType{t}, Output: out(t)}
}

func cmpOp(name string, t ValueType) InstrType {
	return InstrType{Name: name, Inputs: []ValueType{t, t}, Output: out(I32)}
}

func testOp(name string, t ValueType) InstrType {
	return InstrType{Name: name, Inputs: []ValueType{t}, Output: out(I32)}
}

func convOp(name string, from, to ValueType) InstrType {
	return InstrType{Name: name, Inputs: []ValueType{from}, Output: out(to)}
}

// instrTypes is the instruction-type table for every opcode whose arity is
// fixed and known without looking at module context (i.e. everything except
// block/loop/if/else/br/br_if/br_table/call/call_indirect/drop/select/
// local.*/global.*/memory ops/consts, which the validator handles with
// bespoke structural rules per spec §4.3).
var instrTypes = map[Opcode]InstrType{
	OpI32Eqz: testOp("i32.eqz", I32),
	OpI32Eq:  cmpOp("i32.eq", I32), OpI32Ne: cmpOp("i32.ne", I32),
	OpI32LtS: cmpOp("i32.lt_s", I32), OpI32LtU: cmpOp("i32.lt_u", I32),
	OpI32GtS: cmpOp("i32.gt_s", I32), OpI32GtU: cmpOp("i32.gt_u", I32),
	OpI32LeS: cmpOp("i32.le_s", I32), OpI32LeU: cmpOp("i32.le_u", I32),
	OpI32GeS: cmpOp("i32.ge_s", I32), OpI32GeU: cmpOp("i32.ge_u", I32),

	OpI64Eqz: testOp("i64.eqz", I64),
	OpI64Eq:  cmpOp("i64.eq", I64), OpI64Ne: cmpOp("i64.ne", I64),
	OpI64LtS: cmpOp("i64.lt_s", I64), OpI64LtU: cmpOp("i64.lt_u", I64),
	OpI64GtS: cmpOp("i64.gt_s", I64), OpI64GtU: cmpOp("i64.gt_u", I64),
	OpI64LeS: cmpOp("i64.le_s", I64), OpI64LeU: cmpOp("i64.le_u", I64),
	OpI64GeS: cmpOp("i64.ge_s", I64), OpI64GeU: cmpOp("i64.ge_u", I64),

	OpF32Eq: cmpOp("f32.eq", F32), OpF32Ne: cmpOp("f32.ne", F32),
	OpF32Lt: cmpOp("f32.lt", F32), OpF32Gt: cmpOp("f32.gt", F32),
	OpF32Le: cmpOp("f32.le", F32), OpF32Ge: cmpOp("f32.ge", F32),
	OpF64Eq: cmpOp("f64.eq", F64), OpF64Ne: cmpOp("f64.ne", F64),
	OpF64Lt: cmpOp("f64.lt", F64), OpF64Gt: cmpOp("f64.gt", F64),
	OpF64Le: cmpOp("f64.le", F64), OpF64Ge: cmpOp("f64.ge", F64),

	OpI32Clz: unOp("i32.clz", I32), OpI32Ctz: unOp("i32.ctz", I32), OpI32Popcnt: unOp("i32.popcnt", I32),
	OpI32Add: binOp("i32.add", I32), OpI32Sub: binOp("i32.sub", I32), OpI32Mul: binOp("i32.mul", I32),
	OpI32DivS: binOp("i32.div_s", I32), OpI32DivU: binOp("i32.div_u", I32),
	OpI32RemS: binOp("i32.rem_s", I32), OpI32RemU: binOp("i32.rem_u", I32),
	OpI32And: binOp("i32.and", I32), OpI32Or: binOp("i32.or", I32), OpI32Xor: binOp("i32.xor", I32),
	OpI32Shl: binOp("i32.shl", I32), OpI32ShrS: binOp("i32.shr_s", I32), OpI32ShrU: binOp("i32.shr_u", I32),
	OpI32Rotl: binOp("i32.rotl", I32), OpI32Rotr: binOp("i32.rotr", I32),

	OpI64Clz: unOp("i64.clz", I64), OpI64Ctz: unOp("i64.ctz", I64), OpI64Popcnt: unOp("i64.popcnt", I64),
	OpI64Add: binOp("i64.add", I64), OpI64Sub: binOp("i64.sub", I64), OpI64Mul: binOp("i64.mul", I64),
	OpI64DivS: binOp("i64.div_s", I64), OpI64DivU: binOp("i64.div_u", I64),
	OpI64RemS: binOp("i64.rem_s", I64), OpI64RemU: binOp("i64.rem_u", I64),
	OpI64And: binOp("i64.and", I64), OpI64Or: binOp("i64.or", I64), OpI64Xor: binOp("i64.xor", I64),
	OpI64Shl: binOp("i64.shl", I64), OpI64ShrS: binOp("i64.shr_s", I64), OpI64ShrU: binOp("i64.shr_u", I64),
	OpI64Rotl: binOp("i64.rotl", I64), OpI64Rotr: binOp("i64.rotr", I64),

	OpF32Abs: unOp("f32.abs", F32), OpF32Neg: unOp("f32.neg", F32),
	OpF32Ceil: unOp("f32.ceil", F32), OpF32Floor: unOp("f32.floor", F32),
	OpF32Trunc: unOp("f32.trunc", F32), OpF32Nearest: unOp("f32.nearest", F32), OpF32Sqrt: unOp("f32.sqrt", F32),
	OpF32Add: binOp("f32.add", F32), OpF32Sub: binOp("f32.sub", F32),
	OpF32Mul: binOp("f32.mul", F32), OpF32Div: binOp("f32.div", F32),
	OpF32Min: binOp("f32.min", F32), OpF32Max: binOp("f32.max", F32), OpF32Copysign: binOp("f32.copysign", F32),

	OpF64Abs: unOp("f64.abs", F64), OpF64Neg: unOp("f64.neg", F64),
	OpF64Ceil: unOp("f64.ceil", F64), OpF64Floor: unOp("f64.floor", F64),
	OpF64Trunc: unOp("f64.trunc", F64), OpF64Nearest: unOp("f64.nearest", F64), OpF64Sqrt: unOp("f64.sqrt", F64),
	OpF64Add: binOp("f64.add", F64), OpF64Sub: binOp("f64.sub", F64),
	OpF64Mul: binOp("f64.mul", F64), OpF64Div: binOp("f64.div", F64),
	OpF64Min: binOp("f64.min", F64), OpF64Max: binOp("f64.max", F64), OpF64Copysign: binOp("f64.copysign", F64),

	OpI32WrapI64:     convOp("i32.wrap_i64", I64, I32),
	OpI32TruncF32S:   convOp("i32.trunc_f32_s", F32, I32),
	OpI32TruncF32U:   convOp("i32.trunc_f32_u", F32, I32),
	OpI32TruncF64S:   convOp("i32.trunc_f64_s", F64, I32),
	OpI32TruncF64U:   convOp("i32.trunc_f64_u", F64, I32),
	OpI64ExtendI32S:  convOp("i64.extend_i32_s", I32, I64),
	OpI64ExtendI32U:  convOp("i64.extend_i32_u", I32, I64),
	OpI64TruncF32S:   convOp("i64.trunc_f32_s", F32, I64),
	OpI64TruncF32U:   convOp("i64.trunc_f32_u", F32, I64),
	OpI64TruncF64S:   convOp("i64.trunc_f64_s", F64, I64),
	OpI64TruncF64U:   convOp("i64.trunc_f64_u", F64, I64),
	OpF32ConvertI32S: convOp("f32.convert_i32_s", I32, F32),
	OpF32ConvertI32U: convOp("f32.convert_i32_u", I32, F32),
	OpF32ConvertI64S: convOp("f32.convert_i64_s", I64, F32),
	OpF32ConvertI64U: convOp("f32.convert_i64_u", I64, F32),
	OpF32DemoteF64:   convOp("f32.demote_f64", F64, F32),
	OpF64ConvertI32S: convOp("f64.convert_i32_s", I32, F64),
	OpF64ConvertI32U: convOp("f64.convert_i32_u", I32, F64),
	OpF64ConvertI64S: convOp("f64.convert_i64_s", I64, F64),
	OpF64ConvertI64U: convOp("f64.convert_i64_u", I64, F64),
	OpF64PromoteF32:  convOp("f64.promote_f32", F32, F64),

	OpI32ReinterpretF32: convOp("i32.reinterpret_f32", F32, I32),
	OpI64ReinterpretF64: convOp("i64.reinterpret_f64", F64, I64),
	OpF32ReinterpretI32: convOp("f32.reinterpret_i32", I32, F32),
	OpF64ReinterpretI64: convOp("f64.reinterpret_i64", I64, F64),
}

// LookupInstrType returns the fixed input/output shape for a non-structural,
// non-polymorphic opcode.
func LookupInstrType(op Opcode) (InstrType, bool) {
	t, ok := instrTypes[op]
	return t, ok
}

// MemAccess describes a memory instruction's access width and value type,
// used both by the validator (alignment-hint bound, spec §4.3) and the
// interpreter (load/store width and sign extension, spec §4.5).
type MemAccess struct {
	Name       string
	ValType    ValueType
	WidthBytes int // width of the memory access itself
	IsStore    bool
	Signed     bool // for narrow loads: sign- vs zero-extend
}

var memoryOps = map[Opcode]MemAccess{
	OpI32Load:    {"i32.load", I32, 4, false, false},
	OpI64Load:    {"i64.load", I64, 8, false, false},
	OpF32Load:    {"f32.load", F32, 4, false, false},
	OpF64Load:    {"f64.load", F64, 8, false, false},
	OpI32Load8S:  {"i32.load8_s", I32, 1, false, true},
	OpI32Load8U:  {"i32.load8_u", I32, 1, false, false},
	OpI32Load16S: {"i32.load16_s", I32, 2, false, true},
	OpI32Load16U: {"i32.load16_u", I32, 2, false, false},
	OpI64Load8S:  {"i64.load8_s", I64, 1, false, true},
	OpI64Load8U:  {"i64.load8_u", I64, 1, false, false},
	OpI64Load16S: {"i64.load16_s", I64, 2, false, true},
	OpI64Load16U: {"i64.load16_u", I64, 2, false, false},
	OpI64Load32S: {"i64.load32_s", I64, 4, false, true},
	OpI64Load32U: {"i64.load32_u", I64, 4, false, false},
	OpI32Store:   {"i32.store", I32, 4, true, false},
	OpI64Store:   {"i64.store", I64, 8, true, false},
	OpF32Store:   {"f32.store", F32, 4, true, false},
	OpF64Store:   {"f64.store", F64, 8, true, false},
	OpI32Store8:  {"i32.store8", I32, 1, true, false},
	OpI32Store16: {"i32.store16", I32, 2, true, false},
	OpI64Store8:  {"i64.store8", I64, 1, true, false},
	OpI64Store16: {"i64.store16", I64, 2, true, false},
	OpI64Store32: {"i64.store32", I64, 4, true, false},
}

// LookupMemAccess returns the access description for a load/store opcode.
func LookupMemAccess(op Opcode) (MemAccess, bool) {
	m, ok := memoryOps[op]
	return m, ok
}

// NaturalAlignment returns the maximum alignment hint a memory instruction's
// access width permits (log2 of the access width in bytes), per spec §4.3.
func NaturalAlignment(widthBytes int) uint32 {
	switch widthBytes {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		panic(fmt.Sprintf("invalid access width %d", widthBytes))
	}
}
