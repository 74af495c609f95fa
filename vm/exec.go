package vm

import (
	"github.com/vertexdlt/wasmcore/types"
)

// MaxCallDepth bounds nested wasm-to-wasm calls, standing in for a real
// stack-overflow guard (spec §7 "call stack exhausted"): a module that
// recurses without bound traps instead of crashing the host process.
const MaxCallDepth = 2048

// ExecContext carries the state shared by every call in one Execute tree:
// the call-depth counter guarding against unbounded recursion, and an
// optional gas budget consulted once per executed instruction.
type ExecContext struct {
	Policy GasPolicy
	Gas    Gas
	depth  int
}

// NewExecContext builds a context with the given gas policy; a nil policy
// behaves like FreeGasPolicy (metering never kicks in). Set ctx.Gas.Limit
// after construction to bound consumption; a zero Limit means unlimited.
func NewExecContext(policy GasPolicy) *ExecContext {
	if policy == nil {
		policy = &FreeGasPolicy{}
	}
	return &ExecContext{Policy: policy}
}

func (c *ExecContext) chargeGas(op types.Opcode) {
	cost := c.Policy.GetCostForOp(op)
	if cost == 0 {
		return
	}
	c.Gas.Used += cost
	if c.Gas.Limit > 0 && c.Gas.Used > c.Gas.Limit {
		trap(types.TrapOutOfGas)
	}
}

func (c *ExecContext) chargeMalloc(pages int) {
	cost := c.Policy.GetCostForMalloc(pages)
	if cost == 0 {
		return
	}
	c.Gas.Used += cost
	if c.Gas.Limit > 0 && c.Gas.Used > c.Gas.Limit {
		trap(types.TrapOutOfGas)
	}
}

// Execute invokes the exported or internal function at funcIdx on inst with
// args, running it to completion and returning its results, or the trap
// (or host-import error) that aborted it (spec §6 "invocation").
func Execute(inst *Instance, funcIdx uint32, args []types.Value, ctx *ExecContext) (ExecutionResult, error) {
	if ctx == nil {
		ctx = NewExecContext(nil)
	}
	return runProtected(func() ExecutionResult {
		e := &engine{inst: inst, ctx: ctx, stack: NewStack(256)}
		for _, a := range args {
			e.stack.Push(a.Bits())
		}
		e.invoke(funcIdx)

		b := inst.funcs[funcIdx]
		results := make([]types.Value, len(b.sig.Results))
		words := e.stack.PopN(len(b.sig.Results))
		for i, t := range b.sig.Results {
			results[i] = types.ValueFromBits(t, words[i])
		}
		return ExecutionResult{Results: results}
	})
}

// engine is the interpreter's mutable execution state for one Execute call
// tree: the shared operand/locals Stack plus the instance and context it
// runs against.
type engine struct {
	inst  *Instance
	ctx   *ExecContext
	stack *Stack
}

// invoke runs the function at funcIdx. Its arguments must already occupy
// the top len(sig.Params) words of e.stack; on return those words have
// been replaced by exactly len(sig.Results) result words.
func (e *engine) invoke(funcIdx uint32) {
	e.ctx.depth++
	if e.ctx.depth > MaxCallDepth {
		e.ctx.depth--
		trap(types.TrapCallStackExhausted)
	}
	defer func() { e.ctx.depth-- }()

	b := e.inst.funcs[funcIdx]
	paramCount := len(b.sig.Params)
	localsBase := e.stack.Len() - paramCount

	if b.host != nil {
		args := make([]types.Value, paramCount)
		for i, pt := range b.sig.Params {
			args[i] = types.ValueFromBits(pt, e.stack.At(localsBase+i))
		}
		e.stack.Truncate(localsBase)
		results, err := b.host(e.ctx, e.inst, args)
		if err != nil {
			abortHost(err)
		}
		for _, r := range results {
			e.stack.Push(r.Bits())
		}
		return
	}

	code := e.inst.Module.Code[b.codeIdx]
	declared := int(code.NumLocals) - paramCount
	e.stack.Grow(declared)
	e.stack.Grow(1) // sentinel: never read or written by correct bytecode

	frame := &Frame{
		funcIdx:     funcIdx,
		bytecode:    code.Bytecode,
		localsBase:  localsBase,
		resultCount: len(b.sig.Results),
	}
	e.run(frame)

	resultCount := len(b.sig.Results)
	e.stack.Drop(resultCount, e.stack.Len()-resultCount-localsBase)
}

// run executes frame's bytecode until it reaches the function's trailing
// (always-emitted) return instruction.
func (e *engine) run(frame *Frame) {
	for {
		op := types.Opcode(frame.readByte())
		e.ctx.chargeGas(op)

		switch op {
		case types.OpUnreachable:
			trap(types.TrapUnreachable)

		case types.OpIf:
			target := frame.readU32()
			cond := e.stack.Pop()
			if cond == 0 {
				frame.jump(target)
			}

		case types.OpElse:
			target := frame.readU32()
			frame.jump(target)

		case types.OpBr:
			target, arity, drop := frame.readU32(), frame.readU32(), frame.readU32()
			e.stack.Drop(int(arity), int(drop))
			frame.jump(target)

		case types.OpBrIf:
			target, arity, drop := frame.readU32(), frame.readU32(), frame.readU32()
			cond := e.stack.Pop()
			if cond != 0 {
				e.stack.Drop(int(arity), int(drop))
				frame.jump(target)
			}

		case types.OpBrTable:
			count := frame.readU32()
			type jt struct{ target, arity, drop uint32 }
			targets := make([]jt, count)
			for i := range targets {
				targets[i] = jt{frame.readU32(), frame.readU32(), frame.readU32()}
			}
			def := jt{frame.readU32(), frame.readU32(), frame.readU32()}
			idx := uint32(e.stack.Pop())
			sel := def
			if idx < count {
				sel = targets[idx]
			}
			e.stack.Drop(int(sel.arity), int(sel.drop))
			frame.jump(sel.target)

		case types.OpReturn:
			return

		case types.OpCall:
			idx := frame.readU32()
			e.invoke(idx)

		case types.OpCallIndirect:
			typeIdx := frame.readU32()
			e.callIndirect(typeIdx)

		case types.OpDrop:
			e.stack.Pop()

		case types.OpSelect:
			cond := e.stack.Pop()
			b := e.stack.Pop()
			a := e.stack.Pop()
			if cond != 0 {
				e.stack.Push(a)
			} else {
				e.stack.Push(b)
			}

		case types.OpLocalGet:
			idx := frame.readU32()
			e.stack.Push(e.stack.At(frame.localsBase + int(idx)))

		case types.OpLocalSet:
			idx := frame.readU32()
			e.stack.Set(frame.localsBase+int(idx), e.stack.Pop())

		case types.OpLocalTee:
			idx := frame.readU32()
			e.stack.Set(frame.localsBase+int(idx), e.stack.Peek(0))

		case types.OpGlobalGet:
			idx := frame.readU32()
			e.stack.Push(e.inst.globals[idx].bits)

		case types.OpGlobalSet:
			idx := frame.readU32()
			e.inst.globals[idx].bits = e.stack.Pop()

		case types.OpMemorySize:
			e.stack.Push(uint64(e.inst.memory.Pages()))

		case types.OpMemoryGrow:
			delta := uint32(e.stack.Pop())
			e.ctx.chargeMalloc(int(delta))
			e.stack.Push(uint64(uint32(e.inst.memory.Grow(delta))))

		case types.OpI32Const:
			e.stack.Push(uint64(uint32(frame.readU32())))

		case types.OpI64Const:
			e.stack.Push(frame.readU64())

		case types.OpF32Const:
			e.stack.Push(uint64(frame.readU32()))

		case types.OpF64Const:
			e.stack.Push(frame.readU64())

		default:
			if ma, ok := types.LookupMemAccess(op); ok {
				e.memAccess(frame, op, ma)
				continue
			}
			e.numericOp(op)
		}
	}
}

func (e *engine) callIndirect(typeIdx uint32) {
	idx := uint32(e.stack.Pop())
	tbl := e.inst.table
	if tbl == nil || int(idx) >= len(tbl.Funcs) {
		trap(types.TrapOutOfBoundsTableAccess)
	}
	fidx := tbl.Funcs[idx]
	if fidx < 0 {
		trap(types.TrapUninitializedElement)
	}
	want, _ := e.inst.Module.TypeByIndex(typeIdx)
	got := e.inst.funcs[fidx].sig
	if !sameFuncType(want, got) {
		trap(types.TrapIndirectCallTypeMismatch)
	}
	e.invoke(uint32(fidx))
}

func sameFuncType(a, b types.FuncType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}

func (e *engine) memAccess(frame *Frame, op types.Opcode, ma types.MemAccess) {
	offset := frame.readU32()
	mem := e.inst.memory

	if ma.IsStore {
		value := e.stack.Pop()
		base := uint32(e.stack.Pop())
		addr, ok := effectiveAddr(base, offset, ma.WidthBytes, len(mem.Data))
		if !ok {
			trap(types.TrapOutOfBoundsMemoryAccess)
		}
		storeBytes(mem.Data[addr:], value, ma.WidthBytes)
		return
	}

	base := uint32(e.stack.Pop())
	addr, ok := effectiveAddr(base, offset, ma.WidthBytes, len(mem.Data))
	if !ok {
		trap(types.TrapOutOfBoundsMemoryAccess)
	}
	e.stack.Push(loadBytes(mem.Data[addr:], ma))
}

func effectiveAddr(base, offset uint32, width int, memLen int) (uint32, bool) {
	eff := uint64(base) + uint64(offset)
	if eff+uint64(width) > uint64(memLen) {
		return 0, false
	}
	return uint32(eff), true
}

func storeBytes(dst []byte, value uint64, width int) {
	for i := 0; i < width; i++ {
		dst[i] = byte(value >> (8 * uint(i)))
	}
}

func loadBytes(src []byte, ma types.MemAccess) uint64 {
	var raw uint64
	for i := 0; i < ma.WidthBytes; i++ {
		raw |= uint64(src[i]) << (8 * uint(i))
	}
	if ma.WidthBytes == 8 || !ma.Signed {
		return raw
	}
	// Narrow signed load: sign-extend from the access width up to the
	// destination value type's width.
	shift := uint(64 - 8*ma.WidthBytes)
	signExtended := uint64(int64(raw<<shift) >> shift)
	if ma.ValType == types.I32 {
		return uint64(uint32(signExtended))
	}
	return signExtended
}

// numericOp dispatches every opcode whose behavior only depends on its two
// (or one) popped operand words: comparisons, arithmetic, and conversions.
func (e *engine) numericOp(op types.Opcode) {
	it, ok := types.LookupInstrType(op)
	if !ok {
		panic("interpreter bug: opcode not recognized by validator either: " + op.Name())
	}

	switch len(it.Inputs) {
	case 1:
		a := e.stack.Pop()
		e.stack.Push(unaryNumeric(op, a))
	case 2:
		b := e.stack.Pop()
		a := e.stack.Pop()
		e.stack.Push(binaryNumeric(op, a, b))
	default:
		panic("interpreter bug: unexpected arity for " + op.Name())
	}
}

func unaryNumeric(op types.Opcode, a uint64) uint64 {
	switch {
	case op == types.OpI32Eqz:
		return boolWord(uint32(a) == 0)
	case op == types.OpI64Eqz:
		return boolWord(a == 0)
	case types.OpI32Clz <= op && op <= types.OpI32Popcnt:
		return i32UnOp(op, a)
	case types.OpI64Clz <= op && op <= types.OpI64Popcnt:
		return i64UnOp(op, a)
	case types.OpF32Abs <= op && op <= types.OpF32Sqrt:
		return f32UnOp(op, a)
	case types.OpF64Abs <= op && op <= types.OpF64Sqrt:
		return f64UnOp(op, a)
	case types.OpI32TruncF32S <= op && op <= types.OpI64TruncF64U:
		return truncToInt(op, a)
	default:
		return convert(op, a)
	}
}

func binaryNumeric(op types.Opcode, a, b uint64) uint64 {
	switch {
	case types.OpI32Eq <= op && op <= types.OpI32GeU:
		return i32CmpOp(op, a, b)
	case types.OpI64Eq <= op && op <= types.OpI64GeU:
		return i64CmpOp(op, a, b)
	case types.OpF32Eq <= op && op <= types.OpF32Ge:
		return f32CmpOp(op, a, b)
	case types.OpF64Eq <= op && op <= types.OpF64Ge:
		return f64CmpOp(op, a, b)
	case types.OpI32Add <= op && op <= types.OpI32Rotr:
		return i32BinOp(op, a, b)
	case types.OpI64Add <= op && op <= types.OpI64Rotr:
		return i64BinOp(op, a, b)
	case types.OpF32Add <= op && op <= types.OpF32Copysign:
		return f32BinOp(op, a, b)
	default:
		return f64BinOp(op, a, b)
	}
}
