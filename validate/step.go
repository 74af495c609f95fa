package validate

import (
	"github.com/vertexdlt/wasmcore/leb128"
	"github.com/vertexdlt/wasmcore/types"
)

// step type-checks and re-emits one instruction, grounded on wagon's
// verifyBody opcode switch but driving a concrete re-emission pass
// instead of a pure type check.
func (v *validator) step(op types.Opcode) error {
	it, hasType := types.LookupInstrType(op)

	switch op {
	case types.OpUnreachable:
		v.em.byte(byte(op))
		v.setUnreachable()
		return nil

	case types.OpNop:
		return nil

	case types.OpBlock, types.OpLoop, types.OpIf:
		return v.stepStructural(op)

	case types.OpElse:
		return v.stepElse()

	case types.OpEnd:
		return v.stepEnd()

	case types.OpBr:
		return v.stepBr(op, false)
	case types.OpBrIf:
		return v.stepBr(op, true)
	case types.OpBrTable:
		return v.stepBrTable()

	case types.OpReturn:
		for i := len(v.sig.Results) - 1; i >= 0; i-- {
			if _, err := v.popExpect(v.sig.Results[i]); err != nil {
				return err
			}
		}
		v.em.byte(byte(op))
		v.setUnreachable()
		return nil

	case types.OpCall:
		return v.stepCall()
	case types.OpCallIndirect:
		return v.stepCallIndirect()

	case types.OpDrop:
		if _, err := v.popVal(); err != nil {
			return err
		}
		v.em.byte(byte(op))
		return nil

	case types.OpSelect:
		if _, err := v.popExpect(types.I32); err != nil {
			return err
		}
		b, err := v.popVal()
		if err != nil {
			return err
		}
		a, err := v.popExpect(b)
		if err != nil {
			return err
		}
		v.pushVal(a)
		v.em.byte(byte(op))
		return nil

	case types.OpLocalGet:
		return v.stepLocal(op, false, false)
	case types.OpLocalSet:
		return v.stepLocal(op, true, false)
	case types.OpLocalTee:
		return v.stepLocal(op, true, true)

	case types.OpGlobalGet:
		return v.stepGlobal(op, false)
	case types.OpGlobalSet:
		return v.stepGlobal(op, true)

	case types.OpMemorySize:
		if !v.ctx.HasMemory() {
			return errf("memory.size: module has no memory")
		}
		reserved, err := v.r.ReadByte()
		if err != nil {
			return err
		}
		if reserved != 0x00 {
			return errf("memory.size: reserved byte must be 0")
		}
		v.pushVal(types.I32)
		v.em.byte(byte(op))
		return nil

	case types.OpMemoryGrow:
		if !v.ctx.HasMemory() {
			return errf("memory.grow: module has no memory")
		}
		reserved, err := v.r.ReadByte()
		if err != nil {
			return err
		}
		if reserved != 0x00 {
			return errf("memory.grow: reserved byte must be 0")
		}
		if _, err := v.popExpect(types.I32); err != nil {
			return err
		}
		v.pushVal(types.I32)
		v.em.byte(byte(op))
		return nil

	case types.OpI32Const:
		c, err := leb128.ReadS32(v.r)
		if err != nil {
			return err
		}
		v.pushVal(types.I32)
		v.em.byte(byte(op))
		v.em.i32(c)
		return nil

	case types.OpI64Const:
		c, err := leb128.ReadS64(v.r)
		if err != nil {
			return err
		}
		v.pushVal(types.I64)
		v.em.byte(byte(op))
		v.em.i64(c)
		return nil

	case types.OpF32Const:
		bits, err := v.r.ReadFixed32()
		if err != nil {
			return err
		}
		v.pushVal(types.F32)
		v.em.byte(byte(op))
		v.em.u32(bits)
		return nil

	case types.OpF64Const:
		bits, err := v.r.ReadFixed64()
		if err != nil {
			return err
		}
		v.pushVal(types.F64)
		v.em.byte(byte(op))
		v.em.u64(bits)
		return nil
	}

	if ma, ok := types.LookupMemAccess(op); ok {
		return v.stepMemAccess(op, ma)
	}

	if hasType {
		for i := len(it.Inputs) - 1; i >= 0; i-- {
			if _, err := v.popExpect(it.Inputs[i]); err != nil {
				return err
			}
		}
		if it.Output != nil {
			v.pushVal(*it.Output)
		}
		v.em.byte(byte(op))
		return nil
	}

	return errf("unknown opcode 0x%02x", byte(op))
}

func (v *validator) stepStructural(op types.Opcode) error {
	b, err := v.r.ReadByte()
	if err != nil {
		return err
	}

	var endTypes []types.ValueType
	switch b {
	case types.BlockTypeEmpty:
		endTypes = nil
	default:
		vt, ok := types.ValueTypeFromByte(b)
		if !ok {
			return errf("invalid block type byte 0x%02x", b)
		}
		endTypes = []types.ValueType{vt}
	}

	if op == types.OpIf {
		if _, err := v.popExpect(types.I32); err != nil {
			return err
		}
	}

	frame := &ctrlFrame{
		opcode:    op,
		endTypes:  endTypes,
		isLoop:    op == types.OpLoop,
		height:    v.ops.len(),
		elsePatch: -1,
	}

	if op == types.OpIf {
		v.em.byte(byte(op))
		frame.elsePatch = v.em.u32Placeholder()
	} else if op == types.OpLoop {
		frame.labelTarget = v.em.pos()
	}

	v.ctrl.push(frame)
	return nil
}

func (v *validator) stepElse() error {
	f := v.ctrl.top()
	if f.opcode != types.OpIf {
		return errf("else without matching if")
	}
	if f.sawElse {
		return errf("duplicate else")
	}

	for i := len(f.endTypes) - 1; i >= 0; i-- {
		if _, err := v.popExpect(f.endTypes[i]); err != nil {
			return err
		}
	}
	if v.ops.len() != f.height {
		return errf("then branch falls through with unbalanced operand stack")
	}

	// The `then` arm, if reached, must fall through past the `else` arm:
	// emit an unconditional jump whose target is patched at `end`.
	v.em.byte(byte(types.OpElse))
	elseEndPatch := v.em.u32Placeholder()

	// The `if`'s false-branch target is exactly here: the first
	// instruction of the `else` arm.
	v.em.patchU32(f.elsePatch, uint32(v.em.pos()))

	reopened := &ctrlFrame{
		opcode:        types.OpIf,
		endTypes:      f.endTypes,
		height:        f.height,
		elsePatch:     -1,
		sawElse:       true,
		branchPatches: append([]int(nil), f.branchPatches...),
	}
	reopened.branchPatches = append(reopened.branchPatches, elseEndPatch)
	v.ops.truncate(f.height)
	v.ctrl.pop()
	v.ctrl.push(reopened)
	return nil
}

func (v *validator) stepEnd() error {
	f := v.ctrl.top()

	for i := len(f.endTypes) - 1; i >= 0; i-- {
		if _, err := v.popExpect(f.endTypes[i]); err != nil {
			return err
		}
	}
	if v.ops.len() != f.height {
		return errf("block falls through with unbalanced operand stack")
	}

	// An `if` with a result type must have taken an `else` arm.
	if f.opcode == types.OpIf && !f.sawElse && len(f.endTypes) > 0 {
		return errf("if without else cannot produce a result")
	}
	if f.opcode == types.OpIf && !f.sawElse {
		// No else arm taken: the false branch falls straight through to here.
		v.em.patchU32(f.elsePatch, uint32(v.em.pos()))
	}

	target := v.em.pos()
	for _, p := range f.branchPatches {
		v.em.patchU32(p, uint32(target))
	}

	v.ctrl.pop()
	for _, t := range f.endTypes {
		v.pushVal(t)
	}

	return nil
}

func (v *validator) stepBr(op types.Opcode, conditional bool) error {
	depth, err := leb128.ReadU32(v.r)
	if err != nil {
		return err
	}

	if conditional {
		if _, err := v.popExpect(types.I32); err != nil {
			return err
		}
	}

	f, arity, drop, err := v.resolveLabel(depth)
	if err != nil {
		return err
	}

	labelTypes := f.labelTypes()
	saved := make([]types.ValueType, len(labelTypes))
	for i := len(labelTypes) - 1; i >= 0; i-- {
		t, err := v.popExpect(labelTypes[i])
		if err != nil {
			return err
		}
		saved[i] = t
	}

	v.em.byte(byte(op))
	patch := v.em.u32Placeholder()
	v.em.u32(arity)
	v.em.u32(drop)
	if f.isLoop {
		v.em.patchU32(patch, uint32(f.labelTarget))
	} else {
		f.branchPatches = append(f.branchPatches, patch)
	}

	if conditional {
		for _, t := range saved {
			v.pushVal(t)
		}
	} else {
		v.setUnreachable()
	}
	return nil
}

func (v *validator) stepBrTable() error {
	count, err := leb128.ReadU32(v.r)
	if err != nil {
		return err
	}
	depths := make([]uint32, count)
	for i := range depths {
		d, err := leb128.ReadU32(v.r)
		if err != nil {
			return err
		}
		depths[i] = d
	}
	defaultDepth, err := leb128.ReadU32(v.r)
	if err != nil {
		return err
	}

	if _, err := v.popExpect(types.I32); err != nil {
		return err
	}

	defaultFrame, defaultArity, _, err := v.resolveLabel(defaultDepth)
	if err != nil {
		return err
	}
	defaultLabelTypes := defaultFrame.labelTypes()

	type target struct {
		frame *ctrlFrame
		arity uint32
		drop  uint32
	}
	targets := make([]target, count)
	for i, d := range depths {
		f, arity, drop, err := v.resolveLabel(d)
		if err != nil {
			return err
		}
		if arity != defaultArity {
			return errf("br_table: arity mismatch across targets")
		}
		lt := f.labelTypes()
		for j := range lt {
			if lt[j] != defaultLabelTypes[j] {
				return errf("br_table: label type mismatch across targets")
			}
		}
		targets[i] = target{f, arity, drop}
	}

	for i := len(defaultLabelTypes) - 1; i >= 0; i-- {
		if _, err := v.popExpect(defaultLabelTypes[i]); err != nil {
			return err
		}
	}

	v.em.byte(byte(types.OpBrTable))
	v.em.u32(count)
	for _, t := range targets {
		patch := v.em.u32Placeholder()
		v.em.u32(t.arity)
		v.em.u32(t.drop)
		if t.frame.isLoop {
			v.em.patchU32(patch, uint32(t.frame.labelTarget))
		} else {
			t.frame.branchPatches = append(t.frame.branchPatches, patch)
		}
	}
	_, defaultArityOut, defaultDrop, _ := v.resolveLabel(defaultDepth)
	patch := v.em.u32Placeholder()
	v.em.u32(defaultArityOut)
	v.em.u32(defaultDrop)
	if defaultFrame.isLoop {
		v.em.patchU32(patch, uint32(defaultFrame.labelTarget))
	} else {
		defaultFrame.branchPatches = append(defaultFrame.branchPatches, patch)
	}

	v.setUnreachable()
	return nil
}

func (v *validator) stepCall() error {
	idx, err := leb128.ReadU32(v.r)
	if err != nil {
		return err
	}
	ft, ok := v.ctx.FuncTypeByIndex(idx)
	if !ok {
		return errf("call: function index %d out of range", idx)
	}
	for i := len(ft.Params) - 1; i >= 0; i-- {
		if _, err := v.popExpect(ft.Params[i]); err != nil {
			return err
		}
	}
	for _, t := range ft.Results {
		v.pushVal(t)
	}
	v.em.byte(byte(types.OpCall))
	v.em.u32(idx)
	return nil
}

func (v *validator) stepCallIndirect() error {
	typeIdx, err := leb128.ReadU32(v.r)
	if err != nil {
		return err
	}
	tableByte, err := v.r.ReadByte()
	if err != nil {
		return err
	}
	if tableByte != 0x00 {
		return errf("call_indirect: reserved table index byte must be 0")
	}
	if !v.ctx.HasTable() {
		return errf("call_indirect: module has no table")
	}
	ft, ok := v.ctx.TypeByIndex(typeIdx)
	if !ok {
		return errf("call_indirect: type index %d out of range", typeIdx)
	}

	if _, err := v.popExpect(types.I32); err != nil {
		return err
	}
	for i := len(ft.Params) - 1; i >= 0; i-- {
		if _, err := v.popExpect(ft.Params[i]); err != nil {
			return err
		}
	}
	for _, t := range ft.Results {
		v.pushVal(t)
	}
	v.em.byte(byte(types.OpCallIndirect))
	v.em.u32(typeIdx)
	return nil
}

func (v *validator) stepLocal(op types.Opcode, isSet, isTee bool) error {
	idx, err := leb128.ReadU32(v.r)
	if err != nil {
		return err
	}
	lt, ok := v.localType(idx)
	if !ok {
		return errf("local index %d out of range", idx)
	}
	if isSet {
		if _, err := v.popExpect(lt); err != nil {
			return err
		}
		if isTee {
			v.pushVal(lt)
		}
	} else {
		v.pushVal(lt)
	}
	v.em.byte(byte(op))
	v.em.u32(idx)
	return nil
}

func (v *validator) stepGlobal(op types.Opcode, isSet bool) error {
	idx, err := leb128.ReadU32(v.r)
	if err != nil {
		return err
	}
	gt, ok := v.ctx.GlobalTypeByIndex(idx)
	if !ok {
		return errf("global index %d out of range", idx)
	}
	if isSet {
		if !gt.Mutable {
			return errf("global.set: global %d is immutable", idx)
		}
		if _, err := v.popExpect(gt.ValType); err != nil {
			return err
		}
	} else {
		v.pushVal(gt.ValType)
	}
	v.em.byte(byte(op))
	v.em.u32(idx)
	return nil
}

func (v *validator) stepMemAccess(op types.Opcode, ma types.MemAccess) error {
	if !v.ctx.HasMemory() {
		return errf("%s: module has no memory", ma.Name)
	}
	align, err := leb128.ReadU32(v.r)
	if err != nil {
		return err
	}
	if align > types.NaturalAlignment(ma.WidthBytes) {
		return errf("%s: alignment hint exceeds natural alignment", ma.Name)
	}
	offset, err := leb128.ReadU32(v.r)
	if err != nil {
		return err
	}

	if ma.IsStore {
		if _, err := v.popExpect(ma.ValType); err != nil {
			return err
		}
		if _, err := v.popExpect(types.I32); err != nil {
			return err
		}
	} else {
		if _, err := v.popExpect(types.I32); err != nil {
			return err
		}
		v.pushVal(ma.ValType)
	}

	v.em.byte(byte(op))
	v.em.u32(offset)
	return nil
}
