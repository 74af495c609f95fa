package validate

import (
	"github.com/vertexdlt/wasmcore/types"
	"github.com/vertexdlt/wasmcore/util"
)

// ModuleContext is the slice of a module's static shape a function body's
// validation needs to resolve call targets, globals, and memory/table
// presence. wasm.Module implements it; validate never imports the wasm
// package, so the two packages can call into each other without a cycle.
type ModuleContext interface {
	FuncTypeByIndex(idx uint32) (types.FuncType, bool)
	TypeByIndex(idx uint32) (types.FuncType, bool)
	GlobalTypeByIndex(idx uint32) (types.GlobalType, bool)
	HasTable() bool
	HasMemory() bool
	FuncCount() uint32
}

// Function type-checks one function body against its declared signature
// and re-emits it as flat, jump-resolved bytecode (spec §4.3, §4.4).
//
// The re-emitted bytecode layout, by opcode:
//
//	block, loop, end        elided entirely; branch targets are resolved
//	                         to absolute offsets at validation time
//	if                       u32 target (jump here when condition == 0)
//	else                     u32 target (unconditional jump to the `end`,
//	                         taken when control falls out of the `then` arm)
//	br, br_if                u32 target, u32 arity, u32 drop
//	br_table                 u32 count, count*(u32 target,u32 arity,u32 drop),
//	                         then one more (target,arity,drop) for the default
//	call                     u32 func index
//	call_indirect             u32 type index
//	local.get/set/tee        u32 local index
//	global.get/set           u32 global index
//	i32.const                i32 (4 bytes)
//	i64.const                i64 (8 bytes)
//	f32.const                u32 raw bits (4 bytes)
//	f64.const                u64 raw bits (8 bytes)
//	*.load, *.store          u32 effective-address offset
//	everything else          no immediate
//
// A function always ends in an emitted `return` opcode, whether or not the
// source body's final instruction was one, so the interpreter has a single
// unconditional termination point.
func Function(sig types.FuncType, localTypes []types.ValueType, exprBytes []byte, ctx ModuleContext) (types.Code, error) {
	r := util.NewByteReader(exprBytes)

	v := &validator{
		r:          r,
		sig:        sig,
		localTypes: localTypes,
		ctx:        ctx,
		ops:        &opStack{},
		ctrl:       &ctrlStack{},
		em:         &emitter{},
	}

	v.ctrl.push(&ctrlFrame{opcode: types.OpCall, endTypes: sig.Results, height: 0, elsePatch: -1})

	if err := v.run(); err != nil {
		return types.Code{}, err
	}

	v.em.byte(byte(types.OpReturn))

	return types.Code{
		NumLocals:      uint32(len(localTypes)),
		MaxStackHeight: uint32(v.maxHeight),
		Bytecode:       v.em.buf,
	}, nil
}

type validator struct {
	r          *util.ByteReader
	sig        types.FuncType
	localTypes []types.ValueType // params followed by declared locals, by index
	ctx        ModuleContext

	ops       *opStack
	ctrl      *ctrlStack
	em        *emitter
	maxHeight int
}

func (v *validator) localType(idx uint32) (types.ValueType, bool) {
	if idx >= uint32(len(v.localTypes)) {
		return 0, false
	}
	return v.localTypes[idx], true
}

func (v *validator) pushVal(t types.ValueType) {
	v.ops.push(t)
	if v.ops.len() > v.maxHeight {
		v.maxHeight = v.ops.len()
	}
}

func (v *validator) popVal() (types.ValueType, error) {
	f := v.ctrl.top()
	if v.ops.len() == f.height {
		if f.unreachable {
			return valUnknown, nil
		}
		return 0, errf("operand stack underflow")
	}
	t := v.ops.vals[v.ops.len()-1]
	v.ops.truncate(v.ops.len() - 1)
	return t, nil
}

func (v *validator) popExpect(expect types.ValueType) (types.ValueType, error) {
	actual, err := v.popVal()
	if err != nil {
		return 0, err
	}
	if !isUnknown(actual) && !isUnknown(expect) && actual != expect {
		return 0, errf("type mismatch: expected %s, got %s", expect, actual)
	}
	if isUnknown(actual) {
		return expect, nil
	}
	return actual, nil
}

func (v *validator) setUnreachable() {
	f := v.ctrl.top()
	v.ops.truncate(f.height)
	f.unreachable = true
}

// resolveLabel returns the (arity, dropCount) a branch to the frame at the
// given depth must encode: arity is how many operand values travel with
// the branch, drop is how many values beneath them must be discarded so
// the runtime operand stack lands exactly at the target frame's height.
func (v *validator) resolveLabel(depth uint32) (*ctrlFrame, uint32, uint32, error) {
	f, ok := v.ctrl.at(int(depth))
	if !ok {
		return nil, 0, 0, errf("invalid branch depth %d", depth)
	}
	labelTypes := f.labelTypes()
	arity := uint32(len(labelTypes))
	cur := v.ops.len()
	drop := int32(cur) - int32(arity) - int32(f.height)
	if drop < 0 {
		drop = 0
	}
	return f, arity, uint32(drop), nil
}

func (v *validator) run() error {
	for {
		op, err := v.r.ReadByte()
		if err != nil {
			break
		}
		if err := v.step(types.Opcode(op)); err != nil {
			return err
		}
		if v.ctrl.depth() == 0 {
			break
		}
	}
	if v.ctrl.depth() != 0 {
		return errf("function body ends with unclosed block")
	}
	return nil
}
