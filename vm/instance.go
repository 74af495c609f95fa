package vm

import (
	"github.com/vertexdlt/wasmcore/leb128"
	"github.com/vertexdlt/wasmcore/types"
	"github.com/vertexdlt/wasmcore/util"
	"github.com/vertexdlt/wasmcore/wasm"
)

// PageSize is the fixed 64KiB granularity of linear memory (spec §5).
const PageSize = 1 << 16

// MaxMemoryPages bounds a memory's size even when the module declares no
// max, matching the WebAssembly 1.0 32-bit address space ceiling.
const MaxMemoryPages = 1 << 16

// DefaultMemoryPageLimit is the cap applied to a memory that declares no
// max of its own: 4096 pages (256MiB), well under MaxMemoryPages (spec §6).
const DefaultMemoryPageLimit = 4096

// HostFunction is a Go function bound into an Instance's function import
// slot. args and the returned slice follow the imported function's
// declared signature; returning an error aborts the call as a trap-like
// failure without requiring the host to construct a *types.Trap itself.
type HostFunction func(ctx *ExecContext, caller *Instance, args []types.Value) ([]types.Value, error)

// ImportResolver supplies host bindings for a module's imports during
// Instantiate (spec §6).
type ImportResolver interface {
	ResolveFunc(module, name string, sig types.FuncType) (HostFunction, bool)
	ResolveGlobal(module, name string, gt types.GlobalType) (*GlobalCell, bool)
	ResolveMemory(module, name string) (*Memory, bool)
	ResolveTable(module, name string) (*Table, bool)
}

// GlobalCell is a mutable storage location for one global, shared between
// an exporting instance and anything that imports it.
type GlobalCell struct {
	Type types.GlobalType
	bits uint64
}

// Get reads the cell's current value.
func (g *GlobalCell) Get() types.Value { return types.ValueFromBits(g.Type.ValType, g.bits) }

// Set overwrites the cell's value; the caller is responsible for enforcing
// mutability (the validator already rejects global.set on an immutable
// global statically, so this is only reached for globals the validator
// already proved mutable).
func (g *GlobalCell) Set(v types.Value) { g.bits = v.Bits() }

// Memory is an instance's linear memory.
type Memory struct {
	Data   []byte
	Max    uint32
	HasMax bool
}

// Pages returns the memory's current size in 64KiB pages.
func (m *Memory) Pages() uint32 { return uint32(len(m.Data) / PageSize) }

// Grow extends the memory by delta pages, returning the previous page
// count, or -1 if that would exceed the declared maximum (or
// DefaultMemoryPageLimit when none is declared) or MaxMemoryPages.
func (m *Memory) Grow(delta uint32) int32 {
	cur := m.Pages()
	next := uint64(cur) + uint64(delta)
	if next > MaxMemoryPages {
		return -1
	}
	if m.HasMax {
		if next > uint64(m.Max) {
			return -1
		}
	} else if next > DefaultMemoryPageLimit {
		return -1
	}
	m.Data = append(m.Data, make([]byte, uint64(delta)*PageSize)...)
	return int32(cur)
}

// Table is an instance's table: funcref-only in WebAssembly 1.0. Each slot
// holds a global function index, or -1 if never initialized by an element
// segment (spec: call_indirect through an uninitialized slot traps).
type Table struct {
	Funcs  []int64
	Max    uint32
	HasMax bool
}

// funcBinding is one entry of an instance's function index space: either a
// host callback (imported) or an index into Module.Code (defined).
type funcBinding struct {
	sig     types.FuncType
	host    HostFunction
	codeIdx int
}

// Instance is an instantiated module: the static Module plus the concrete
// memory, table, global, and import bindings built by Instantiate.
type Instance struct {
	Module *wasm.Module

	funcs   []funcBinding
	globals []*GlobalCell
	memory  *Memory
	table   *Table
}

// Instantiate resolves m's imports against resolver, allocates its memory
// and table, applies global initializers and element/data segments, and
// finally runs the start function if one is declared (spec §6).
//
// On a start-function trap, Instantiate returns both a non-nil *Instance
// and a *types.InstantiationError wrapping the trap: every segment applied
// before the trap (and any
// partial effect of the start function itself, up to the trapping
// instruction) remains visible on the returned instance, matching
// WebAssembly's instantiation semantics rather than discarding the module.
func Instantiate(m *wasm.Module, resolver ImportResolver) (*Instance, error) {
	inst := &Instance{Module: m}

	importFailed := func(reason string) error {
		log.WithField("reason", reason).Debug("instantiation failed")
		return types.NewInstantiationError(reason)
	}

	for _, imp := range m.Imports {
		switch imp.Kind {
		case wasm.ImportKindFunc:
			sig, _ := m.TypeByIndex(imp.FuncTypeIdx)
			fn, ok := resolver.ResolveFunc(imp.Module, imp.Name, sig)
			if !ok {
				return nil, importFailed("unresolved function import " + imp.Module + "." + imp.Name)
			}
			inst.funcs = append(inst.funcs, funcBinding{sig: sig, host: fn})
		case wasm.ImportKindGlobal:
			cell, ok := resolver.ResolveGlobal(imp.Module, imp.Name, imp.GlobalType)
			if !ok {
				return nil, importFailed("unresolved global import " + imp.Module + "." + imp.Name)
			}
			if cell.Type != imp.GlobalType {
				return nil, importFailed("global import type mismatch for " + imp.Module + "." + imp.Name)
			}
			inst.globals = append(inst.globals, cell)
		case wasm.ImportKindMemory:
			mem, ok := resolver.ResolveMemory(imp.Module, imp.Name)
			if !ok {
				return nil, importFailed("unresolved memory import " + imp.Module + "." + imp.Name)
			}
			inst.memory = mem
		case wasm.ImportKindTable:
			tbl, ok := resolver.ResolveTable(imp.Module, imp.Name)
			if !ok {
				return nil, importFailed("unresolved table import " + imp.Module + "." + imp.Name)
			}
			inst.table = tbl
		}
	}

	for i, typeIdx := range m.FuncTypeIndices {
		sig, _ := m.TypeByIndex(typeIdx)
		inst.funcs = append(inst.funcs, funcBinding{sig: sig, codeIdx: i})
	}

	if m.Table != nil {
		inst.table = &Table{
			Funcs:  make([]int64, m.Table.Limits.Min),
			Max:    m.Table.Limits.Max,
			HasMax: m.Table.Limits.HasMax,
		}
		for i := range inst.table.Funcs {
			inst.table.Funcs[i] = -1
		}
	}

	if m.Memory != nil {
		inst.memory = &Memory{
			Data:   make([]byte, uint64(m.Memory.Limits.Min)*PageSize),
			Max:    m.Memory.Limits.Max,
			HasMax: m.Memory.Limits.HasMax,
		}
	}

	for _, g := range m.Globals {
		bits := evalConstExpr(g.Init, inst.globals)
		inst.globals = append(inst.globals, &GlobalCell{Type: g.Type, bits: bits})
	}

	for i, el := range m.Elements {
		offset := int32(evalConstExpr(el.OffsetExpr, inst.globals))
		end := int64(offset) + int64(len(el.FuncIndices))
		if offset < 0 || end > int64(len(inst.table.Funcs)) {
			return inst, types.NewInstantiationError("element segment out of table bounds")
		}
		for j, fi := range el.FuncIndices {
			inst.table.Funcs[int64(offset)+int64(j)] = int64(fi)
		}
		_ = i
	}

	for i, d := range m.Data {
		offset := int32(evalConstExpr(d.OffsetExpr, inst.globals))
		end := int64(offset) + int64(len(d.Init))
		if offset < 0 || end > int64(len(inst.memory.Data)) {
			return inst, types.NewInstantiationError("data segment out of memory bounds")
		}
		copy(inst.memory.Data[offset:end], d.Init)
		_ = i
	}

	if m.StartFunc != nil {
		ctx := NewExecContext(nil)
		if _, err := Execute(inst, *m.StartFunc, nil, ctx); err != nil {
			log.WithField("err", err).Debug("start function trapped during instantiation")
			return inst, types.WrapInstantiationError("start function trapped", err)
		}
	}

	return inst, nil
}

// evalConstExpr evaluates an already-validated constant expression (a
// single i32/i64/f32/f64 const, or a global.get of an earlier-declared
// imported global) directly, without going through the interpreter loop.
func evalConstExpr(exprBytes []byte, globals []*GlobalCell) uint64 {
	r := util.NewByteReader(exprBytes)
	op, _ := r.ReadByte()
	switch types.Opcode(op) {
	case types.OpI32Const:
		v, _ := leb128.ReadS32(r)
		return uint64(uint32(v))
	case types.OpI64Const:
		v, _ := leb128.ReadS64(r)
		return uint64(v)
	case types.OpF32Const:
		v, _ := r.ReadFixed32()
		return uint64(v)
	case types.OpF64Const:
		v, _ := r.ReadFixed64()
		return v
	case types.OpGlobalGet:
		idx, _ := leb128.ReadU32(r)
		return globals[idx].bits
	default:
		panic("unreachable: validate.ConstExpr already rejected this")
	}
}

// ExportedFunc resolves a function export by name.
func (inst *Instance) ExportedFunc(name string) (uint32, types.FuncType, bool) {
	exp, ok := inst.Module.ExportsByName[name]
	if !ok || exp.Kind != wasm.ExportKindFunc {
		return 0, types.FuncType{}, false
	}
	return exp.Index, inst.funcs[exp.Index].sig, true
}

// ExportedGlobal resolves a global export by name.
func (inst *Instance) ExportedGlobal(name string) (*GlobalCell, bool) {
	exp, ok := inst.Module.ExportsByName[name]
	if !ok || exp.Kind != wasm.ExportKindGlobal {
		return nil, false
	}
	return inst.globals[exp.Index], true
}

// ExportedMemory resolves the memory export by name.
func (inst *Instance) ExportedMemory(name string) (*Memory, bool) {
	exp, ok := inst.Module.ExportsByName[name]
	if !ok || exp.Kind != wasm.ExportKindMemory {
		return nil, false
	}
	return inst.memory, true
}

// ExportedTable resolves the table export by name.
func (inst *Instance) ExportedTable(name string) (*Table, bool) {
	exp, ok := inst.Module.ExportsByName[name]
	if !ok || exp.Kind != wasm.ExportKindTable {
		return nil, false
	}
	return inst.table, true
}
