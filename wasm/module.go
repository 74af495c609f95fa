// Package wasm parses a WebAssembly 1.0 binary module into a validated,
// execution-ready Module (spec §3, §4.2). It owns the section parser and
// the module's convenience queries; the per-function type-checking pass
// that produces executable bytecode lives in the sibling validate package.
package wasm

import "github.com/vertexdlt/wasmcore/types"

// ImportKind is the external-kind byte of an import description.
type ImportKind byte

const (
	ImportKindFunc   ImportKind = 0x00
	ImportKindTable  ImportKind = 0x01
	ImportKindMemory ImportKind = 0x02
	ImportKindGlobal ImportKind = 0x03
)

// Import is one entry of the import section.
type Import struct {
	Module string
	Name   string
	Kind   ImportKind

	FuncTypeIdx uint32           // valid when Kind == ImportKindFunc
	TableType   types.TableType  // valid when Kind == ImportKindTable
	MemType     types.MemType    // valid when Kind == ImportKindMemory
	GlobalType  types.GlobalType // valid when Kind == ImportKindGlobal
}

// ExportKind is the external-kind byte of an export description.
type ExportKind byte

const (
	ExportKindFunc   ExportKind = 0x00
	ExportKindTable  ExportKind = 0x01
	ExportKindMemory ExportKind = 0x02
	ExportKindGlobal ExportKind = 0x03
)

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// LocalEntry groups a run of locals of the same declared type.
type LocalEntry struct {
	Count uint32
	Type  types.ValueType
}

// FuncBody is a code-section entry before validation: the raw local
// declarations and the raw instruction bytes (ending in, and including,
// the function's final 0x0B `end`).
type FuncBody struct {
	Locals    []LocalEntry
	ExprBytes []byte
}

// GlobalDef is a module-defined global: its type and raw constant-expression
// initializer, checked by validate.ConstExpr during cross-section validation.
type GlobalDef struct {
	Type types.GlobalType
	Init []byte
}

// ElementSegment initializes a range of a table with function indices.
type ElementSegment struct {
	TableIdx    uint32
	OffsetExpr  []byte
	FuncIndices []uint32
}

// DataSegment initializes a range of linear memory with bytes.
type DataSegment struct {
	MemIdx     uint32
	OffsetExpr []byte
	Init       []byte
}

// Module is the fully parsed and validated module (spec §3 "Module").
// Immutable after Parse returns.
type Module struct {
	Types   []types.FuncType
	Imports []Import

	// FuncTypeIndices has one entry per module-defined function (not
	// counting imports), indexing into Types, in declaration order.
	FuncTypeIndices []uint32
	// FuncBodies parallels FuncTypeIndices: the code section's raw bodies.
	FuncBodies []FuncBody
	// Code parallels FuncTypeIndices: the validated, re-emitted bytecode.
	// Populated by validate during Parse.
	Code []types.Code

	Table  *types.TableType
	Memory *types.MemType

	Globals []GlobalDef

	Exports       []Export
	ExportsByName map[string]Export

	StartFunc *uint32

	Elements []ElementSegment
	Data     []DataSegment

	importedFuncTypes   []types.FuncType
	importedGlobalTypes []types.GlobalType
	hasImportedTable    bool
	hasImportedMemory   bool
}

func (m *Module) populateDerived() {
	m.importedFuncTypes = nil
	m.importedGlobalTypes = nil
	m.hasImportedTable = false
	m.hasImportedMemory = false
	for _, imp := range m.Imports {
		switch imp.Kind {
		case ImportKindFunc:
			ft := types.FuncType{}
			if int(imp.FuncTypeIdx) < len(m.Types) {
				ft = m.Types[imp.FuncTypeIdx]
			}
			m.importedFuncTypes = append(m.importedFuncTypes, ft)
		case ImportKindGlobal:
			m.importedGlobalTypes = append(m.importedGlobalTypes, imp.GlobalType)
		case ImportKindTable:
			m.hasImportedTable = true
		case ImportKindMemory:
			m.hasImportedMemory = true
		}
	}
}

// ImportedFuncCount is the number of function imports; imported functions
// occupy function indices [0, ImportedFuncCount) in the global index space.
func (m *Module) ImportedFuncCount() uint32 { return uint32(len(m.importedFuncTypes)) }

// ImportedGlobalCount is the number of global imports; imported globals
// occupy global indices [0, ImportedGlobalCount).
func (m *Module) ImportedGlobalCount() uint32 { return uint32(len(m.importedGlobalTypes)) }

// FuncCount is the total number of functions: imported plus defined.
func (m *Module) FuncCount() uint32 {
	return m.ImportedFuncCount() + uint32(len(m.FuncTypeIndices))
}

// GlobalCount is the total number of globals: imported plus defined.
func (m *Module) GlobalCount() uint32 {
	return m.ImportedGlobalCount() + uint32(len(m.Globals))
}

// IsImportedFunc reports whether idx names an imported function.
func (m *Module) IsImportedFunc(idx uint32) bool { return idx < m.ImportedFuncCount() }

// IsImportedGlobal reports whether idx names an imported global.
func (m *Module) IsImportedGlobal(idx uint32) bool { return idx < m.ImportedGlobalCount() }

// FuncTypeByIndex resolves a function index (imported or defined) to its type.
func (m *Module) FuncTypeByIndex(idx uint32) (types.FuncType, bool) {
	imported := m.ImportedFuncCount()
	if idx < imported {
		return m.importedFuncTypes[idx], true
	}
	defIdx := idx - imported
	if defIdx >= uint32(len(m.FuncTypeIndices)) {
		return types.FuncType{}, false
	}
	typeIdx := m.FuncTypeIndices[defIdx]
	if typeIdx >= uint32(len(m.Types)) {
		return types.FuncType{}, false
	}
	return m.Types[typeIdx], true
}

// TypeByIndex resolves a raw type-section index, used by call_indirect's
// declared callee type.
func (m *Module) TypeByIndex(idx uint32) (types.FuncType, bool) {
	if idx >= uint32(len(m.Types)) {
		return types.FuncType{}, false
	}
	return m.Types[idx], true
}

// GlobalTypeByIndex resolves a global index (imported or defined) to its type.
func (m *Module) GlobalTypeByIndex(idx uint32) (types.GlobalType, bool) {
	imported := m.ImportedGlobalCount()
	if idx < imported {
		return m.importedGlobalTypes[idx], true
	}
	defIdx := idx - imported
	if defIdx >= uint32(len(m.Globals)) {
		return types.GlobalType{}, false
	}
	return m.Globals[defIdx].Type, true
}

// HasTable reports whether the module declares or imports a table.
func (m *Module) HasTable() bool { return m.Table != nil || m.hasImportedTable }

// HasMemory reports whether the module declares or imports a memory.
func (m *Module) HasMemory() bool { return m.Memory != nil || m.hasImportedMemory }

// HasImportedTable reports whether the table (if any) came from an import.
func (m *Module) HasImportedTable() bool { return m.hasImportedTable }

// HasImportedMemory reports whether the memory (if any) came from an import.
func (m *Module) HasImportedMemory() bool { return m.hasImportedMemory }
