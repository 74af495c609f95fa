package wasm

import (
	"fmt"

	"github.com/vertexdlt/wasmcore/leb128"
	"github.com/vertexdlt/wasmcore/types"
	"github.com/vertexdlt/wasmcore/util"
	"github.com/vertexdlt/wasmcore/validate"
)

// Magic is the 4-byte '\0asm' header every module starts with.
const Magic uint32 = 0x6d736100

// Version is the only module version WebAssembly 1.0 recognizes.
const Version uint32 = 0x1

const (
	secCustom   = 0
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secStart    = 8
	secElement  = 9
	secCode     = 10
	secData     = 11
)

// maxLocalCount bounds a single function's param+local count, guarding the
// validator's per-index slice against a maliciously huge declaration.
const maxLocalCount = 1 << 20

// Parse decodes a WebAssembly 1.0 binary module, validates every function
// body, and returns a Module ready for vm.Instantiate (spec §3, §4.2,
// §4.3). On any structural or type error it returns a
// *types.MalformedModuleError and no partial module.
func Parse(b []byte) (*Module, error) {
	r := util.NewByteReader(b)
	if err := readHeader(r); err != nil {
		return nil, types.WrapMalformedModuleError("module header", err)
	}

	m := &Module{ExportsByName: map[string]Export{}}

	lastID := -1
	for r.Len() > 0 {
		idByte, err := r.ReadByte()
		if err != nil {
			return nil, types.WrapMalformedModuleError("section id", err)
		}
		id := int(idByte)

		if id != secCustom {
			if id <= lastID {
				return nil, types.NewMalformedModuleError("sections must appear at most once, in order")
			}
			lastID = id
		}

		size, err := leb128.ReadU32(r)
		if err != nil {
			return nil, types.WrapMalformedModuleError("section size", err)
		}
		body, err := r.SubReader(size)
		if err != nil {
			return nil, types.WrapMalformedModuleError("section body truncated", err)
		}

		if err := readSection(m, id, body); err != nil {
			return nil, types.WrapMalformedModuleError(fmt.Sprintf("section id %d", id), err)
		}
		if body.Len() != 0 {
			return nil, types.NewMalformedModuleError(fmt.Sprintf("section id %d has unread trailing bytes", id))
		}
	}

	if len(m.FuncTypeIndices) != len(m.FuncBodies) {
		return nil, types.NewMalformedModuleError("function and code section counts differ")
	}

	m.populateDerived()

	if err := crossValidate(m); err != nil {
		return nil, err
	}

	if err := validateFunctions(m); err != nil {
		return nil, err
	}

	return m, nil
}

func readHeader(r *util.ByteReader) error {
	magic, err := r.ReadFixed32()
	if err != nil {
		return err
	}
	if magic != Magic {
		return types.NewMalformedModuleError("bad magic number")
	}
	version, err := r.ReadFixed32()
	if err != nil {
		return err
	}
	if version != Version {
		return types.NewMalformedModuleError("unsupported version")
	}
	return nil
}

func readSection(m *Module, id int, r *util.ByteReader) error {
	switch id {
	case secCustom:
		return nil // custom sections carry no semantics the runtime needs
	case secType:
		return readSectionType(m, r)
	case secImport:
		return readSectionImport(m, r)
	case secFunction:
		return readSectionFunction(m, r)
	case secTable:
		return readSectionTable(m, r)
	case secMemory:
		return readSectionMemory(m, r)
	case secGlobal:
		return readSectionGlobal(m, r)
	case secExport:
		return readSectionExport(m, r)
	case secStart:
		return readSectionStart(m, r)
	case secElement:
		return readSectionElement(m, r)
	case secCode:
		return readSectionCode(m, r)
	case secData:
		return readSectionData(m, r)
	default:
		return types.NewMalformedModuleError("unknown section id")
	}
}

// crossValidate checks everything that spans multiple sections: index
// ranges, the table/memory singleton+import-exclusivity rules, global
// initializer types, export name uniqueness (already enforced while
// reading), and the start function's signature (spec §4.2).
func crossValidate(m *Module) error {
	for _, idx := range m.FuncTypeIndices {
		if idx >= uint32(len(m.Types)) {
			return types.NewMalformedModuleError("function section references out-of-range type index")
		}
	}

	if m.Table != nil && m.HasImportedTable() {
		return types.NewMalformedModuleError("module has both an imported and a defined table")
	}
	if m.Memory != nil && m.HasImportedMemory() {
		return types.NewMalformedModuleError("module has both an imported and a defined memory")
	}

	importedGlobals := m.ImportedGlobalCount()
	for i, g := range m.Globals {
		if err := validate.ConstExpr(g.Init, g.Type.ValType, importedGlobals, m); err != nil {
			return types.WrapMalformedModuleError(fmt.Sprintf("global %d initializer", i), err)
		}
	}

	for _, exp := range m.Exports {
		switch exp.Kind {
		case ExportKindFunc:
			if exp.Index >= m.FuncCount() {
				return types.NewMalformedModuleError("export references out-of-range function index")
			}
		case ExportKindTable:
			if !m.HasTable() || exp.Index != 0 {
				return types.NewMalformedModuleError("export references a nonexistent table")
			}
		case ExportKindMemory:
			if !m.HasMemory() || exp.Index != 0 {
				return types.NewMalformedModuleError("export references a nonexistent memory")
			}
		case ExportKindGlobal:
			if exp.Index >= m.GlobalCount() {
				return types.NewMalformedModuleError("export references out-of-range global index")
			}
		default:
			return types.NewMalformedModuleError("export has invalid kind")
		}
	}

	if m.StartFunc != nil {
		ft, ok := m.FuncTypeByIndex(*m.StartFunc)
		if !ok {
			return types.NewMalformedModuleError("start function index out of range")
		}
		if len(ft.Params) != 0 || len(ft.Results) != 0 {
			return types.NewMalformedModuleError("start function must take no parameters and return no results")
		}
	}

	for i, el := range m.Elements {
		if !m.HasTable() {
			return types.NewMalformedModuleError("element segment present without a table")
		}
		if el.TableIdx != 0 {
			return types.NewMalformedModuleError("element segment references table index other than 0")
		}
		if err := validate.ConstExpr(el.OffsetExpr, types.I32, importedGlobals, m); err != nil {
			return types.WrapMalformedModuleError(fmt.Sprintf("element segment %d offset", i), err)
		}
		for _, fi := range el.FuncIndices {
			if fi >= m.FuncCount() {
				return types.NewMalformedModuleError("element segment references out-of-range function index")
			}
		}
	}

	for i, d := range m.Data {
		if !m.HasMemory() {
			return types.NewMalformedModuleError("data segment present without a memory")
		}
		if d.MemIdx != 0 {
			return types.NewMalformedModuleError("data segment references memory index other than 0")
		}
		if err := validate.ConstExpr(d.OffsetExpr, types.I32, importedGlobals, m); err != nil {
			return types.WrapMalformedModuleError(fmt.Sprintf("data segment %d offset", i), err)
		}
	}

	return nil
}

// validateFunctions runs validate.Function over every module-defined
// function body and records the result in m.Code, in function order.
func validateFunctions(m *Module) error {
	m.Code = make([]types.Code, len(m.FuncBodies))
	for i, fb := range m.FuncBodies {
		typeIdx := m.FuncTypeIndices[i]
		sig := m.Types[typeIdx]

		localTypes := make([]types.ValueType, 0, len(sig.Params)+4)
		localTypes = append(localTypes, sig.Params...)
		declared := uint64(len(sig.Params))
		for _, le := range fb.Locals {
			declared += uint64(le.Count)
			if declared > maxLocalCount {
				return types.NewMalformedModuleError(fmt.Sprintf("function %d declares too many locals", i))
			}
			for j := uint32(0); j < le.Count; j++ {
				localTypes = append(localTypes, le.Type)
			}
		}

		code, err := validate.Function(sig, localTypes, fb.ExprBytes, m)
		if err != nil {
			return types.WrapMalformedModuleError(fmt.Sprintf("function %d body", i), err)
		}
		m.Code[i] = code
	}
	return nil
}
