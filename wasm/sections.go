package wasm

import (
	"unicode/utf8"

	"github.com/vertexdlt/wasmcore/leb128"
	"github.com/vertexdlt/wasmcore/types"
	"github.com/vertexdlt/wasmcore/util"
)

const funcTypeForm byte = 0x60

func readName(r *util.ByteReader) (string, error) {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", types.NewMalformedModuleError("name is not valid UTF-8")
	}
	return string(b), nil
}

func readValueType(r *util.ByteReader) (types.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	vt, ok := types.ValueTypeFromByte(b)
	if !ok {
		return 0, types.NewMalformedModuleError("invalid value type byte")
	}
	return vt, nil
}

func readLimits(r *util.ByteReader) (types.Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return types.Limits{}, err
	}
	min, err := leb128.ReadU32(r)
	if err != nil {
		return types.Limits{}, err
	}
	switch flag {
	case 0x00:
		return types.Limits{Min: min}, nil
	case 0x01:
		max, err := leb128.ReadU32(r)
		if err != nil {
			return types.Limits{}, err
		}
		if max < min {
			return types.Limits{}, types.NewMalformedModuleError("limits: max < min")
		}
		return types.Limits{Min: min, Max: max, HasMax: true}, nil
	default:
		return types.Limits{}, types.NewMalformedModuleError("invalid limits flag")
	}
}

func readTableType(r *util.ByteReader) (types.TableType, error) {
	elemType, err := r.ReadByte()
	if err != nil {
		return types.TableType{}, err
	}
	if elemType != types.ElemTypeFuncRef {
		return types.TableType{}, types.NewMalformedModuleError("table element type must be funcref")
	}
	limits, err := readLimits(r)
	if err != nil {
		return types.TableType{}, err
	}
	return types.TableType{ElemType: elemType, Limits: limits}, nil
}

func readGlobalType(r *util.ByteReader) (types.GlobalType, error) {
	vt, err := readValueType(r)
	if err != nil {
		return types.GlobalType{}, err
	}
	mutByte, err := r.ReadByte()
	if err != nil {
		return types.GlobalType{}, err
	}
	if mutByte != 0x00 && mutByte != 0x01 {
		return types.GlobalType{}, types.NewMalformedModuleError("invalid mutability flag")
	}
	return types.GlobalType{ValType: vt, Mutable: mutByte == 0x01}, nil
}

// readRawExpr reads a raw constant-expression byte string, used by global
// initializers and element/data segment offsets: a single const or
// global.get instruction followed by `end`. Its semantics (the instruction
// must in fact be one of those four, and must type-check against the
// target) are checked by validate.ConstExpr during cross-section
// validation, not here; this only scopes the byte range.
func readRawExpr(r *util.ByteReader) ([]byte, error) {
	before := r.Remaining()
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if types.Opcode(op) == types.OpEnd {
			break
		}
		switch types.Opcode(op) {
		case types.OpI32Const:
			if _, err := leb128.ReadS32(r); err != nil {
				return nil, err
			}
		case types.OpI64Const:
			if _, err := leb128.ReadS64(r); err != nil {
				return nil, err
			}
		case types.OpF32Const:
			if _, err := r.ReadFixed32(); err != nil {
				return nil, err
			}
		case types.OpF64Const:
			if _, err := r.ReadFixed64(); err != nil {
				return nil, err
			}
		case types.OpGlobalGet:
			if _, err := leb128.ReadU32(r); err != nil {
				return nil, err
			}
		default:
			return nil, types.NewMalformedModuleError("non-constant instruction in constant expression")
		}
	}
	consumed := len(before) - r.Len()
	return append([]byte(nil), before[:consumed]...), nil
}

func readSectionType(m *Module, r *util.ByteReader) error {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	m.Types = make([]types.FuncType, n)
	for i := range m.Types {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != funcTypeForm {
			return types.NewMalformedModuleError("invalid functype form byte")
		}
		pc, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		params := make([]types.ValueType, pc)
		for j := range params {
			if params[j], err = readValueType(r); err != nil {
				return err
			}
		}
		rc, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		if rc > 1 {
			return types.NewMalformedModuleError("function type has more than one result (multi-value not supported)")
		}
		results := make([]types.ValueType, rc)
		for j := range results {
			if results[j], err = readValueType(r); err != nil {
				return err
			}
		}
		m.Types[i] = types.FuncType{Params: params, Results: results}
	}
	return nil
}

func readSectionImport(m *Module, r *util.ByteReader) error {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	m.Imports = make([]Import, n)
	for i := range m.Imports {
		mod, err := readName(r)
		if err != nil {
			return err
		}
		name, err := readName(r)
		if err != nil {
			return err
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		imp := Import{Module: mod, Name: name, Kind: ImportKind(kindByte)}
		switch imp.Kind {
		case ImportKindFunc:
			if imp.FuncTypeIdx, err = leb128.ReadU32(r); err != nil {
				return err
			}
		case ImportKindTable:
			if imp.TableType, err = readTableType(r); err != nil {
				return err
			}
		case ImportKindMemory:
			limits, err := readLimits(r)
			if err != nil {
				return err
			}
			imp.MemType = types.MemType{Limits: limits}
		case ImportKindGlobal:
			if imp.GlobalType, err = readGlobalType(r); err != nil {
				return err
			}
		default:
			return types.NewMalformedModuleError("invalid import kind")
		}
		m.Imports[i] = imp
	}
	return nil
}

func readSectionFunction(m *Module, r *util.ByteReader) error {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	m.FuncTypeIndices = make([]uint32, n)
	for i := range m.FuncTypeIndices {
		if m.FuncTypeIndices[i], err = leb128.ReadU32(r); err != nil {
			return err
		}
	}
	return nil
}

func readSectionTable(m *Module, r *util.ByteReader) error {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	if n > 1 {
		return types.NewMalformedModuleError("at most one table allowed")
	}
	for i := uint32(0); i < n; i++ {
		tt, err := readTableType(r)
		if err != nil {
			return err
		}
		t := tt
		m.Table = &t
	}
	return nil
}

func readSectionMemory(m *Module, r *util.ByteReader) error {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	if n > 1 {
		return types.NewMalformedModuleError("at most one memory allowed")
	}
	for i := uint32(0); i < n; i++ {
		limits, err := readLimits(r)
		if err != nil {
			return err
		}
		mt := types.MemType{Limits: limits}
		m.Memory = &mt
	}
	return nil
}

func readSectionGlobal(m *Module, r *util.ByteReader) error {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	m.Globals = make([]GlobalDef, n)
	for i := range m.Globals {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readRawExpr(r)
		if err != nil {
			return err
		}
		m.Globals[i] = GlobalDef{Type: gt, Init: init}
	}
	return nil
}

func readSectionExport(m *Module, r *util.ByteReader) error {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	m.Exports = make([]Export, n)
	m.ExportsByName = make(map[string]Export, n)
	for i := range m.Exports {
		name, err := readName(r)
		if err != nil {
			return err
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		if kindByte > 0x03 {
			return types.NewMalformedModuleError("invalid export kind")
		}
		idx, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		exp := Export{Name: name, Kind: ExportKind(kindByte), Index: idx}
		if _, dup := m.ExportsByName[name]; dup {
			return types.NewMalformedModuleError("duplicate export name")
		}
		m.Exports[i] = exp
		m.ExportsByName[name] = exp
	}
	return nil
}

func readSectionStart(m *Module, r *util.ByteReader) error {
	idx, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	m.StartFunc = &idx
	return nil
}

func readSectionElement(m *Module, r *util.ByteReader) error {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	m.Elements = make([]ElementSegment, n)
	for i := range m.Elements {
		tableIdx, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		offset, err := readRawExpr(r)
		if err != nil {
			return err
		}
		count, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		indices := make([]uint32, count)
		for j := range indices {
			if indices[j], err = leb128.ReadU32(r); err != nil {
				return err
			}
		}
		m.Elements[i] = ElementSegment{TableIdx: tableIdx, OffsetExpr: offset, FuncIndices: indices}
	}
	return nil
}

func readSectionData(m *Module, r *util.ByteReader) error {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	m.Data = make([]DataSegment, n)
	for i := range m.Data {
		memIdx, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		offset, err := readRawExpr(r)
		if err != nil {
			return err
		}
		size, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		init, err := r.ReadBytes(size)
		if err != nil {
			return err
		}
		m.Data[i] = DataSegment{MemIdx: memIdx, OffsetExpr: offset, Init: append([]byte(nil), init...)}
	}
	return nil
}

func readLocalEntries(r *util.ByteReader) ([]LocalEntry, error) {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return nil, err
	}
	entries := make([]LocalEntry, n)
	var total uint64
	for i := range entries {
		count, err := leb128.ReadU32(r)
		if err != nil {
			return nil, err
		}
		vt, err := readValueType(r)
		if err != nil {
			return nil, err
		}
		entries[i] = LocalEntry{Count: count, Type: vt}
		total += uint64(count)
		if total > 1<<20 {
			return nil, types.NewMalformedModuleError("too many locals")
		}
	}
	return entries, nil
}

func readSectionCode(m *Module, r *util.ByteReader) error {
	n, err := leb128.ReadU32(r)
	if err != nil {
		return err
	}
	m.FuncBodies = make([]FuncBody, n)
	for i := range m.FuncBodies {
		size, err := leb128.ReadU32(r)
		if err != nil {
			return err
		}
		bodyBytes, err := r.ReadBytes(size)
		if err != nil {
			return err
		}
		body := util.NewByteReader(bodyBytes)
		locals, err := readLocalEntries(body)
		if err != nil {
			return err
		}
		// The remainder, including the terminating `end`, is the expression.
		expr := append([]byte(nil), body.Remaining()...)
		m.FuncBodies[i] = FuncBody{Locals: locals, ExprBytes: expr}
	}
	return nil
}
