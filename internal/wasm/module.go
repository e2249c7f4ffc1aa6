package wasm

// Module is the decoded, pre-validation abstract syntax tree produced by
// either decoder.
type Module struct {
	// Name is the optional module id decoded from the text format's
	// "(module $id ...)" form, stripped of its leading '$'. The binary
	// format carries no equivalent field.
	Name string

	TypeSection []FunctionType

	ImportSection []Import

	// FunctionSection holds, for each locally-defined function (not
	// imported), the index into TypeSection describing its signature.
	FunctionSection []uint32

	TableSection  []TableType  // at most one, including imports.
	MemorySection []MemoryType // at most one, including imports.

	GlobalSection []Global

	ExportSection map[string]Export

	StartSection *uint32

	ElementSection []ElementSegment

	// CodeSection holds function bodies aligned 1:1 with FunctionSection.
	CodeSection []Code

	DataSection []DataSegment

	// FunctionNames and LocalNames carry optional symbolic names collected
	// from the text format (or the binary format's custom "name" section):
	// FunctionNames is keyed by function index, LocalNames by function index
	// then local index; used only for diagnostics, never for semantics
	// after decode time.
	FunctionNames map[uint32]string
	LocalNames    map[uint32]map[uint32]string
}

// Import describes one imported extern val.
type Import struct {
	Module, Name string
	Kind         ExternKind

	// Exactly one of the following is meaningful, selected by Kind.
	FuncTypeIndex uint32
	TableType     TableType
	MemoryType    MemoryType
	GlobalType    GlobalType
}

// Export associates a unique name with a store-relative index in one of the
// module's index spaces.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// Global is a module-defined global variable with a constant
// initialization expression.
type Global struct {
	Type GlobalType
	Init ConstantExpression
}

// ConstantExpression is a restricted instruction sequence valid only for
// global initializers and segment offsets.
type ConstantExpression struct {
	Opcode   Opcode
	ConstI32 int32
	ConstI64 int64
	ConstF32 float32
	ConstF64 float64
	// GlobalIndex is used when Opcode is OpcodeGlobalGet.
	GlobalIndex uint32
}

// ElementSegment initializes a range of table 0 with function indices at
// instantiation time.
type ElementSegment struct {
	OffsetExpr ConstantExpression
	Init       []uint32 // function indices
}

// DataSegment initializes a range of memory 0 at instantiation time.
type DataSegment struct {
	OffsetExpr ConstantExpression
	Init       []byte
}

// Code is one function's declared locals (expanded from the binary
// format's run-length encoding, one entry per local) plus its instruction
// body.
type Code struct {
	LocalTypes []ValueType // expanded: one entry per declared local, in order.
	Body       []Instruction
}

// TypeOfFunction resolves the FunctionType for function index idx, where
// idx ranges over imports then locally-defined functions.
func (m *Module) TypeOfFunction(idx uint32) (*FunctionType, bool) {
	importFuncCount := uint32(0)
	for _, im := range m.ImportSection {
		if im.Kind == ExternKindFunc {
			if importFuncCount == idx {
				if int(im.FuncTypeIndex) >= len(m.TypeSection) {
					return nil, false
				}
				return &m.TypeSection[im.FuncTypeIndex], true
			}
			importFuncCount++
		}
	}
	localIdx := idx - importFuncCount
	if int(localIdx) >= len(m.FunctionSection) {
		return nil, false
	}
	typeIdx := m.FunctionSection[localIdx]
	if int(typeIdx) >= len(m.TypeSection) {
		return nil, false
	}
	return &m.TypeSection[typeIdx], true
}

// ImportFuncCount returns the number of imported functions, i.e. the
// position at which locally-defined functions begin in the function index
// space.
func (m *Module) ImportFuncCount() uint32 {
	n := uint32(0)
	for _, im := range m.ImportSection {
		if im.Kind == ExternKindFunc {
			n++
		}
	}
	return n
}

// ImportGlobalCount mirrors ImportFuncCount for the global index space.
func (m *Module) ImportGlobalCount() uint32 {
	n := uint32(0)
	for _, im := range m.ImportSection {
		if im.Kind == ExternKindGlobal {
			n++
		}
	}
	return n
}

// NumFunctions is the total size of the function index space (imports plus
// locally defined).
func (m *Module) NumFunctions() int {
	return int(m.ImportFuncCount()) + len(m.FunctionSection)
}

// NumGlobals is the total size of the global index space.
func (m *Module) NumGlobals() int {
	return int(m.ImportGlobalCount()) + len(m.GlobalSection)
}

// HasMemory reports whether the module has a memory, imported or local.
func (m *Module) HasMemory() bool {
	return len(m.MemorySection) > 0
}

// HasTable mirrors HasMemory for tables.
func (m *Module) HasTable() bool {
	return len(m.TableSection) > 0
}
