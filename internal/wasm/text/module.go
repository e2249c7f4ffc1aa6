package text

import (
	"github.com/pkg/errors"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

// moduleBuilder assembles a wasm.Module from the text format's top-level
// fields in two passes: pass 1 walks every field just far enough to assign
// each named entity its index-space slot (so later fields can reference a
// function, global, etc. declared after them in the source); pass 2 walks
// the same fields again, now able to resolve every identifier immediately,
// and actually builds the AST.
type moduleBuilder struct {
	mod *wasm.Module

	types   *identResolver
	funcs   *identResolver
	tables  *identResolver
	mems    *identResolver
	globals *identResolver
}

func newModuleBuilder() *moduleBuilder {
	return &moduleBuilder{
		mod:     &wasm.Module{ExportSection: map[string]wasm.Export{}},
		types:   newIdentResolver(),
		funcs:   newIdentResolver(),
		tables:  newIdentResolver(),
		mems:    newIdentResolver(),
		globals: newIdentResolver(),
	}
}

type fieldRec struct {
	start int // token index of the field's "("
}

// parseModuleFile parses a complete "(module ...)" text and returns its
// wasm.Module.
func parseModuleFile(p *parser) (*wasm.Module, error) {
	if err := p.expectLParen(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("module"); err != nil {
		return nil, err
	}
	id, _ := p.optID()

	b := newModuleBuilder()
	if len(id) > 1 {
		b.mod.Name = id[1:] // strip leading '$'
	}

	var fields []fieldRec
	for !p.atRParen() {
		start := p.pos
		if err := p.expectLParen(); err != nil {
			return nil, err
		}
		kw := p.peek()
		if kw == nil || kw.typ != tokenKeyword {
			return nil, p.unexpected(kw, "module field")
		}
		if err := b.scanFieldHeader(p, kw.value); err != nil {
			return nil, err
		}
		fields = append(fields, fieldRec{start: start})
	}
	if err := p.expectRParen(); err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.unexpected(p.peek(), "end of input")
	}

	for _, f := range fields {
		p.pos = f.start
		if err := p.expectLParen(); err != nil {
			return nil, err
		}
		kw := p.advance()
		if err := b.parseField(p, kw.value); err != nil {
			return nil, err
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
	}
	return b.mod, nil
}

// scanFieldHeader is pass 1: register this field's identifier (if any) into
// the right index space, then skip the remainder of the field unread.
func (b *moduleBuilder) scanFieldHeader(p *parser, kind string) error {
	switch kind {
	case "type":
		// Type definitions are fully built here, not just registered by
		// name: a func field's inline type-use synthesizes a new
		// FunctionType into the same TypeSection during pass 2, and that
		// append must never land before an explicit "(type ...)" field's
		// already-assigned index. Building every explicit type in pass 1
		// keeps their indices fixed before any synthesis can happen.
		p.advance() // "type"
		id, _ := p.optID()
		if err := p.expectLParen(); err != nil {
			return err
		}
		if err := p.expectKeyword("func"); err != nil {
			return err
		}
		params, _, results, err := parseParamsAndResults(p)
		if err != nil {
			return err
		}
		if err := p.expectRParen(); err != nil {
			return err
		}
		idx := uint32(len(b.mod.TypeSection))
		b.mod.TypeSection = append(b.mod.TypeSection, wasm.FunctionType{Params: params, Results: results})
		if id != "" {
			b.types.byName[id] = idx
		}
		b.types.count++
		return nil
	case "import":
		p.advance() // "import"
		if err := p.skipString(); err != nil {
			return err
		}
		if err := p.skipString(); err != nil {
			return err
		}
		if err := p.expectLParen(); err != nil {
			return err
		}
		innerKw := p.advance()
		id, _ := p.optID()
		switch innerKw.value {
		case "func":
			b.funcs.define(id)
		case "table":
			b.tables.define(id)
		case "memory":
			b.mems.define(id)
		case "global":
			b.globals.define(id)
		default:
			return p.errAt(innerKw, "unknown import kind: %s", innerKw.value)
		}
		return p.skipBalanced(2)
	case "func":
		p.advance()
		id, _ := p.optID()
		b.funcs.define(id)
		return p.skipBalanced(1)
	case "table":
		p.advance()
		id, _ := p.optID()
		b.tables.define(id)
		return p.skipBalanced(1)
	case "memory":
		p.advance()
		id, _ := p.optID()
		b.mems.define(id)
		return p.skipBalanced(1)
	case "global":
		p.advance()
		id, _ := p.optID()
		b.globals.define(id)
		return p.skipBalanced(1)
	case "export", "start", "elem", "data":
		p.advance()
		return p.skipBalanced(1)
	default:
		return p.errAt(p.peek(), "unknown module field: %s", kind)
	}
}

func (p *parser) skipString() error {
	t := p.peek()
	if t == nil || t.typ != tokenString {
		return p.unexpected(t, "string")
	}
	p.advance()
	return nil
}

// addOrFindType returns the index of a FunctionType matching params/results,
// appending a new one (synthesizing a type definition) if none matches.
func (b *moduleBuilder) addOrFindType(params, results []wasm.ValueType) uint32 {
	want := wasm.FunctionType{Params: params, Results: results}
	for i, ft := range b.mod.TypeSection {
		if ft.EqualsSignature(want.Params, want.Results) {
			return uint32(i)
		}
	}
	b.mod.TypeSection = append(b.mod.TypeSection, want)
	return uint32(len(b.mod.TypeSection) - 1)
}

// resolveTypeUse turns a parsed type-use into a concrete type index,
// synthesizing a type definition for an inline signature without an
// explicit "(type ...)" clause.
func (b *moduleBuilder) resolveTypeUse(u resolvedTypeUse) uint32 {
	if u.typeIdx != nil {
		return *u.typeIdx
	}
	return b.addOrFindType(u.params, u.results)
}

func (b *moduleBuilder) parseField(p *parser, kind string) error {
	switch kind {
	case "type":
		// Already fully built in pass 1 (see scanFieldHeader); just skip
		// back over the same tokens to keep the cursor in sync.
		return b.skipTypeField(p)
	case "import":
		return b.parseImportField(p)
	case "func":
		return b.parseFuncField(p)
	case "table":
		return b.parseTableField(p)
	case "memory":
		return b.parseMemoryField(p)
	case "global":
		return b.parseGlobalField(p)
	case "export":
		return b.parseExportField(p)
	case "start":
		return b.parseStartField(p)
	case "elem":
		return b.parseElemField(p)
	case "data":
		return b.parseDataField(p)
	default:
		return p.errAt(p.peek(), "unknown module field: %s", kind)
	}
}

func (b *moduleBuilder) skipTypeField(p *parser) error {
	p.optID()
	if err := p.expectLParen(); err != nil {
		return err
	}
	if err := p.expectKeyword("func"); err != nil {
		return err
	}
	if _, _, _, err := parseParamsAndResults(p); err != nil {
		return err
	}
	return p.expectRParen()
}

func (b *moduleBuilder) resolveTypeToken(p *parser, t *token) (uint32, error) {
	return b.types.resolve(p, t)
}

func (b *moduleBuilder) parseImportField(p *parser) error {
	modTok := p.peek()
	if modTok == nil || modTok.typ != tokenString {
		return p.unexpected(modTok, "module name string")
	}
	p.advance()
	nameTok := p.peek()
	if nameTok == nil || nameTok.typ != tokenString {
		return p.unexpected(nameTok, "import name string")
	}
	p.advance()
	if err := p.expectLParen(); err != nil {
		return err
	}
	innerKw := p.advance()
	id, _ := p.optID()
	imp := wasm.Import{Module: modTok.value, Name: nameTok.value}
	switch innerKw.value {
	case "func":
		imp.Kind = wasm.ExternKindFunc
		u, err := parseTypeUse(p, func(t *token) (uint32, error) { return b.resolveTypeToken(p, t) })
		if err != nil {
			return err
		}
		imp.FuncTypeIndex = b.resolveTypeUse(u)
	case "table":
		imp.Kind = wasm.ExternKindTable
		tt, err := parseTableTypeBody(p)
		if err != nil {
			return err
		}
		imp.TableType = tt
	case "memory":
		imp.Kind = wasm.ExternKindMemory
		mt, err := parseMemoryTypeBody(p)
		if err != nil {
			return err
		}
		imp.MemoryType = mt
	case "global":
		imp.Kind = wasm.ExternKindGlobal
		gt, err := parseGlobalTypeBody(p)
		if err != nil {
			return err
		}
		imp.GlobalType = gt
	default:
		return p.errAt(innerKw, "unknown import kind: %s", innerKw.value)
	}
	if err := p.expectRParen(); err != nil {
		return err
	}
	b.mod.ImportSection = append(b.mod.ImportSection, imp)
	if imp.Kind == wasm.ExternKindFunc && id != "" {
		b.nameFunc(b.importFuncIndex(len(b.mod.ImportSection)-1), id)
	}
	return nil
}

func parseTableTypeBody(p *parser) (wasm.TableType, error) {
	lim, err := parseLimits(p)
	if err != nil {
		return wasm.TableType{}, err
	}
	t := p.peek()
	if t == nil || t.typ != tokenKeyword || t.value != "funcref" {
		return wasm.TableType{}, p.unexpected(t, "funcref")
	}
	p.advance()
	return wasm.TableType{Limits: lim, ElemType: wasm.ElemTypeFuncref}, nil
}

func parseMemoryTypeBody(p *parser) (wasm.MemoryType, error) {
	lim, err := parseLimits(p)
	if err != nil {
		return wasm.MemoryType{}, err
	}
	return wasm.MemoryType{Limits: lim}, nil
}

func parseGlobalTypeBody(p *parser) (wasm.GlobalType, error) {
	if p.atLParen() {
		p.advance() // (
		if err := p.expectKeyword("mut"); err != nil {
			return wasm.GlobalType{}, err
		}
		vt, err := parseOneValueType(p)
		if err != nil {
			return wasm.GlobalType{}, err
		}
		if err := p.expectRParen(); err != nil {
			return wasm.GlobalType{}, err
		}
		return wasm.GlobalType{ValType: vt, Mutable: wasm.Var}, nil
	}
	vt, err := parseOneValueType(p)
	if err != nil {
		return wasm.GlobalType{}, err
	}
	return wasm.GlobalType{ValType: vt, Mutable: wasm.Const}, nil
}

func parseLimits(p *parser) (wasm.Limits, error) {
	t := p.peek()
	if t == nil || (t.typ != tokenUN) {
		return wasm.Limits{}, p.unexpected(t, "limits min")
	}
	min, err := parseU32Literal(t.value)
	if err != nil {
		return wasm.Limits{}, p.errAt(t, "%s", err.Error())
	}
	p.advance()
	lim := wasm.Limits{Min: min}
	if t2 := p.peek(); t2 != nil && t2.typ == tokenUN {
		max, err := parseU32Literal(t2.value)
		if err != nil {
			return wasm.Limits{}, p.errAt(t2, "%s", err.Error())
		}
		p.advance()
		lim.Max = &max
	}
	return lim, nil
}

// parseFuncField parses a "func" field, which may be an inline import, carry
// inline export clauses, or be an ordinary local function definition with a
// body.
func (b *moduleBuilder) parseFuncField(p *parser) error {
	id, _ := p.optID()

	var exportNames []string
	for p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "export" {
		p.advance()
		p.advance()
		nameTok := p.peek()
		if nameTok == nil || nameTok.typ != tokenString {
			return p.unexpected(nameTok, "export name string")
		}
		p.advance()
		exportNames = append(exportNames, nameTok.value)
		if err := p.expectRParen(); err != nil {
			return err
		}
	}

	if p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "import" {
		p.advance()
		p.advance()
		modTok := p.peek()
		if modTok == nil || modTok.typ != tokenString {
			return p.unexpected(modTok, "module name string")
		}
		p.advance()
		nameTok := p.peek()
		if nameTok == nil || nameTok.typ != tokenString {
			return p.unexpected(nameTok, "import name string")
		}
		p.advance()
		if err := p.expectRParen(); err != nil {
			return err
		}
		u, err := parseTypeUse(p, func(t *token) (uint32, error) { return b.resolveTypeToken(p, t) })
		if err != nil {
			return err
		}
		b.mod.ImportSection = append(b.mod.ImportSection, wasm.Import{
			Module: modTok.value, Name: nameTok.value, Kind: wasm.ExternKindFunc,
			FuncTypeIndex: b.resolveTypeUse(u),
		})
		realIdx := b.importFuncIndex(len(b.mod.ImportSection) - 1)
		b.addExports(exportNames, wasm.ExternKindFunc, realIdx)
		if id != "" {
			b.nameFunc(realIdx, id)
		}
		return nil
	}

	u, err := parseTypeUse(p, func(t *token) (uint32, error) { return b.resolveTypeToken(p, t) })
	if err != nil {
		return err
	}
	typeIdx := b.resolveTypeUse(u)

	localTypes := append([]wasm.ValueType{}, u.params...)
	localNames := map[uint32]string{}
	for i, n := range u.paramNames {
		if n != "" {
			localNames[uint32(i)] = n
		}
	}
	for p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "local" {
		p.advance()
		p.advance()
		if lid, ok := p.optID(); ok {
			vt, err := parseOneValueType(p)
			if err != nil {
				return err
			}
			localNames[uint32(len(localTypes))] = lid
			localTypes = append(localTypes, vt)
			if err := p.expectRParen(); err != nil {
				return err
			}
			continue
		}
		for !p.atRParen() {
			vt, err := parseOneValueType(p)
			if err != nil {
				return err
			}
			localTypes = append(localTypes, vt)
		}
		if err := p.expectRParen(); err != nil {
			return err
		}
	}

	locals := newIdentResolver()
	locals.count = uint32(len(localTypes))
	for idx, n := range localNames {
		locals.byName[n] = idx
	}

	ctx := &exprContext{
		funcs: b.funcs, globals: b.globals, types: b.types, tables: b.tables, mems: b.mems,
		locals: locals, labels: &labelScope{},
	}
	body, err := parseInstrList(p, ctx, nil)
	if err != nil {
		return err
	}

	b.mod.FunctionSection = append(b.mod.FunctionSection, typeIdx)
	b.mod.CodeSection = append(b.mod.CodeSection, wasm.Code{LocalTypes: localTypes[len(u.params):], Body: body})
	realIdx := uint32(b.mod.ImportFuncCount()) + uint32(len(b.mod.FunctionSection)-1)
	b.addExports(exportNames, wasm.ExternKindFunc, realIdx)
	if id != "" {
		b.nameFunc(realIdx, id)
	}
	if len(localNames) > 0 {
		if b.mod.LocalNames == nil {
			b.mod.LocalNames = map[uint32]map[uint32]string{}
		}
		named := map[uint32]string{}
		for i, n := range localNames {
			if len(n) > 1 {
				n = n[1:]
			}
			named[i] = n
		}
		b.mod.LocalNames[realIdx] = named
	}
	return nil
}

// importFuncIndex returns the function index of the importIdx'th entry in
// ImportSection, valid when that entry is a func import.
func (b *moduleBuilder) importFuncIndex(importIdx int) uint32 {
	var n uint32
	for i := 0; i < importIdx; i++ {
		if b.mod.ImportSection[i].Kind == wasm.ExternKindFunc {
			n++
		}
	}
	return n
}

// nameFunc records a function's symbolic name for diagnostics, stripping
// the identifier's leading '$' (index-space resolution itself is keyed on
// the raw "$name" token text; see identResolver).
func (b *moduleBuilder) nameFunc(idx uint32, name string) {
	if len(name) > 1 {
		name = name[1:]
	}
	if b.mod.FunctionNames == nil {
		b.mod.FunctionNames = map[uint32]string{}
	}
	b.mod.FunctionNames[idx] = name
}

func (b *moduleBuilder) addExports(names []string, kind wasm.ExternKind, idx uint32) {
	for _, n := range names {
		b.mod.ExportSection[n] = wasm.Export{Name: n, Kind: kind, Index: idx}
	}
}

func (b *moduleBuilder) parseTableField(p *parser) error {
	p.optID()
	var exportNames []string
	for p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "export" {
		p.advance()
		p.advance()
		nameTok := p.peek()
		if nameTok == nil || nameTok.typ != tokenString {
			return p.unexpected(nameTok, "export name string")
		}
		p.advance()
		exportNames = append(exportNames, nameTok.value)
		if err := p.expectRParen(); err != nil {
			return err
		}
	}
	tt, err := parseTableTypeBody(p)
	if err != nil {
		return err
	}
	if len(b.mod.TableSection) > 0 {
		return p.errAt(p.peek(), "multiple tables are not supported")
	}
	b.mod.TableSection = append(b.mod.TableSection, tt)
	b.addExports(exportNames, wasm.ExternKindTable, 0)
	return nil
}

func (b *moduleBuilder) parseMemoryField(p *parser) error {
	p.optID()
	var exportNames []string
	for p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "export" {
		p.advance()
		p.advance()
		nameTok := p.peek()
		if nameTok == nil || nameTok.typ != tokenString {
			return p.unexpected(nameTok, "export name string")
		}
		p.advance()
		exportNames = append(exportNames, nameTok.value)
		if err := p.expectRParen(); err != nil {
			return err
		}
	}
	mt, err := parseMemoryTypeBody(p)
	if err != nil {
		return err
	}
	if len(b.mod.MemorySection) > 0 {
		return p.errAt(p.peek(), "multiple memories are not supported")
	}
	b.mod.MemorySection = append(b.mod.MemorySection, mt)
	b.addExports(exportNames, wasm.ExternKindMemory, 0)
	return nil
}

func (b *moduleBuilder) parseGlobalField(p *parser) error {
	p.optID()
	var exportNames []string
	for p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "export" {
		p.advance()
		p.advance()
		nameTok := p.peek()
		if nameTok == nil || nameTok.typ != tokenString {
			return p.unexpected(nameTok, "export name string")
		}
		p.advance()
		exportNames = append(exportNames, nameTok.value)
		if err := p.expectRParen(); err != nil {
			return err
		}
	}
	gt, err := parseGlobalTypeBody(p)
	if err != nil {
		return err
	}
	ce, err := b.parseConstExpr(p)
	if err != nil {
		return err
	}
	idx := b.mod.ImportGlobalCount() + uint32(len(b.mod.GlobalSection))
	b.mod.GlobalSection = append(b.mod.GlobalSection, wasm.Global{Type: gt, Init: ce})
	b.addExports(exportNames, wasm.ExternKindGlobal, idx)
	return nil
}

// parseConstExpr parses the single const-expression grammar used by global
// initializers and element/data offsets —
// restricted to a t.const or an immutable imported global.get.
func (b *moduleBuilder) parseConstExpr(p *parser) (wasm.ConstantExpression, error) {
	ctx := &exprContext{funcs: b.funcs, globals: b.globals, types: b.types, tables: b.tables, mems: b.mems, labels: &labelScope{}}
	ins, err := parseOneInstr(p, ctx)
	if err != nil {
		return wasm.ConstantExpression{}, err
	}
	if len(ins) != 1 {
		return wasm.ConstantExpression{}, errors.New("constant expression must be a single instruction")
	}
	in := ins[0]
	switch in.Opcode {
	case wasm.OpcodeI32Const:
		return wasm.ConstantExpression{Opcode: in.Opcode, ConstI32: in.ConstI32}, nil
	case wasm.OpcodeI64Const:
		return wasm.ConstantExpression{Opcode: in.Opcode, ConstI64: in.ConstI64}, nil
	case wasm.OpcodeF32Const:
		return wasm.ConstantExpression{Opcode: in.Opcode, ConstF32: in.ConstF32}, nil
	case wasm.OpcodeF64Const:
		return wasm.ConstantExpression{Opcode: in.Opcode, ConstF64: in.ConstF64}, nil
	case wasm.OpcodeGlobalGet:
		n := uint32(0)
		for _, im := range b.mod.ImportSection {
			if im.Kind != wasm.ExternKindGlobal {
				continue
			}
			if n == in.Index {
				if im.GlobalType.Mutable != wasm.Const {
					return wasm.ConstantExpression{}, errors.Errorf("constant expression global.get %d names a mutable global", in.Index)
				}
				return wasm.ConstantExpression{Opcode: in.Opcode, GlobalIndex: in.Index}, nil
			}
			n++
		}
		return wasm.ConstantExpression{}, errors.Errorf("constant expression global.get %d does not name an imported global", in.Index)
	default:
		return wasm.ConstantExpression{}, errors.Errorf("invalid constant expression opcode %#x", in.Opcode)
	}
}

func (b *moduleBuilder) parseExportField(p *parser) error {
	nameTok := p.peek()
	if nameTok == nil || nameTok.typ != tokenString {
		return p.unexpected(nameTok, "export name string")
	}
	p.advance()
	if err := p.expectLParen(); err != nil {
		return err
	}
	innerKw := p.advance()
	idxTok := p.peek()
	var idx uint32
	var kind wasm.ExternKind
	var err error
	switch innerKw.value {
	case "func":
		kind = wasm.ExternKindFunc
		idx, err = b.funcs.resolve(p, idxTok)
	case "table":
		kind = wasm.ExternKindTable
		idx, err = b.tables.resolve(p, idxTok)
	case "memory":
		kind = wasm.ExternKindMemory
		idx, err = b.mems.resolve(p, idxTok)
	case "global":
		kind = wasm.ExternKindGlobal
		idx, err = b.globals.resolve(p, idxTok)
	default:
		return p.errAt(innerKw, "unknown export kind: %s", innerKw.value)
	}
	if err != nil {
		return err
	}
	p.advance()
	if err := p.expectRParen(); err != nil {
		return err
	}
	if _, dup := b.mod.ExportSection[nameTok.value]; dup {
		return p.errAt(nameTok, "duplicate export name: %s", nameTok.value)
	}
	b.mod.ExportSection[nameTok.value] = wasm.Export{Name: nameTok.value, Kind: kind, Index: idx}
	return nil
}

func (b *moduleBuilder) parseStartField(p *parser) error {
	t := p.peek()
	idx, err := b.funcs.resolve(p, t)
	if err != nil {
		return err
	}
	p.advance()
	b.mod.StartSection = &idx
	return nil
}

func (b *moduleBuilder) parseElemField(p *parser) error {
	if t := p.peek(); t != nil && (t.typ == tokenUN || t.typ == tokenID) {
		if _, err := b.tables.resolve(p, t); err != nil {
			return err
		}
		p.advance()
	}
	var offset wasm.ConstantExpression
	var err error
	if p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "offset" {
		p.advance()
		p.advance()
		offset, err = b.parseConstExpr(p)
		if err != nil {
			return err
		}
		if err := p.expectRParen(); err != nil {
			return err
		}
	} else {
		offset, err = b.parseConstExpr(p)
		if err != nil {
			return err
		}
	}
	var init []uint32
	for !p.atRParen() {
		t := p.peek()
		idx, err := b.funcs.resolve(p, t)
		if err != nil {
			return err
		}
		p.advance()
		init = append(init, idx)
	}
	b.mod.ElementSection = append(b.mod.ElementSection, wasm.ElementSegment{OffsetExpr: offset, Init: init})
	return nil
}

func (b *moduleBuilder) parseDataField(p *parser) error {
	if t := p.peek(); t != nil && (t.typ == tokenUN || t.typ == tokenID) {
		if _, err := b.mems.resolve(p, t); err != nil {
			return err
		}
		p.advance()
	}
	var offset wasm.ConstantExpression
	var err error
	if p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "offset" {
		p.advance()
		p.advance()
		offset, err = b.parseConstExpr(p)
		if err != nil {
			return err
		}
		if err := p.expectRParen(); err != nil {
			return err
		}
	} else {
		offset, err = b.parseConstExpr(p)
		if err != nil {
			return err
		}
	}
	var data []byte
	for {
		t := p.peek()
		if t == nil || t.typ != tokenString {
			break
		}
		data = append(data, []byte(t.value)...)
		p.advance()
	}
	b.mod.DataSection = append(b.mod.DataSection, wasm.DataSegment{OffsetExpr: offset, Init: data})
	return nil
}
