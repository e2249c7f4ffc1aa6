package text

import (
	"github.com/wasmcore/wasmcore/internal/wasm"
)

// exprContext carries the index-space lookups an instruction sequence needs
// to resolve identifiers to numeric indices, plus the label stack live while
// parsing the current function body. Built once per function by the module
// parser's second pass, after the first pass has populated every resolver.
type exprContext struct {
	funcs   *identResolver
	globals *identResolver
	types   *identResolver
	tables  *identResolver
	mems    *identResolver
	locals  *identResolver
	labels  *labelScope
}

// parseInstrList parses a flat run of instructions (plain and folded, mixed
// freely) until the next token closes the enclosing paren or is one of
// stopWords (the "end"/"else" keywords that close a plain block/if): this is
// the grammar shared by a function body, a block's body, and a folded
// then/else clause.
func parseInstrList(p *parser, ctx *exprContext, stopWords map[string]bool) ([]wasm.Instruction, error) {
	var out []wasm.Instruction
	for {
		if p.atRParen() {
			return out, nil
		}
		if t := p.peek(); t != nil && t.typ == tokenKeyword && stopWords[t.value] {
			return out, nil
		}
		if p.done() {
			return out, nil
		}
		ins, err := parseOneInstr(p, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, ins...)
	}
}

var blockStopWords = map[string]bool{"end": true}
var ifPlainStopWords = map[string]bool{"else": true, "end": true}

// parseOneInstr parses one source-level instruction, which may expand to
// several flattened wasm.Instruction values when it is a folded expression:
// folded syntax "(op arg-exprs...)" expands, post-order, to the same
// flattened form as the unfolded sequence.
func parseOneInstr(p *parser, ctx *exprContext) ([]wasm.Instruction, error) {
	if p.atLParen() {
		return parseFoldedInstr(p, ctx)
	}
	return parsePlainInstr(p, ctx)
}

func parsePlainInstr(p *parser, ctx *exprContext) ([]wasm.Instruction, error) {
	t := p.peek()
	if t == nil || t.typ != tokenKeyword {
		return nil, p.unexpected(t, "instruction")
	}
	switch t.value {
	case "block", "loop":
		return parsePlainBlock(p, ctx, t.value)
	case "if":
		return parsePlainIf(p, ctx)
	}
	p.advance()
	ins, err := parseInstrBody(p, ctx, t)
	if err != nil {
		return nil, err
	}
	return []wasm.Instruction{ins}, nil
}

func parsePlainBlock(p *parser, ctx *exprContext, kw string) ([]wasm.Instruction, error) {
	p.advance() // block|loop
	label, _ := p.optID()
	bt, err := parseBlockType(p)
	if err != nil {
		return nil, err
	}
	ctx.labels.push(label)
	body, err := parseInstrList(p, ctx, blockStopWords)
	ctx.labels.pop()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	p.optID() // optional matching end label, not semantically checked
	op := wasm.OpcodeBlock
	if kw == "loop" {
		op = wasm.OpcodeLoop
	}
	return []wasm.Instruction{{Opcode: op, BlockType: bt, Then: body}}, nil
}

func parsePlainIf(p *parser, ctx *exprContext) ([]wasm.Instruction, error) {
	p.advance() // if
	label, _ := p.optID()
	bt, err := parseBlockType(p)
	if err != nil {
		return nil, err
	}
	ctx.labels.push(label)
	thenBody, err := parseInstrList(p, ctx, ifPlainStopWords)
	if err != nil {
		ctx.labels.pop()
		return nil, err
	}
	var elseBody []wasm.Instruction
	if p.atKeyword("else") {
		p.advance()
		p.optID()
		elseBody, err = parseInstrList(p, ctx, blockStopWords)
		if err != nil {
			ctx.labels.pop()
			return nil, err
		}
	}
	ctx.labels.pop()
	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	p.optID()
	return []wasm.Instruction{{Opcode: wasm.OpcodeIf, BlockType: bt, Then: thenBody, Else: elseBody}}, nil
}

// parseBlockType parses the optional "(result valtype)" clause. Multi-value
// blocks (a type index naming >1 result) are out of scope.
func parseBlockType(p *parser) (int64, error) {
	if p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "result" {
		p.advance()
		p.advance()
		var results []wasm.ValueType
		for !p.atRParen() {
			vt, err := parseOneValueType(p)
			if err != nil {
				return 0, err
			}
			results = append(results, vt)
		}
		if err := p.expectRParen(); err != nil {
			return 0, err
		}
		switch len(results) {
		case 0:
			return wasm.BlockTypeEmptySentinel, nil
		case 1:
			return wasm.BlockTypeValueSentinel(results[0]), nil
		default:
			return 0, p.errAt(p.peek(), "multi-value block types are not supported")
		}
	}
	return wasm.BlockTypeEmptySentinel, nil
}

// parseFoldedInstr parses "(op arg-expr*)" and its block/loop/if folded
// variants, expanding operand sub-expressions in post-order ahead of the
// operator itself.
func parseFoldedInstr(p *parser, ctx *exprContext) ([]wasm.Instruction, error) {
	if err := p.expectLParen(); err != nil {
		return nil, err
	}
	kw := p.peek()
	if kw == nil || kw.typ != tokenKeyword {
		return nil, p.unexpected(kw, "instruction")
	}
	switch kw.value {
	case "block", "loop":
		p.advance()
		label, _ := p.optID()
		bt, err := parseBlockType(p)
		if err != nil {
			return nil, err
		}
		ctx.labels.push(label)
		body, err := parseInstrList(p, ctx, nil)
		ctx.labels.pop()
		if err != nil {
			return nil, err
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		op := wasm.OpcodeBlock
		if kw.value == "loop" {
			op = wasm.OpcodeLoop
		}
		return []wasm.Instruction{{Opcode: op, BlockType: bt, Then: body}}, nil

	case "if":
		p.advance()
		label, _ := p.optID()
		bt, err := parseBlockType(p)
		if err != nil {
			return nil, err
		}
		var condInstrs []wasm.Instruction
		for !(p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "then") {
			if p.atRParen() {
				return nil, p.unexpected(p.peek(), "'(then ...)'")
			}
			ins, err := parseOneInstr(p, ctx)
			if err != nil {
				return nil, err
			}
			condInstrs = append(condInstrs, ins...)
		}
		p.advance() // (
		p.advance() // then
		ctx.labels.push(label)
		thenBody, err := parseInstrList(p, ctx, nil)
		if err != nil {
			ctx.labels.pop()
			return nil, err
		}
		if err := p.expectRParen(); err != nil {
			ctx.labels.pop()
			return nil, err
		}
		var elseBody []wasm.Instruction
		if p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "else" {
			p.advance()
			p.advance()
			elseBody, err = parseInstrList(p, ctx, nil)
			if err != nil {
				ctx.labels.pop()
				return nil, err
			}
			if err := p.expectRParen(); err != nil {
				ctx.labels.pop()
				return nil, err
			}
		}
		ctx.labels.pop()
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		return append(condInstrs, wasm.Instruction{Opcode: wasm.OpcodeIf, BlockType: bt, Then: thenBody, Else: elseBody}), nil

	default:
		p.advance()
		ins, err := parseInstrBody(p, ctx, kw)
		if err != nil {
			return nil, err
		}
		var argInstrs []wasm.Instruction
		for !p.atRParen() {
			sub, err := parseOneInstr(p, ctx)
			if err != nil {
				return nil, err
			}
			argInstrs = append(argInstrs, sub...)
		}
		if err := p.expectRParen(); err != nil {
			return nil, err
		}
		return append(argInstrs, ins), nil
	}
}

// parseInstrBody parses a plain opcode's own immediates, given kw is already
// consumed as the current instruction's mnemonic. It does not touch any
// parenthesized argument sub-expressions; folded callers consume those
// separately.
func parseInstrBody(p *parser, ctx *exprContext, kw *token) (wasm.Instruction, error) {
	info, ok := mnemonics[kw.value]
	if !ok {
		return wasm.Instruction{}, p.errAt(kw, "unknown instruction: %s", kw.value)
	}
	switch info.kind {
	case instrBare:
		return wasm.Instruction{Opcode: info.opcode}, nil

	case instrMisc:
		return wasm.Instruction{Opcode: info.opcode, Index: info.miscSub}, nil

	case instrIndex:
		idx, err := resolveInstrIndex(p, ctx, kw.value)
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: info.opcode, Index: idx}, nil

	case instrBranchIndex:
		t := p.peek()
		idx, err := ctx.labels.resolve(p, t)
		if err != nil {
			return wasm.Instruction{}, err
		}
		p.advance()
		return wasm.Instruction{Opcode: info.opcode, Index: idx}, nil

	case instrBrTable:
		var targets []uint32
		for {
			t := p.peek()
			if t == nil || (t.typ != tokenUN && t.typ != tokenID) {
				break
			}
			idx, err := ctx.labels.resolve(p, t)
			if err != nil {
				return wasm.Instruction{}, err
			}
			p.advance()
			targets = append(targets, idx)
		}
		if len(targets) == 0 {
			return wasm.Instruction{}, p.unexpected(p.peek(), "branch table label")
		}
		def := targets[len(targets)-1]
		targets = targets[:len(targets)-1]
		return wasm.Instruction{Opcode: info.opcode, TargetLabels: targets, DefaultLabel: def}, nil

	case instrCallIndirect:
		resolved, err := parseTypeUse(p, func(t *token) (uint32, error) { return ctx.types.resolve(p, t) })
		if err != nil {
			return wasm.Instruction{}, err
		}
		typeIdx, err := resolveCallIndirectType(ctx, resolved)
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: info.opcode, Index: 0, Index2: typeIdx}, nil

	case instrMem:
		align, offset, err := parseMemArg(p, info.opcode)
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: info.opcode, Align: align, Offset: offset}, nil

	case instrMemSizeGrow:
		return wasm.Instruction{Opcode: info.opcode}, nil

	case instrI32Const:
		t := p.peek()
		if t == nil || (t.typ != tokenUN && t.typ != tokenSN) {
			return wasm.Instruction{}, p.unexpected(t, "i32 literal")
		}
		v, err := parseI32Literal(t.value)
		if err != nil {
			return wasm.Instruction{}, p.errAt(t, "%s", err.Error())
		}
		p.advance()
		return wasm.Instruction{Opcode: info.opcode, ConstI32: v}, nil

	case instrI64Const:
		t := p.peek()
		if t == nil || (t.typ != tokenUN && t.typ != tokenSN) {
			return wasm.Instruction{}, p.unexpected(t, "i64 literal")
		}
		v, err := parseI64Literal(t.value)
		if err != nil {
			return wasm.Instruction{}, p.errAt(t, "%s", err.Error())
		}
		p.advance()
		return wasm.Instruction{Opcode: info.opcode, ConstI64: v}, nil

	case instrF32Const:
		t := p.peek()
		if t == nil {
			return wasm.Instruction{}, p.unexpected(t, "f32 literal")
		}
		v, err := parseF32Literal(t.value)
		if err != nil {
			return wasm.Instruction{}, p.errAt(t, "%s", err.Error())
		}
		p.advance()
		return wasm.Instruction{Opcode: info.opcode, ConstF32: v}, nil

	case instrF64Const:
		t := p.peek()
		if t == nil {
			return wasm.Instruction{}, p.unexpected(t, "f64 literal")
		}
		v, err := parseF64Literal(t.value)
		if err != nil {
			return wasm.Instruction{}, p.errAt(t, "%s", err.Error())
		}
		p.advance()
		return wasm.Instruction{Opcode: info.opcode, ConstF64: v}, nil

	default:
		return wasm.Instruction{}, p.errAt(kw, "unsupported instruction form: %s", kw.value)
	}
}

func resolveInstrIndex(p *parser, ctx *exprContext, mnemonic string) (uint32, error) {
	var r *identResolver
	switch mnemonic {
	case "local.get", "local.set", "local.tee":
		r = ctx.locals
	case "global.get", "global.set":
		r = ctx.globals
	case "call":
		r = ctx.funcs
	default:
		r = ctx.funcs
	}
	t := p.peek()
	idx, err := r.resolve(p, t)
	if err != nil {
		return 0, err
	}
	p.advance()
	return idx, nil
}

// resolveCallIndirectType returns the type index a call_indirect's type-use
// names. The inline-type-synthesis abbreviation applies to function
// definitions, not call sites: registering an implicit type definition here
// is not supported, and the grammar requires call_indirect name an existing
// type.
func resolveCallIndirectType(ctx *exprContext, u resolvedTypeUse) (uint32, error) {
	if u.typeIdx != nil {
		return *u.typeIdx, nil
	}
	return 0, errNoSuchMnemonic
}

// parseMemArg parses the optional "offsetN"/"alignN" attributes following a
// load/store mnemonic, defaulting align to the access size's natural
// alignment.
func parseMemArg(p *parser, op wasm.Opcode) (align, offset uint32, err error) {
	align = naturalAlignLog2(op)
	offset = 0
	for {
		t := p.peek()
		if t == nil || t.typ != tokenKeyword {
			break
		}
		switch {
		case len(t.value) > 7 && t.value[:7] == "offset=":
			v, perr := parseU32Literal(t.value[7:])
			if perr != nil {
				return 0, 0, p.errAt(t, "%s", perr.Error())
			}
			offset = v
			p.advance()
		case len(t.value) > 6 && t.value[:6] == "align=":
			v, perr := parseU32Literal(t.value[6:])
			if perr != nil {
				return 0, 0, p.errAt(t, "%s", perr.Error())
			}
			align = log2Align(v)
			p.advance()
		default:
			return align, offset, nil
		}
	}
	return align, offset, nil
}

func log2Align(n uint32) uint32 {
	var log2 uint32
	for n > 1 {
		n >>= 1
		log2++
	}
	return log2
}

func naturalAlignLog2(op wasm.Opcode) uint32 {
	switch op {
	case wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U,
		wasm.OpcodeI32Store8, wasm.OpcodeI64Store8:
		return 0
	case wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI32Store16, wasm.OpcodeI64Store16:
		return 1
	case wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U, wasm.OpcodeI64Store32,
		wasm.OpcodeI32Load, wasm.OpcodeF32Load, wasm.OpcodeI32Store, wasm.OpcodeF32Store:
		return 2
	default:
		return 3
	}
}
