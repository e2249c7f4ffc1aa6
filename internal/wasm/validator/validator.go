// Package validator implements the static type-checker. It simulates the
// operand stack symbolically under a polymorphic "unreachable" discipline
// and a control-frame stack, with result arity capped at 1.
package validator

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

// ValidationError reports a type-safety or structural violation found
// while validating a module.
type ValidationError struct {
	FuncIndex int
	Context   string
	Cause     error
}

func (e *ValidationError) Error() string {
	if e.FuncIndex >= 0 {
		return "validation error in function " + itoa(e.FuncIndex) + ": " + e.Cause.Error()
	}
	return "validation error: " + e.Cause.Error()
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b [20]byte
	p := len(b)
	for i > 0 {
		p--
		b[p] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		p--
		b[p] = '-'
	}
	return string(b[p:])
}

func errf(format string, args ...interface{}) error { return errors.Errorf(format, args...) }

// operand is an operand-stack entry: either a concrete ValueType, or an
// Unknown pseudo-type produced once the enclosing frame went unreachable.
type operand struct {
	vt      wasm.ValueType
	unknown bool
}

func known(vt wasm.ValueType) operand { return operand{vt: vt} }

var unknownOperand = operand{unknown: true}

// controlFrame tracks one nested block/loop/if.
type controlFrame struct {
	opcode      wasm.Opcode
	startTypes  []wasm.ValueType // the frame's declared "in" types (block params; empty except for a type-index block, whose params validate against the outer stack at entry).
	endTypes    []wasm.ValueType // the frame's declared result types.
	labelTypes  []wasm.ValueType // what `br` to this frame expects: endTypes for block/if, startTypes for loop.
	height      int              // operand stack height at frame entry.
	unreachable bool
}

// funcState is the per-function validation context: the module context
// augmented with locals, labels, return type, and the operand stack.
type funcState struct {
	module *wasm.Module

	locals     []wasm.ValueType
	returnType []wasm.ValueType // empty or one element.

	operands []operand
	frames   []controlFrame
}

func (f *funcState) push(vt wasm.ValueType) { f.operands = append(f.operands, known(vt)) }

func (f *funcState) pushUnknown() { f.operands = append(f.operands, unknownOperand) }

// pop removes and returns the top operand, respecting the polymorphic
// unreachable discipline: once the current frame is unreachable, popping
// past its height succeeds with an Unknown.
func (f *funcState) pop() (operand, error) {
	cur := &f.frames[len(f.frames)-1]
	if len(f.operands) == cur.height {
		if cur.unreachable {
			return unknownOperand, nil
		}
		return operand{}, errf("operand stack underflow")
	}
	op := f.operands[len(f.operands)-1]
	f.operands = f.operands[:len(f.operands)-1]
	return op, nil
}

// popExpect pops one operand and checks it against want, unifying with
// Unknown.
func (f *funcState) popExpect(want wasm.ValueType) error {
	op, err := f.pop()
	if err != nil {
		return err
	}
	if op.unknown {
		return nil
	}
	if op.vt != want {
		return errf("type mismatch: expected %s, got %s", wasm.ValueTypeName(want), wasm.ValueTypeName(op.vt))
	}
	return nil
}

func (f *funcState) popExpectAll(want []wasm.ValueType) error {
	for i := len(want) - 1; i >= 0; i-- {
		if err := f.popExpect(want[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *funcState) pushAll(vts []wasm.ValueType) {
	for _, vt := range vts {
		f.push(vt)
	}
}

func (f *funcState) setUnreachable() {
	cur := &f.frames[len(f.frames)-1]
	f.operands = f.operands[:cur.height]
	cur.unreachable = true
}

func (f *funcState) pushFrame(opcode wasm.Opcode, in, out []wasm.ValueType, labelTypes []wasm.ValueType) {
	f.frames = append(f.frames, controlFrame{
		opcode: opcode, startTypes: in, endTypes: out, labelTypes: labelTypes, height: len(f.operands),
	})
}

// popFrame validates that the operand stack matches the frame's declared
// result types exactly at the frame's starting height, then pops it.
func (f *funcState) popFrame() (controlFrame, error) {
	cur := f.frames[len(f.frames)-1]
	if err := f.popExpectAll(cur.endTypes); err != nil {
		return cur, err
	}
	if len(f.operands) != cur.height {
		return cur, errf("control frame exited with extra operands on the stack")
	}
	f.frames = f.frames[:len(f.frames)-1]
	return cur, nil
}

func (f *funcState) frameAt(depth uint32) (*controlFrame, error) {
	if int(depth) >= len(f.frames) {
		return nil, errf("invalid branch depth %d", depth)
	}
	return &f.frames[len(f.frames)-1-int(depth)], nil
}

// ValidateModule validates every locally-defined function body in module.
// It first applies the module-level structural checks of
// ValidateModuleStructure (single table/memory, limits and the like), then
// type-checks each body.
func ValidateModule(module *wasm.Module) error {
	if err := ValidateModuleStructure(module); err != nil {
		return err
	}
	importFuncs := module.ImportFuncCount()
	for i, code := range module.CodeSection {
		funcIdx := importFuncs + uint32(i)
		ft, ok := module.TypeOfFunction(funcIdx)
		if !ok {
			return &ValidationError{FuncIndex: int(funcIdx), Cause: errf("function has no resolvable type")}
		}
		if err := validateFunctionBody(module, ft, code); err != nil {
			return &ValidationError{FuncIndex: int(funcIdx), Cause: err}
		}
	}
	return nil
}

// ValidateModuleStructure checks the module-level invariants that are not
// per-function: export name uniqueness, at most one table/memory (counting
// imports), result arity ≤ 1, limits within range.
func ValidateModuleStructure(module *wasm.Module) error {
	importTables, importMems := 0, 0
	for _, im := range module.ImportSection {
		switch im.Kind {
		case wasm.ExternKindTable:
			importTables++
		case wasm.ExternKindMemory:
			importMems++
		}
	}
	if importTables+len(module.TableSection) > 1 {
		return errf("module declares more than one table")
	}
	if importMems+len(module.MemorySection) > 1 {
		return errf("module declares more than one memory")
	}
	for _, mt := range module.MemorySection {
		if mt.Min > wasm.MemoryMaxPages || (mt.Max != nil && *mt.Max > wasm.MemoryMaxPages) {
			return errf("memory limits exceed %d pages", wasm.MemoryMaxPages)
		}
		if mt.Max != nil && mt.Min > *mt.Max {
			return errf("memory min exceeds max")
		}
	}
	for _, tt := range module.TableSection {
		if tt.Max != nil && tt.Min > *tt.Max {
			return errf("table min exceeds max")
		}
	}
	for _, ft := range module.TypeSection {
		if len(ft.Results) > 1 {
			return errf("function type has more than one result (multi-value is out of scope)")
		}
	}
	// Export name uniqueness is enforced by construction: ExportSection is
	// keyed by name, so the decoder rejects a duplicate before a Module
	// value can exist with one.
	return nil
}

// validateFunctionBody runs the type-checking algorithm over one function's
// flattened instruction list.
func validateFunctionBody(module *wasm.Module, ft *wasm.FunctionType, code wasm.Code) error {
	f := &funcState{module: module, returnType: ft.Results}
	f.locals = append(f.locals, ft.Params...)
	f.locals = append(f.locals, code.LocalTypes...)

	// The outer function frame: br to it behaves like `return`.
	f.pushFrame(wasm.OpcodeCall, nil, ft.Results, ft.Results)

	if err := validateInstructions(f, code.Body); err != nil {
		return err
	}

	if _, err := f.popFrame(); err != nil {
		return err
	}
	return nil
}

func validateInstructions(f *funcState, body []wasm.Instruction) error {
	for _, ins := range body {
		if err := validateOne(f, ins); err != nil {
			return err
		}
	}
	return nil
}

func validateOne(f *funcState, ins wasm.Instruction) error {
	if sig, ok := fixedSignatures[ins.Opcode]; ok {
		if err := f.popExpectAll(sig.in); err != nil {
			return errf("%s: %v", opcodeName(ins.Opcode), err)
		}
		f.pushAll(sig.out)
		return nil
	}

	switch ins.Opcode {
	case wasm.OpcodeMiscPrefix:
		msig, ok := miscSignatures[byte(ins.Index)]
		if !ok {
			return errf("unknown misc opcode 0x%x", ins.Index)
		}
		if err := f.popExpectAll(msig.in); err != nil {
			return err
		}
		f.pushAll(msig.out)

	case wasm.OpcodeNop:
		// no-op.

	case wasm.OpcodeUnreachable:
		f.setUnreachable()

	case wasm.OpcodeDrop:
		if _, err := f.pop(); err != nil {
			return errf("drop: %v", err)
		}

	case wasm.OpcodeSelect:
		if err := f.popExpect(wasm.ValueTypeI32); err != nil {
			return errf("select: %v", err)
		}
		b, err := f.pop()
		if err != nil {
			return errf("select: %v", err)
		}
		a, err := f.pop()
		if err != nil {
			return errf("select: %v", err)
		}
		if !a.unknown && !b.unknown && a.vt != b.vt {
			return errf("select: operand types differ (%s vs %s)", wasm.ValueTypeName(a.vt), wasm.ValueTypeName(b.vt))
		}
		switch {
		case !a.unknown:
			f.push(a.vt)
		case !b.unknown:
			f.push(b.vt)
		default:
			f.pushUnknown()
		}

	case wasm.OpcodeLocalGet:
		vt, err := localType(f, ins.Index)
		if err != nil {
			return err
		}
		f.push(vt)
	case wasm.OpcodeLocalSet:
		vt, err := localType(f, ins.Index)
		if err != nil {
			return err
		}
		if err := f.popExpect(vt); err != nil {
			return errf("local.set: %v", err)
		}
	case wasm.OpcodeLocalTee:
		vt, err := localType(f, ins.Index)
		if err != nil {
			return err
		}
		if err := f.popExpect(vt); err != nil {
			return errf("local.tee: %v", err)
		}
		f.push(vt)

	case wasm.OpcodeGlobalGet:
		gt, err := globalType(f.module, ins.Index)
		if err != nil {
			return err
		}
		f.push(gt.ValType)
	case wasm.OpcodeGlobalSet:
		gt, err := globalType(f.module, ins.Index)
		if err != nil {
			return err
		}
		if gt.Mutable != wasm.Var {
			return errf("global.set: global %d is immutable", ins.Index)
		}
		if err := f.popExpect(gt.ValType); err != nil {
			return errf("global.set: %v", err)
		}

	case wasm.OpcodeMemorySize:
		if !f.module.HasMemory() {
			return errf("memory.size: no memory 0")
		}
		f.push(wasm.ValueTypeI32)
	case wasm.OpcodeMemoryGrow:
		if !f.module.HasMemory() {
			return errf("memory.grow: no memory 0")
		}
		if err := f.popExpect(wasm.ValueTypeI32); err != nil {
			return errf("memory.grow: %v", err)
		}
		f.push(wasm.ValueTypeI32)

	case wasm.OpcodeI32Load, wasm.OpcodeI64Load, wasm.OpcodeF32Load, wasm.OpcodeF64Load,
		wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U:
		if !f.module.HasMemory() {
			return errf("%s: no memory 0", opcodeName(ins.Opcode))
		}
		if err := validateAlign(ins.Opcode, ins.Align); err != nil {
			return err
		}
		if err := f.popExpect(wasm.ValueTypeI32); err != nil {
			return errf("%s: %v", opcodeName(ins.Opcode), err)
		}
		f.push(loadResultType(ins.Opcode))

	case wasm.OpcodeI32Store, wasm.OpcodeI64Store, wasm.OpcodeF32Store, wasm.OpcodeF64Store,
		wasm.OpcodeI32Store8, wasm.OpcodeI32Store16, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		if !f.module.HasMemory() {
			return errf("%s: no memory 0", opcodeName(ins.Opcode))
		}
		if err := validateAlign(ins.Opcode, ins.Align); err != nil {
			return err
		}
		if err := f.popExpect(storeValueType(ins.Opcode)); err != nil {
			return errf("%s: %v", opcodeName(ins.Opcode), err)
		}
		if err := f.popExpect(wasm.ValueTypeI32); err != nil {
			return errf("%s: %v", opcodeName(ins.Opcode), err)
		}

	case wasm.OpcodeBlock, wasm.OpcodeLoop:
		in, out, err := wasm.BlockResultType(ins.BlockType, f.module.TypeSection)
		if err != nil {
			return err
		}
		if err := f.popExpectAll(in); err != nil {
			return err
		}
		f.pushAll(in) // re-push: block params are visible inside the block.
		labelTypes := out
		if ins.Opcode == wasm.OpcodeLoop {
			labelTypes = in
		}
		f.pushFrame(ins.Opcode, in, out, labelTypes)
		if err := validateInstructions(f, ins.Then); err != nil {
			return err
		}
		if _, err := f.popFrame(); err != nil {
			return err
		}
		f.pushAll(out)

	case wasm.OpcodeIf:
		if err := f.popExpect(wasm.ValueTypeI32); err != nil {
			return errf("if: %v", err)
		}
		in, out, err := wasm.BlockResultType(ins.BlockType, f.module.TypeSection)
		if err != nil {
			return err
		}
		if err := f.popExpectAll(in); err != nil {
			return err
		}
		f.pushAll(in)
		f.pushFrame(wasm.OpcodeIf, in, out, out)
		if err := validateInstructions(f, ins.Then); err != nil {
			return err
		}
		if _, err := f.popFrame(); err != nil {
			return err
		}
		if len(ins.Else) == 0 {
			if len(out) > 0 {
				return errf("if: branch with no else cannot produce a result")
			}
		} else {
			f.pushAll(in)
			f.pushFrame(wasm.OpcodeElse, in, out, out)
			if err := validateInstructions(f, ins.Else); err != nil {
				return err
			}
			if _, err := f.popFrame(); err != nil {
				return err
			}
		}
		f.pushAll(out)

	case wasm.OpcodeBr:
		target, err := f.frameAt(ins.Index)
		if err != nil {
			return err
		}
		if err := f.popExpectAll(target.labelTypes); err != nil {
			return errf("br: %v", err)
		}
		f.setUnreachable()

	case wasm.OpcodeBrIf:
		if err := f.popExpect(wasm.ValueTypeI32); err != nil {
			return errf("br_if: %v", err)
		}
		target, err := f.frameAt(ins.Index)
		if err != nil {
			return err
		}
		if err := f.popExpectAll(target.labelTypes); err != nil {
			return errf("br_if: %v", err)
		}
		f.pushAll(target.labelTypes)

	case wasm.OpcodeBrTable:
		if err := f.popExpect(wasm.ValueTypeI32); err != nil {
			return errf("br_table: %v", err)
		}
		def, err := f.frameAt(ins.DefaultLabel)
		if err != nil {
			return err
		}
		for _, l := range ins.TargetLabels {
			tgt, err := f.frameAt(l)
			if err != nil {
				return err
			}
			if len(tgt.labelTypes) != len(def.labelTypes) {
				return errf("br_table: target arity mismatch")
			}
			for i := range tgt.labelTypes {
				if tgt.labelTypes[i] != def.labelTypes[i] {
					return errf("br_table: target type mismatch")
				}
			}
		}
		if err := f.popExpectAll(def.labelTypes); err != nil {
			return errf("br_table: %v", err)
		}
		f.setUnreachable()

	case wasm.OpcodeReturn:
		if err := f.popExpectAll(f.returnType); err != nil {
			return errf("return: %v", err)
		}
		f.setUnreachable()

	case wasm.OpcodeCall:
		ft, ok := f.module.TypeOfFunction(ins.Index)
		if !ok {
			return errf("call: function index %d out of range", ins.Index)
		}
		if err := f.popExpectAll(ft.Params); err != nil {
			return errf("call: %v", err)
		}
		f.pushAll(ft.Results)

	case wasm.OpcodeCallIndirect:
		if !f.module.HasTable() {
			return errf("call_indirect: no table 0")
		}
		if int(ins.Index2) >= len(f.module.TypeSection) {
			return errf("call_indirect: type index %d out of range", ins.Index2)
		}
		ft := f.module.TypeSection[ins.Index2]
		if err := f.popExpect(wasm.ValueTypeI32); err != nil {
			return errf("call_indirect: %v", err)
		}
		if err := f.popExpectAll(ft.Params); err != nil {
			return errf("call_indirect: %v", err)
		}
		f.pushAll(ft.Results)

	default:
		return errf("unsupported opcode 0x%x", ins.Opcode)
	}
	return nil
}

func localType(f *funcState, idx uint32) (wasm.ValueType, error) {
	if int(idx) >= len(f.locals) {
		return 0, errf("local index %d out of range", idx)
	}
	return f.locals[idx], nil
}

func globalType(module *wasm.Module, idx uint32) (wasm.GlobalType, error) {
	importCount := module.ImportGlobalCount()
	if idx < importCount {
		n := uint32(0)
		for _, im := range module.ImportSection {
			if im.Kind == wasm.ExternKindGlobal {
				if n == idx {
					return im.GlobalType, nil
				}
				n++
			}
		}
	}
	localIdx := idx - importCount
	if int(localIdx) >= len(module.GlobalSection) {
		return wasm.GlobalType{}, errf("global index %d out of range", idx)
	}
	return module.GlobalSection[localIdx].Type, nil
}

// naturalAlignBits maps each load/store opcode to the maximum permitted
// alignment hint, log2(N/8) where the alignment must satisfy 2^align ≤ N/8.
func naturalAlignBits(op wasm.Opcode) uint32 {
	switch op {
	case wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U,
		wasm.OpcodeI32Store8, wasm.OpcodeI64Store8:
		return 0
	case wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI32Store16, wasm.OpcodeI64Store16:
		return 1
	case wasm.OpcodeI32Load, wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U, wasm.OpcodeF32Load,
		wasm.OpcodeI32Store, wasm.OpcodeI64Store32, wasm.OpcodeF32Store:
		return 2
	case wasm.OpcodeI64Load, wasm.OpcodeF64Load, wasm.OpcodeI64Store, wasm.OpcodeF64Store:
		return 3
	default:
		return 3
	}
}

func validateAlign(op wasm.Opcode, align uint32) error {
	if align > naturalAlignBits(op) {
		return errf("%s: alignment 2^%d exceeds natural alignment", opcodeName(op), align)
	}
	return nil
}

func loadResultType(op wasm.Opcode) wasm.ValueType {
	switch op {
	case wasm.OpcodeI32Load, wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U:
		return wasm.ValueTypeI32
	case wasm.OpcodeI64Load, wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U:
		return wasm.ValueTypeI64
	case wasm.OpcodeF32Load:
		return wasm.ValueTypeF32
	case wasm.OpcodeF64Load:
		return wasm.ValueTypeF64
	}
	panic("unreachable")
}

// opcodeName renders an opcode for diagnostics. Only the opcodes that
// appear in hand-written error messages above need a mnemonic; anything
// else falls back to its hex byte.
func opcodeName(op wasm.Opcode) string {
	switch op {
	case wasm.OpcodeI32Load:
		return "i32.load"
	case wasm.OpcodeI64Load:
		return "i64.load"
	case wasm.OpcodeF32Load:
		return "f32.load"
	case wasm.OpcodeF64Load:
		return "f64.load"
	case wasm.OpcodeI32Load8S:
		return "i32.load8_s"
	case wasm.OpcodeI32Load8U:
		return "i32.load8_u"
	case wasm.OpcodeI32Load16S:
		return "i32.load16_s"
	case wasm.OpcodeI32Load16U:
		return "i32.load16_u"
	case wasm.OpcodeI64Load8S:
		return "i64.load8_s"
	case wasm.OpcodeI64Load8U:
		return "i64.load8_u"
	case wasm.OpcodeI64Load16S:
		return "i64.load16_s"
	case wasm.OpcodeI64Load16U:
		return "i64.load16_u"
	case wasm.OpcodeI64Load32S:
		return "i64.load32_s"
	case wasm.OpcodeI64Load32U:
		return "i64.load32_u"
	case wasm.OpcodeI32Store:
		return "i32.store"
	case wasm.OpcodeI64Store:
		return "i64.store"
	case wasm.OpcodeF32Store:
		return "f32.store"
	case wasm.OpcodeF64Store:
		return "f64.store"
	case wasm.OpcodeI32Store8:
		return "i32.store8"
	case wasm.OpcodeI32Store16:
		return "i32.store16"
	case wasm.OpcodeI64Store8:
		return "i64.store8"
	case wasm.OpcodeI64Store16:
		return "i64.store16"
	case wasm.OpcodeI64Store32:
		return "i64.store32"
	default:
		return fmt.Sprintf("0x%x", op)
	}
}

func storeValueType(op wasm.Opcode) wasm.ValueType {
	switch op {
	case wasm.OpcodeI32Store, wasm.OpcodeI32Store8, wasm.OpcodeI32Store16:
		return wasm.ValueTypeI32
	case wasm.OpcodeI64Store, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		return wasm.ValueTypeI64
	case wasm.OpcodeF32Store:
		return wasm.ValueTypeF32
	case wasm.OpcodeF64Store:
		return wasm.ValueTypeF64
	}
	panic("unreachable")
}
