package wazeroir

import "github.com/wasmcore/wasmcore/internal/wasm"

// patchKind selects which field of a pending Operation a forward branch
// patch resolves into once its target frame closes.
type patchKind int

const (
	patchTarget patchKind = iota
	patchTargetDefault
	patchTargets // patchIndex selects Targets[patchIndex]
)

// patch additionally carries the target frame's Base/Arity, already
// known the moment the branch is recorded (they depend only on the
// frame's own height and declared label arity, not on its as-yet-
// unresolved absolute index).
type patch struct {
	opIdx      int
	kind       patchKind
	slotInList int
	base       int
	arity      int
}

// frame tracks one open block/loop/if while compiling, so a br/br_if/
// br_table referencing it by depth can be resolved to an absolute
// operation index: immediately for a loop (the branch target is the
// frame's own start, already emitted), or deferred via patch for a
// block/if (the branch target is the position after the frame's End
// marker, not known until it closes).
//
// height is the operand-stack height measured when the frame was
// entered; arity is how many values a branch to this label carries
// across it (the label's result types for a block/if, its declared
// parameter types for a loop, which is what a backward branch re-feeds
// the loop header). Together they tell the interpreter how to reshape
// vm.stack when a branch to this frame is taken.
type frame struct {
	isLoop   bool
	startIdx int
	pending  []patch
	height   int
	arity    int
}

// compiler holds the state for flattening one function body. Forward
// branches are recorded as pending patches and resolved once their target
// PC is known.
//
// height mirrors, instruction by instruction, the length vm.stack will
// have at run time; it lets the compiler stamp every block/loop/if frame
// with the operand-stack height it was entered at, which a later branch
// to that frame needs to know how much of the stack to discard.
type compiler struct {
	ops    []Operation
	frames []frame
	height int

	typeSection []wasm.FunctionType
	calleeType  func(funcIdx uint32) *wasm.FunctionType
}

// Compile flattens a validated function body into a linear Operation
// stream. typeSection resolves a block/if/loop/call_indirect's type-index
// block type; calleeType resolves a call's target function index to its
// signature (both needed only to keep the compiler's operand-stack height
// tracking in step with the interpreter's at run time).
func Compile(body []wasm.Instruction, typeSection []wasm.FunctionType, calleeType func(funcIdx uint32) *wasm.FunctionType) (*CompilationResult, error) {
	c := &compiler{typeSection: typeSection, calleeType: calleeType}
	if err := c.compileInstructions(body); err != nil {
		return nil, err
	}
	return &CompilationResult{Operations: c.ops}, nil
}

func (c *compiler) emit(op Operation) int {
	c.ops = append(c.ops, op)
	return len(c.ops) - 1
}

func (c *compiler) compileInstructions(body []wasm.Instruction) error {
	for _, ins := range body {
		if err := c.compileOne(ins); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) compileOne(ins wasm.Instruction) error {
	switch ins.Opcode {
	case wasm.OpcodeBlock:
		return c.compileBlockLike(ins, false)
	case wasm.OpcodeLoop:
		return c.compileBlockLike(ins, true)
	case wasm.OpcodeIf:
		return c.compileIf(ins)

	case wasm.OpcodeBr:
		opIdx := c.emit(Operation{Kind: OperationKindInstruction, Instr: ins})
		c.recordBranch(opIdx, ins.Index, patchTarget, 0)
		return nil
	case wasm.OpcodeBrIf:
		c.height-- // the branch condition, popped on both the taken and fallthrough paths.
		opIdx := c.emit(Operation{Kind: OperationKindInstruction, Instr: ins})
		c.recordBranch(opIdx, ins.Index, patchTarget, 0)
		return nil
	case wasm.OpcodeBrTable:
		return c.compileBrTable(ins)

	case wasm.OpcodeReturn:
		opIdx := c.emit(Operation{Kind: OperationKindInstruction, Instr: ins})
		c.applyPatch(opIdx, patchTarget, 0, returnTarget, 0, 0)
		return nil
	case wasm.OpcodeUnreachable:
		c.emit(Operation{Kind: OperationKindInstruction, Instr: ins})
		return nil

	default:
		pop, push, err := c.stackDelta(ins)
		if err != nil {
			return err
		}
		c.emit(Operation{Kind: OperationKindInstruction, Instr: ins})
		c.height += push - pop
		return nil
	}
}

func (c *compiler) compileBlockLike(ins wasm.Instruction, isLoop bool) error {
	in, out, err := wasm.BlockResultType(ins.BlockType, c.typeSection)
	if err != nil {
		return err
	}
	kind := OperationKindStartBlock
	if isLoop {
		kind = OperationKindStartLoop
	}
	startIdx := c.emit(Operation{Kind: kind})
	arity := len(out)
	if isLoop {
		arity = len(in)
	}
	c.frames = append(c.frames, frame{isLoop: isLoop, startIdx: startIdx, height: c.height, arity: arity})

	if err := c.compileInstructions(ins.Then); err != nil {
		return err
	}

	endIdx := c.emit(Operation{Kind: OperationKindEnd})
	fr := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	c.height = fr.height + len(out) // falling through normally leaves exactly the block's declared results.

	c.ops[startIdx].End = endIdx + 1
	c.resolvePending(fr.pending, endIdx+1)
	return nil
}

func (c *compiler) compileIf(ins wasm.Instruction) error {
	c.height-- // the if condition.
	_, out, err := wasm.BlockResultType(ins.BlockType, c.typeSection)
	if err != nil {
		return err
	}
	startIdx := c.emit(Operation{Kind: OperationKindStartIf})
	base := c.height
	c.frames = append(c.frames, frame{startIdx: startIdx, height: base, arity: len(out)})

	if err := c.compileInstructions(ins.Then); err != nil {
		return err
	}

	hasElse := len(ins.Else) > 0
	if hasElse {
		elseIdx := c.emit(Operation{Kind: OperationKindElse})
		c.ops[startIdx].Else = elseIdx
		c.height = base // the else body starts from the same height the then body did.
		if err := c.compileInstructions(ins.Else); err != nil {
			return err
		}
	}

	endIdx := c.emit(Operation{Kind: OperationKindEnd})
	if !hasElse {
		c.ops[startIdx].Else = endIdx // falling off a missing else jumps straight to End.
	} else {
		// Reaching the Else marker by falling through a completed Then
		// body (condition was true) means the alternative must be
		// skipped entirely: the interpreter reads End back off the Else
		// marker itself to jump past the whole construct.
		c.ops[c.ops[startIdx].Else].End = endIdx + 1
	}
	c.ops[startIdx].End = endIdx + 1

	fr := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	c.height = fr.height + len(out)
	c.resolvePending(fr.pending, endIdx+1)
	return nil
}

// resolvePending patches every forward branch recorded against a frame
// once that frame's resolved target (its End+1) is known; Base/Arity
// were already fixed when the branch was recorded.
func (c *compiler) resolvePending(pending []patch, target int) {
	for _, p := range pending {
		bt := BranchTarget{Index: target, Base: p.base, Arity: p.arity}
		switch p.kind {
		case patchTarget:
			c.ops[p.opIdx].Target = bt
		case patchTargetDefault:
			c.ops[p.opIdx].TargetDefault = bt
		case patchTargets:
			c.ops[p.opIdx].Targets[p.slotInList] = bt
		}
	}
}

// frameAt returns the frame `depth` levels up from the innermost (0 ==
// innermost), and whether depth refers to the implicit function frame
// (i.e. is out of range, meaning "return").
func (c *compiler) frameAt(depth uint32) (*frame, bool) {
	if int(depth) >= len(c.frames) {
		return nil, false
	}
	return &c.frames[len(c.frames)-1-int(depth)], true
}

// recordBranch resolves a branch at depth to an absolute target: for a
// loop frame, immediately (its start index); for a block/if frame or the
// implicit function frame, by queuing a patch and, for the latter,
// returnTarget directly. The frame's height/arity are known as soon as
// the frame itself is found, regardless of whether its absolute index
// is resolved yet.
func (c *compiler) recordBranch(opIdx int, depth uint32, kind patchKind, slot int) {
	fr, ok := c.frameAt(depth)
	if !ok {
		c.applyPatch(opIdx, kind, slot, returnTarget, 0, 0)
		return
	}
	if fr.isLoop {
		c.applyPatch(opIdx, kind, slot, fr.startIdx, fr.height, fr.arity)
		return
	}
	fr.pending = append(fr.pending, patch{opIdx: opIdx, kind: kind, slotInList: slot, base: fr.height, arity: fr.arity})
}

func (c *compiler) applyPatch(opIdx int, kind patchKind, slot, index, base, arity int) {
	bt := BranchTarget{Index: index, Base: base, Arity: arity}
	switch kind {
	case patchTarget:
		c.ops[opIdx].Target = bt
	case patchTargetDefault:
		c.ops[opIdx].TargetDefault = bt
	case patchTargets:
		c.ops[opIdx].Targets[slot] = bt
	}
}

func (c *compiler) compileBrTable(ins wasm.Instruction) error {
	c.height-- // the index operand, popped regardless of which target is taken.
	targets := make([]BranchTarget, len(ins.TargetLabels))
	opIdx := c.emit(Operation{Kind: OperationKindInstruction, Instr: ins, Targets: targets})
	for i, depth := range ins.TargetLabels {
		c.recordBranch(opIdx, depth, patchTargets, i)
	}
	c.recordBranch(opIdx, ins.DefaultLabel, patchTargetDefault, 0)
	return nil
}
