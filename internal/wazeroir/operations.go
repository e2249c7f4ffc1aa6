// Package wazeroir flattens a function body's recursive block/if/loop
// structure into a single linear operation stream with pre-resolved
// branch targets, so the interpreter walks it with a plain program
// counter instead of recursing into nested bodies at run time.
package wazeroir

import "github.com/wasmcore/wasmcore/internal/wasm"

// OperationKind classifies one entry of a flattened stream.
type OperationKind int

const (
	// OperationKindInstruction wraps a straight-line wasm.Instruction
	// (everything that isn't block/loop/if/else/end): constants,
	// numeric ops, memory/variable access, call, br/br_if/br_table,
	// return.
	OperationKindInstruction OperationKind = iota
	OperationKindStartBlock
	OperationKindStartLoop
	OperationKindStartIf
	OperationKindElse
	OperationKindEnd

	operationKindEnd
)

func (k OperationKind) String() string {
	switch k {
	case OperationKindInstruction:
		return "Instruction"
	case OperationKindStartBlock:
		return "StartBlock"
	case OperationKindStartLoop:
		return "StartLoop"
	case OperationKindStartIf:
		return "StartIf"
	case OperationKindElse:
		return "Else"
	case OperationKindEnd:
		return "End"
	default:
		return "unknown"
	}
}

// returnTarget is the sentinel branch target meaning "exit the function",
// used for a br/br_if/br_table whose label depth reaches past every
// enclosing block/loop/if ("return" behaves as a br to the outermost,
// implicit function label).
const returnTarget = -1

// BranchTarget is a br/br_if/br_table destination, resolved at compile
// time from the instruction's relative label depth. Index is the
// absolute Operations index to resume at (or returnTarget to exit the
// function). Base and Arity record the label's operand-stack shape at
// the point it was entered: taking the branch must discard every value
// down to Base, keeping only the Arity values the branch itself leaves
// on top (the label's result types for a block/if, its parameter types
// for a loop).
type BranchTarget struct {
	Index int
	Base  int
	Arity int
}

// Operation is one entry of a CompilationResult.Operations stream.
type Operation struct {
	Kind  OperationKind
	Instr wasm.Instruction // meaningful when Kind == OperationKindInstruction.

	// Else and End are meaningful on StartIf/StartBlock/StartLoop only.
	// Else is the index of the matching Else marker (or, if the if has no
	// else clause, the index of the matching End marker, i.e. End-1). End
	// is one past the matching End
	// marker, i.e. where control resumes after the construct falls
	// through normally.
	Else int
	End  int

	// Target/TargetDefault/Targets carry the resolved destinations for a
	// br/br_if/br_table OperationKindInstruction, replacing the
	// instruction's original relative label depth.
	Target        BranchTarget
	TargetDefault BranchTarget
	Targets       []BranchTarget
}

// CompilationResult is the flattened form of one function body.
type CompilationResult struct {
	Operations []Operation
}
