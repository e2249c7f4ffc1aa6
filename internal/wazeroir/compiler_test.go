package wazeroir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

func noCallees(uint32) *wasm.FunctionType { return nil }

func TestCompileStraightLine(t *testing.T) {
	body := []wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, ConstI32: 1},
		{Opcode: wasm.OpcodeI32Const, ConstI32: 2},
		{Opcode: wasm.OpcodeI32Add},
	}
	result, err := Compile(body, nil, noCallees)
	require.NoError(t, err)
	require.Len(t, result.Operations, 3)
	for _, op := range result.Operations {
		require.Equal(t, OperationKindInstruction, op.Kind)
	}
}

func TestCompileReturnTargetsFunctionExit(t *testing.T) {
	body := []wasm.Instruction{{Opcode: wasm.OpcodeReturn}}
	result, err := Compile(body, nil, noCallees)
	require.NoError(t, err)
	require.Equal(t, returnTarget, result.Operations[0].Target.Index)
}

func TestCompileBlockBranchTargetsPastEnd(t *testing.T) {
	body := []wasm.Instruction{
		{
			Opcode:    wasm.OpcodeBlock,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then:      []wasm.Instruction{{Opcode: wasm.OpcodeBr, Index: 0}},
		},
		{Opcode: wasm.OpcodeNop},
	}
	result, err := Compile(body, nil, noCallees)
	require.NoError(t, err)

	// StartBlock, Br, End, Nop
	require.Len(t, result.Operations, 4)
	require.Equal(t, OperationKindStartBlock, result.Operations[0].Kind)
	require.Equal(t, OperationKindEnd, result.Operations[2].Kind)

	br := result.Operations[1]
	require.Equal(t, wasm.OpcodeBr, br.Instr.Opcode)
	require.Equal(t, 3, br.Target.Index, "br out of the block lands on the trailing nop, past End")
	require.Equal(t, 0, br.Target.Base)
	require.Equal(t, 0, br.Target.Arity, "empty block type has no results")
	require.Equal(t, 3, result.Operations[0].End)
}

func TestCompileLoopBranchTargetsStart(t *testing.T) {
	body := []wasm.Instruction{
		{
			Opcode:    wasm.OpcodeLoop,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then:      []wasm.Instruction{{Opcode: wasm.OpcodeBr, Index: 0}},
		},
	}
	result, err := Compile(body, nil, noCallees)
	require.NoError(t, err)

	// StartLoop, Br, End
	require.Len(t, result.Operations, 3)
	br := result.Operations[1]
	require.Equal(t, 0, br.Target.Index, "br to the innermost loop label jumps back to the loop's own start")
	require.Equal(t, 0, br.Target.Base)
	require.Equal(t, 0, br.Target.Arity, "empty block type takes no params to re-enter the loop")
}

func TestCompileBranchPastEveryFrameReturnsFromFunction(t *testing.T) {
	body := []wasm.Instruction{
		{
			Opcode:    wasm.OpcodeBlock,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then:      []wasm.Instruction{{Opcode: wasm.OpcodeBr, Index: 1}},
		},
	}
	result, err := Compile(body, nil, noCallees)
	require.NoError(t, err)
	br := result.Operations[1]
	require.Equal(t, returnTarget, br.Target.Index)
}

func TestCompileBranchDiscardsValuesPushedInsideTheBlock(t *testing.T) {
	// local.get 0; block; i32.const 99; br 0; end; i32.const 1; i32.add
	body := []wasm.Instruction{
		{Opcode: wasm.OpcodeLocalGet, Index: 0},
		{
			Opcode:    wasm.OpcodeBlock,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then: []wasm.Instruction{
				{Opcode: wasm.OpcodeI32Const, ConstI32: 99},
				{Opcode: wasm.OpcodeBr, Index: 0},
			},
		},
		{Opcode: wasm.OpcodeI32Const, ConstI32: 1},
		{Opcode: wasm.OpcodeI32Add},
	}
	result, err := Compile(body, nil, noCallees)
	require.NoError(t, err)

	// local.get, StartBlock, const 99, br, End, const 1, add
	var br Operation
	for _, op := range result.Operations {
		if op.Kind == OperationKindInstruction && op.Instr.Opcode == wasm.OpcodeBr {
			br = op
		}
	}
	require.Equal(t, 1, br.Target.Base, "the block was entered with local.get 0 already on the stack")
	require.Equal(t, 0, br.Target.Arity)
}

func TestCompileIfWithoutElseFallsThroughToEnd(t *testing.T) {
	body := []wasm.Instruction{
		{
			Opcode:    wasm.OpcodeIf,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then:      []wasm.Instruction{{Opcode: wasm.OpcodeNop}},
		},
	}
	result, err := Compile(body, nil, noCallees)
	require.NoError(t, err)
	// StartIf, Nop, End
	require.Len(t, result.Operations, 3)
	startIf := result.Operations[0]
	require.Equal(t, 3, startIf.End)
	require.Equal(t, startIf.End-1, startIf.Else, "no else clause: the false branch jumps straight to End")
}

func TestCompileIfWithElse(t *testing.T) {
	body := []wasm.Instruction{
		{
			Opcode:    wasm.OpcodeIf,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then:      []wasm.Instruction{{Opcode: wasm.OpcodeNop}},
			Else:      []wasm.Instruction{{Opcode: wasm.OpcodeUnreachable}},
		},
	}
	result, err := Compile(body, nil, noCallees)
	require.NoError(t, err)
	// StartIf, Nop, Else, Unreachable, End
	require.Len(t, result.Operations, 5)
	startIf := result.Operations[0]
	require.Equal(t, OperationKindElse, result.Operations[2].Kind)
	require.Equal(t, 2, startIf.Else)
	require.Equal(t, 5, startIf.End)
}

func TestCompileBrTableResolvesAllTargets(t *testing.T) {
	body := []wasm.Instruction{
		{
			Opcode:    wasm.OpcodeBlock,
			BlockType: wasm.BlockTypeEmptySentinel,
			Then: []wasm.Instruction{
				{
					Opcode:    wasm.OpcodeBlock,
					BlockType: wasm.BlockTypeEmptySentinel,
					Then: []wasm.Instruction{
						{Opcode: wasm.OpcodeBrTable, TargetLabels: []uint32{0, 1}, DefaultLabel: 1},
					},
				},
			},
		},
	}
	result, err := Compile(body, nil, noCallees)
	require.NoError(t, err)

	// outer StartBlock(0), inner StartBlock(1), BrTable(2), inner End(3), outer End(4)
	require.Len(t, result.Operations, 5)
	brTable := result.Operations[2]
	require.Equal(t, 4, brTable.Targets[0].Index, "depth 0 resumes right after the inner block's End marker")
	require.Equal(t, 5, brTable.Targets[1].Index, "depth 1 resumes right after the outer block's End marker")
	require.Equal(t, 5, brTable.TargetDefault.Index)
}
