package bytecode

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable listing of every instruction in c to
// w, labeled with name (typically the owning function's name). It is a
// debug-only tool: there is no binary serialization counterpart — compiled
// chunks are never persisted to disk, only ever held in memory.
func Disassemble(w io.Writer, c *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = DisassembleInstruction(w, c, offset)
	}
}

// DisassembleInstruction writes one instruction at offset and returns the
// offset of the instruction that follows it.
func DisassembleInstruction(w io.Writer, c *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.Lines[offset])
	}

	op := Op(c.Code[offset])
	switch op {
	case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal, OpDefineConstant,
		OpGetProperty, OpSetProperty, OpGetSuper, OpClass, OpMethod:
		return constantInstruction(w, op, c, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return byteInstruction(w, op, c, offset)
	case OpInvoke, OpSuperInvoke:
		return invokeInstruction(w, op, c, offset)
	case OpJump, OpJumpIfFalse:
		return jumpInstruction(w, op, c, offset, 1)
	case OpLoop:
		return jumpInstruction(w, op, c, offset, -1)
	case OpClosure:
		return closureInstruction(w, c, offset)
	default:
		return simple(w, op, offset)
	}
}

func simple(w io.Writer, op Op, offset int) int {
	fmt.Fprintf(w, "%s\n", op)
	return offset + 1
}

func constantInstruction(w io.Writer, op Op, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-18s %4d '%s'\n", op, idx, c.Constants[idx].String())
	return offset + 2
}

func byteInstruction(w io.Writer, op Op, c *Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(w, "%-18s %4d\n", op, slot)
	return offset + 2
}

func invokeInstruction(w io.Writer, op Op, c *Chunk, offset int) int {
	nameIdx := c.Code[offset+1]
	argc := c.Code[offset+2]
	fmt.Fprintf(w, "%-18s (%d args) %4d '%s'\n", op, argc, nameIdx, c.Constants[nameIdx].String())
	return offset + 3
}

func jumpInstruction(w io.Writer, op Op, c *Chunk, offset int, sign int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	target := offset + 3 + sign*jump
	fmt.Fprintf(w, "%-18s %4d -> %d\n", op, offset, target)
	return offset + 3
}

func closureInstruction(w io.Writer, c *Chunk, offset int) int {
	offset++
	fnIdx := c.Code[offset]
	offset++
	fmt.Fprintf(w, "%-18s %4d '%s'\n", OpClosure, fnIdx, c.Constants[fnIdx].String())

	fn, ok := c.Constants[fnIdx].Obj.(interface{ UpvalueCount() int })
	if ok {
		n := fn.UpvalueCount()
		for i := 0; i < n; i++ {
			isLocal := c.Code[offset]
			offset++
			index := c.Code[offset]
			offset++
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			fmt.Fprintf(w, "%04d      |                     %s %d\n", offset-2, kind, index)
		}
	}
	return offset
}
