// Package bytecode implements the packed instruction stream ember's
// compiler emits and its VM executes: a byte-packed Chunk with a parallel
// line table (for runtime-error reporting) and a constant pool.
package bytecode

import "github.com/emberlang/ember/pkg/value"

// Chunk is a packed byte array of opcodes plus a parallel line-number
// array and a constant pool. There is one Chunk per compiled Function.
type Chunk struct {
	Code      []byte
	Lines     []int32
	Constants []value.Value
}

// NewChunk returns an empty chunk ready to be written to.
func NewChunk() *Chunk {
	return &Chunk{}
}

// Write appends one raw byte to the code stream, recording the source line
// it came from in the parallel line table.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, int32(line))
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op Op, line int) {
	c.Write(byte(op), line)
}

// WriteU16 appends a 16-bit operand big-endian, as JUMP/JUMP_IF_FALSE/LOOP
// require, and returns the offset of its high byte (so the caller can
// patch it once the jump target is known).
func (c *Chunk) WriteU16(v uint16, line int) int {
	c.Write(byte(v>>8), line)
	c.Write(byte(v), line)
	return len(c.Code) - 2
}

// PatchU16 overwrites the big-endian 16-bit operand at offset.
func (c *Chunk) PatchU16(offset int, v uint16) {
	c.Code[offset] = byte(v >> 8)
	c.Code[offset+1] = byte(v)
}

// AddConstant appends v to the constant pool and returns its index. The
// compiler must add a constant before emitting any opcode that references
// it by index.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Len reports the number of bytes currently in the code stream — the
// offset the next instruction will be written at.
func (c *Chunk) Len() int { return len(c.Code) }

// LineAt returns the source line recorded for the instruction at offset.
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return -1
	}
	return int(c.Lines[offset])
}
