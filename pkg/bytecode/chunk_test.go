package bytecode

import (
	"testing"

	"github.com/emberlang/ember/pkg/value"
)

func TestWriteAndLineAt(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpNil, 1)
	c.WriteOp(OpPop, 1)
	c.WriteOp(OpReturn, 2)

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	if c.LineAt(0) != 1 || c.LineAt(1) != 1 {
		t.Error("first two instructions should both report line 1")
	}
	if c.LineAt(2) != 2 {
		t.Error("third instruction should report line 2")
	}
	if c.LineAt(-1) != -1 || c.LineAt(99) != -1 {
		t.Error("out-of-range offsets should report -1")
	}
}

func TestWriteU16BigEndian(t *testing.T) {
	c := NewChunk()
	offset := c.WriteU16(0x1234, 1)
	if c.Code[offset] != 0x12 || c.Code[offset+1] != 0x34 {
		t.Errorf("WriteU16 wrote %02x%02x, want 1234", c.Code[offset], c.Code[offset+1])
	}
}

func TestPatchU16Overwrites(t *testing.T) {
	c := NewChunk()
	offset := c.WriteU16(0, 1)
	c.PatchU16(offset, 0xBEEF)
	if c.Code[offset] != 0xBE || c.Code[offset+1] != 0xEF {
		t.Errorf("after patch, got %02x%02x, want BEEF", c.Code[offset], c.Code[offset+1])
	}
}

func TestAddConstantReturnsIndex(t *testing.T) {
	c := NewChunk()
	i0 := c.AddConstant(value.NewNumber(1))
	i1 := c.AddConstant(value.NewNumber(2))
	if i0 != 0 || i1 != 1 {
		t.Fatalf("AddConstant indices = %d, %d, want 0, 1", i0, i1)
	}
	if len(c.Constants) != 2 {
		t.Errorf("Constants len = %d, want 2", len(c.Constants))
	}
	if c.Constants[0].Number != 1 || c.Constants[1].Number != 2 {
		t.Error("constant pool does not preserve insertion order/values")
	}
}

func TestOpString(t *testing.T) {
	if got := OpConstant.String(); got != "OP_CONSTANT" {
		t.Errorf("OpConstant.String() = %q, want OP_CONSTANT", got)
	}
	if got := Op(255).String(); got != "OP_UNKNOWN" {
		t.Errorf("out-of-range Op.String() = %q, want OP_UNKNOWN", got)
	}
}
