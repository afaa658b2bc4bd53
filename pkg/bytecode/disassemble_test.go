package bytecode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/emberlang/ember/pkg/value"
)

func TestDisassembleSimpleInstruction(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpNil, 1)
	c.WriteOp(OpReturn, 1)

	var buf bytes.Buffer
	Disassemble(&buf, c, "test")
	out := buf.String()

	if !strings.Contains(out, "== test ==") {
		t.Errorf("expected header, got %q", out)
	}
	if !strings.Contains(out, "OP_NIL") || !strings.Contains(out, "OP_RETURN") {
		t.Errorf("expected both opcodes in output, got %q", out)
	}
}

func TestDisassembleConstantInstruction(t *testing.T) {
	c := NewChunk()
	idx := c.AddConstant(value.NewNumber(42))
	c.WriteOp(OpConstant, 1)
	c.Write(byte(idx), 1)

	var buf bytes.Buffer
	offset := DisassembleInstruction(&buf, c, 0)
	if offset != 2 {
		t.Errorf("next offset = %d, want 2", offset)
	}
	if !strings.Contains(buf.String(), "'42'") {
		t.Errorf("expected constant value in output, got %q", buf.String())
	}
}

func TestDisassembleRepeatedLineCollapsesToPipe(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpNil, 5)
	c.WriteOp(OpPop, 5)

	var buf bytes.Buffer
	Disassemble(&buf, c, "test")
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 instructions, got %d lines: %q", len(lines), lines)
	}
	if !strings.Contains(lines[1], "5") {
		t.Errorf("first instruction should show line 5, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "|") {
		t.Errorf("second instruction on the same line should show '|', got %q", lines[2])
	}
}

func TestDisassembleJumpInstruction(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpJump, 1)
	c.WriteU16(0x0002, 1)
	c.WriteOp(OpNil, 1)

	var buf bytes.Buffer
	offset := DisassembleInstruction(&buf, c, 0)
	if offset != 3 {
		t.Errorf("next offset = %d, want 3", offset)
	}
	if !strings.Contains(buf.String(), "-> 5") {
		t.Errorf("expected jump target 5 (0+3+2), got %q", buf.String())
	}
}

func TestDisassembleByteInstruction(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpGetLocal, 1)
	c.Write(3, 1)

	var buf bytes.Buffer
	DisassembleInstruction(&buf, c, 0)
	if !strings.Contains(buf.String(), "OP_GET_LOCAL") || !strings.Contains(buf.String(), "3") {
		t.Errorf("expected slot 3 in output, got %q", buf.String())
	}
}

func TestDisassembleInvokeInstruction(t *testing.T) {
	c := NewChunk()
	idx := c.AddConstant(value.NewObj(stringObjForTest("greet")))
	c.WriteOp(OpInvoke, 1)
	c.Write(byte(idx), 1)
	c.Write(2, 1)

	var buf bytes.Buffer
	offset := DisassembleInstruction(&buf, c, 0)
	if offset != 3 {
		t.Errorf("next offset = %d, want 3", offset)
	}
	out := buf.String()
	if !strings.Contains(out, "(2 args)") || !strings.Contains(out, "'greet'") {
		t.Errorf("unexpected invoke output %q", out)
	}
}

// stringObjForTest is a minimal value.Obj used only to exercise the
// disassembler's constant-rendering path without importing pkg/object
// (which in turn imports pkg/bytecode).
type stringObjForTest string

func (s stringObjForTest) ObjString() string { return string(s) }
