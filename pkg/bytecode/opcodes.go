package bytecode

// Op is a single bytecode instruction's opcode byte.
type Op byte

// The complete opcode catalog. Some opcodes carry one or more operand
// bytes immediately following the opcode byte in Chunk.Code; 16-bit
// operands (jump offsets) are encoded big-endian.
const (
	OpConstant       Op = iota // u8(idx) — push constants[idx]
	OpNil                      // push Nil
	OpTrue                     // push Bool(true)
	OpFalse                    // push Bool(false)
	OpPop                      // discard top of stack

	OpGetLocal       // u8(slot)
	OpSetLocal       // u8(slot)
	OpDefineGlobal   // u8(name_idx)
	OpGetGlobal      // u8(name_idx)
	OpSetGlobal      // u8(name_idx)
	OpDefineConstant // u8(name_idx)
	OpGetUpvalue     // u8(idx)
	OpSetUpvalue     // u8(idx)
	OpCloseUpvalue   // close the topmost open upvalue

	OpGetProperty // u8(name_idx)
	OpSetProperty // u8(name_idx)

	OpGetSuper    // u8(name_idx)
	OpSuperInvoke // u8(name_idx) u8(argc)
	OpInherit     // copy superclass methods into subclass
	OpClass       // u8(name_idx)
	OpMethod      // u8(name_idx)

	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpPower
	OpShiftLeft
	OpShiftRight
	OpNot
	OpNegate

	OpPrint
	OpJump        // u16 forward offset
	OpJumpIfFalse // u16 forward offset
	OpLoop        // u16 backward offset
	OpCall        // u8(argc)
	OpInvoke      // u8(name_idx) u8(argc)
	OpReturn
	OpExit
	OpClosure // u8(fn_idx) then upvalue_count pairs of u8(is_local) u8(index)
)

var names = [...]string{
	OpConstant:       "OP_CONSTANT",
	OpNil:            "OP_NIL",
	OpTrue:           "OP_TRUE",
	OpFalse:          "OP_FALSE",
	OpPop:            "OP_POP",
	OpGetLocal:       "OP_GET_LOCAL",
	OpSetLocal:       "OP_SET_LOCAL",
	OpDefineGlobal:   "OP_DEFINE_GLOBAL",
	OpGetGlobal:      "OP_GET_GLOBAL",
	OpSetGlobal:      "OP_SET_GLOBAL",
	OpDefineConstant: "OP_DEFINE_CONSTANT",
	OpGetUpvalue:     "OP_GET_UPVALUE",
	OpSetUpvalue:     "OP_SET_UPVALUE",
	OpCloseUpvalue:   "OP_CLOSE_UPVALUE",
	OpGetProperty:    "OP_GET_PROPERTY",
	OpSetProperty:    "OP_SET_PROPERTY",
	OpGetSuper:       "OP_GET_SUPER",
	OpSuperInvoke:    "OP_SUPER_INVOKE",
	OpInherit:        "OP_INHERIT",
	OpClass:          "OP_CLASS",
	OpMethod:         "OP_METHOD",
	OpEqual:          "OP_EQUAL",
	OpGreater:        "OP_GREATER",
	OpLess:           "OP_LESS",
	OpAdd:            "OP_ADD",
	OpSubtract:       "OP_SUBTRACT",
	OpMultiply:       "OP_MULTIPLY",
	OpDivide:         "OP_DIVIDE",
	OpModulo:         "OP_MODULO",
	OpPower:          "OP_POWER",
	OpShiftLeft:      "OP_SHIFT_LEFT",
	OpShiftRight:     "OP_SHIFT_RIGHT",
	OpNot:            "OP_NOT",
	OpNegate:         "OP_NEGATE",
	OpPrint:          "OP_PRINT",
	OpJump:           "OP_JUMP",
	OpJumpIfFalse:    "OP_JUMP_IF_FALSE",
	OpLoop:           "OP_LOOP",
	OpCall:           "OP_CALL",
	OpInvoke:         "OP_INVOKE",
	OpReturn:         "OP_RETURN",
	OpExit:           "OP_EXIT",
	OpClosure:        "OP_CLOSURE",
}

func (op Op) String() string {
	if int(op) < len(names) && names[op] != "" {
		return names[op]
	}
	return "OP_UNKNOWN"
}
