// Package vm implements ember's stack-based bytecode interpreter: the
// operand stack, call frames, upvalue capture/close, class/instance
// dispatch, the native registry, and the mark-and-sweep collector that
// tracks every heap object the compiler or the VM itself allocates.
package vm

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/emberlang/ember/pkg/bytecode"
	"github.com/emberlang/ember/pkg/compiler"
	"github.com/emberlang/ember/pkg/object"
	"github.com/emberlang/ember/pkg/value"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// InterpretResult mirrors spec.md §7's three-way result: OK, a compile-time
// failure, or a runtime failure — each mapping to a distinct CLI exit code.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// CallFrame is one active call's bookkeeping: which closure is running, the
// instruction pointer into its chunk, and the window of the operand stack
// this call's locals live in.
type CallFrame struct {
	Closure *object.Closure
	IP      int
	Slots   int // index into vm.stack where this frame's slot 0 lives
}

// VM is a single bytecode interpreter instance. Nothing here is package
// level or global — every piece of mutable state (stack, globals, heap,
// intern table) lives on the struct, so multiple VMs can run independently
// in the same process with no shared state between them.
type VM struct {
	stack    [stackMax]value.Value
	stackTop int

	frames     [framesMax]CallFrame
	frameCount int

	openUpvalues *object.Upvalue

	strings    *object.Strings
	globals    *object.Table
	objects    object.Obj
	initString *object.String

	bytesAllocated int64
	nextGC         int64
	grayStack      []object.Obj

	// StressGC forces a full collection on every allocation (--stress-gc),
	// the known-bug-#5 toggle spec.md §9 calls for: it turns latent
	// use-after-free-shaped bugs (a value read after its owning object
	// should have been collected) into immediate, reproducible failures.
	StressGC bool
	// LogGC prints "-- gc begin"/"-- gc end" bookkeeping to logOut.
	LogGC bool
	// TraceExec prints each instruction before it executes.
	TraceExec bool

	// Debugger, when non-nil and enabled, pauses execution on breakpoints
	// or in step mode for an interactive prompt. Nil by default; cmd/ember
	// never attaches one.
	Debugger *Debugger

	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	logOut   io.Writer
	stdinBuf lineReader

	// pendingErr carries a runtime error raised inside a call-protocol
	// helper (callValue, invoke, bindMethod, ...) that itself only reports
	// success/failure as a bool, back out to run()'s dispatch loop.
	pendingErr error

	exitRequested bool
	exitCode      int
}

// lineReader is the subset of *bufio.Reader that natives.go's c_in native
// needs; kept as an interface here so this file doesn't need to import
// bufio just to name the field's type.
type lineReader interface {
	ReadString(delim byte) (string, error)
}

// New constructs a VM wired to stdin/stdout/stderr, with the native
// function registry installed into a fresh globals table.
func New() *VM {
	vm := &VM{
		strings: object.NewStrings(),
		globals: object.NewTable(),
		nextGC:  initialNextGC,
		in:      os.Stdin,
		out:     os.Stdout,
		errOut:  os.Stderr,
		logOut:  os.Stderr,
	}
	vm.initString = vm.internString("init")
	vm.defineNatives()
	return vm
}

// SetIO redirects the VM's stdin/stdout/stderr, used by the REPL and by
// tests that need to capture output or script input.
func (vm *VM) SetIO(in io.Reader, out, errOut io.Writer) {
	vm.in = in
	vm.out = out
	vm.errOut = errOut
	vm.stdinBuf = nil
}

// SetLogOutput redirects GC logging, independent of program stdout.
func (vm *VM) SetLogOutput(w io.Writer) { vm.logOut = w }

// Interpret compiles source and, if compilation succeeds, runs it to
// completion. This is the single external entry point spec.md §6 names.
func (vm *VM) Interpret(source string) InterpretResult {
	fn, errs, ok := compiler.Compile(source, vm.strings)
	if !ok {
		for _, e := range errs {
			fmt.Fprintln(vm.errOut, e)
		}
		return InterpretCompileError
	}

	vm.adopt(fn, make(map[object.Obj]bool))

	closure := object.NewClosure(fn)
	vm.track(closure)
	vm.push(value.NewObj(closure))
	vm.callClosure(closure, 0)

	if err := vm.run(); err != nil {
		fmt.Fprintln(vm.errOut, err.Error())
		return InterpretRuntimeError
	}
	return InterpretOK
}

// ExitRequested reports whether the program executed an `exit;` statement,
// and with what code (always 0), so the CLI entry point can use it as the
// process exit status instead of the usual OK/compile-error/runtime-error
// mapping.
func (vm *VM) ExitRequested() (bool, int) {
	return vm.exitRequested, vm.exitCode
}

// ---- stack helpers --------------------------------------------------------

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// ---- runtime errors ---------------------------------------------------

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)

	trace := make([]StackFrame, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.Closure.Function
		line := fn.Chunk.LineAt(frame.IP - 1)
		name := ""
		if fn.Name != nil {
			name = fn.Name.Bytes
		}
		trace = append(trace, StackFrame{Name: name, Line: line})
	}

	vm.resetStack()
	return newRuntimeError(message, trace)
}

// ---- call protocol ------------------------------------------------------

func (vm *VM) callValue(callee value.Value, argCount int) bool {
	if callee.IsObj() {
		switch c := callee.Obj.(type) {
		case *object.Closure:
			return vm.callClosure(c, argCount)
		case *object.Native:
			return vm.callNative(c, argCount)
		case *object.Class:
			return vm.instantiate(c, argCount)
		case *object.BoundMethod:
			vm.stack[vm.stackTop-argCount-1] = c.Receiver
			return vm.callClosure(c.Method, argCount)
		}
	}
	vm.reportRuntime("can only call functions and classes")
	return false
}

// reportRuntime records the error in vm.pendingErr; run() returns it via
// drainPendingErr when a call-protocol helper reports failure.
func (vm *VM) reportRuntime(format string, args ...interface{}) {
	vm.pendingErr = vm.runtimeError(format, args...)
}

func (vm *VM) callClosure(closure *object.Closure, argCount int) bool {
	fn := closure.Function
	// known source bug #1 fixed: abort the call on arity mismatch instead
	// of silently padding/truncating the argument list.
	if argCount != fn.Arity {
		vm.reportRuntime("expected %d arguments but got %d", fn.Arity, argCount)
		return false
	}
	if vm.frameCount == framesMax {
		vm.reportRuntime("stack overflow")
		return false
	}

	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.Closure = closure
	frame.IP = 0
	frame.Slots = vm.stackTop - argCount - 1
	return true
}

func (vm *VM) callNative(native *object.Native, argCount int) bool {
	args := vm.stack[vm.stackTop-argCount : vm.stackTop]
	result, nativeErr := native.Fn(args)
	vm.stackTop -= argCount + 1
	if nativeErr != nil {
		vm.reportRuntime("%s", nativeErr.Error())
		return false
	}
	vm.push(result)
	return true
}

func (vm *VM) instantiate(class *object.Class, argCount int) bool {
	instance := object.NewInstance(class)
	vm.track(instance)
	vm.stack[vm.stackTop-argCount-1] = value.NewObj(instance)

	if initializer, ok := class.Methods.Get(vm.initString); ok {
		closure := initializer.Obj.(*object.Closure)
		return vm.callClosure(closure, argCount)
	}
	if argCount != 0 {
		vm.reportRuntime("expected 0 arguments but got %d", argCount)
		return false
	}
	return true
}

func (vm *VM) invoke(name *object.String, argCount int) bool {
	receiver := vm.peek(argCount)
	if !receiver.IsObj() {
		vm.reportRuntime("only instances have methods")
		return false
	}
	instance, ok := receiver.Obj.(*object.Instance)
	if !ok {
		vm.reportRuntime("only instances have methods")
		return false
	}

	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *object.Class, name *object.String, argCount int) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.reportRuntime("undefined property '%s'", name.Bytes)
		return false
	}
	closure := method.Obj.(*object.Closure)
	return vm.callClosure(closure, argCount)
}

func (vm *VM) bindMethod(class *object.Class, name *object.String) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.reportRuntime("undefined property '%s'", name.Bytes)
		return false
	}
	bound := object.NewBoundMethod(vm.peek(0), method.Obj.(*object.Closure))
	vm.track(bound)
	vm.pop()
	vm.push(value.NewObj(bound))
	return true
}

// ---- upvalues -----------------------------------------------------------

func (vm *VM) captureUpvalue(stackIndex int) *object.Upvalue {
	var prev *object.Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.StackIndex > stackIndex {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.StackIndex == stackIndex {
		return cur
	}

	created := object.NewUpvalue(stackIndex)
	vm.track(created)
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

func (vm *VM) closeUpvalues(fromStackIndex int) {
	for vm.openUpvalues != nil && vm.openUpvalues.StackIndex >= fromStackIndex {
		u := vm.openUpvalues
		u.ClosedValue = vm.stack[u.StackIndex]
		u.ClosedFlag = true
		vm.openUpvalues = u.NextOpen
	}
}

// ---- main dispatch loop -------------------------------------------------

func (vm *VM) run() error {
	vm.pendingErr = nil
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.Closure.Function.Chunk.Code[frame.IP]
		frame.IP++
		return b
	}
	readU16 := func() uint16 {
		hi := readByte()
		lo := readByte()
		return uint16(hi)<<8 | uint16(lo)
	}
	readConstant := func() value.Value {
		return frame.Closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *object.String {
		return readConstant().Obj.(*object.String)
	}

	for {
		if vm.TraceExec {
			var buf fmtBuffer
			bytecode.DisassembleInstruction(&buf, frame.Closure.Function.Chunk, frame.IP)
			// DebugID correlates this line back to the same function's entry
			// in a --disasm listing, across however many nested closures are
			// on the call stack at once.
			fmt.Fprintf(vm.errOut, "[%s] %s", frame.Closure.Function.DebugID, buf.String())
		}
		if vm.Debugger != nil && vm.Debugger.ShouldPause() {
			if !vm.Debugger.InteractivePrompt() {
				return nil
			}
		}

		op := bytecode.Op(readByte())
		switch op {
		case bytecode.OpConstant:
			vm.push(readConstant())
		case bytecode.OpNil:
			vm.push(value.Nil)
		case bytecode.OpTrue:
			vm.push(value.NewBool(true))
		case bytecode.OpFalse:
			vm.push(value.NewBool(false))
		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := readByte()
			vm.push(vm.stack[frame.Slots+int(slot)])
		case bytecode.OpSetLocal:
			slot := readByte()
			// known source bug #3 fixed: slot is always relative to this
			// frame's window, never the absolute stack index. There is no
			// runtime constness check here: the compiler rejects writes to
			// a local const, and locals are never marked constant at runtime.
			vm.stack[frame.Slots+int(slot)] = vm.peek(0)

		case bytecode.OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case bytecode.OpDefineConstant:
			name := readString()
			if existing, ok := vm.globals.Get(name); ok {
				kind := "Variable"
				if existing.IsConstant {
					kind = "Constant"
				}
				return vm.runtimeError("%s '%s' is already defined.", kind, name.Bytes)
			}
			vm.globals.Set(name, vm.peek(0).AsConstant())
			vm.pop()
		case bytecode.OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("undefined variable '%s'", name.Bytes)
			}
			vm.push(v)
		case bytecode.OpSetGlobal:
			name := readString()
			existing, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("undefined variable '%s'", name.Bytes)
			}
			if existing.IsConstant {
				return vm.runtimeError("cannot assign to constant '%s'", name.Bytes)
			}
			vm.globals.Set(name, vm.peek(0))

		case bytecode.OpGetUpvalue:
			idx := readByte()
			u := frame.Closure.Upvalues[idx]
			if u.ClosedFlag {
				vm.push(u.ClosedValue)
			} else {
				vm.push(vm.stack[u.StackIndex])
			}
		case bytecode.OpSetUpvalue:
			idx := readByte()
			u := frame.Closure.Upvalues[idx]
			if u.ClosedFlag {
				u.ClosedValue = vm.peek(0)
			} else {
				vm.stack[u.StackIndex] = vm.peek(0)
			}
		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case bytecode.OpGetProperty:
			instance, isInstance := asInstance(vm.peek(0))
			name := readString()
			if !isInstance {
				if name.Bytes == "to_str" {
					v := vm.pop()
					vm.push(value.NewObj(vm.internString(v.String())))
					continue
				}
				return vm.runtimeError("only instances have properties")
			}
			if v, ok := instance.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				continue
			}
			if !vm.bindMethod(instance.Class, name) {
				return vm.drainPendingErr()
			}
		case bytecode.OpSetProperty:
			if !vm.peek(1).IsObj() {
				return vm.runtimeError("only instances have fields")
			}
			instance, ok := vm.peek(1).Obj.(*object.Instance)
			if !ok {
				return vm.runtimeError("only instances have fields")
			}
			name := readString()
			instance.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case bytecode.OpGetSuper:
			name := readString()
			superclass := vm.pop().Obj.(*object.Class)
			if !vm.bindMethod(superclass, name) {
				return vm.drainPendingErr()
			}
		case bytecode.OpSuperInvoke:
			name := readString()
			argCount := int(readByte())
			superclass := vm.pop().Obj.(*object.Class)
			if !vm.invokeFromClass(superclass, name, argCount) {
				return vm.drainPendingErr()
			}
			frame = &vm.frames[vm.frameCount-1]

		case bytecode.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := asClass(superVal)
			if !ok {
				return vm.runtimeError("superclass must be a class")
			}
			subclass := vm.peek(0).Obj.(*object.Class)
			subclass.Methods.AddAll(superclass.Methods)
			vm.pop()
		case bytecode.OpClass:
			name := readString()
			class := object.NewClass(name)
			vm.track(class)
			vm.push(value.NewObj(class))
		case bytecode.OpMethod:
			name := readString()
			method := vm.peek(0)
			class := vm.peek(1).Obj.(*object.Class)
			class.Methods.Set(name, method)
			vm.pop()

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.NewBool(value.Equal(a, b)))
		case bytecode.OpGreater:
			if err := vm.binaryNumberCompare(func(a, b float64) bool { return a > b }); err != nil {
				return err
			}
		case bytecode.OpLess:
			if err := vm.binaryNumberCompare(func(a, b float64) bool { return a < b }); err != nil {
				return err
			}

		case bytecode.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case bytecode.OpSubtract:
			if err := vm.binaryNumber(func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case bytecode.OpMultiply:
			if err := vm.binaryNumber(func(a, b float64) float64 { return a * b }); err != nil {
				return err
			}
		case bytecode.OpDivide:
			if err := vm.binaryNumber(func(a, b float64) float64 { return a / b }); err != nil {
				return err
			}
		case bytecode.OpModulo:
			if err := vm.binaryNumber(math.Mod); err != nil {
				return err
			}
		case bytecode.OpPower:
			if err := vm.binaryNumber(math.Pow); err != nil {
				return err
			}
		case bytecode.OpShiftLeft:
			if err := vm.binaryShift(func(a, b int64) int64 { return a << uint64(b) }); err != nil {
				return err
			}
		case bytecode.OpShiftRight:
			if err := vm.binaryShift(func(a, b int64) int64 { return a >> uint64(b) }); err != nil {
				return err
			}
		case bytecode.OpNot:
			vm.push(value.NewBool(vm.pop().Falsey()))
		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("operand must be a number")
			}
			vm.push(value.NewNumber(-vm.pop().Number))

		case bytecode.OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case bytecode.OpJump:
			offset := readU16()
			frame.IP += int(offset)
		case bytecode.OpJumpIfFalse:
			offset := readU16()
			if vm.peek(0).Falsey() {
				frame.IP += int(offset)
			}
		case bytecode.OpLoop:
			offset := readU16()
			frame.IP -= int(offset)

		case bytecode.OpCall:
			argCount := int(readByte())
			if !vm.callValue(vm.peek(argCount), argCount) {
				return vm.drainPendingErr()
			}
			frame = &vm.frames[vm.frameCount-1]
		case bytecode.OpInvoke:
			name := readString()
			argCount := int(readByte())
			if !vm.invoke(name, argCount) {
				return vm.drainPendingErr()
			}
			frame = &vm.frames[vm.frameCount-1]

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.Slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.Slots
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		case bytecode.OpExit:
			// OP_EXIT has no operand and the compiler pushes nothing for
			// `exit;`, so the exit code is always 0.
			vm.resetStack()
			vm.exitRequested = true
			vm.exitCode = 0
			return nil

		case bytecode.OpClosure:
			fnVal := readConstant()
			fn := fnVal.Obj.(*object.Function)
			closure := object.NewClosure(fn)
			vm.track(closure)
			// Push the closure before resolving upvalues, per spec.md §4.4:
			// captureUpvalue below can itself allocate (and so trigger a
			// collection), and closure must already be a root by then.
			vm.push(value.NewObj(closure))
			for i := 0; i < fn.UpvalueCountVal; i++ {
				isLocal := readByte()
				index := readByte()
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.Slots + int(index))
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[index]
				}
			}

		default:
			return vm.runtimeError("unknown opcode %d", op)
		}
	}
}

func (vm *VM) drainPendingErr() error {
	err := vm.pendingErr
	vm.pendingErr = nil
	if err == nil {
		return fmt.Errorf("internal error: call failed with no error recorded")
	}
	return err
}

func asInstance(v value.Value) (*object.Instance, bool) {
	if !v.IsObj() {
		return nil, false
	}
	i, ok := v.Obj.(*object.Instance)
	return i, ok
}

func asClass(v value.Value) (*object.Class, bool) {
	if !v.IsObj() {
		return nil, false
	}
	c, ok := v.Obj.(*object.Class)
	return c, ok
}

// ---- arithmetic helpers -------------------------------------------------

func (vm *VM) binaryNumber(op func(a, b float64) float64) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	b := vm.pop().Number
	a := vm.pop().Number
	vm.push(value.NewNumber(op(a, b)))
	return nil
}

func (vm *VM) binaryNumberCompare(op func(a, b float64) bool) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	b := vm.pop().Number
	a := vm.pop().Number
	vm.push(value.NewBool(op(a, b)))
	return nil
}

// binaryShift truncates both operands to 64-bit signed integers before
// shifting, matching spec.md §4.2's SHIFT semantics for operands that may
// carry a fractional part.
func (vm *VM) binaryShift(op func(a, b int64) int64) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	b := int64(vm.pop().Number)
	a := int64(vm.pop().Number)
	vm.push(value.NewNumber(float64(op(a, b))))
	return nil
}

// add implements numeric addition when both operands are Numbers, string
// concatenation when both are Strings, and errors on any other pairing
// (no implicit number-to-string coercion), per spec.md §4.2.
func (vm *VM) add() error {
	bv := vm.peek(0)
	av := vm.peek(1)

	aStr, aIsStr := asString(av)
	bStr, bIsStr := asString(bv)

	switch {
	// Build the concatenation while both operands are still peeked (rooted
	// on the stack), mirroring clox's concatenate(): the new interned
	// string is allocated before anything is popped, so a collection it
	// triggers still sees the operands as live.
	case aIsStr && bIsStr:
		result := vm.internString(aStr.Bytes + bStr.Bytes)
		vm.pop()
		vm.pop()
		vm.push(value.NewObj(result))
	case av.IsNumber() && bv.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(value.NewNumber(av.Number + bv.Number))
	default:
		return vm.runtimeError("operands must be two numbers or two strings")
	}
	return nil
}

func asString(v value.Value) (*object.String, bool) {
	if !v.IsObj() {
		return nil, false
	}
	s, ok := v.Obj.(*object.String)
	return s, ok
}

// fmtBuffer is a tiny io.Writer/String() pair so --trace-exec and the
// debugger can reuse bytecode.DisassembleInstruction without pulling in
// bytes.Buffer.
type fmtBuffer struct {
	data []byte
}

func (b *fmtBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *fmtBuffer) String() string { return string(b.data) }
