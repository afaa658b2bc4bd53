package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/emberlang/ember/pkg/bytecode"
	"github.com/emberlang/ember/pkg/object"
	"github.com/emberlang/ember/pkg/value"
)

// Debugger provides an interactive breakpoint/step prompt over a running
// VM. Breakpoints are keyed by instruction offset within whichever chunk
// is currently executing — since ember (unlike the flat single-bytecode
// program this is adapted from) compiles one chunk per function, a
// breakpoint set while paused inside one function does not follow control
// into another function's chunk at the same offset.
type Debugger struct {
	vm          *VM
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool
}

// NewDebugger builds a debugger for vm; it takes effect once assigned to
// vm.Debugger. It starts disabled; Enable turns it on.
func NewDebugger(vm *VM) *Debugger {
	return &Debugger{vm: vm, breakpoints: make(map[int]bool)}
}

func (d *Debugger) Enable()  { d.enabled = true }
func (d *Debugger) Disable() { d.enabled = false }

func (d *Debugger) SetStepMode(enabled bool) { d.stepMode = enabled }

func (d *Debugger) AddBreakpoint(ip int)    { d.breakpoints[ip] = true }
func (d *Debugger) RemoveBreakpoint(ip int) { delete(d.breakpoints, ip) }
func (d *Debugger) ClearBreakpoints()       { d.breakpoints = make(map[int]bool) }

// ShouldPause reports whether the VM should stop before executing the
// instruction at the current frame's IP.
func (d *Debugger) ShouldPause() bool {
	if !d.enabled {
		return false
	}
	if d.stepMode {
		return true
	}
	frame := &d.vm.frames[d.vm.frameCount-1]
	return d.breakpoints[frame.IP]
}

func (d *Debugger) currentFrame() *CallFrame {
	return &d.vm.frames[d.vm.frameCount-1]
}

func (d *Debugger) showCurrentInstruction() {
	frame := d.currentFrame()
	chunk := frame.Closure.Function.Chunk
	if frame.IP >= chunk.Len() {
		fmt.Println("(at end of chunk)")
		return
	}
	var buf fmtBuffer
	bytecode.DisassembleInstruction(&buf, chunk, frame.IP)
	fmt.Print(buf.String())
}

func (d *Debugger) showStack() {
	fmt.Println("Stack (top to bottom):")
	if d.vm.stackTop == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := d.vm.stackTop - 1; i >= 0; i-- {
		fmt.Printf("  [%d] %s\n", i, d.vm.stack[i].String())
	}
}

func (d *Debugger) showLocals() {
	frame := d.currentFrame()
	fmt.Println("Locals (this frame's stack window):")
	if d.vm.stackTop <= frame.Slots {
		fmt.Println("  (none)")
		return
	}
	for i := frame.Slots; i < d.vm.stackTop; i++ {
		fmt.Printf("  [%d] %s\n", i-frame.Slots, d.vm.stack[i].String())
	}
}

func (d *Debugger) showGlobals() {
	fmt.Println("Globals:")
	if d.vm.globals.Len() == 0 {
		fmt.Println("  (none)")
		return
	}
	d.vm.globals.Range(func(k *object.String, v value.Value) {
		fmt.Printf("  %s = %s\n", k.Bytes, v.String())
	})
}

func (d *Debugger) showCallStack() {
	fmt.Println("Call stack (top to bottom):")
	if d.vm.frameCount == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := d.vm.frameCount - 1; i >= 0; i-- {
		frame := &d.vm.frames[i]
		name := "script"
		if frame.Closure.Function.Name != nil {
			name = frame.Closure.Function.Name.Bytes
		}
		fmt.Printf("  %s [IP: %d]\n", name, frame.IP)
	}
}

func (d *Debugger) listInstructions() {
	frame := d.currentFrame()
	chunk := frame.Closure.Function.Chunk
	for offset := 0; offset < chunk.Len(); {
		marker := "  "
		if offset == frame.IP {
			marker = "->"
		} else if d.breakpoints[offset] {
			marker = "* "
		}
		fmt.Print(marker)
		var buf fmtBuffer
		offset = bytecode.DisassembleInstruction(&buf, chunk, offset)
		fmt.Print(buf.String())
	}
}

// InteractivePrompt blocks on stdin reading debugger commands until the
// user asks to continue, step, or quit. It returns false only when the
// user asks to abort execution entirely.
func (d *Debugger) InteractivePrompt() (continueExecution bool) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("\n=== paused ===")
	d.showCurrentInstruction()

	for {
		fmt.Print("debug> ")
		if !scanner.Scan() {
			return false
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.SetStepMode(false)
			return true
		case "step", "s", "next", "n":
			d.SetStepMode(true)
			return true
		case "stack", "st":
			d.showStack()
		case "locals", "l":
			d.showLocals()
		case "globals", "g":
			d.showGlobals()
		case "callstack", "cs":
			d.showCallStack()
		case "instruction", "i":
			d.showCurrentInstruction()
		case "breakpoint", "b":
			if len(parts) < 2 {
				fmt.Println("usage: breakpoint <offset>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid offset")
				continue
			}
			d.AddBreakpoint(ip)
			fmt.Printf("breakpoint set at %d\n", ip)
		case "delete", "d":
			if len(parts) < 2 {
				fmt.Println("usage: delete <offset>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid offset")
				continue
			}
			d.RemoveBreakpoint(ip)
			fmt.Printf("breakpoint removed at %d\n", ip)
		case "list", "ls":
			d.listInstructions()
		case "quit", "q":
			return false
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", parts[0])
		}
	}
}

func (d *Debugger) printHelp() {
	fmt.Println("Debugger commands:")
	fmt.Println("  help, h, ?        show this help")
	fmt.Println("  continue, c       resume execution")
	fmt.Println("  step, s, next, n  execute one instruction")
	fmt.Println("  stack, st         show the operand stack")
	fmt.Println("  locals, l         show the current frame's locals")
	fmt.Println("  globals, g        show global bindings")
	fmt.Println("  callstack, cs     show the call stack")
	fmt.Println("  instruction, i    show the current instruction")
	fmt.Println("  breakpoint <n>, b set a breakpoint at chunk offset n")
	fmt.Println("  delete <n>, d     remove a breakpoint at chunk offset n")
	fmt.Println("  list, ls          list the current function's instructions")
	fmt.Println("  quit, q           abort execution")
}
