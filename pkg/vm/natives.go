package vm

import (
	"bufio"
	"fmt"
	"math"
	"time"

	"github.com/emberlang/ember/pkg/object"
	"github.com/emberlang/ember/pkg/value"
)

// nativeErr builds a *object.NativeError with a formatted message — the
// one failure channel natives use, replacing the Nil-return convention
// spec.md flags as a known bug.
func nativeErr(format string, args ...interface{}) *object.NativeError {
	return &object.NativeError{Message: fmt.Sprintf(format, args...)}
}

// defineNatives installs the built-in callable set named in spec.md
// §4.6: clock, to_int, sin, cos, pi, c_in, clear, err, endl.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", vm.nativeClock)
	vm.defineNative("to_int", vm.nativeToInt)
	vm.defineNative("sin", vm.nativeSin)
	vm.defineNative("cos", vm.nativeCos)
	vm.defineNative("pi", vm.nativePi)
	vm.defineNative("c_in", vm.nativeConsoleIn)
	vm.defineNative("clear", vm.nativeClear)
	vm.defineNative("err", vm.nativeErrPrint)
	vm.defineNative("endl", vm.nativeEndLine)
}

func (vm *VM) defineNative(name string, fn object.NativeFn) {
	nameStr := vm.internString(name)
	// nameStr isn't reachable from any root yet (not in globals until the
	// Set below); root it on the stack across the native's own allocation.
	vm.push(value.NewObj(nameStr))
	native := object.NewNative(name, fn)
	vm.track(native)
	vm.pop()
	vm.globals.Set(nameStr, value.NewObj(native))
}

func (vm *VM) nativeClock(args []value.Value) (value.Value, *object.NativeError) {
	if len(args) != 0 {
		return value.Nil, nativeErr("clock() takes no arguments")
	}
	return value.NewNumber(float64(time.Now().UnixNano()) / 1e9), nil
}

func (vm *VM) nativeToInt(args []value.Value) (value.Value, *object.NativeError) {
	if len(args) != 1 {
		return value.Nil, nativeErr("to_int() takes exactly one argument")
	}
	switch {
	case args[0].IsNumber():
		return value.NewNumber(math.Trunc(args[0].Number)), nil
	case args[0].IsObj():
		if s, ok := args[0].Obj.(*object.String); ok {
			var n float64
			if _, err := fmt.Sscanf(s.Bytes, "%g", &n); err != nil {
				return value.Nil, nativeErr("to_int() could not parse %q as a number", s.Bytes)
			}
			return value.NewNumber(math.Trunc(n)), nil
		}
	}
	return value.Nil, nativeErr("to_int() expects a number or string argument")
}

func (vm *VM) nativeSin(args []value.Value) (value.Value, *object.NativeError) {
	if len(args) != 1 || !args[0].IsNumber() {
		return value.Nil, nativeErr("sin() expects one number argument")
	}
	return value.NewNumber(math.Sin(args[0].Number)), nil
}

func (vm *VM) nativeCos(args []value.Value) (value.Value, *object.NativeError) {
	if len(args) != 1 || !args[0].IsNumber() {
		return value.Nil, nativeErr("cos() expects one number argument")
	}
	return value.NewNumber(math.Cos(args[0].Number)), nil
}

func (vm *VM) nativePi(args []value.Value) (value.Value, *object.NativeError) {
	if len(args) != 0 {
		return value.Nil, nativeErr("pi() takes no arguments")
	}
	return value.NewNumber(math.Acos(-1.0)), nil
}

// nativeConsoleIn reads a single line from the VM's input channel,
// truncated to at most len bytes if a len >= 0 is given, mirroring the source's
// malloc'd-buffer console input native.
func (vm *VM) nativeConsoleIn(args []value.Value) (value.Value, *object.NativeError) {
	if len(args) > 1 {
		return value.Nil, nativeErr("c_in() takes zero or one argument")
	}
	maxLen := -1
	if len(args) == 1 {
		if !args[0].IsNumber() {
			return value.Nil, nativeErr("c_in() length argument must be a number")
		}
		maxLen = int(args[0].Number)
	}

	reader := vm.stdinReader()
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return value.Nil, nativeErr("c_in() failed to read input: %v", err)
	}
	line = trimNewline(line)
	if maxLen >= 0 && len(line) > maxLen {
		line = line[:maxLen]
	}
	return value.NewObj(vm.internString(line)), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func (vm *VM) stdinReader() lineReader {
	if vm.stdinBuf == nil {
		vm.stdinBuf = bufio.NewReader(vm.in)
	}
	return vm.stdinBuf
}

func (vm *VM) nativeClear(args []value.Value) (value.Value, *object.NativeError) {
	if len(args) != 0 {
		return value.Nil, nativeErr("clear() takes no arguments")
	}
	fmt.Fprint(vm.out, "\033[H\033[2J")
	return value.Nil, nil
}

func (vm *VM) nativeErrPrint(args []value.Value) (value.Value, *object.NativeError) {
	if len(args) != 1 {
		return value.Nil, nativeErr("err() expects exactly one argument")
	}
	fmt.Fprintf(vm.out, "Error thrown: %s\n", args[0].String())
	return value.Nil, nil
}

func (vm *VM) nativeEndLine(args []value.Value) (value.Value, *object.NativeError) {
	if len(args) != 0 {
		return value.Nil, nativeErr("endl() takes no arguments")
	}
	fmt.Fprint(vm.out, "\n")
	return value.Nil, nil
}
