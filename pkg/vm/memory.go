package vm

import (
	"fmt"
	"unsafe"

	"github.com/dustin/go-humanize"

	"github.com/emberlang/ember/pkg/object"
	"github.com/emberlang/ember/pkg/value"
)

// initialNextGC is the byte threshold that triggers the VM's first
// collection. Chosen small enough that the 10^5-short-lived-strings
// stress scenario in spec.md §8 actually exercises several cycles rather
// than running to completion under a single generation.
const initialNextGC = 1 << 20

// sizeOf estimates the bookkeeping cost of o for bytes_allocated/next_gc
// purposes. Go's runtime gives no portable sizeof for heterogeneous heap
// objects, so this is a fixed per-variant estimate (plus the string's own
// byte length) rather than an exact value — precision doesn't matter for
// the collector's pressure heuristic, only that it is monotonic in actual
// allocation volume.
func sizeOf(o object.Obj) int64 {
	switch v := o.(type) {
	case *object.String:
		return int64(unsafe.Sizeof(*v)) + int64(len(v.Bytes))
	case *object.Function:
		return int64(unsafe.Sizeof(*v))
	case *object.Native:
		return int64(unsafe.Sizeof(*v))
	case *object.Closure:
		return int64(unsafe.Sizeof(*v)) + int64(len(v.Upvalues))*8
	case *object.Upvalue:
		return int64(unsafe.Sizeof(*v))
	case *object.Class:
		return int64(unsafe.Sizeof(*v))
	case *object.Instance:
		return int64(unsafe.Sizeof(*v))
	case *object.BoundMethod:
		return int64(unsafe.Sizeof(*v))
	default:
		return 64
	}
}

// trackNoGC links a freshly allocated object into the intrusive heap list
// and charges its estimated size against bytes_allocated, without ever
// triggering a collection itself. Used only by adopt: while the compiler's
// finished constant pool is being registered, the new function is not yet
// on the operand stack or in any frame, so nothing adopted so far is
// reachable from any root — a collection at that point would sweep
// everything adopted before it. This
// matches spec.md §4.5's design note that compilation runs to completion
// strictly before the VM's own dispatch loop (and therefore its collector)
// ever executes.
func (vm *VM) trackNoGC(o object.Obj) {
	size := sizeOf(o)
	object.SetSize(o, size)
	object.SetNext(o, vm.objects)
	vm.objects = o
	vm.bytesAllocated += size
}

// track is trackNoGC plus the allocation-pressure collection check every
// execution-time allocation path funnels through: string interning,
// closures, classes, instances, bound methods, upvalues. Spec.md §4.5
// requires a freshly constructed object to be reachable before the next
// GC-triggering allocation; since o's caller has not yet rooted it anywhere
// (it isn't on the stack or in any table yet), a collection triggered by
// o's own allocation pins o for this one cycle so it cannot sweep itself.
// The pin grays o like a root, so everything o references is traced too.
// The pin is released by sweep like any other mark bit, so the next cycle
// judges o by its real reachability.
func (vm *VM) track(o object.Obj) {
	vm.trackNoGC(o)

	if vm.StressGC || vm.bytesAllocated > vm.nextGC {
		vm.markObject(o)
		vm.collectGarbage()
	}
}

// internString returns the canonical *String for s, allocating a new
// tracked object only if this content has never been seen before.
func (vm *VM) internString(s string) *object.String {
	obj, created := vm.strings.GetOrCreate(s)
	if created {
		vm.track(obj)
	}
	return obj
}

// adopt walks a freshly compiled function's constant pool (recursing into
// nested function constants) and registers every object it references
// that is not already tracked (a string interned by an earlier compile or
// by the VM keeps its place in the heap list) into the VM's heap
// bookkeeping. Compilation itself never triggers a VM
// collection — it runs to completion before the VM's dispatch loop (and
// therefore its allocator) ever runs — so there is no need for an
// incremental "compiler root" hook the way a single-pass mutator sharing
// one collector with its compiler would; this one-time adoption pass is
// the faithful equivalent for an architecture where compile and execute
// are strictly sequential phases.
func (vm *VM) adopt(fn *object.Function, seen map[object.Obj]bool) {
	if fn == nil || seen[fn] {
		return
	}
	seen[fn] = true
	vm.trackNoGC(fn)
	if fn.Name != nil && !seen[fn.Name] {
		seen[fn.Name] = true
		if object.Size(fn.Name) == 0 {
			vm.trackNoGC(fn.Name)
		}
	}
	for _, c := range fn.Chunk.Constants {
		if !c.IsObj() || c.Obj == nil {
			continue
		}
		switch o := c.Obj.(type) {
		case *object.Function:
			vm.adopt(o, seen)
		case *object.String:
			if !seen[o] {
				seen[o] = true
				// A nonzero Size means trackNoGC already linked o into the
				// heap list; linking it again would cut the list into a cycle.
				if object.Size(o) == 0 {
					vm.trackNoGC(o)
				}
			}
		}
	}
}

// ---- mark-and-sweep ------------------------------------------------------

func (vm *VM) collectGarbage() {
	if vm.LogGC {
		fmt.Fprintln(vm.logOut, "-- gc begin")
	}
	before := vm.bytesAllocated

	vm.markRoots()
	vm.traceReferences()
	vm.strings.DeleteUnmarked()
	vm.sweep()

	vm.nextGC = vm.bytesAllocated * 2
	if vm.nextGC < initialNextGC {
		vm.nextGC = initialNextGC
	}

	if vm.LogGC {
		fmt.Fprintf(vm.logOut, "-- gc end: collected %s (from %s to %s), next at %s\n",
			humanize.Bytes(uint64(before-vm.bytesAllocated)),
			humanize.Bytes(uint64(before)),
			humanize.Bytes(uint64(vm.bytesAllocated)),
			humanize.Bytes(uint64(vm.nextGC)))
	}
}

func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].Closure)
	}
	for u := vm.openUpvalues; u != nil; u = u.NextOpen {
		vm.markObject(u)
	}
	vm.globals.Range(func(k *object.String, v value.Value) {
		vm.markObject(k)
		vm.markValue(v)
	})
	if vm.initString != nil {
		vm.markObject(vm.initString)
	}
}

func (vm *VM) markValue(v value.Value) {
	if v.IsObj() && v.Obj != nil {
		if o, ok := v.Obj.(object.Obj); ok {
			vm.markObject(o)
		}
	}
}

func (vm *VM) markObject(o object.Obj) {
	if o == nil || object.IsMarked(o) {
		return
	}
	object.SetMarked(o, true)
	vm.grayStack = append(vm.grayStack, o)
}

// traceReferences drains the gray stack, blackening each object by
// marking every reference it owns.
func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		n := len(vm.grayStack) - 1
		o := vm.grayStack[n]
		vm.grayStack = vm.grayStack[:n]
		vm.blacken(o)
	}
}

func (vm *VM) blacken(o object.Obj) {
	switch v := o.(type) {
	case *object.String:
		// no outgoing references
	case *object.Function:
		if v.Name != nil {
			vm.markObject(v.Name)
		}
		for _, c := range v.Chunk.Constants {
			vm.markValue(c)
		}
	case *object.Native:
		// the wrapped Go func has no object references to trace
	case *object.Closure:
		vm.markObject(v.Function)
		for _, u := range v.Upvalues {
			// OP_CLOSURE fills Upvalues after pushing the closure, so a
			// collection during captureUpvalue sees slots still nil.
			if u != nil {
				vm.markObject(u)
			}
		}
	case *object.Upvalue:
		if v.ClosedFlag {
			vm.markValue(v.ClosedValue)
		}
	case *object.Class:
		vm.markObject(v.Name)
		v.Methods.Range(func(k *object.String, mv value.Value) {
			vm.markObject(k)
			vm.markValue(mv)
		})
	case *object.Instance:
		vm.markObject(v.Class)
		v.Fields.Range(func(k *object.String, fv value.Value) {
			vm.markObject(k)
			vm.markValue(fv)
		})
	case *object.BoundMethod:
		vm.markValue(v.Receiver)
		vm.markObject(v.Method)
	}
}

// markObject on a typed nil (e.g. a (*object.Function)(nil) boxed into
// the object.Obj interface) must not dereference; Go's interface nil
// check handles the untyped case, and each concrete field above is
// guarded (Name may be nil for the script function, etc.) at its call
// site instead, since a generic nil check on the interface itself isn't
// enough once a concrete pointer is boxed.

// sweep walks the intrusive objects list, unlinking and discarding every
// unmarked node and clearing the mark bit on survivors so the next cycle
// starts clean. "Discarding" here means dropping the VM's own reference;
// physical reclamation is left to Go's runtime once nothing else holds a
// pointer to the object.
func (vm *VM) sweep() {
	var prev object.Obj
	node := vm.objects
	for node != nil {
		if object.IsMarked(node) {
			object.SetMarked(node, false)
			prev = node
			node = object.Next(node)
			continue
		}
		unreached := node
		node = object.Next(node)
		if prev != nil {
			object.SetNext(prev, node)
		} else {
			vm.objects = node
		}
		vm.bytesAllocated -= object.Size(unreached)
	}
}
