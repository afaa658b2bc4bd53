// Package object implements ember's heap: the common Obj header every
// allocation carries, the eight concrete object variants named in the data
// model, and the intern/globals/fields Table built on them.
//
// Every object embeds Header, which is what lets pkg/vm's collector walk a
// single intrusive linked list (Header.Next) over a heterogeneous object
// graph without a type switch at the allocation-bookkeeping layer.
package object

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/google/uuid"

	"github.com/emberlang/ember/pkg/bytecode"
	"github.com/emberlang/ember/pkg/value"
)

// Type tags which concrete variant an Obj is, mirroring the ObjType
// enumeration in the data model.
type Type uint8

const (
	TypeString Type = iota
	TypeFunction
	TypeNative
	TypeClosure
	TypeUpvalue
	TypeClass
	TypeInstance
	TypeBoundMethod
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeFunction:
		return "Function"
	case TypeNative:
		return "Native"
	case TypeClosure:
		return "Closure"
	case TypeUpvalue:
		return "Upvalue"
	case TypeClass:
		return "Class"
	case TypeInstance:
		return "Instance"
	case TypeBoundMethod:
		return "BoundMethod"
	default:
		return "Unknown"
	}
}

// Header is embedded in every concrete object variant. Marked and Next are
// owned exclusively by the collector (pkg/vm); nothing outside a GC cycle
// should read or write them.
type Header struct {
	Type   Type
	Marked bool
	Next   Obj
	// Size is the collector's bookkeeping estimate of this object's cost
	// against bytes_allocated/next_gc, recorded at allocation time since
	// Go gives no portable sizeof to recompute it during sweep.
	Size int64
}

func (h *Header) objType() Type    { return h.Type }
func (h *Header) isMarked() bool   { return h.Marked }
func (h *Header) setMarked(m bool) { h.Marked = m }
func (h *Header) next() Obj        { return h.Next }
func (h *Header) setNext(o Obj)    { h.Next = o }
func (h *Header) size() int64      { return h.Size }
func (h *Header) setSize(s int64)  { h.Size = s }

// Obj is the common interface every heap object satisfies. It intentionally
// mirrors value.Obj (ObjString) plus the bookkeeping the collector needs;
// pkg/vm type-switches on the concrete type when it needs variant-specific
// behavior (marking outgoing references, call dispatch, etc).
type Obj interface {
	value.Obj
	objType() Type
	isMarked() bool
	setMarked(bool)
	next() Obj
	setNext(Obj)
	size() int64
	setSize(int64)
}

// TypeOf exposes the Header's Type tag for callers outside the package that
// hold an Obj and need to dispatch on its concrete variant.
func TypeOf(o Obj) Type { return o.objType() }

// IsMarked reports the object's current mark bit.
func IsMarked(o Obj) bool { return o.isMarked() }

// SetMarked sets the object's mark bit. Used only by the collector.
func SetMarked(o Obj, m bool) { o.setMarked(m) }

// Next returns the next node in the heap's intrusive allocation list.
func Next(o Obj) Obj { return o.next() }

// SetNext links o to the next node in the heap's intrusive allocation list.
func SetNext(o Obj, next Obj) { o.setNext(next) }

// Size returns the collector's recorded allocation-cost estimate for o.
func Size(o Obj) int64 { return o.size() }

// SetSize records the collector's allocation-cost estimate for o. Called
// once, at allocation time.
func SetSize(o Obj, s int64) { o.setSize(s) }

// ---- String ----------------------------------------------------------

// String is the canonical, content-interned string object. Equal content
// always means the same *String pointer once it has passed through the
// intern table (see Strings.Intern).
type String struct {
	Header
	Bytes string
	Hash  uint32
}

// NewString builds a (not yet interned) String object and computes its
// FNV-1a hash, as the data model mandates.
func NewString(s string) *String {
	return &String{Header: Header{Type: TypeString}, Bytes: s, Hash: HashString(s)}
}

// HashString computes the FNV-1a hash the intern table keys strings by.
func HashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func (s *String) ObjString() string { return s.Bytes }
func (s *String) Len() int          { return len(s.Bytes) }

// ---- Function ----------------------------------------------------------

// Function is a compiled function: its arity, how many upvalues its
// closures need, its code, and an optional name (absent only for the
// implicit top-level script function).
type Function struct {
	Header
	Arity           int
	UpvalueCountVal int
	Chunk           *bytecode.Chunk
	Name            *String

	// DebugID tags this function's lines in --trace-exec output (and the
	// top-level script's header in a disasm listing). It is generated fresh
	// on every compilation and has no bearing on execution.
	DebugID uuid.UUID
}

// NewFunction allocates a fresh, empty top-level or nested function object
// with its own chunk ready to be written to by the compiler.
func NewFunction() *Function {
	return &Function{Header: Header{Type: TypeFunction}, Chunk: bytecode.NewChunk(), DebugID: uuid.New()}
}

// UpvalueCount reports how many upvalues closures over this function need.
// Exported as a method (rather than a bare field read) so pkg/bytecode's
// disassembler can type-assert for it without importing pkg/object.
func (f *Function) UpvalueCount() int { return f.UpvalueCountVal }

func (f *Function) ObjString() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Bytes)
}

// ---- Native --------------------------------------------------------------

// NativeError is the explicit failure channel natives use instead of the
// Nil-collision convention spec.md flags as a known bug: a native signals
// failure by returning a non-nil *NativeError, never by returning Nil.
type NativeError struct {
	Message string
}

func (e *NativeError) Error() string { return e.Message }

// NativeFn is the signature every built-in callable implements.
type NativeFn func(args []value.Value) (value.Value, *NativeError)

// Native wraps a Go function so it can be installed in globals and called
// through the same dispatch path as any other callable.
type Native struct {
	Header
	Name string
	Fn   NativeFn
}

func NewNative(name string, fn NativeFn) *Native {
	return &Native{Header: Header{Type: TypeNative}, Name: name, Fn: fn}
}

func (n *Native) ObjString() string { return fmt.Sprintf("<native fn %s>", n.Name) }

// ---- Upvalue ---------------------------------------------------------

// Upvalue is a cell that starts open (pointing at a live stack slot) and is
// closed (promoted to own its value) at frame exit. While open it refers
// to a stack slot by StackIndex; once closed its value lives in
// ClosedValue. pkg/vm picks between the two by checking ClosedFlag rather
// than holding a Go pointer into the operand stack.
type Upvalue struct {
	Header
	// StackIndex is the slot in the VM's operand stack this upvalue refers
	// to while open. Ignored once ClosedFlag is true.
	StackIndex int
	// ClosedFlag reports whether this upvalue has been promoted off the stack.
	ClosedFlag bool
	// ClosedValue holds the value once ClosedFlag is true.
	ClosedValue value.Value
	// NextOpen links the VM's open-upvalue list, sorted by descending
	// StackIndex (deepest/newest frames first).
	NextOpen *Upvalue
}

func NewUpvalue(stackIndex int) *Upvalue {
	return &Upvalue{Header: Header{Type: TypeUpvalue}, StackIndex: stackIndex}
}

func (u *Upvalue) ObjString() string { return "upvalue" }

// ---- Closure -----------------------------------------------------------

// Closure pairs a Function with the upvalues its nested scopes captured.
// Upvalues is sized once at creation (to UpvalueCount) and never resized.
type Closure struct {
	Header
	Function *Function
	Upvalues []*Upvalue
}

func NewClosure(fn *Function) *Closure {
	return &Closure{
		Header:   Header{Type: TypeClosure},
		Function: fn,
		Upvalues: make([]*Upvalue, fn.UpvalueCountVal),
	}
}

func (c *Closure) ObjString() string { return c.Function.ObjString() }

// ---- Class / Instance / BoundMethod --------------------------------

// Class holds a name and its flattened method table: INHERIT copies a
// superclass's methods in at class-definition time, so method dispatch
// never walks a superclass chain at call time.
type Class struct {
	Header
	Name    *String
	Methods *Table
}

func NewClass(name *String) *Class {
	return &Class{Header: Header{Type: TypeClass}, Name: name, Methods: NewTable()}
}

func (c *Class) ObjString() string { return c.Name.Bytes }

// Instance is a live object of some Class with its own dynamic field set.
// Fields shadow methods of the same name at property-lookup time.
type Instance struct {
	Header
	Class  *Class
	Fields *Table
}

func NewInstance(class *Class) *Instance {
	return &Instance{Header: Header{Type: TypeInstance}, Class: class, Fields: NewTable()}
}

func (i *Instance) ObjString() string { return fmt.Sprintf("%s instance", i.Class.Name.Bytes) }

// BoundMethod pairs a receiver (typically an Instance, but any value is
// permitted) with the Closure that implements the bound method, so it can
// be called like any other callable.
type BoundMethod struct {
	Header
	Receiver value.Value
	Method   *Closure
}

func NewBoundMethod(receiver value.Value, method *Closure) *BoundMethod {
	return &BoundMethod{Header: Header{Type: TypeBoundMethod}, Receiver: receiver, Method: method}
}

func (b *BoundMethod) ObjString() string { return b.Method.ObjString() }

// NumberToString formats a number in shortest 'g' form. pkg/vm does not
// call it: to_str formats through value.Value.String, and ADD does no
// number/string coercion. Go's strconv.FormatFloat writes exactly the
// formatted bytes, so (unlike the
// fixed 24*sizeof(double) allocation this is ported from) the resulting
// string's length is always the real formatted length.
func NumberToString(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func BoolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
