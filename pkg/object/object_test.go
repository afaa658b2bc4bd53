package object

import (
	"testing"

	"github.com/emberlang/ember/pkg/value"
)

func TestNewStringComputesHash(t *testing.T) {
	s := NewString("hello")
	if s.Bytes != "hello" {
		t.Fatalf("Bytes = %q, want hello", s.Bytes)
	}
	if s.Hash != HashString("hello") {
		t.Errorf("Hash = %d, want %d", s.Hash, HashString("hello"))
	}
	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}
}

func TestHashStringDeterministic(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("HashString should be deterministic for equal content")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("HashString should differ for different content (extremely unlikely collision)")
	}
}

func TestFunctionObjString(t *testing.T) {
	fn := NewFunction()
	if got := fn.ObjString(); got != "<script>" {
		t.Errorf("unnamed function ObjString() = %q, want <script>", got)
	}
	fn.Name = NewString("add")
	if got := fn.ObjString(); got != "<fn add>" {
		t.Errorf("named function ObjString() = %q, want <fn add>", got)
	}
}

func TestNativeObjString(t *testing.T) {
	n := NewNative("clock", func(args []value.Value) (value.Value, *NativeError) {
		return value.Nil, nil
	})
	if got := n.ObjString(); got != "<native fn clock>" {
		t.Errorf("ObjString() = %q, want <native fn clock>", got)
	}
}

func TestClosureObjStringDelegatesToFunction(t *testing.T) {
	fn := NewFunction()
	fn.Name = NewString("inc")
	cl := NewClosure(fn)
	if got := cl.ObjString(); got != "<fn inc>" {
		t.Errorf("ObjString() = %q, want <fn inc>", got)
	}
	if len(cl.Upvalues) != 0 {
		t.Errorf("Upvalues len = %d, want 0 for zero-upvalue function", len(cl.Upvalues))
	}
}

func TestClosureUpvalueSlotSizing(t *testing.T) {
	fn := NewFunction()
	fn.UpvalueCountVal = 3
	cl := NewClosure(fn)
	if len(cl.Upvalues) != 3 {
		t.Fatalf("Upvalues len = %d, want 3", len(cl.Upvalues))
	}
	for i, u := range cl.Upvalues {
		if u != nil {
			t.Errorf("Upvalues[%d] should start nil, got %v", i, u)
		}
	}
}

func TestClassAndInstanceObjString(t *testing.T) {
	class := NewClass(NewString("Greeter"))
	if got := class.ObjString(); got != "Greeter" {
		t.Errorf("Class.ObjString() = %q, want Greeter", got)
	}
	inst := NewInstance(class)
	if got := inst.ObjString(); got != "Greeter instance" {
		t.Errorf("Instance.ObjString() = %q, want Greeter instance", got)
	}
}

func TestBoundMethodObjString(t *testing.T) {
	fn := NewFunction()
	fn.Name = NewString("bump")
	cl := NewClosure(fn)
	bm := NewBoundMethod(value.Nil, cl)
	if got := bm.ObjString(); got != "<fn bump>" {
		t.Errorf("ObjString() = %q, want <fn bump>", got)
	}
}

func TestHeaderAccessors(t *testing.T) {
	s := NewString("x")
	if IsMarked(s) {
		t.Fatal("fresh object should start unmarked")
	}
	SetMarked(s, true)
	if !IsMarked(s) {
		t.Error("SetMarked(true) should mark the object")
	}
	SetMarked(s, false)
	if IsMarked(s) {
		t.Error("SetMarked(false) should unmark the object")
	}

	if Next(s) != nil {
		t.Error("fresh object should have nil Next")
	}
	other := NewString("y")
	SetNext(s, other)
	if Next(s) != Obj(other) {
		t.Error("SetNext should link to the given object")
	}

	SetSize(s, 42)
	if Size(s) != 42 {
		t.Errorf("Size() = %d, want 42", Size(s))
	}
}

func TestTypeOfAndTypeString(t *testing.T) {
	tests := []struct {
		o    Obj
		want Type
	}{
		{NewString("x"), TypeString},
		{NewFunction(), TypeFunction},
		{NewClass(NewString("C")), TypeClass},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.o); got != tt.want {
			t.Errorf("TypeOf() = %v, want %v", got, tt.want)
		}
	}

	names := map[Type]string{
		TypeString:      "String",
		TypeFunction:     "Function",
		TypeNative:       "Native",
		TypeClosure:      "Closure",
		TypeUpvalue:      "Upvalue",
		TypeClass:        "Class",
		TypeInstance:     "Instance",
		TypeBoundMethod:  "BoundMethod",
	}
	for typ, want := range names {
		if got := typ.String(); got != want {
			t.Errorf("Type(%d).String() = %q, want %q", typ, got, want)
		}
	}
}

func TestNumberAndBoolToString(t *testing.T) {
	if got := NumberToString(3); got != "3" {
		t.Errorf("NumberToString(3) = %q, want 3", got)
	}
	if got := NumberToString(3.5); got != "3.5" {
		t.Errorf("NumberToString(3.5) = %q, want 3.5", got)
	}
	if got := BoolToString(true); got != "true" {
		t.Errorf("BoolToString(true) = %q, want true", got)
	}
	if got := BoolToString(false); got != "false" {
		t.Errorf("BoolToString(false) = %q, want false", got)
	}
}
