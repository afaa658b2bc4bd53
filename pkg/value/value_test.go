package value

import "testing"

type fakeObj struct{ s string }

func (f *fakeObj) ObjString() string { return f.s }

func TestFalsey(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", Nil, true},
		{"false", NewBool(false), true},
		{"true", NewBool(true), false},
		{"zero", NewNumber(0), false},
		{"nonzero", NewNumber(1), false},
		{"object", NewObj(&fakeObj{"x"}), false},
	}
	for _, tt := range tests {
		if got := tt.v.Falsey(); got != tt.want {
			t.Errorf("%s: Falsey() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	a := &fakeObj{"same"}
	b := &fakeObj{"same"}

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nil==nil", Nil, Nil, true},
		{"bool true==true", NewBool(true), NewBool(true), true},
		{"bool true!=false", NewBool(true), NewBool(false), false},
		{"number equal", NewNumber(3), NewNumber(3), true},
		{"number not equal", NewNumber(3), NewNumber(4), false},
		{"different kinds", NewNumber(0), NewBool(false), false},
		{"nil vs number", Nil, NewNumber(0), false},
		{"obj identity, not content", NewObj(a), NewObj(b), false},
		{"obj same reference", NewObj(a), NewObj(a), true},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: Equal() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAsConstant(t *testing.T) {
	v := NewNumber(5)
	if v.IsConstant {
		t.Fatal("fresh value should not be marked const")
	}
	c := v.AsConstant()
	if !c.IsConstant {
		t.Error("AsConstant() should set IsConstant")
	}
	if v.IsConstant {
		t.Error("AsConstant() should not mutate the receiver")
	}
}

func TestKindPredicates(t *testing.T) {
	if !Nil.IsNil() || Nil.IsBool() || Nil.IsNumber() || Nil.IsObj() {
		t.Error("Nil should only report IsNil")
	}
	if !NewBool(true).IsBool() {
		t.Error("expected IsBool")
	}
	if !NewNumber(1).IsNumber() {
		t.Error("expected IsNumber")
	}
	if !NewObj(&fakeObj{}).IsObj() {
		t.Error("expected IsObj")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"nil", Nil, "nil"},
		{"true", NewBool(true), "true"},
		{"false", NewBool(false), "false"},
		{"integer-valued number", NewNumber(3), "3"},
		{"fractional number", NewNumber(3.5), "3.5"},
		{"object delegates", NewObj(&fakeObj{"hello"}), "hello"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%s: String() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindNil, "nil"},
		{KindBool, "bool"},
		{KindNumber, "number"},
		{KindObj, "object"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}
