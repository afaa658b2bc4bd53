package object

import (
	"github.com/emberlang/ember/pkg/value"
	"testing"
)

func TestTableGetSetDelete(t *testing.T) {
	tbl := NewTable()
	key := NewString("x")

	if _, ok := tbl.Get(key); ok {
		t.Fatal("empty table should not have key")
	}

	if isNew := tbl.Set(key, value.NewNumber(1)); !isNew {
		t.Error("Set on a fresh key should report true")
	}
	if isNew := tbl.Set(key, value.NewNumber(2)); isNew {
		t.Error("Set overwriting an existing key should report false")
	}

	v, ok := tbl.Get(key)
	if !ok || v.Number != 2 {
		t.Errorf("Get() = (%v, %v), want (2, true)", v, ok)
	}

	if !tbl.Has(key) {
		t.Error("Has() should report true for a present key")
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}

	if !tbl.Delete(key) {
		t.Error("Delete() should report true for a present key")
	}
	if tbl.Delete(key) {
		t.Error("Delete() should report false the second time")
	}
	if tbl.Has(key) {
		t.Error("Has() should report false after Delete")
	}
}

func TestTableKeyedByReferenceNotContent(t *testing.T) {
	tbl := NewTable()
	a := NewString("dup")
	b := NewString("dup")

	tbl.Set(a, value.NewNumber(1))
	tbl.Set(b, value.NewNumber(2))

	if tbl.Len() != 2 {
		t.Fatalf("two distinct *String objects with equal content should be two keys, got Len()=%d", tbl.Len())
	}
}

func TestTableRange(t *testing.T) {
	tbl := NewTable()
	tbl.Set(NewString("a"), value.NewNumber(1))
	tbl.Set(NewString("b"), value.NewNumber(2))

	seen := map[string]float64{}
	tbl.Range(func(k *String, v value.Value) {
		seen[k.Bytes] = v.Number
	})
	if len(seen) != 2 || seen["a"] != 1 || seen["b"] != 2 {
		t.Errorf("Range visited %v, want a:1 b:2", seen)
	}
}

func TestTableAddAllCopiesThenIndependent(t *testing.T) {
	parent := NewTable()
	parent.Set(NewString("greet"), value.NewNumber(1))

	child := NewTable()
	child.AddAll(parent)

	if child.Len() != 1 {
		t.Fatalf("AddAll should copy parent's entries, Len()=%d", child.Len())
	}

	parent.Set(NewString("late"), value.NewNumber(2))
	if child.Len() != 1 {
		t.Error("mutating parent after AddAll should not affect child (flat copy-down)")
	}
}

func TestTableDeleteUnmarked(t *testing.T) {
	tbl := NewTable()
	marked := NewString("keep")
	unmarked := NewString("drop")
	SetMarked(marked, true)

	tbl.Set(marked, value.NewNumber(1))
	tbl.Set(unmarked, value.NewNumber(2))

	tbl.DeleteUnmarked()

	if !tbl.Has(marked) {
		t.Error("DeleteUnmarked should keep marked entries")
	}
	if tbl.Has(unmarked) {
		t.Error("DeleteUnmarked should remove unmarked entries")
	}
}

func TestStringsInternReturnsSamePointer(t *testing.T) {
	st := NewStrings()
	a := st.Intern("hello")
	b := st.Intern("hello")
	if a != b {
		t.Error("Intern should return the same *String for equal content")
	}
}

func TestStringsGetOrCreateReportsCreation(t *testing.T) {
	st := NewStrings()
	_, created := st.GetOrCreate("hello")
	if !created {
		t.Error("first GetOrCreate should report created=true")
	}
	_, created = st.GetOrCreate("hello")
	if created {
		t.Error("second GetOrCreate with the same content should report created=false")
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}
}

func TestStringsLookupWithoutAllocating(t *testing.T) {
	st := NewStrings()
	if _, ok := st.Lookup("missing"); ok {
		t.Fatal("Lookup should report false for content never interned")
	}
	st.Intern("present")
	obj, ok := st.Lookup("present")
	if !ok || obj.Bytes != "present" {
		t.Errorf("Lookup() = (%v, %v), want (present, true)", obj, ok)
	}
	if st.Len() != 1 {
		t.Error("Lookup must not allocate a new entry")
	}
}

func TestStringsDeleteUnmarked(t *testing.T) {
	st := NewStrings()
	keep := st.Intern("keep")
	st.Intern("drop")
	SetMarked(keep, true)

	st.DeleteUnmarked()

	if st.Len() != 1 {
		t.Fatalf("DeleteUnmarked should leave exactly the marked entry, Len()=%d", st.Len())
	}
	if _, ok := st.Lookup("keep"); !ok {
		t.Error("marked entry should survive DeleteUnmarked")
	}
	if _, ok := st.Lookup("drop"); ok {
		t.Error("unmarked entry should be removed by DeleteUnmarked")
	}
}

func TestStringsRange(t *testing.T) {
	st := NewStrings()
	st.Intern("a")
	st.Intern("b")

	seen := map[string]bool{}
	st.Range(func(s *String) { seen[s.Bytes] = true })
	if len(seen) != 2 || !seen["a"] || !seen["b"] {
		t.Errorf("Range visited %v, want a and b", seen)
	}
}
