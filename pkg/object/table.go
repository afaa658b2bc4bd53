package object

import "github.com/emberlang/ember/pkg/value"

// Table is the hash map keyed by interned *String (reference-compared)
// used for the string-intern table, globals, class method tables, and
// instance field tables. It is implemented atop Go's native map rather
// than a hand-rolled open-addressing table: Go's map already gives O(1)
// amortized lookup/insert/delete over pointer keys, and no example in the
// corpus hand-rolls its own hash table when a map will do.
type Table struct {
	entries map[*String]value.Value
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[*String]value.Value)}
}

// Get looks up key, reporting whether it was present.
func (t *Table) Get(key *String) (value.Value, bool) {
	v, ok := t.entries[key]
	return v, ok
}

// Set inserts or overwrites key's value, reporting whether key was new.
func (t *Table) Set(key *String, v value.Value) bool {
	_, existed := t.entries[key]
	t.entries[key] = v
	return !existed
}

// Delete removes key, reporting whether it was present.
func (t *Table) Delete(key *String) bool {
	_, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	return ok
}

// Has reports whether key is bound, without retrieving its value.
func (t *Table) Has(key *String) bool {
	_, ok := t.entries[key]
	return ok
}

// Len reports the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Range calls fn once per entry. Order is unspecified, matching Go's map
// iteration order (the collector's mark phase does not depend on order).
func (t *Table) Range(fn func(key *String, v value.Value)) {
	for k, v := range t.entries {
		fn(k, v)
	}
}

// AddAll copies every entry of src into t, overwriting any existing key.
// This implements OP_INHERIT's flat method copy-down: after the copy, the
// subclass owns its own snapshot, so later mutation of src does not
// propagate.
func (t *Table) AddAll(src *Table) {
	for k, v := range src.entries {
		t.entries[k] = v
	}
}

// DeleteUnmarked removes every entry whose key string is not marked. The
// collector does not call it: its weak sweep of the intern table is
// Strings.DeleteUnmarked.
func (t *Table) DeleteUnmarked() {
	for k := range t.entries {
		if !k.isMarked() {
			delete(t.entries, k)
		}
	}
}

// Strings is the intern table: it maps raw string content to its canonical
// *String object. It is keyed by Go string content rather than by
// *String (Table's usual key), since its entire purpose is to look a
// string object up *by content* before allocating a new one.
type Strings struct {
	byContent map[string]*String
}

// NewStrings returns an empty intern table.
func NewStrings() *Strings {
	return &Strings{byContent: make(map[string]*String)}
}

// Intern returns the canonical *String for s, allocating and registering a
// new one only if s has not been seen before. The returned object is the
// same pointer for any two calls with equal content, which is what makes
// String equality by reference imply content equality.
func (st *Strings) Intern(s string) *String {
	obj, _ := st.GetOrCreate(s)
	return obj
}

// GetOrCreate is Intern plus a flag reporting whether a new String was
// allocated, so callers that track allocation bookkeeping (pkg/vm's
// bytes_allocated counter) only charge for genuinely new objects.
func (st *Strings) GetOrCreate(s string) (obj *String, created bool) {
	if existing, ok := st.byContent[s]; ok {
		return existing, false
	}
	obj = NewString(s)
	st.byContent[s] = obj
	return obj, true
}

// Len reports the number of currently interned strings.
func (st *Strings) Len() int { return len(st.byContent) }

// Lookup returns the canonical *String for s if one has already been
// interned, without allocating.
func (st *Strings) Lookup(s string) (*String, bool) {
	obj, ok := st.byContent[s]
	return obj, ok
}

// DeleteUnmarked removes every entry whose String is not marked — the weak
// sweep that runs before the collector's general sweep walks the objects
// list.
func (st *Strings) DeleteUnmarked() {
	for content, obj := range st.byContent {
		if !obj.isMarked() {
			delete(st.byContent, content)
		}
	}
}

// Range calls fn once per interned string.
func (st *Strings) Range(fn func(s *String)) {
	for _, obj := range st.byContent {
		fn(obj)
	}
}
