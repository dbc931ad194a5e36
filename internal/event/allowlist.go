package event

import (
	"reflect"
	"sort"

	"github.com/dshills/pdfdesk/internal/event/name"
)

// Allowlist is the immutable set of permitted global event names.
//
// It is built once at bootstrap from the constant tables every module
// contributes and handed to NewBus. Namespaced names never consult it.
type Allowlist struct {
	names map[string]struct{}
}

// BuildAllowlist walks every table and collects each string leaf.
//
// A table may be any nesting of maps, slices, arrays, structs, pointers and
// interfaces. Map keys are ignored; only values are walked.
func BuildAllowlist(tables ...any) *Allowlist {
	a := &Allowlist{names: make(map[string]struct{})}
	w := &walker{seen: make(map[visit]bool), add: func(s string) {
		a.names[s] = struct{}{}
	}}
	for _, t := range tables {
		w.walk(reflect.ValueOf(t))
	}
	return a
}

// IsGlobalEventAllowed reports whether eventName may be used on the global
// channel. Names starting with "@" are always allowed.
func (a *Allowlist) IsGlobalEventAllowed(eventName string) bool {
	if name.IsNamespaced(eventName) {
		return true
	}
	if a == nil {
		return false
	}
	_, ok := a.names[eventName]
	return ok
}

// Contains reports set membership without the namespace bypass.
func (a *Allowlist) Contains(eventName string) bool {
	if a == nil {
		return false
	}
	_, ok := a.names[eventName]
	return ok
}

// Names returns the allowed names, sorted.
func (a *Allowlist) Names() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.names))
	for n := range a.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of allowed names.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.names)
}

// Invalid returns allowlisted strings that are not valid global names.
// Tables may legitimately hold such strings; this is a lint aid.
func (a *Allowlist) Invalid() []string {
	var bad []string
	for _, n := range a.Names() {
		if !name.IsValidGlobal(n) {
			bad = append(bad, n)
		}
	}
	return bad
}

// walker collects string leaves from arbitrary values.
type walker struct {
	seen map[visit]bool
	add  func(string)
}

// visit identifies a reference value already walked. The type keeps a
// struct apart from its first field, the length keeps subslices apart.
type visit struct {
	typ reflect.Type
	ptr uintptr
	len int
}

func (w *walker) walk(v reflect.Value) {
	switch v.Kind() {
	case reflect.Invalid:
		return
	case reflect.String:
		w.add(v.String())
	case reflect.Interface:
		if !v.IsNil() {
			w.walk(v.Elem())
		}
	case reflect.Pointer:
		if v.IsNil() || w.visited(v, 0) {
			return
		}
		w.walk(v.Elem())
	case reflect.Map:
		if v.IsNil() || w.visited(v, 0) {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			w.walk(iter.Value())
		}
	case reflect.Slice:
		if v.Len() == 0 || w.visited(v, v.Len()) {
			return
		}
		for i := 0; i < v.Len(); i++ {
			w.walk(v.Index(i))
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			w.walk(v.Index(i))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			w.walk(v.Field(i))
		}
	}
}

// visited records v and reports whether it had been seen before.
func (w *walker) visited(v reflect.Value, n int) bool {
	key := visit{typ: v.Type(), ptr: v.Pointer(), len: n}
	if w.seen[key] {
		return true
	}
	w.seen[key] = true
	return false
}

// IsValidEventName reports whether s is a well-formed global or namespaced
// event name.
func IsValidEventName(s string) bool {
	return name.IsValid(s)
}
