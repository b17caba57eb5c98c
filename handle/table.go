package handle

import (
	"reflect"
	"sync"

	"github.com/xmlwasm/expat/errors"
)

// ID is a small non-negative integer standing in for a Go object on the
// foreign side of the WASM boundary. IDs are dense starting at 0; freed
// IDs are reissued by later Adds.
type ID int32

// BoundFunc is a Call with method and event fixed, taking only the handle
// and the event arguments. The fixed callback slots handed to the foreign
// engine are built from these.
type BoundFunc func(id ID, args ...any) (any, error)

type entry struct {
	value any
	live  bool
}

// Table maps IDs to Go objects for the duration of their foreign
// registration. The table tracks the association only; object lifetime
// stays with the caller.
//
// Lookups release the lock before invoking target methods, so entries may
// be added or removed from inside a dispatched call (expat callbacks are
// reentrant).
type Table struct {
	mu      sync.RWMutex
	entries []entry
	free    []ID // stack of recycled slots
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries: make([]entry, 0, 8),
	}
}

// Add registers v and returns its ID, reusing a freed slot when one is
// available. The returned ID never collides with a currently live one.
func (t *Table) Add(v any) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[id] = entry{value: v, live: true}
		return id
	}

	t.entries = append(t.entries, entry{value: v, live: true})
	return ID(len(t.entries) - 1)
}

// Remove invalidates id and marks its slot for reuse. Removing an ID that
// is not currently live fails with a not_live error; this is the guard
// against double-free and use-after-destroy mistakes mirrored from the
// manually managed side of the boundary.
func (t *Table) Remove(id ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id < 0 || int(id) >= len(t.entries) || !t.entries[id].live {
		return errors.NotLive(int32(id))
	}

	t.entries[id] = entry{}
	t.free = append(t.free, id)
	return nil
}

// Get returns the object at id. It never errors; unknown and removed IDs
// report (nil, false).
func (t *Table) Get(id ID) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id < 0 || int(id) >= len(t.entries) || !t.entries[id].live {
		return nil, false
	}
	return t.entries[id].value, true
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, e := range t.entries {
		if e.live {
			n++
		}
	}
	return n
}

// Call invokes method on the object at id as obj.Method(event, args...)
// and returns its first result, if any. An absent handle fails with an
// invalid_handle error naming the handle; a missing method fails with a
// not_a_method error naming both the method and the handle.
//
// A single statically registered callback slot is parameterized per event
// kind through Call rather than needing one native-callable slot per
// parser instance.
func (t *Table) Call(method, event string, id ID, args ...any) (any, error) {
	obj, ok := t.Get(id)
	if !ok {
		return nil, errors.InvalidHandle(int32(id))
	}

	m := reflect.ValueOf(obj).MethodByName(method)
	if !m.IsValid() || m.Kind() != reflect.Func {
		return nil, errors.NotAMethod(method, int32(id))
	}

	in, err := buildArgs(m.Type(), method, int32(id), event, args)
	if err != nil {
		return nil, err
	}

	out := m.Call(in)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// Bind fixes method and event, returning the partially applied form of
// Call used to populate the foreign engine's fixed callback slots at
// initialization time, independent of how many parsers exist later.
func (t *Table) Bind(method, event string) BoundFunc {
	return func(id ID, args ...any) (any, error) {
		return t.Call(method, event, id, args...)
	}
}

// buildArgs assembles reflect call arguments for obj.Method(event, args...),
// substituting typed zero values for untyped nils so nullable callback
// arguments survive reflection.
func buildArgs(ft reflect.Type, method string, id int32, event string, args []any) ([]reflect.Value, error) {
	argc := ft.NumIn()
	if argc == 0 {
		return nil, errors.NotAMethod(method, id)
	}

	in := make([]reflect.Value, 0, 1+len(args))
	if !reflect.TypeOf(event).AssignableTo(paramType(ft, 0)) {
		return nil, errors.NotAMethod(method, id)
	}
	in = append(in, reflect.ValueOf(event))

	for i, a := range args {
		pt := paramType(ft, i+1)
		if pt == nil {
			return nil, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
				Detail("method %q takes %d arguments, got %d", method, argc-1, len(args)).
				Build()
		}
		if a == nil {
			in = append(in, reflect.Zero(pt))
			continue
		}
		in = append(in, reflect.ValueOf(a))
	}
	return in, nil
}

// paramType returns the declared type of parameter i, unrolling the
// variadic tail, or nil when i is past a non-variadic signature.
func paramType(ft reflect.Type, i int) reflect.Type {
	last := ft.NumIn() - 1
	if ft.IsVariadic() && i >= last {
		return ft.In(last).Elem()
	}
	if i > last {
		return nil
	}
	return ft.In(i)
}
