package atom

import (
	"sync"
)

// Table is an in-memory container of atoms with uniqueness on (type, name)
// for nodes and (type, outgoing) for links. A Table is identified by a space
// id and may have a parent environment. It is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	id      UUID
	environ *Table
	index   map[string]*Atom
	order   []*Atom

	registry *Registry
}

// NewTable returns an empty Table with the given space id and optional
// parent environment.
func NewTable(id UUID, environ *Table) *Table {
	return &Table{
		id:       id,
		environ:  environ,
		index:    make(map[string]*Atom),
		registry: DefaultRegistry(),
	}
}

// NewTableWithRegistry is NewTable with an explicit type Registry.
func NewTableWithRegistry(id UUID, environ *Table, r *Registry) *Table {
	var t = NewTable(id, environ)
	t.registry = r
	return t
}

// UUID returns the table's space id.
func (t *Table) UUID() UUID { return t.id }

// Environ returns the parent table, or nil.
func (t *Table) Environ() *Table { return t.environ }

// Add inserts |a| and, recursively, its outgoing set. If a content-equal
// atom is already present, the existing atom is returned; its truth value is
// replaced by the incoming one only when |merge| is set. The returned atom
// is always the table's canonical copy.
func (t *Table) Add(a *Atom, merge bool) *Atom {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(a, merge)
}

func (t *Table) add(a *Atom, merge bool) *Atom {
	var key = a.Canonical()
	if have, ok := t.index[key]; ok {
		if merge {
			have.SetTruthValue(a.TruthValue())
		}
		return have
	}

	if a.IsLink() {
		// Resolve the outgoing set to canonical table atoms.
		var out = make([]*Atom, len(a.out))
		var changed bool
		for i, o := range a.out {
			out[i] = t.add(o, merge)
			changed = changed || out[i] != o
		}
		if changed {
			var link = NewLink(a.typ, out...)
			link.SetTruthValue(a.TruthValue())
			a = link
		}
	}

	t.index[key] = a
	t.order = append(t.order, a)
	return a
}

// GetHandle returns the canonical atom content-equal to |a|, or nil.
func (t *Table) GetHandle(a *Atom) *Atom {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index[a.Canonical()]
}

// Size returns the number of atoms in the table.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// ForEachByType invokes |cb| over atoms of type |typ|, including subtypes
// when |recursive| is set. Iteration is over a snapshot, in insertion order,
// so links follow their outgoing atoms.
func (t *Table) ForEachByType(cb func(*Atom), typ Type, recursive bool) {
	t.mu.RLock()
	var snapshot = make([]*Atom, len(t.order))
	copy(snapshot, t.order)
	t.mu.RUnlock()

	for _, a := range snapshot {
		if a.typ == typ || (recursive && t.registry.IsA(a.typ, typ)) {
			cb(a)
		}
	}
}

// Barrier returns once all prior Table mutations are visible. The in-memory
// table is synchronous, so this is immediate.
func (t *Table) Barrier() {}
