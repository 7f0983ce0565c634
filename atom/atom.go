// Package atom models the typed hypergraph which the sqlstore package
// persists: atoms (nodes and links), truth values, typed values, the type
// Registry, and the in-memory Table.
package atom

import (
	"strings"
	"sync"
)

// UUID is the persistent 64-bit identifier of an atom. UUIDs are allocated
// monotonically and never reassigned.
type UUID uint64

// InvalidUUID marks an atom with no assigned persistent identity.
const InvalidUUID UUID = 0

// Atom is a hypergraph element: a Node (typed, named) or a Link (typed, with
// an ordered outgoing set of other atoms). An Atom also carries a TruthValue
// and a set of key-addressed Values.
type Atom struct {
	typ    Type
	isLink bool
	name   string
	out    []*Atom

	mu     sync.Mutex
	tv     TruthValue
	values map[*Atom]Value
}

// NewNode returns a Node of the given type and name.
func NewNode(t Type, name string) *Atom {
	return &Atom{typ: t, name: name, tv: DefaultTV()}
}

// NewLink returns a Link of the given type and outgoing set. A zero-arity
// Link is still a Link, distinct from any Node.
func NewLink(t Type, out ...*Atom) *Atom {
	return &Atom{typ: t, isLink: true, out: out, tv: DefaultTV()}
}

// Type returns the atom's runtime type code.
func (a *Atom) Type() Type { return a.typ }

// IsNode is true if the atom is a Node.
func (a *Atom) IsNode() bool { return !a.isLink }

// IsLink is true if the atom is a Link.
func (a *Atom) IsLink() bool { return a.isLink }

// Name returns the node name. It is empty for links.
func (a *Atom) Name() string { return a.name }

// Outgoing returns the ordered outgoing set. It is nil for nodes.
func (a *Atom) Outgoing() []*Atom { return a.out }

// Arity returns the size of the outgoing set.
func (a *Atom) Arity() int { return len(a.out) }

// TruthValue returns the atom's current truth value.
func (a *Atom) TruthValue() TruthValue {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tv
}

// SetTruthValue replaces the atom's truth value.
func (a *Atom) SetTruthValue(tv TruthValue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tv = tv
}

// SetValue binds |v| to the atom under |key|. A nil Value removes the
// binding.
func (a *Atom) SetValue(key *Atom, v Value) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if v == nil {
		delete(a.values, key)
		return
	}
	if a.values == nil {
		a.values = make(map[*Atom]Value)
	}
	a.values[key] = v
}

// Value returns the Value bound under |key|, or nil.
func (a *Atom) Value(key *Atom) Value {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.values[key]
}

// Keys returns the key atoms having bound Values.
func (a *Atom) Keys() []*Atom {
	a.mu.Lock()
	defer a.mu.Unlock()

	var keys = make([]*Atom, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	return keys
}

// Height is zero for nodes, and one more than the tallest outgoing atom for
// links. The outgoing graph is a DAG by construction, so this terminates.
func (a *Atom) Height() int {
	if a.IsNode() {
		return 0
	}
	var max = 0
	for _, o := range a.out {
		if d := o.Height(); d > max {
			max = d
		}
	}
	return max + 1
}

// Canonical returns a canonical content form of the atom: two atoms are
// content-equal exactly when their canonical forms are equal. Forms are
// built from type codes, so they are process-local; cross-process identity
// is the business of the persisted UUID.
func (a *Atom) Canonical() string {
	var b strings.Builder
	a.canonical(&b)
	return b.String()
}

func (a *Atom) canonical(b *strings.Builder) {
	if a.IsNode() {
		b.WriteByte('n')
		writeUint(b, uint64(a.typ))
		b.WriteByte(':')
		b.WriteString(a.name)
		return
	}
	b.WriteByte('l')
	writeUint(b, uint64(a.typ))
	b.WriteByte('(')
	for i, o := range a.out {
		if i > 0 {
			b.WriteByte(',')
		}
		o.canonical(b)
	}
	b.WriteByte(')')
}

func writeUint(b *strings.Builder, v uint64) {
	if v >= 10 {
		writeUint(b, v/10)
	}
	b.WriteByte(byte('0' + v%10))
}
