package sqlstore

import (
	"sync"

	"github.com/shadowridgedev/atomspace/atom"
)

// TLB is the translation buffer: a bidirectional map between in-memory atoms
// and their persistent UUIDs, plus the monotonic UUID allocator. It is the
// only mechanism by which in-memory identity is reconciled with persistent
// identity. A TLB is an injected capability of the store, not a process
// global; the owning AtomSpace controls the resolver lifetime.
type TLB struct {
	mu       sync.Mutex
	next     atom.UUID
	byUUID   map[atom.UUID]*atom.Atom
	byKey    map[string]atom.UUID
	resolver *atom.Table
}

// NewTLB returns an empty TLB whose allocator begins at 1.
func NewTLB() *TLB {
	return &TLB{
		next:   1,
		byUUID: make(map[atom.UUID]*atom.Atom),
		byKey:  make(map[string]atom.UUID),
	}
}

// SetResolver directs the TLB to canonicalize registered atoms through
// |table|, so that the TLB and the table agree on atom identity.
func (t *TLB) SetResolver(table *atom.Table) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolver = table
}

// ClearResolver detaches |table| if it is the current resolver.
func (t *TLB) ClearResolver(table *atom.Table) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resolver == table {
		t.resolver = nil
	}
}

// AddAtom registers |a|. If |hint| is InvalidUUID a fresh UUID is allocated;
// otherwise |hint| is recorded. AddAtom is idempotent: an already-registered
// atom keeps its UUID regardless of hint. The resolved UUID is returned.
func (t *TLB) AddAtom(a *atom.Atom, hint atom.UUID) atom.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var key = a.Canonical()
	if uuid, ok := t.byKey[key]; ok {
		return uuid
	}

	var uuid = hint
	if uuid == atom.InvalidUUID {
		uuid = t.next
		t.next++
	} else if uuid >= t.next {
		t.next = uuid + 1
	}

	if t.resolver != nil {
		if h := t.resolver.GetHandle(a); h != nil {
			a = h
		}
	}
	t.byKey[key] = uuid
	t.byUUID[uuid] = a
	return uuid
}

// GetAtom returns the atom registered under |uuid|, or nil.
func (t *TLB) GetAtom(uuid atom.UUID) *atom.Atom {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byUUID[uuid]
}

// GetUUID returns the UUID of |a|, or InvalidUUID if unregistered.
func (t *TLB) GetUUID(a *atom.Atom) atom.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byKey[a.Canonical()]
}

// RemoveAtom unlinks |a| in both directions.
func (t *TLB) RemoveAtom(a *atom.Atom) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var key = a.Canonical()
	if uuid, ok := t.byKey[key]; ok {
		delete(t.byKey, key)
		delete(t.byUUID, uuid)
	}
}

// ReserveUpto ensures the next allocated UUID is strictly greater than |n|.
// The allocator never re-issues a UUID already observed in the database.
func (t *TLB) ReserveUpto(n atom.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.next <= n {
		t.next = n + 1
	}
}

// MaxUUID returns the highest UUID at or below which all allocations have
// occurred.
func (t *TLB) MaxUUID() atom.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next - 1
}

// Size returns the number of registered atoms.
func (t *TLB) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byUUID)
}
