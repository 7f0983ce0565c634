package sqlstore

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/shadowridgedev/atomspace/atom"
)

// typemapSz caps the number of distinct persisted type codes.
const typemapSz = 1 << 16

// typeMap reconciles runtime type codes with persisted type codes by name.
// Runtime codes are assigned in registration order and differ from process
// to process; the database stores its own codes, bound to names in the
// TypeCodes table. The storing direction is total over all registered
// runtime types; the loading direction has NoType holes for database types
// this process has never registered.
type typeMap struct {
	mu      sync.Mutex
	storing map[atom.Type]int
	loading map[int]atom.Type
	dbNames map[int]string
}

func (m *typeMap) init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storing = make(map[atom.Type]int)
	m.loading = make(map[int]atom.Type)
	m.dbNames = make(map[int]string)
}

// set binds the database code |db| to the type named |name|.
func (m *typeMap) set(db int, name string, reg *atom.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var t = reg.GetType(name)
	m.loading[db] = t
	if t != atom.NoType {
		m.storing[t] = db
	}
	m.dbNames[db] = name
}

func (m *typeMap) storingCode(t atom.Type) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.storing[t]
	return db, ok
}

func (m *typeMap) loadingType(db int) atom.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.loading[db]; ok {
		return t
	}
	return atom.NoType
}

func (m *typeMap) dbName(db int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dbNames[db]
}

// setupTypemap bootstraps the type map: load the persisted TypeCodes rows,
// then claim and persist codes for any runtime types the database has not
// seen. Idempotent, and guarded so concurrent initialization is safe.
func (s *Store) setupTypemap() error {
	if s.typemapLoaded.Load() {
		return nil
	}
	s.typemapMu.Lock()
	defer s.typemapMu.Unlock()
	if s.typemapLoaded.Load() {
		return nil
	}

	s.tmap.init()

	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec("SELECT * FROM TypeCodes;"); err != nil {
		return err
	}
	if err := rp.rs.ForEachRow(rp.rowType); err != nil {
		return err
	}

	var n = s.registry.NumberOfClasses()
	for i := 0; i != n; i++ {
		var t = atom.Type(i)
		if _, ok := s.tmap.storingCode(t); ok {
			continue
		}
		var name = s.registry.TypeName(t)

		// Prefer the runtime code as the database code, unless taken; then
		// claim the smallest unused code.
		var db = i
		if s.tmap.dbName(db) != "" {
			db = -1
			for cand := 0; cand != typemapSz; cand++ {
				if s.tmap.dbName(cand) == "" {
					db = cand
					break
				}
			}
			if db < 0 {
				return errors.Wrapf(ErrTypemapOverflow, "registering %q", name)
			}
		}
		s.tmap.set(db, name, s.registry)

		if err := rp.exec(fmt.Sprintf(
			"INSERT INTO TypeCodes (type, typename) VALUES (%d, '%s');", db, name)); err != nil {
			return err
		}
	}

	s.typemapLoaded.Store(true)
	return nil
}
