package sqlstore

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/shadowridgedev/atomspace/atom"
)

// ustep bounds how many rows one bulk SELECT may return. Very large result
// sets fragment driver-side memory, so UUID ranges are walked in steps.
const ustep = 12003

// maybeCreateID decides whether this caller must perform the first INSERT
// for |uuid|. When it returns a non-nil release func, the caller owns the
// id-creation lock and must INSERT, then addIDToCache (on success) or
// abandonID (on failure), and finally invoke release. A nil release means
// the row already exists and an UPDATE is in order.
//
// An INSERT can be used once and only once per UUID, and two threads may
// race to store the same atom; holding idCreateMu across the INSERT means
// exactly one of them is ever told the id is new. An upsert would not do:
// the issue is two racing threads assigning two UUIDs to one atom, not the
// INSERT conflict itself.
func (s *Store) maybeCreateID(uuid atom.UUID) (func(), error) {
	s.idCreateMu.Lock()
	s.idCacheMu.Lock()

	if _, ok := s.localIDCache[uuid]; ok {
		s.idCacheMu.Unlock()
		s.idCreateMu.Unlock()
		return nil, nil
	}

	if _, making := s.idCreateCache[uuid]; making {
		// Another thread is creating this id. Stall on the creation lock
		// until it finishes, then re-check.
		s.idCacheMu.Unlock()
		s.idCreateMu.Unlock()
		for {
			s.idCreateMu.Lock()
			s.idCacheMu.Lock()
			if _, making = s.idCreateCache[uuid]; !making {
				var _, have = s.localIDCache[uuid]
				s.idCacheMu.Unlock()
				s.idCreateMu.Unlock()
				if !have {
					return nil, errors.Errorf(
						"uuid %d missing from cache after cooperative wait", uuid)
				}
				return nil, nil
			}
			s.idCacheMu.Unlock()
			s.idCreateMu.Unlock()
		}
	}

	// No one has attempted this id before. Keep the creation lock.
	s.idCreateCache[uuid] = struct{}{}
	s.idCacheMu.Unlock()
	return s.idCreateMu.Unlock, nil
}

// addIDToCache records that |uuid| now exists in storage.
func (s *Store) addIDToCache(uuid atom.UUID) {
	s.idCacheMu.Lock()
	defer s.idCacheMu.Unlock()

	s.localIDCache[uuid] = struct{}{}
	delete(s.idCreateCache, uuid)
}

// abandonID withdraws a failed creation attempt so that waiters do not
// stall on an id that will never appear.
func (s *Store) abandonID(uuid atom.UUID) {
	s.idCacheMu.Lock()
	defer s.idCacheMu.Unlock()
	delete(s.idCreateCache, uuid)
}

// getIDs lazily builds the client-side cache of every atom UUID in storage,
// and of the space ids in use.
func (s *Store) getIDs() error {
	s.idCacheMu.Lock()
	defer s.idCacheMu.Unlock()

	if s.idCacheInited {
		return nil
	}

	var rp = response{store: s, idSet: s.localIDCache}
	defer rp.release()

	var max, err = s.GetMaxObservedUUID()
	if err != nil {
		return err
	}
	for rec := atom.UUID(0); rec <= max; rec += ustep {
		if err = rp.exec(fmt.Sprintf(
			"SELECT uuid FROM Atoms WHERE uuid > %d AND uuid <= %d;", rec, rec+ustep)); err != nil {
			return err
		}
		if err = rp.rs.ForEachRow(rp.rowNoteID); err != nil {
			return err
		}
	}

	rp.idSet = s.spaceIDCache
	if err = rp.exec("SELECT space FROM Spaces;"); err != nil {
		return err
	}
	if err = rp.rs.ForEachRow(rp.rowNoteID); err != nil {
		return err
	}

	s.idCacheInited = true
	return nil
}

// storeSpaceID persists the (space, parent) chain of |t|, outermost first.
func (s *Store) storeSpaceID(t *atom.Table) error {
	var id = t.UUID()

	s.idCacheMu.Lock()
	var _, have = s.spaceIDCache[id]
	if !have {
		s.spaceIDCache[id] = struct{}{}
	}
	s.idCacheMu.Unlock()
	if have {
		return nil
	}

	var parent = atom.UUID(1)
	if env := t.Environ(); env != nil {
		parent = env.UUID()
		if err := s.storeSpaceID(env); err != nil {
			return err
		}
	}

	var rp = response{store: s}
	defer rp.release()

	exists, err := s.idExists(fmt.Sprintf("SELECT space FROM Spaces WHERE space = %d;", id))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return rp.exec(fmt.Sprintf(
		"INSERT INTO Spaces (space, parent) VALUES (%d, %d);", id, parent))
}
