package sqlstore

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/shadowridgedev/atomspace/atom"
	"github.com/shadowridgedev/atomspace/metrics"
)

// Size limits imposed by the UNIQUE indexes on Atoms: index rows cap at
// 2712 bytes, bounding the node name and the link arity. Oversized input is
// a distinct error, never a silent truncation.
const (
	maxNodeName  = 2700
	maxLinkArity = 330
)

// pseudoAtom is a not-yet-materialized atom row: everything known about it,
// with the outgoing set still in UUID form.
type pseudoAtom struct {
	uuid   atom.UUID
	typ    atom.Type
	name   string
	oset   []atom.UUID
	tv     atom.TruthValue
	height int
}

// vdoStoreAtom is the write-queue entry point.
func (s *Store) vdoStoreAtom(a *atom.Atom) error {
	var _, err = s.doStoreAtom(a)
	return err
}

// doStoreAtom recursively stores |a| and everything it points to, values
// included, and returns the height of |a|. Atoms of the outgoing set are
// stored strictly before any link that references them.
func (s *Store) doStoreAtom(a *atom.Atom) (int, error) {
	if a.IsNode() {
		if err := s.doStoreSingleAtom(a, 0); err != nil {
			return 0, err
		}
		return 0, s.storeAtomValues(a)
	}

	var height = 0
	for _, o := range a.Outgoing() {
		var h, err = s.doStoreAtom(o)
		if err != nil {
			return 0, err
		}
		if h > height {
			height = h
		}
	}
	height++

	if err := s.doStoreSingleAtom(a, height); err != nil {
		return 0, err
	}
	return height, s.storeAtomValues(a)
}

// doStoreSingleAtom stores just |a| at the given height, synchronously.
// Atoms of the outgoing set are NOT stored. The first store of a UUID is an
// INSERT of all immutable columns; later stores are UPDATEs touching only
// the truth value.
func (s *Store) doStoreSingleAtom(a *atom.Atom, height int) error {
	if err := s.setupTypemap(); err != nil {
		return err
	}

	if a.IsNode() && len(a.Name()) > maxNodeName {
		return errors.Wrapf(ErrNameTooLong, "%d bytes", len(a.Name()))
	}
	if a.Arity() > maxLinkArity {
		return errors.Wrapf(ErrArityTooLarge, "arity %d", a.Arity())
	}

	var uuid = s.tlb.AddAtom(a, atom.InvalidUUID)

	var release, err = s.maybeCreateID(uuid)
	if err != nil {
		return err
	}
	var insert = release != nil
	if insert {
		defer release()
	}

	var cols, vals []string
	var add = func(col, val string) {
		cols = append(cols, col)
		vals = append(vals, val)
	}

	if insert {
		add("uuid", fmt.Sprintf("%d", uuid))
		add("space", fmt.Sprintf("%d", s.spaceID()))

		var dbType, ok = s.tmap.storingCode(a.Type())
		if !ok {
			return errors.Errorf("type %d has no storing map entry", a.Type())
		}
		add("type", fmt.Sprintf("%d", dbType))

		if a.IsNode() {
			add("name", s.dialect.quoteName(a.Name()))
			add("height", "0")
		} else {
			add("height", fmt.Sprintf("%d", height))
			var oset, err = s.osetToString(a.Outgoing())
			if err != nil {
				return err
			}
			add("outgoing", oset)
		}
		if int32(height) > s.maxHeight.Load() {
			s.maxHeight.Store(int32(height))
		}
	}

	if err = addTruthValue(add, a.TruthValue()); err != nil {
		return err
	}

	var query string
	if insert {
		query = fmt.Sprintf("INSERT INTO Atoms (%s) VALUES (%s);",
			strings.Join(cols, ", "), strings.Join(vals, ", "))
	} else {
		var sets = make([]string, len(cols))
		for i := range cols {
			sets[i] = cols[i] + " = " + vals[i]
		}
		query = fmt.Sprintf("UPDATE Atoms SET %s WHERE uuid = %d;",
			strings.Join(sets, ", "), uuid)
	}

	{
		var rp = response{store: s}
		err = rp.exec(query)
		rp.release()
	}
	if err != nil && insert {
		// The INSERT may have tripped over an unknown space id. Persist
		// the (space, parent) chain and try once more.
		if s.table() != nil {
			if serr := s.storeSpaceID(s.table()); serr != nil {
				s.abandonID(uuid)
				return serr
			}
		}
		var rp = response{store: s}
		err = rp.exec(query)
		rp.release()
	}
	if err != nil {
		if insert {
			s.abandonID(uuid)
		}
		return err
	}

	if insert {
		// The row now exists; note it. This also releases any waiter of
		// the creation protocol.
		s.addIDToCache(uuid)
		if a.IsNode() {
			s.numNodeInserts.Add(1)
			metrics.NodeInsertsTotal.Inc()
		} else {
			s.numLinkInserts.Add(1)
			metrics.LinkInsertsTotal.Inc()
		}
	} else if a.IsNode() {
		s.numNodeUpdates.Add(1)
		metrics.NodeUpdatesTotal.Inc()
	} else {
		s.numLinkUpdates.Add(1)
		metrics.LinkUpdatesTotal.Inc()
	}

	// Maintain the Edges projection on backends without array containment.
	if insert && a.IsLink() && !s.dialect.hasArrayContainment() {
		if err = s.storeEdges(uuid, a.Outgoing()); err != nil {
			return err
		}
	}

	var n = s.storeCount.Add(1)
	metrics.AtomStoresTotal.Inc()
	if n%1000 == 0 {
		log.WithField("stored", n).Info("atom store progress")
	}
	return nil
}

// addTruthValue appends the tv_type and stv_* columns of |tv|.
func addTruthValue(add func(col, val string), tv atom.TruthValue) error {
	switch tv.Kind {
	case atom.SimpleTruth, atom.CountTruth, atom.ProbabilisticTruth, atom.IndefiniteTruth:
		// Indefinite truth values ride the same three floats: L in
		// stv_mean, U in stv_count, confidence level in stv_confidence.
	default:
		return errors.Wrapf(ErrUnknownTruthType, "tv_type %d", tv.Kind)
	}
	add("tv_type", fmt.Sprintf("%d", tv.Kind))
	add("stv_mean", formatFloat(tv.Mean))
	add("stv_confidence", formatFloat(tv.Confidence))
	add("stv_count", formatFloat(tv.Count))
	return nil
}

func formatFloat(v float64) string { return fmt.Sprintf("%.17g", v) }

// spaceID is the space column of newly-inserted atoms. Multiple-atomspace
// support is incomplete; absent a registered table, atoms land in the
// default space 1.
func (s *Store) spaceID() atom.UUID {
	if t := s.table(); t != nil {
		return t.UUID()
	}
	return 1
}

func (s *Store) table() *atom.Table {
	s.tlb.mu.Lock()
	defer s.tlb.mu.Unlock()
	return s.tlb.resolver
}

// storeEdges writes the Edges projection of a link's outgoing set.
func (s *Store) storeEdges(link atom.UUID, out []*atom.Atom) error {
	var rp = response{store: s}
	defer rp.release()

	for pos, o := range out {
		var target, err = s.getUUID(o)
		if err != nil {
			return err
		}
		if err = rp.exec(fmt.Sprintf(
			"INSERT INTO Edges (link, pos, target) VALUES (%d, %d, %d);",
			link, pos, target)); err != nil {
			return err
		}
	}
	return nil
}

// getUUID resolves the UUID of |a|: from the TLB, else from the database,
// else by allocating a brand new one.
func (s *Store) getUUID(a *atom.Atom) (atom.UUID, error) {
	if u := s.tlb.GetUUID(a); u != atom.InvalidUUID {
		return u, nil
	}

	var dbh *atom.Atom
	var err error
	if a.IsNode() {
		dbh, err = s.doGetNode(a.Type(), a.Name())
	} else {
		dbh, err = s.doGetLink(a.Type(), a.Outgoing())
	}
	if err != nil {
		return atom.InvalidUUID, err
	}
	if dbh != nil {
		// The lookup registered it in the TLB.
		return s.tlb.GetUUID(a), nil
	}
	return s.tlb.AddAtom(a, atom.InvalidUUID), nil
}

// osetToString renders an outgoing set as a quoted SQL array literal.
func (s *Store) osetToString(out []*atom.Atom) (string, error) {
	var uuids = make([]atom.UUID, len(out))
	for i, o := range out {
		var u, err = s.getUUID(o)
		if err != nil {
			return "", err
		}
		uuids[i] = u
	}
	return "'" + formatUUIDArray(uuids) + "'", nil
}

// makeAtom assembles a pseudoAtom from the parsed row scratch.
func (s *Store) makeAtom(rp *response) (*pseudoAtom, error) {
	var realType = s.tmap.loadingType(rp.itype)
	if realType == atom.NoType {
		return nil, errors.Wrapf(ErrUnknownDBType, "db type %d (%s)",
			rp.itype, s.tmap.dbName(rp.itype))
	}

	var p = &pseudoAtom{uuid: rp.uuid, typ: realType, height: rp.height}

	if s.registry.IsNode(realType) {
		p.name = rp.name
	} else {
		var oset, err = parseUUIDArray(rp.outlist)
		if err != nil {
			return nil, err
		}
		p.oset = oset
	}

	switch atom.TVKind(rp.tvType) {
	case atom.SimpleTruth:
		p.tv = atom.SimpleTV(rp.mean, rp.conf)
	case atom.CountTruth:
		p.tv = atom.CountTV(rp.mean, rp.conf, rp.count)
	case atom.IndefiniteTruth:
		p.tv = atom.IndefiniteTV(rp.mean, rp.count, rp.conf)
	case atom.ProbabilisticTruth:
		p.tv = atom.ProbabilisticTV(rp.mean, rp.conf, rp.count)
	default:
		return nil, errors.Wrapf(ErrUnknownTruthType, "tv_type %d of uuid %d", rp.tvType, rp.uuid)
	}

	var n = s.loadCount.Add(1)
	metrics.AtomLoadsTotal.Inc()
	if s.bulkLoad.Load() && n%10000 == 0 {
		log.WithField("loaded", n).Info("bulk load progress")
	}

	s.addIDToCache(p.uuid)
	return p, nil
}

// getRecursiveIfNotExists materializes a pseudoAtom into a real atom,
// recursively fetching any outgoing UUIDs not yet resolved in the TLB. This
// is how links arrive before their children.
func (s *Store) getRecursiveIfNotExists(p *pseudoAtom) (*atom.Atom, error) {
	if s.registry.IsNode(p.typ) {
		var node = atom.NewNode(p.typ, p.name)
		node.SetTruthValue(p.tv)
		s.tlb.AddAtom(node, p.uuid)
		return node, nil
	}

	var out = make([]*atom.Atom, len(p.oset))
	for i, u := range p.oset {
		if h := s.tlb.GetAtom(u); h != nil {
			out[i] = h
			continue
		}
		var po, err = s.petAtom(u)
		if err != nil {
			return nil, err
		}
		if out[i], err = s.getRecursiveIfNotExists(po); err != nil {
			return nil, err
		}
	}

	var link = atom.NewLink(p.typ, out...)
	link.SetTruthValue(p.tv)
	s.tlb.AddAtom(link, p.uuid)
	return link, nil
}

// fetchOneAtom runs |query| and assembles the single resulting pseudoAtom,
// or nil when no row matched.
func (s *Store) fetchOneAtom(query string) (*pseudoAtom, error) {
	var rp = response{store: s}
	defer rp.release()

	rp.uuid = atom.InvalidUUID
	if err := rp.exec(query); err != nil {
		return nil, err
	}
	if err := rp.rs.ForEachRow(rp.rowAtom); err != nil {
		return nil, err
	}
	if rp.uuid == atom.InvalidUUID {
		return nil, nil
	}
	return s.makeAtom(&rp)
}

// petAtom fetches an atom row by primary key.
func (s *Store) petAtom(uuid atom.UUID) (*pseudoAtom, error) {
	if err := s.setupTypemap(); err != nil {
		return nil, err
	}
	var p, err = s.fetchOneAtom(fmt.Sprintf("SELECT * FROM Atoms WHERE uuid = %d;", uuid))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.Wrapf(ErrNoSuchAtom, "uuid %d", uuid)
	}
	return p, nil
}

// doGetNode fetches the (type, name) node row, registering a hit in the
// TLB. A miss returns (nil, nil).
func (s *Store) doGetNode(t atom.Type, name string) (*atom.Atom, error) {
	if err := s.setupTypemap(); err != nil {
		return nil, err
	}
	var dbType, ok = s.tmap.storingCode(t)
	if !ok {
		return nil, errors.Errorf("type %d has no storing map entry", t)
	}

	s.numGetNodes.Add(1)
	metrics.NodeQueriesTotal.Inc()

	var p, err = s.fetchOneAtom(fmt.Sprintf(
		"SELECT * FROM Atoms WHERE type = %d AND name = %s;",
		dbType, s.dialect.quoteName(name)))
	if err != nil || p == nil {
		return nil, err
	}

	s.numGotNodes.Add(1)
	metrics.NodeQueryHitsTotal.Inc()

	var node = atom.NewNode(t, name)
	s.tlb.AddAtom(node, p.uuid)
	if h := s.tlb.GetAtom(p.uuid); h != nil {
		node = h
	}
	node.SetTruthValue(p.tv)
	return node, nil
}

// GetNode fetches the node of the given type and name, with its truth value
// and attached values. A miss returns (nil, nil).
func (s *Store) GetNode(t atom.Type, name string) (*atom.Atom, error) {
	var h, err = s.doGetNode(t, name)
	if err != nil || h == nil {
		return nil, err
	}
	return h, s.getAtomValues(h)
}

// doGetLink fetches the (type, outgoing) link row. A miss returns (nil, nil).
func (s *Store) doGetLink(t atom.Type, out []*atom.Atom) (*atom.Atom, error) {
	if err := s.setupTypemap(); err != nil {
		return nil, err
	}
	var dbType, ok = s.tmap.storingCode(t)
	if !ok {
		return nil, errors.Errorf("type %d has no storing map entry", t)
	}

	s.numGetLinks.Add(1)
	metrics.LinkQueriesTotal.Inc()

	var oset, err = s.osetToString(out)
	if err != nil {
		return nil, err
	}
	p, err := s.fetchOneAtom(fmt.Sprintf(
		"SELECT * FROM Atoms WHERE type = %d AND outgoing = %s;", dbType, oset))
	if err != nil || p == nil {
		return nil, err
	}

	s.numGotLinks.Add(1)
	metrics.LinkQueryHitsTotal.Inc()

	var link = atom.NewLink(t, out...)
	s.tlb.AddAtom(link, p.uuid)
	if h := s.tlb.GetAtom(p.uuid); h != nil {
		link = h
	}
	link.SetTruthValue(p.tv)
	return link, nil
}

// GetLink fetches the link of the given type and outgoing set, with its
// truth value and attached values. A miss returns (nil, nil).
func (s *Store) GetLink(t atom.Type, out ...*atom.Atom) (*atom.Atom, error) {
	var h, err = s.doGetLink(t, out)
	if err != nil || h == nil {
		return nil, err
	}
	return h, s.getAtomValues(h)
}

// GetAtom fetches an atom by UUID, recursively materializing its outgoing
// set, and attaches its values.
func (s *Store) GetAtom(uuid atom.UUID) (*atom.Atom, error) {
	var p, err = s.petAtom(uuid)
	if err != nil {
		return nil, err
	}
	a, err := s.getRecursiveIfNotExists(p)
	if err != nil {
		return nil, err
	}
	return a, s.getAtomValues(a)
}

// GetIncomingSet fetches every link which references |a| in its outgoing
// set. The returned atoms are materialized but not loaded into any table;
// that is the caller's business.
func (s *Store) GetIncomingSet(a *atom.Atom) ([]*atom.Atom, error) {
	if err := s.setupTypemap(); err != nil {
		return nil, err
	}
	var uuid = s.tlb.AddAtom(a, atom.InvalidUUID)

	var query string
	if s.dialect.hasArrayContainment() {
		query = fmt.Sprintf(
			"SELECT * FROM Atoms WHERE outgoing @> ARRAY[CAST(%d AS BIGINT)];", uuid)
	} else {
		query = fmt.Sprintf(
			"SELECT * FROM Atoms WHERE uuid IN (SELECT link FROM Edges WHERE target = %d);", uuid)
	}

	s.numGetInsets.Add(1)
	metrics.IncomingSetQueriesTotal.Inc()

	var iset []*atom.Atom
	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec(query); err != nil {
		return nil, err
	}
	var err = rp.rs.ForEachRow(func() error {
		if err := rp.rowAtom(); err != nil {
			return err
		}
		var p, err = s.makeAtom(&rp)
		if err != nil {
			return err
		}
		link, err := s.getRecursiveIfNotExists(p)
		if err != nil {
			return err
		}
		iset = append(iset, link)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.numGetInatoms.Add(uint64(len(iset)))
	metrics.IncomingSetAtomsTotal.Add(float64(len(iset)))
	return iset, nil
}

// Load bulk-loads the entire database into |table|, iterating heights
// ascending so that every outgoing atom is present before any link that
// references it. Within a height, UUID ranges are scanned concurrently.
func (s *Store) Load(table *atom.Table) error {
	return s.bulkLoadWhere(table, "", true)
}

// LoadType bulk-loads all atoms of the given type into |table|. Atoms
// already present keep their truth values.
func (s *Store) LoadType(table *atom.Table, t atom.Type) error {
	if err := s.setupTypemap(); err != nil {
		return err
	}
	var dbType, ok = s.tmap.storingCode(t)
	if !ok {
		return errors.Errorf("type %d has no storing map entry", t)
	}
	return s.bulkLoadWhere(table, fmt.Sprintf("type = %d AND ", dbType), !s.registry.IsNode(t))
}

func (s *Store) bulkLoadWhere(table *atom.Table, where string, scanHeights bool) error {
	var maxUUID, err = s.GetMaxObservedUUID()
	if err != nil {
		return err
	}
	s.tlb.ReserveUpto(maxUUID)

	var maxHeight = 0
	if scanHeights {
		if maxHeight, err = s.getMaxObservedHeight(); err != nil {
			return err
		}
	}
	if err = s.setupTypemap(); err != nil {
		return err
	}

	s.loadCount.Store(0)
	s.bulkLoad.Store(true)
	defer s.bulkLoad.Store(false)

	// The unconditional callback is for whole-database loads; the filtered
	// variant skips atoms already present, so their truth values are not
	// clobbered by a merge.
	var unconditional = where == ""

	for height := 0; height <= maxHeight; height++ {
		var before = s.loadCount.Load()

		// Each range scan holds one connection, and may briefly take a
		// second to resolve an out-of-range outgoing atom. Cap
		// concurrency at half the pool so the recursion cannot starve.
		var eg errgroup.Group
		eg.SetLimit(max(1, s.poolSize/2))
		for rec := atom.UUID(0); rec <= maxUUID; rec += ustep {
			var lo, hi = rec, rec + ustep
			eg.Go(func() error {
				return s.loadRange(table, fmt.Sprintf(
					"SELECT * FROM Atoms WHERE %sheight = %d AND uuid > %d AND uuid <= %d;",
					where, height, lo, hi), unconditional)
			})
		}
		if err = eg.Wait(); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"height": height,
			"atoms":  s.loadCount.Load() - before,
		}).Info("bulk load height complete")
	}

	log.WithField("atoms", s.loadCount.Load()).Info("bulk load finished")
	table.Barrier()
	return nil
}

func (s *Store) loadRange(table *atom.Table, query string, unconditional bool) error {
	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec(query); err != nil {
		return err
	}
	return rp.rs.ForEachRow(func() error {
		if err := rp.rowAtom(); err != nil {
			return err
		}
		if !unconditional && s.tlb.GetAtom(rp.uuid) != nil {
			return nil
		}
		var p, err = s.makeAtom(&rp)
		if err != nil {
			return err
		}
		a, err := s.getRecursiveIfNotExists(p)
		if err != nil {
			return err
		}
		if !unconditional && table.GetHandle(a) != nil {
			return nil
		}
		var h = table.Add(a, false)
		s.tlb.AddAtom(h, p.uuid)
		return nil
	})
}

// StoreTable walks |table| and stores every atom, then, on the Postgres
// dialect, asks the backend to refresh its planner statistics.
func (s *Store) StoreTable(table *atom.Table) error {
	s.storeCount.Store(0)

	if err := s.getIDs(); err != nil {
		return err
	}
	if err := s.setupTypemap(); err != nil {
		return err
	}
	if err := s.storeSpaceID(table); err != nil {
		return err
	}

	var firstErr error
	table.ForEachByType(func(a *atom.Atom) {
		if firstErr != nil {
			return
		}
		if err := s.doStoreSingleAtom(a, a.Height()); err != nil {
			firstErr = err
			return
		}
		if err := s.storeAtomValues(a); err != nil {
			firstErr = err
		}
	}, atom.TAtom, true)
	if firstErr != nil {
		return firstErr
	}

	if s.dialect == dialectPostgres {
		var rp = response{store: s}
		defer rp.release()
		if err := rp.exec("VACUUM ANALYZE Atoms;"); err != nil {
			return err
		}
	}

	log.WithField("stored", s.storeCount.Load()).Info("table store finished")
	return nil
}
