// Package sqlstore persists a typed hypergraph into a relational database
// and reconstitutes it on demand. Atoms and their attached values are
// written through a pooled, multi-driver connection layer and an
// asynchronous write-back queue; in-memory identity is reconciled with
// persistent identity through the TLB.
package sqlstore

import (
	"database/sql"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/shadowridgedev/atomspace/atom"
)

// DefaultWriteConcurrency is the number of asynchronous writer goroutines.
const DefaultWriteConcurrency = 8

// Options tune a Store. The zero value selects defaults.
type Options struct {
	// Registry of atom types. Defaults to atom.DefaultRegistry().
	Registry *atom.Registry
	// TLB to translate through. Defaults to a fresh TLB; supply one to
	// share identity across stores.
	TLB *TLB
	// WriteConcurrency is the writer goroutine count. Default 8.
	WriteConcurrency int
	// PoolSize is the connection pool size. Default is
	// runtime.NumCPU() + WriteConcurrency, so that readers and writers
	// do not starve each other.
	PoolSize int
	// QueueDepth bounds the asynchronous write buffer. Default 1024.
	QueueDepth int
}

// Store is the SQL-backed persistence engine for a typed hypergraph.
type Store struct {
	registry *atom.Registry
	tlb      *TLB
	dialect  dialect
	db       *sql.DB
	pool     *connStack
	poolSize int
	queue    *writeQueue

	tmap          typeMap
	typemapMu     sync.Mutex
	typemapLoaded atomic.Bool

	nextVUID atomic.Uint64

	// idCreateMu is held during the first INSERT of a given UUID, so one
	// and only one INSERT is ever issued for it. idCacheMu guards the
	// cache sets and the inited flag below.
	idCreateMu    sync.Mutex
	idCacheMu     sync.Mutex
	localIDCache  map[atom.UUID]struct{}
	idCreateCache map[atom.UUID]struct{}
	idCacheInited bool
	spaceIDCache  map[atom.UUID]struct{}

	maxHeight  atomic.Int32
	bulkLoad   atomic.Bool
	loadCount  atomic.Uint64
	storeCount atomic.Uint64

	// Per-kind operation counters, reported by PrintStats.
	numGetNodes    atomic.Uint64
	numGotNodes    atomic.Uint64
	numGetLinks    atomic.Uint64
	numGotLinks    atomic.Uint64
	numGetInsets   atomic.Uint64
	numGetInatoms  atomic.Uint64
	numNodeInserts atomic.Uint64
	numNodeUpdates atomic.Uint64
	numLinkInserts atomic.Uint64
	numLinkUpdates atomic.Uint64
}

// Open connects to the database named by |uri| and returns a ready Store.
// The scheme prefix selects the driver: "postgres" (or a leading "/") for
// the native driver, "odbc" for ODBC, "sqlite" for the file-local dialect.
// Any other prefix fails with ErrUnknownScheme.
func Open(uri string, opts Options) (*Store, error) {
	var d, dsn, err = parseURI(uri)
	if err != nil {
		return nil, err
	}

	if opts.Registry == nil {
		opts.Registry = atom.DefaultRegistry()
	}
	if opts.TLB == nil {
		opts.TLB = NewTLB()
	}
	if opts.WriteConcurrency == 0 {
		opts.WriteConcurrency = DefaultWriteConcurrency
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = runtime.NumCPU() + opts.WriteConcurrency
	}
	if opts.QueueDepth == 0 {
		opts.QueueDepth = 1024
	}

	var s = &Store{
		registry:      opts.Registry,
		tlb:           opts.TLB,
		dialect:       d,
		pool:          newConnStack(),
		poolSize:      opts.PoolSize,
		localIDCache:  make(map[atom.UUID]struct{}),
		idCreateCache: make(map[atom.UUID]struct{}),
		spaceIDCache:  make(map[atom.UUID]struct{}),
	}

	db, conns, err := openConnections(d, dsn, opts.PoolSize)
	if err != nil {
		return nil, err
	}
	s.db = db
	for _, c := range conns {
		s.pool.push(c)
	}

	s.queue = newWriteQueue(s.vdoStoreAtom, opts.WriteConcurrency, opts.QueueDepth)

	if !s.Connected() {
		return nil, errors.Errorf("database %q is not answering", uri)
	}

	// Align the allocators with what the database has already issued. The
	// schema may not exist yet (a fresh database awaiting CreateTables);
	// that is not an error here.
	if err = s.Reserve(); err != nil {
		log.WithField("err", err).Info("uuid watermark unavailable; schema not initialized?")
	} else {
		vuid, err := s.getMaxObservedVUID()
		if err != nil {
			return nil, err
		}
		s.nextVUID.Store(uint64(vuid) + 1)
	}

	return s, nil
}

// Connected is true if a pooled connection answers a ping. It may block
// while all connections are in use.
func (s *Store) Connected() bool {
	var c = s.pool.pop()
	var ok = c.Connected()
	s.pool.push(c)
	return ok
}

// Close drains the write queue, then releases all connections. The Store is
// unusable afterward.
func (s *Store) Close() error {
	s.queue.stop()

	for _, c := range s.pool.drain() {
		if err := c.Release(); err != nil {
			log.WithField("err", err).Warn("failed to release connection")
		}
	}
	return s.db.Close()
}

// RegisterWith directs the TLB to resolve atoms through |table|.
func (s *Store) RegisterWith(table *atom.Table) { s.tlb.SetResolver(table) }

// UnregisterWith detaches |table| from the TLB.
func (s *Store) UnregisterWith(table *atom.Table) { s.tlb.ClearResolver(table) }

// TLB returns the store's translation buffer.
func (s *Store) TLB() *TLB { return s.tlb }

// StoreAtom persists |a|, its outgoing set, and all attached values. When
// |synchronous| the store completes before return, or returns the error.
// Otherwise the atom is queued: the call returns promptly, and a failure is
// logged and the item dropped. Durability then requires FlushStoreQueue.
func (s *Store) StoreAtom(a *atom.Atom, synchronous bool) error {
	if err := s.getIDs(); err != nil {
		return err
	}
	if synchronous {
		_, err := s.doStoreAtom(a)
		return err
	}
	s.queue.enqueue(a)
	return nil
}

// FlushStoreQueue returns after every atom enqueued before the call has been
// popped and processed by a writer. This is a client-side drain only: the
// SQL server may not have committed the work yet. See Sync.
func (s *Store) FlushStoreQueue() { s.queue.barrier() }

// Sync drains the write queue and then runs a commit fence on every pooled
// connection, so that all previously-issued work is server-side committed
// when it returns.
func (s *Store) Sync() error {
	s.queue.barrier()

	// Cycle every connection through an empty transaction. A connection
	// can only run it after finishing whatever statement preceded it.
	var held = make([]Connection, 0, s.poolSize)
	var err error
	for i := 0; i != s.poolSize; i++ {
		var c = s.pool.pop()
		held = append(held, c)
		if _, e := c.Exec("BEGIN; COMMIT;"); e != nil && err == nil {
			err = e
		}
	}
	for _, c := range held {
		s.pool.push(c)
	}
	return errors.Wrap(err, "commit fence")
}

// Reserve queries the largest UUID observed in the database and reserves
// the allocator past it.
func (s *Store) Reserve() error {
	var max, err = s.GetMaxObservedUUID()
	if err != nil {
		return err
	}
	s.tlb.ReserveUpto(max)
	return nil
}

// GetMaxObservedUUID returns the largest atom UUID present in the database,
// or zero when the Atoms table is empty.
func (s *Store) GetMaxObservedUUID() (atom.UUID, error) {
	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec("SELECT uuid FROM Atoms ORDER BY uuid DESC LIMIT 1;"); err != nil {
		return 0, err
	}
	if err := rp.rs.ForEachRow(rp.rowIntval); err != nil {
		return 0, err
	}
	return atom.UUID(rp.intval), nil
}

func (s *Store) getMaxObservedVUID() (uint64, error) {
	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec("SELECT vuid FROM \"Values\" ORDER BY vuid DESC LIMIT 1;"); err != nil {
		return 0, err
	}
	if err := rp.rs.ForEachRow(rp.rowIntval); err != nil {
		return 0, err
	}
	return rp.intval, nil
}

func (s *Store) getMaxObservedHeight() (int, error) {
	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec("SELECT height FROM Atoms ORDER BY height DESC LIMIT 1;"); err != nil {
		return 0, err
	}
	if err := rp.rs.ForEachRow(rp.rowIntval); err != nil {
		return 0, err
	}
	return int(rp.intval), nil
}

// idExists runs |query| and reports whether it returned any row.
func (s *Store) idExists(query string) (bool, error) {
	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec(query); err != nil {
		return false, err
	}
	if err := rp.rs.ForEachRow(func() error { return rp.rowMarkExists() }); err != nil {
		return false, err
	}
	return rp.rowExists, nil
}

// PrintStats writes a human-readable statistics report to |w|.
func (s *Store) PrintStats(w io.Writer) {
	var loads = s.loadCount.Load()
	var stores = s.storeCount.Load()
	fmt.Fprintf(w, "sql-stats: total loads = %s, total stores = %s\n",
		humanize.Comma(int64(loads)), humanize.Comma(int64(stores)))

	fmt.Fprintf(w, "node lookups: %d issued, %d hit\n",
		s.numGetNodes.Load(), s.numGotNodes.Load())
	fmt.Fprintf(w, "link lookups: %d issued, %d hit\n",
		s.numGetLinks.Load(), s.numGotLinks.Load())
	fmt.Fprintf(w, "incoming sets: %d queries, %d atoms returned\n",
		s.numGetInsets.Load(), s.numGetInatoms.Load())
	fmt.Fprintf(w, "node stores: %d inserts, %d updates\n",
		s.numNodeInserts.Load(), s.numNodeUpdates.Load())
	fmt.Fprintf(w, "link stores: %d inserts, %d updates\n",
		s.numLinkInserts.Load(), s.numLinkUpdates.Load())

	var st = s.queue.statsSnapshot()
	fmt.Fprintf(w, "write queue: items=%d flushes=%d drains=%d\n",
		st.items, st.flushes, st.drains)
	fmt.Fprintf(w, "write queue: drain total=%v slowest=%v busy=%d depth=%d\n",
		st.drainTotal, st.drainSlowest, st.busyWriters, st.depth)

	fmt.Fprintf(w, "conn pool: %d free of %d\n", s.pool.size(), s.poolSize)
	fmt.Fprintf(w, "tlb: holds %s atoms, max uuid %d\n",
		humanize.Comma(int64(s.tlb.Size())), s.tlb.MaxUUID())
}
