package sqlstore

import (
	"database/sql"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/shadowridgedev/atomspace/atom"
)

// fakeConn is a scripted Connection for unit tests: queries are matched by
// prefix against canned results, and every executed statement is recorded.
type fakeConn struct {
	mu      sync.Mutex
	execd   []string
	results map[string]*memoryRecordSet
	fail    map[string]error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		results: make(map[string]*memoryRecordSet),
		fail:    make(map[string]error),
	}
}

// stub arranges for queries beginning with |prefix| to return rows of
// |cols|.
func (c *fakeConn) stub(prefix string, cols []string, rows ...[]string) {
	var rs = &memoryRecordSet{cols: cols}
	for _, r := range rows {
		var vals = make([]sql.NullString, len(r))
		for i, v := range r {
			vals[i] = sql.NullString{String: v, Valid: v != "<null>"}
		}
		rs.rows = append(rs.rows, vals)
	}
	c.mu.Lock()
	c.results[prefix] = rs
	c.mu.Unlock()
}

func (c *fakeConn) failOn(prefix string, err error) {
	c.mu.Lock()
	c.fail[prefix] = err
	c.mu.Unlock()
}

func (c *fakeConn) executed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.execd...)
}

func (c *fakeConn) countExecuted(substr string) int {
	var n int
	for _, q := range c.executed() {
		if strings.Contains(q, substr) {
			n++
		}
	}
	return n
}

func (c *fakeConn) Exec(query string) (RecordSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.execd = append(c.execd, query)
	for prefix, err := range c.fail {
		if strings.HasPrefix(query, prefix) {
			return nil, err
		}
	}
	for prefix, rs := range c.results {
		if strings.HasPrefix(query, prefix) {
			return &memoryRecordSet{cols: rs.cols, rows: rs.rows}, nil
		}
	}
	return new(memoryRecordSet), nil
}

func (c *fakeConn) Connected() bool { return true }
func (c *fakeConn) Release() error  { return nil }

var errFakeFailure = errors.New("scripted failure")

// newTestStore wires a Store around |conns| without dialing anything.
func newTestStore(d dialect, conns ...Connection) *Store {
	var s = &Store{
		registry:      atom.DefaultRegistry(),
		tlb:           NewTLB(),
		dialect:       d,
		pool:          newConnStack(),
		poolSize:      len(conns),
		localIDCache:  make(map[atom.UUID]struct{}),
		idCreateCache: make(map[atom.UUID]struct{}),
		spaceIDCache:  make(map[atom.UUID]struct{}),
	}
	for _, c := range conns {
		s.pool.push(c)
	}
	s.queue = newWriteQueue(s.vdoStoreAtom, 2, 64)
	s.idCacheInited = true
	s.nextVUID.Store(1)
	return s
}
