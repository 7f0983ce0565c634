package sqlstore

import (
	"sync"

	"github.com/shadowridgedev/atomspace/metrics"
)

// connStack is a bounded, blocking stack of live Connections. Its size is
// the admission-control knob of the store: it caps the number of SQL
// requests outstanding at any moment.
type connStack struct {
	mu    sync.Mutex
	avail *sync.Cond
	conns []Connection
}

func newConnStack() *connStack {
	var s = new(connStack)
	s.avail = sync.NewCond(&s.mu)
	return s
}

// pop removes and returns the top Connection, blocking while the stack is
// empty.
func (s *connStack) pop() Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.conns) == 0 {
		s.avail.Wait()
	}
	var c = s.conns[len(s.conns)-1]
	s.conns = s.conns[:len(s.conns)-1]
	metrics.PoolFreeConnections.Set(float64(len(s.conns)))
	return c
}

// push returns a Connection to the stack.
func (s *connStack) push(c Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conns = append(s.conns, c)
	metrics.PoolFreeConnections.Set(float64(len(s.conns)))
	s.avail.Signal()
}

// size returns the number of idle Connections.
func (s *connStack) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// drain removes and returns all idle Connections without blocking.
func (s *connStack) drain() []Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out = s.conns
	s.conns = nil
	return out
}
