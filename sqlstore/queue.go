package sqlstore

import (
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shadowridgedev/atomspace/atom"
	"github.com/shadowridgedev/atomspace/metrics"
)

// writeQueue is the asynchronous write-back path: a multi-producer bounded
// buffer drained by a fixed pool of writer goroutines, each invoking the
// synchronous store routine. Errors on this path are logged and the item is
// dropped; callers needing failure visibility use the synchronous store.
type writeQueue struct {
	fn      func(*atom.Atom) error
	ch      chan *atom.Atom
	stopped chan struct{}
	writers int

	mu      sync.Mutex
	drained *sync.Cond
	pending int // Enqueued and not yet fully processed.

	items        atomic.Uint64
	flushes      atomic.Uint64
	drains       atomic.Uint64
	drainNanos   atomic.Int64
	drainSlowest atomic.Int64
	busy         atomic.Int64
}

func newWriteQueue(fn func(*atom.Atom) error, writers, depth int) *writeQueue {
	var q = &writeQueue{
		fn:      fn,
		ch:      make(chan *atom.Atom, depth),
		stopped: make(chan struct{}),
		writers: writers,
	}
	q.drained = sync.NewCond(&q.mu)

	for i := 0; i != writers; i++ {
		go q.serveWrites()
	}
	return q
}

// enqueue submits |a| for asynchronous store. It blocks only while the
// internal buffer is full.
func (q *writeQueue) enqueue(a *atom.Atom) {
	q.items.Add(1)
	metrics.QueueItemsTotal.Inc()

	q.mu.Lock()
	q.pending++
	q.mu.Unlock()

	q.ch <- a
	metrics.QueueDepth.Set(float64(len(q.ch)))
}

func (q *writeQueue) serveWrites() {
	for a := range q.ch {
		q.busy.Add(1)
		metrics.BusyWriters.Set(float64(q.busy.Load()))

		if err := q.fn(a); err != nil {
			// Asynchronous failures are best-effort by design: log
			// and drop the item.
			log.WithField("err", err).Error("asynchronous atom store failed; dropped")
			metrics.QueueFailuresTotal.Inc()
		}

		q.busy.Add(-1)
		metrics.BusyWriters.Set(float64(q.busy.Load()))
		metrics.QueueDepth.Set(float64(len(q.ch)))

		q.mu.Lock()
		q.pending--
		if q.pending == 0 {
			q.drained.Broadcast()
		}
		q.mu.Unlock()
	}
	q.stopped <- struct{}{}
}

// barrier returns after every item enqueued before the call has been popped
// and processed by a writer. It does not wait for the SQL server to commit;
// it guarantees client-side drain only.
func (q *writeQueue) barrier() {
	q.flushes.Add(1)

	q.mu.Lock()
	if q.pending == 0 {
		q.mu.Unlock()
		return
	}
	q.drains.Add(1)
	metrics.QueueDrainsTotal.Inc()

	var start = time.Now()
	for q.pending != 0 {
		q.drained.Wait()
	}
	q.mu.Unlock()

	var d = time.Since(start)
	q.drainNanos.Add(int64(d))
	metrics.QueueDrainSecondsTotal.Add(d.Seconds())
	for {
		var prev = q.drainSlowest.Load()
		if int64(d) <= prev || q.drainSlowest.CompareAndSwap(prev, int64(d)) {
			break
		}
	}
}

// stop drains all queued work and terminates the writers.
func (q *writeQueue) stop() {
	close(q.ch)
	for i := 0; i != q.writers; i++ {
		<-q.stopped
	}
}

type queueStats struct {
	items, flushes, drains uint64
	drainTotal             time.Duration
	drainSlowest           time.Duration
	busyWriters            int64
	depth                  int
}

func (q *writeQueue) statsSnapshot() queueStats {
	return queueStats{
		items:        q.items.Load(),
		flushes:      q.flushes.Load(),
		drains:       q.drains.Load(),
		drainTotal:   time.Duration(q.drainNanos.Load()),
		drainSlowest: time.Duration(q.drainSlowest.Load()),
		busyWriters:  q.busy.Load(),
		depth:        len(q.ch),
	}
}
