package sqlstore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/shadowridgedev/atomspace/atom"
)

func TestQueueProcessesAllItems(t *testing.T) {
	var count atomic.Int64
	var q = newWriteQueue(func(*atom.Atom) error {
		count.Add(1)
		return nil
	}, 4, 16)

	for i := 0; i != 100; i++ {
		q.enqueue(atom.NewNode(atom.TConceptNode, "x"))
	}
	q.barrier()
	require.Equal(t, int64(100), count.Load())

	var st = q.statsSnapshot()
	require.Equal(t, uint64(100), st.items)
	require.Equal(t, 0, st.depth)
	q.stop()
}

func TestQueueBarrierWaitsForPriorItems(t *testing.T) {
	var mu sync.Mutex
	var done []int
	var release = make(chan struct{})

	var q = newWriteQueue(func(a *atom.Atom) error {
		<-release
		mu.Lock()
		done = append(done, 1)
		mu.Unlock()
		return nil
	}, 2, 16)

	q.enqueue(atom.NewNode(atom.TConceptNode, "a"))
	q.enqueue(atom.NewNode(atom.TConceptNode, "b"))

	var barrierDone = make(chan struct{})
	go func() {
		q.barrier()
		close(barrierDone)
	}()

	select {
	case <-barrierDone:
		t.Fatal("barrier returned before items were processed")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-barrierDone:
	case <-time.After(time.Second):
		t.Fatal("barrier did not return after drain")
	}

	mu.Lock()
	require.Len(t, done, 2)
	mu.Unlock()

	require.Equal(t, uint64(1), q.statsSnapshot().drains)
	q.stop()
}

func TestQueueBarrierOnIdleQueueReturnsImmediately(t *testing.T) {
	var q = newWriteQueue(func(*atom.Atom) error { return nil }, 2, 16)

	q.barrier()
	var st = q.statsSnapshot()
	require.Equal(t, uint64(1), st.flushes)
	require.Equal(t, uint64(0), st.drains) // Nothing to wait for.
	q.stop()
}

func TestQueueDropsFailedItems(t *testing.T) {
	var q = newWriteQueue(func(*atom.Atom) error {
		return errors.New("backend down")
	}, 2, 16)

	// Errors are logged and dropped; the barrier still drains.
	for i := 0; i != 10; i++ {
		q.enqueue(atom.NewNode(atom.TConceptNode, "x"))
	}
	q.barrier()
	require.Equal(t, 0, q.statsSnapshot().depth)
	q.stop()
}

func TestQueueStopDrainsRemainingWork(t *testing.T) {
	var count atomic.Int64
	var q = newWriteQueue(func(*atom.Atom) error {
		time.Sleep(time.Millisecond)
		count.Add(1)
		return nil
	}, 2, 64)

	for i := 0; i != 50; i++ {
		q.enqueue(atom.NewNode(atom.TConceptNode, "x"))
	}
	q.stop()
	require.Equal(t, int64(50), count.Load())
}
