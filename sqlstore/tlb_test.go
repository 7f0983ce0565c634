package sqlstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadowridgedev/atomspace/atom"
)

func TestTLBAllocatesMonotonically(t *testing.T) {
	var tlb = NewTLB()

	var a = atom.NewNode(atom.TConceptNode, "a")
	var b = atom.NewNode(atom.TConceptNode, "b")

	var ua = tlb.AddAtom(a, atom.InvalidUUID)
	var ub = tlb.AddAtom(b, atom.InvalidUUID)
	require.Equal(t, atom.UUID(1), ua)
	require.Equal(t, atom.UUID(2), ub)

	// Idempotent: re-adding (even with a hint) keeps the first UUID.
	require.Equal(t, ua, tlb.AddAtom(a, atom.InvalidUUID))
	require.Equal(t, ua, tlb.AddAtom(atom.NewNode(atom.TConceptNode, "a"), atom.UUID(99)))

	require.Equal(t, ua, tlb.GetUUID(a))
	require.True(t, tlb.GetAtom(ua) == a)
	require.Nil(t, tlb.GetAtom(77))
	require.Equal(t, atom.InvalidUUID, tlb.GetUUID(atom.NewNode(atom.TConceptNode, "zz")))
}

func TestTLBExplicitRegistrationAdvancesAllocator(t *testing.T) {
	var tlb = NewTLB()

	tlb.AddAtom(atom.NewNode(atom.TConceptNode, "x"), atom.UUID(50))
	var next = tlb.AddAtom(atom.NewNode(atom.TConceptNode, "y"), atom.InvalidUUID)
	require.Equal(t, atom.UUID(51), next)
}

func TestTLBReserveUpto(t *testing.T) {
	var tlb = NewTLB()

	tlb.ReserveUpto(1000)
	var u = tlb.AddAtom(atom.NewNode(atom.TConceptNode, "x"), atom.InvalidUUID)
	require.Equal(t, atom.UUID(1001), u)

	// Reserving below the watermark is a no-op.
	tlb.ReserveUpto(10)
	u = tlb.AddAtom(atom.NewNode(atom.TConceptNode, "y"), atom.InvalidUUID)
	require.Equal(t, atom.UUID(1002), u)
	require.Equal(t, atom.UUID(1002), tlb.MaxUUID())
}

func TestTLBRemoveAtom(t *testing.T) {
	var tlb = NewTLB()

	var a = atom.NewNode(atom.TConceptNode, "a")
	var u = tlb.AddAtom(a, atom.InvalidUUID)

	tlb.RemoveAtom(a)
	require.Nil(t, tlb.GetAtom(u))
	require.Equal(t, atom.InvalidUUID, tlb.GetUUID(a))
	require.Equal(t, 0, tlb.Size())

	// The UUID is never re-issued.
	var u2 = tlb.AddAtom(a, atom.InvalidUUID)
	require.Greater(t, u2, u)
}

func TestTLBResolverCanonicalizes(t *testing.T) {
	var tlb = NewTLB()
	var table = atom.NewTable(1, nil)

	var canon = table.Add(atom.NewNode(atom.TConceptNode, "a"), false)
	tlb.SetResolver(table)

	var u = tlb.AddAtom(atom.NewNode(atom.TConceptNode, "a"), atom.InvalidUUID)
	require.True(t, tlb.GetAtom(u) == canon)

	tlb.ClearResolver(table)
}

func TestTLBConcurrentAddsAreUnique(t *testing.T) {
	var tlb = NewTLB()
	var wg sync.WaitGroup

	var uuids = make([]atom.UUID, 64)
	for i := range uuids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uuids[i] = tlb.AddAtom(atom.NewNode(atom.TConceptNode, "same"), atom.InvalidUUID)
		}(i)
	}
	wg.Wait()

	for _, u := range uuids {
		require.Equal(t, uuids[0], u) // One atom, one UUID.
	}
	require.Equal(t, 1, tlb.Size())
}
