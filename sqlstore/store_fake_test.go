package sqlstore

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/shadowridgedev/atomspace/atom"
)

func TestTypemapClaimsIdentityCodesOnFreshDatabase(t *testing.T) {
	var conn = newFakeConn()
	var s = newTestStore(dialectPostgres, conn)

	require.NoError(t, s.setupTypemap())

	// With no pre-existing TypeCodes rows, every runtime type claims its
	// own code, and each claim is persisted.
	var db, ok = s.tmap.storingCode(atom.TConceptNode)
	require.True(t, ok)
	require.Equal(t, int(atom.TConceptNode), db)
	require.Equal(t, s.registry.NumberOfClasses(), conn.countExecuted("INSERT INTO TypeCodes"))

	// Bootstrap is one-shot.
	require.NoError(t, s.setupTypemap())
	require.Equal(t, s.registry.NumberOfClasses(), conn.countExecuted("INSERT INTO TypeCodes"))
}

func TestTypemapReconcilesExistingCodesByName(t *testing.T) {
	var conn = newFakeConn()
	// The database binds ConceptNode to an arbitrary foreign code, and
	// holds a type this process has never registered.
	conn.stub("SELECT * FROM TypeCodes", []string{"type", "typename"},
		[]string{"40", "ConceptNode"},
		[]string{fmt.Sprintf("%d", atom.TNode), "SomeForeignType"},
	)
	var s = newTestStore(dialectPostgres, conn)
	require.NoError(t, s.setupTypemap())

	// ConceptNode stores as 40, and 40 loads back as ConceptNode.
	var db, ok = s.tmap.storingCode(atom.TConceptNode)
	require.True(t, ok)
	require.Equal(t, 40, db)
	require.Equal(t, atom.TConceptNode, s.tmap.loadingType(40))

	// The foreign type is a loading hole.
	require.Equal(t, atom.NoType, s.tmap.loadingType(int(atom.TNode)))

	// Node's preferred code is taken by the foreign type, so it claimed
	// another; the storing map stays total and injective.
	var seen = map[int]atom.Type{}
	for i := 0; i != s.registry.NumberOfClasses(); i++ {
		db, ok = s.tmap.storingCode(atom.Type(i))
		require.True(t, ok, "type %d has no storing entry", i)
		prev, dup := seen[db]
		require.False(t, dup, "db code %d claimed by both %d and %d", db, prev, i)
		seen[db] = atom.Type(i)
	}
}

func TestStoreSingleAtomInsertThenUpdate(t *testing.T) {
	var conn = newFakeConn()
	var s = newTestStore(dialectPostgres, conn)

	var a = atom.NewNode(atom.TConceptNode, "cat")
	a.SetTruthValue(atom.SimpleTV(0.8, 0.5))

	require.NoError(t, s.StoreAtom(a, true))
	require.Equal(t, 1, conn.countExecuted("INSERT INTO Atoms"))
	require.Equal(t, uint64(1), s.numNodeInserts.Load())

	// The name rides in dollar-tag quoting on the postgres dialect.
	var insert string
	for _, q := range conn.executed() {
		if strings.HasPrefix(q, "INSERT INTO Atoms") {
			insert = q
		}
	}
	require.Contains(t, insert, "$ocp$cat$ocp$")

	// A second store touches only the mutable truth-value columns.
	a.SetTruthValue(atom.SimpleTV(0.9, 0.6))
	require.NoError(t, s.StoreAtom(a, true))
	require.Equal(t, 1, conn.countExecuted("INSERT INTO Atoms"))
	require.Equal(t, 1, conn.countExecuted("UPDATE Atoms SET"))
	require.Equal(t, uint64(1), s.numNodeUpdates.Load())
}

func TestStoreLinkRecursesBottomUp(t *testing.T) {
	var conn = newFakeConn()
	var s = newTestStore(dialectPostgres, conn)

	var link = atom.NewLink(atom.TListLink,
		atom.NewNode(atom.TConceptNode, "a"),
		atom.NewNode(atom.TConceptNode, "b"))

	require.NoError(t, s.StoreAtom(link, true))
	require.Equal(t, 3, conn.countExecuted("INSERT INTO Atoms"))

	// Child inserts strictly precede the link's.
	var inserts []string
	for _, q := range conn.executed() {
		if strings.HasPrefix(q, "INSERT INTO Atoms") {
			inserts = append(inserts, q)
		}
	}
	require.Contains(t, inserts[2], "outgoing")
	require.NotContains(t, inserts[0], "outgoing")
	require.NotContains(t, inserts[1], "outgoing")

	// Height 1, with the children's UUIDs in order.
	var ua = s.tlb.GetUUID(link.Outgoing()[0])
	var ub = s.tlb.GetUUID(link.Outgoing()[1])
	require.Contains(t, inserts[2], fmt.Sprintf("'{%d, %d}'", ua, ub))
}

func TestStoreFailureAbandonsCreation(t *testing.T) {
	var conn = newFakeConn()
	var s = newTestStore(dialectPostgres, conn)

	conn.failOn("INSERT INTO Atoms", errFakeFailure)
	var a = atom.NewNode(atom.TConceptNode, "cat")
	require.Error(t, s.StoreAtom(a, true))

	// The failed creation was withdrawn: a retry INSERTs again rather
	// than deadlocking or degrading to an UPDATE of a missing row.
	conn.mu.Lock()
	delete(conn.fail, "INSERT INTO Atoms")
	conn.mu.Unlock()

	require.NoError(t, s.StoreAtom(a, true))
	require.Equal(t, 0, conn.countExecuted("UPDATE Atoms SET"))
	require.Equal(t, uint64(1), s.numNodeInserts.Load())
}

func TestOversizedInputsAreRejected(t *testing.T) {
	var conn = newFakeConn()
	var s = newTestStore(dialectPostgres, conn)

	var long = strings.Repeat("x", 2701)
	var err = s.StoreAtom(atom.NewNode(atom.TConceptNode, long), true)
	require.True(t, errors.Is(err, ErrNameTooLong))

	var out = make([]*atom.Atom, 331)
	for i := range out {
		out[i] = atom.NewNode(atom.TConceptNode, fmt.Sprintf("n%d", i))
	}
	err = s.doStoreSingleAtom(atom.NewLink(atom.TListLink, out...), 1)
	require.True(t, errors.Is(err, ErrArityTooLarge))

	// Exactly at the name limit is fine.
	require.NoError(t, s.StoreAtom(atom.NewNode(atom.TConceptNode, strings.Repeat("y", 2700)), true))
}

func TestGetNodeMaterializesRow(t *testing.T) {
	var conn = newFakeConn()
	var s = newTestStore(dialectPostgres, conn)
	require.NoError(t, s.setupTypemap())

	var dbType, _ = s.tmap.storingCode(atom.TConceptNode)
	conn.stub(fmt.Sprintf("SELECT * FROM Atoms WHERE type = %d AND name = $ocp$cat$ocp$", dbType),
		[]string{"uuid", "space", "type", "tv_type", "stv_mean", "stv_confidence", "stv_count", "height", "name", "outgoing"},
		[]string{"7", "1", fmt.Sprintf("%d", dbType), "1", "0.8", "0.5", "0", "0", "cat", "<null>"},
	)

	var got, err = s.GetNode(atom.TConceptNode, "cat")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "cat", got.Name())
	require.Equal(t, atom.SimpleTV(0.8, 0.5), got.TruthValue())
	require.Equal(t, atom.UUID(7), s.tlb.GetUUID(got))

	// A miss is (nil, nil), not an error.
	got, err = s.GetNode(atom.TConceptNode, "dog")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestAsyncStoreDrainsThroughBarrier(t *testing.T) {
	var conn = newFakeConn()
	var s = newTestStore(dialectPostgres, conn)

	for i := 0; i != 20; i++ {
		require.NoError(t, s.StoreAtom(atom.NewNode(atom.TConceptNode, fmt.Sprintf("n%d", i)), false))
	}
	s.FlushStoreQueue()
	require.Equal(t, 20, conn.countExecuted("INSERT INTO Atoms"))
}

func TestUnknownSchemeIsConfigError(t *testing.T) {
	var _, _, err = parseURI("mysql://nope")
	require.True(t, errors.Is(err, ErrUnknownScheme))

	for _, uri := range []string{"postgres://h/db", "/var/db", "odbc:DSN=x", "sqlite3://file:x.db"} {
		_, _, err = parseURI(uri)
		require.NoError(t, err, uri)
	}
}
