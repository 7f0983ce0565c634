package atom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableDeduplicatesByContent(t *testing.T) {
	var table = NewTable(1, nil)

	var a1 = table.Add(NewNode(TConceptNode, "cat"), false)
	var a2 = table.Add(NewNode(TConceptNode, "cat"), false)
	require.True(t, a1 == a2)
	require.Equal(t, 1, table.Size())

	// Adding a link resolves its outgoing set to canonical atoms.
	var link = table.Add(NewLink(TListLink, NewNode(TConceptNode, "cat"), NewNode(TConceptNode, "dog")), false)
	require.True(t, link.Outgoing()[0] == a1)
	require.Equal(t, 3, table.Size())

	require.True(t, table.GetHandle(NewNode(TConceptNode, "dog")) == link.Outgoing()[1])
	require.Nil(t, table.GetHandle(NewNode(TConceptNode, "mouse")))
}

func TestTableMergeFlagControlsTruthValue(t *testing.T) {
	var table = NewTable(1, nil)

	var a = NewNode(TConceptNode, "cat")
	a.SetTruthValue(SimpleTV(0.9, 0.8))
	table.Add(a, false)

	var b = NewNode(TConceptNode, "cat")
	b.SetTruthValue(SimpleTV(0.1, 0.2))

	var got = table.Add(b, false)
	require.Equal(t, SimpleTV(0.9, 0.8), got.TruthValue()) // Unchanged.

	got = table.Add(b, true)
	require.Equal(t, SimpleTV(0.1, 0.2), got.TruthValue()) // Merged.
}

func TestForEachByType(t *testing.T) {
	var table = NewTable(1, nil)
	table.Add(NewNode(TConceptNode, "a"), false)
	table.Add(NewNode(TPredicateNode, "p"), false)
	table.Add(NewLink(TListLink, NewNode(TConceptNode, "a")), false)

	var count = func(typ Type, recursive bool) int {
		var n int
		table.ForEachByType(func(*Atom) { n++ }, typ, recursive)
		return n
	}

	require.Equal(t, 1, count(TConceptNode, false))
	require.Equal(t, 2, count(TNode, true))
	require.Equal(t, 0, count(TNode, false))
	require.Equal(t, 3, count(TAtom, true))
}

func TestTableEnviron(t *testing.T) {
	var parent = NewTable(1, nil)
	var child = NewTable(7, parent)

	require.Equal(t, UUID(7), child.UUID())
	require.True(t, child.Environ() == parent)
	require.Nil(t, parent.Environ())
}
