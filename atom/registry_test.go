package atom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinHierarchy(t *testing.T) {
	var r = NewRegistry()

	require.Equal(t, TConceptNode, r.GetType("ConceptNode"))
	require.Equal(t, "ConceptNode", r.TypeName(TConceptNode))
	require.Equal(t, NoType, r.GetType("NoSuchType"))
	require.Equal(t, "", r.TypeName(NoType))

	require.True(t, r.IsA(TConceptNode, TNode))
	require.True(t, r.IsA(TConceptNode, TAtom))
	require.True(t, r.IsA(TListLink, TLink))
	require.False(t, r.IsA(TListLink, TNode))
	require.True(t, r.IsA(TAtom, TValue))

	require.True(t, r.IsNode(TPredicateNode))
	require.False(t, r.IsNode(TEvaluationLink))
	require.True(t, r.IsLink(TMemberLink))
}

func TestRegisterTypeIsIdempotent(t *testing.T) {
	var r = NewRegistry()

	var t1, err = r.RegisterType("FooNode", TNode)
	require.NoError(t, err)
	t2, err := r.RegisterType("FooNode", TNode)
	require.NoError(t, err)
	require.Equal(t, t1, t2)
	require.True(t, r.IsNode(t1))

	_, err = r.RegisterType("Broken", Type(9999))
	require.Error(t, err)
}

func TestRegistriesAssignStableBuiltinCodes(t *testing.T) {
	var r1, r2 = NewRegistry(), NewRegistry()
	require.Equal(t, r1.NumberOfClasses(), r2.NumberOfClasses())
	require.Equal(t, r1.GetType("EvaluationLink"), r2.GetType("EvaluationLink"))
}
