package unit

import (
	"testing"

	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeIsNoOpForSameUnit(t *testing.T) {
	table := NewTable()
	u := New(TypeService, depgraph.New(), 1)
	require.NoError(t, table.AddName(u, "a.service"))

	survivor, absorbed := Merge(table, u, u)
	assert.Same(t, u, survivor)
	assert.Nil(t, absorbed)
}

func TestMergePicksHigherLoadStatePriority(t *testing.T) {
	table := NewTable()
	graph := depgraph.New()
	loaded := New(TypeService, graph, 1)
	loaded.LoadState = LoadLoaded
	require.NoError(t, table.AddName(loaded, "loaded.service"))

	stub := New(TypeService, graph, 1)
	stub.LoadState = LoadStub
	require.NoError(t, table.AddName(stub, "stub.service"))

	survivor, absorbed := Merge(table, stub, loaded)
	assert.Same(t, loaded, survivor)
	assert.Same(t, stub, absorbed)
	assert.Equal(t, LoadMerged, stub.LoadState)
	assert.Same(t, loaded, stub.MergedInto)
	assert.True(t, stub.Queues[QueueGC])
}

func TestMergeTieBreaksLexicographically(t *testing.T) {
	table := NewTable()
	graph := depgraph.New()
	b := New(TypeService, graph, 1)
	b.LoadState = LoadLoaded
	require.NoError(t, table.AddName(b, "b.service"))

	a := New(TypeService, graph, 1)
	a.LoadState = LoadLoaded
	require.NoError(t, table.AddName(a, "a.service"))

	survivor, absorbed := Merge(table, b, a)
	assert.Same(t, a, survivor)
	assert.Same(t, b, absorbed)
}

func TestMergeRewritesUnitRefsAndNames(t *testing.T) {
	table := NewTable()
	graph := depgraph.New()
	survivor := New(TypeService, graph, 1)
	survivor.LoadState = LoadLoaded
	require.NoError(t, table.AddName(survivor, "survivor.service"))

	absorbed := New(TypeService, graph, 1)
	absorbed.LoadState = LoadStub
	require.NoError(t, table.AddName(absorbed, "absorbed.service"))
	require.NoError(t, table.AddName(absorbed, "absorbed-alias.service"))

	ref := &UnitRef{Source: "x.service", Target: absorbed.ID}
	absorbed.RefsByTarget = append(absorbed.RefsByTarget, ref)

	s, a := Merge(table, absorbed, survivor)
	require.Same(t, survivor, s)
	require.Same(t, absorbed, a)

	assert.Equal(t, survivor.ID, ref.Target)
	assert.Contains(t, survivor.RefsByTarget, ref)
	assert.Empty(t, absorbed.RefsByTarget)

	looked, ok := table.Lookup("absorbed.service")
	require.True(t, ok)
	assert.Same(t, survivor, looked)

	looked, ok = table.Lookup("absorbed-alias.service")
	require.True(t, ok)
	assert.Same(t, survivor, looked)
}

func TestMergeUnionsDependencyEdges(t *testing.T) {
	table := NewTable()
	graph := depgraph.New()
	survivor := New(TypeService, graph, 1)
	survivor.LoadState = LoadLoaded
	require.NoError(t, table.AddName(survivor, "survivor.service"))

	absorbed := New(TypeService, graph, 1)
	absorbed.LoadState = LoadStub
	require.NoError(t, table.AddName(absorbed, "absorbed.service"))

	peer := New(TypeService, graph, 1)
	require.NoError(t, table.AddName(peer, "peer.service"))

	absorbed.AddDependency(depgraph.Requires, peer, depgraph.Mask{Origin: depgraph.SourceFile}, false)

	Merge(table, absorbed, survivor)

	assert.True(t, graph.Has(survivor.ID, depgraph.Requires, peer.ID))
	assert.True(t, graph.Has(peer.ID, depgraph.RequiredBy, survivor.ID))
}
