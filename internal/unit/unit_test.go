package unit

import (
	"testing"

	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/stretchr/testify/assert"
)

func TestUnitAddDependencyInstallsReference(t *testing.T) {
	graph := depgraph.New()
	a := New(TypeService, graph, 1)
	a.ID = "a.service"
	b := New(TypeService, graph, 1)
	b.ID = "b.service"

	a.AddDependency(depgraph.Wants, b, depgraph.Mask{Origin: depgraph.SourceFile}, true)

	assert.Contains(t, a.Dependencies(depgraph.Wants), "b.service")
	assert.Contains(t, b.Dependencies(depgraph.WantedBy), "a.service")
	assert.False(t, a.IsReferenced())
	assert.True(t, b.IsReferenced())
}

func TestUnitRemoveDependenciesFlushesProvenance(t *testing.T) {
	graph := depgraph.New()
	a := New(TypeService, graph, 1)
	a.ID = "a.service"
	b := New(TypeService, graph, 1)
	b.ID = "b.service"

	a.AddDependency(depgraph.Requires, b, depgraph.Mask{Destination: depgraph.SourceFile}, false)
	a.RemoveDependencies(depgraph.SourceFile)

	assert.Empty(t, a.Dependencies(depgraph.Requires))
}

func TestUnitQueueMembership(t *testing.T) {
	u := New(TypeService, depgraph.New(), 1)
	assert.False(t, u.InQueue(QueueGC))

	u.Queues[QueueGC] = true
	assert.True(t, u.InQueue(QueueGC))
}

func TestUnitActiveStateIsPureReadOfCachedValue(t *testing.T) {
	u := New(TypeService, depgraph.New(), 1)
	u.ActiveStateValue = StateActive
	assert.Equal(t, StateActive, u.ActiveState())
}
