// Package gc implements the Unit Engine's garbage collector (§4.6): a
// mark/sweep pass restricted to the GC queue, honoring collect_mode and
// tracing reachability along strong dependency edges so a still-wanted
// unit keeps everything it needs alive.
package gc

import (
	"fmt"

	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/shinygold/unitengine/internal/unit"
)

// TypeMayGC is the per-type may_gc callback (§4.3); nil means the type has
// no opinion and the core's own checks decide.
type TypeMayGC func(u *unit.Unit) bool

// Collector runs mark/sweep passes over a manager's dependency graph.
type Collector struct {
	graph     *depgraph.Graph
	stride    uint64
	marker    uint64
	typeMayGC TypeMayGC
}

// New creates a Collector tracing reachability through graph, incrementing
// its marker generation by stride on every sweep.
func New(graph *depgraph.Graph, stride uint64, typeMayGC TypeMayGC) *Collector {
	if stride == 0 {
		stride = 1
	}
	return &Collector{graph: graph, stride: stride, typeMayGC: typeMayGC}
}

// MayGC reports whether u is eligible for collection (§4.6): no job, not
// active in any sense, not referenced by a UnitRef, not perpetual, and the
// per-type callback (if any) agrees.
func (c *Collector) MayGC(u *unit.Unit) bool {
	if u.Job != nil {
		return false
	}
	if u.IsReferenced() {
		return false
	}
	if u.Perpetual {
		return false
	}
	switch u.ActiveStateValue {
	case unit.StateInactive:
		// eligible under either collect mode
	case unit.StateFailed:
		if u.CollectMode != unit.CollectInactiveOrFailed {
			return false
		}
	default:
		return false
	}
	if c.typeMayGC != nil && !c.typeMayGC(u) {
		return false
	}
	return true
}

// Sweep runs one mark/sweep pass. roots are unit ids still reachable from
// outside the collector's consideration (perpetual units, anything with an
// active job, anything referenced) — the mark phase traces strong edges
// forward from them. candidates are the units currently linked on the GC
// queue; any candidate not marked reachable and still MayGC-eligible is
// returned for the cleanup queue.
func (c *Collector) Sweep(candidates []*unit.Unit, roots []string) ([]*unit.Unit, error) {
	c.marker += c.stride

	reachable, err := c.graph.ReachableFrom(roots)
	if err != nil {
		return nil, fmt.Errorf("gc: reachability trace: %w", err)
	}

	var collected []*unit.Unit
	for _, u := range candidates {
		if reachable[u.ID] {
			continue
		}
		if !c.MayGC(u) {
			continue
		}
		collected = append(collected, u)
	}
	return collected, nil
}

// Marker returns the collector's current sweep generation.
func (c *Collector) Marker() uint64 {
	return c.marker
}
