package depgraph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dominikbraun/graph"
	"github.com/shinygold/unitengine/internal/sorting"
)

// Graph is the Unit Engine's dependency graph: a typed, symmetric,
// provenance-tagged adjacency between unit ids (§4.2, §9). Reads and
// writes are serialized by mu since the engine's single event-loop
// thread is the only steady-state mutator but GC sweeps and notify()
// side effects can interleave within one tick.
type Graph struct {
	mu sync.RWMutex
	// adjacency[source][kind][target] = provenance mask for that edge.
	// Symmetry is maintained explicitly: adding source-kind->target also
	// adds target-inverse(kind)->source in the same call.
	adjacency map[string]map[Kind]map[string]Mask
}

// New creates an empty dependency graph.
func New() *Graph {
	return &Graph{adjacency: make(map[string]map[Kind]map[string]Mask)}
}

func (g *Graph) ensureVertexLocked(id string) {
	if _, ok := g.adjacency[id]; !ok {
		g.adjacency[id] = make(map[Kind]map[string]Mask)
	}
}

// AddVertex registers id with no edges, a no-op if it already exists.
func (g *Graph) AddVertex(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureVertexLocked(id)
}

// RemoveVertex drops id and every edge touching it, mirroring unit
// destruction's "drops all edges, triggers symmetric removal on peers" (§3).
func (g *Graph) RemoveVertex(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for kind, targets := range g.adjacency[id] {
		inv := Inverse(kind)
		for target := range targets {
			if peer, ok := g.adjacency[target]; ok {
				if byKind, ok := peer[inv]; ok {
					delete(byKind, id)
				}
			}
		}
	}
	delete(g.adjacency, id)

	for _, byKind := range g.adjacency {
		for _, targets := range byKind {
			delete(targets, id)
		}
	}
}

// AddDependency adds source -kind-> target, OR-merging mask into any
// existing edge, and atomically adds the symmetric target -inverse(kind)->
// source edge (§4.2, §8 edge-symmetry property). Idempotent.
func (g *Graph) AddDependency(source string, kind Kind, target string, mask Mask) {
	if source == target {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureVertexLocked(source)
	g.ensureVertexLocked(target)

	g.setEdgeLocked(source, kind, target, mask)
	g.setEdgeLocked(target, Inverse(kind), source, mask)
}

func (g *Graph) setEdgeLocked(source string, kind Kind, target string, mask Mask) {
	byKind, ok := g.adjacency[source][kind]
	if !ok {
		byKind = make(map[string]Mask)
		g.adjacency[source][kind] = byKind
	}
	byKind[target] = byKind[target].Merge(mask)
}

// RemoveDependencies clears clr's bits from both sides of every edge
// touching id, dropping edges whose destination mask reaches zero, and
// keeps the symmetric partner's mask in lockstep (§4.2, §8 provenance-flush).
func (g *Graph) RemoveDependencies(id string, clr Source) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for kind, targets := range g.adjacency[id] {
		inv := Inverse(kind)
		for target, mask := range targets {
			newMask := mask.ClearOrigin(clr).ClearDestination(clr)
			peerMask := g.adjacency[target][inv][id].ClearOrigin(clr).ClearDestination(clr)
			if newMask.Destination == 0 {
				delete(targets, target)
				if peer, ok := g.adjacency[target][inv]; ok {
					delete(peer, id)
				}
				continue
			}
			targets[target] = newMask
			if _, ok := g.adjacency[target][inv]; ok {
				g.adjacency[target][inv][id] = peerMask
			}
		}
		if len(targets) == 0 {
			delete(g.adjacency[id], kind)
		}
	}
}

// Dependencies returns the sorted peers of id for the given kind.
func (g *Graph) Dependencies(id string, kind Kind) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	targets := g.adjacency[id][kind]
	out := make([]string, 0, len(targets))
	for t := range targets {
		out = append(out, t)
	}
	sorting.SortStringSlice(out)
	return out
}

// Mask returns the provenance for source-kind->target, and whether it exists.
func (g *Graph) Mask(source string, kind Kind, target string) (Mask, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.adjacency[source][kind][target]
	return m, ok
}

// Has reports whether any dependency edge of kind exists from source to target.
func (g *Graph) Has(source string, kind Kind, target string) bool {
	_, ok := g.Mask(source, kind, target)
	return ok
}

// RenameVertex moves all edges touching oldID onto newID, used when a
// merge rewrites every peer that pointed at the absorbed unit (§4.1).
func (g *Graph) RenameVertex(oldID, newID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if oldID == newID {
		return
	}
	g.ensureVertexLocked(newID)

	for kind, targets := range g.adjacency[oldID] {
		inv := Inverse(kind)
		for target, mask := range targets {
			if target == newID {
				continue // self-edge created by the merge; drop it
			}
			dst, ok := g.adjacency[newID][kind]
			if !ok {
				dst = make(map[string]Mask)
				g.adjacency[newID][kind] = dst
			}
			dst[target] = dst[target].Merge(mask)

			if peer, ok := g.adjacency[target][inv]; ok {
				delete(peer, oldID)
				peer[newID] = peer[newID].Merge(mask)
			}
		}
	}
	delete(g.adjacency, oldID)
}

// strongGraph builds a dominikbraun/graph instance containing only the
// strong-kind edges (§4.6) reachable from every known vertex, for GC mark.
func (g *Graph) strongGraph() (graph.Graph[string, string], error) {
	sg := graph.New(graph.StringHash, graph.Directed())
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id := range g.adjacency {
		if err := sg.AddVertex(id); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, err
		}
	}
	for source, byKind := range g.adjacency {
		for kind, targets := range byKind {
			if !IsStrong(kind) {
				continue
			}
			for target := range targets {
				if err := sg.AddEdge(source, target); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
					return nil, err
				}
			}
		}
	}
	return sg, nil
}

// ReachableFrom returns the set of unit ids reachable from roots by
// following strong dependency edges, used by the garbage collector to mark
// units that a still-wanted unit keeps alive (§4.6).
func (g *Graph) ReachableFrom(roots []string) (map[string]bool, error) {
	sg, err := g.strongGraph()
	if err != nil {
		return nil, fmt.Errorf("depgraph: building strong-edge graph: %w", err)
	}
	adj, err := sg.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("depgraph: adjacency map: %w", err)
	}

	seen := make(map[string]bool, len(roots))
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		for target := range adj[id] {
			if !seen[target] {
				queue = append(queue, target)
			}
		}
	}
	return seen, nil
}

// BreakReloadCycles detects cycles restricted to PropagatesReloadTo edges
// and breaks each by dropping the lexicographically-last edge that would
// have closed it, logging via the supplied warn callback (§9 Open Question b).
func (g *Graph) BreakReloadCycles(warn func(source, target string)) {
	g.mu.RLock()
	type edge struct{ source, target string }
	var edges []edge
	for source, byKind := range g.adjacency {
		for target := range byKind[PropagatesReloadTo] {
			edges = append(edges, edge{source, target})
		}
	}
	g.mu.RUnlock()

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].source != edges[j].source {
			return edges[i].source < edges[j].source
		}
		return edges[i].target < edges[j].target
	})

	rg := graph.New(graph.StringHash, graph.Directed())
	seen := make(map[string]bool)
	for _, e := range edges {
		if !seen[e.source] {
			_ = rg.AddVertex(e.source)
			seen[e.source] = true
		}
		if !seen[e.target] {
			_ = rg.AddVertex(e.target)
			seen[e.target] = true
		}
	}

	for _, e := range edges {
		wouldCycle, err := graph.CreatesCycle(rg, e.source, e.target)
		if err == nil && wouldCycle {
			if warn != nil {
				warn(e.source, e.target)
			}
			g.removeSingleEdge(e.source, PropagatesReloadTo, e.target)
			continue
		}
		_ = rg.AddEdge(e.source, e.target)
	}
}

func (g *Graph) removeSingleEdge(source string, kind Kind, target string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	inv := Inverse(kind)
	if byKind, ok := g.adjacency[source]; ok {
		delete(byKind[kind], target)
	}
	if byKind, ok := g.adjacency[target]; ok {
		delete(byKind[inv], source)
	}
}
