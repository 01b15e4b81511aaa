package unit

// Merge absorbs one of a, b into the other and returns (survivor, absorbed).
// The survivor is picked by load-state priority (loaded > merged > stub >
// others), then by lexicographic id (§9 Open Question a, resolved here).
// merge(u, u) is a no-op: Merge returns (u, nil).
//
// The survivor's name set absorbs every name the losing unit owned (via
// table.Rebind), every UnitRef pointing at the losing unit is rewritten to
// the survivor, and the dependency graph's RenameVertex moves and
// OR-merges the losing unit's edges onto the survivor — which is also
// where the provenance-mask union across dependencies[kind] happens (§4.1).
func Merge(table *Table, a, b *Unit) (survivor, absorbed *Unit) {
	if a == b {
		return a, nil
	}

	survivor, absorbed = a, b
	if less(b, a) {
		survivor, absorbed = b, a
	}

	for _, ref := range absorbed.RefsByTarget {
		ref.Target = survivor.ID
		survivor.RefsByTarget = append(survivor.RefsByTarget, ref)
	}
	absorbed.RefsByTarget = nil

	table.Rebind(absorbed, survivor)
	survivor.graph.RenameVertex(absorbed.ID, survivor.ID)

	absorbed.LoadState = LoadMerged
	absorbed.MergedInto = survivor
	absorbed.Queues[QueueGC] = true

	return survivor, absorbed
}

// less reports whether x should survive over y: strictly better load-state
// priority, or equal priority and a lexicographically smaller id.
func less(x, y *Unit) bool {
	px, py := loadStatePriority[x.LoadState], loadStatePriority[y.LoadState]
	if px != py {
		return px < py
	}
	return x.ID < y.ID
}
