package depgraph

// Source is a single bit of edge provenance: which configuration input
// asserted a dependency edge.
type Source uint16

const (
	SourceFile Source = 1 << iota
	SourceImplicit
	SourceDefault
	SourceUdev
	SourcePath
	SourceMountinfoImplicit
	SourceMountinfoDefault
	SourceProcSwap
)

// Mask is the full provenance value for one directed edge: two packed
// 16-bit masks, one per side, so the pair fits in a single machine word (§9).
type Mask struct {
	Origin      Source
	Destination Source
}

// IsZero reports whether neither side recorded any provenance. Graph's
// RemoveDependencies does not use it: an edge is dropped as soon as its
// destination mask alone reaches zero (§4.2).
func (m Mask) IsZero() bool {
	return m.Origin == 0 && m.Destination == 0
}

// Merge OR-combines two provenance masks, as performed when a merge unions
// dependencies[kind] across the surviving and absorbed units (§4.1).
func (m Mask) Merge(other Mask) Mask {
	return Mask{
		Origin:      m.Origin | other.Origin,
		Destination: m.Destination | other.Destination,
	}
}

// ClearDestination clears bits in clr from the destination side, as
// remove_dependencies does when flushing edges owned by a reloaded source (§4.2).
func (m Mask) ClearDestination(clr Source) Mask {
	return Mask{Origin: m.Origin, Destination: m.Destination &^ clr}
}

// ClearOrigin clears bits in clr from the origin side.
func (m Mask) ClearOrigin(clr Source) Mask {
	return Mask{Origin: m.Origin &^ clr, Destination: m.Destination}
}
