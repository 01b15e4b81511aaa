// Package depgraph implements the Unit Engine's typed, reason-tagged
// dependency graph (§4.2): a directed multigraph between unit ids where
// each directed edge of a given kind carries a 16-bit-per-side provenance
// bitmask recording which configuration sources asserted it.
//
// Vertices, edges and their provenance live in Graph's own adjacency map
// keyed by (source, kind, target), since provenance must be OR-mutated in
// place as config sources are reloaded and the graph library's edge data
// is set once at AddEdge time. Reachability and cycle detection are
// delegated to github.com/dominikbraun/graph, over a graph built from that
// map for each query.
package depgraph

import "fmt"

// Kind is a dependency relation between two units. Every kind has a
// symmetric inverse that the graph maintains automatically.
type Kind int

const (
	Requires Kind = iota
	RequiredBy
	Requisite
	RequisiteOf
	Wants
	WantedBy
	BindsTo
	BoundBy
	PartOf
	ConsistsOf
	Upholds
	UpheldBy
	Conflicts
	ConflictedBy
	Before
	After
	OnFailure
	OnFailureOf
	Triggers
	TriggeredBy
	PropagatesReloadTo
	ReloadPropagatedFrom
	JoinsNamespaceOf
	References
	ReferencedBy
)

var kindNames = map[Kind]string{
	Requires:             "Requires",
	RequiredBy:           "RequiredBy",
	Requisite:            "Requisite",
	RequisiteOf:          "RequisiteOf",
	Wants:                "Wants",
	WantedBy:             "WantedBy",
	BindsTo:              "BindsTo",
	BoundBy:              "BoundBy",
	PartOf:               "PartOf",
	ConsistsOf:           "ConsistsOf",
	Upholds:              "Upholds",
	UpheldBy:             "UpheldBy",
	Conflicts:            "Conflicts",
	ConflictedBy:         "ConflictedBy",
	Before:               "Before",
	After:                "After",
	OnFailure:            "OnFailure",
	OnFailureOf:          "OnFailureOf",
	Triggers:             "Triggers",
	TriggeredBy:          "TriggeredBy",
	PropagatesReloadTo:   "PropagatesReloadTo",
	ReloadPropagatedFrom: "ReloadPropagatedFrom",
	JoinsNamespaceOf:     "JoinsNamespaceOf",
	References:           "References",
	ReferencedBy:         "ReferencedBy",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// inverse maps each kind to its symmetric counterpart. JoinsNamespaceOf has
// no distinct inverse name in the source material; it is self-paired so
// that add/remove stay symmetric like every other kind.
var inverse = map[Kind]Kind{
	Requires:             RequiredBy,
	RequiredBy:           Requires,
	Requisite:            RequisiteOf,
	RequisiteOf:          Requisite,
	Wants:                WantedBy,
	WantedBy:             Wants,
	BindsTo:              BoundBy,
	BoundBy:              BindsTo,
	PartOf:               ConsistsOf,
	ConsistsOf:           PartOf,
	Upholds:              UpheldBy,
	UpheldBy:             Upholds,
	Conflicts:            ConflictedBy,
	ConflictedBy:         Conflicts,
	Before:               After,
	After:                Before,
	OnFailure:            OnFailureOf,
	OnFailureOf:          OnFailure,
	Triggers:             TriggeredBy,
	TriggeredBy:          Triggers,
	PropagatesReloadTo:   ReloadPropagatedFrom,
	ReloadPropagatedFrom: PropagatesReloadTo,
	JoinsNamespaceOf:     JoinsNamespaceOf,
	References:           ReferencedBy,
	ReferencedBy:         References,
}

// Inverse returns k's symmetric counterpart.
func Inverse(k Kind) Kind {
	if inv, ok := inverse[k]; ok {
		return inv
	}
	panic(fmt.Sprintf("depgraph: kind %v has no registered inverse", k))
}

// StrongKinds are the edges the garbage collector traces reachability
// along (§4.6): Requires, BindsTo, PartOf, References, and inbound
// TriggeredBy.
var StrongKinds = []Kind{Requires, BindsTo, PartOf, References, TriggeredBy}

// IsStrong reports whether k is traced during GC mark.
func IsStrong(k Kind) bool {
	for _, s := range StrongKinds {
		if s == k {
			return true
		}
	}
	return false
}
