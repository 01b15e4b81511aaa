package unit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/shinygold/unitengine/internal/ratelimit"
)

// Timestamp is a dual monotonic/wall-clock pair, the representation every
// lifecycle timestamp in §3 uses so elapsed-time math stays correct across
// a wall-clock step while serialization still has a human-readable value.
type Timestamp struct {
	Monotonic time.Time
	Wall      time.Time
}

// Stamp returns the Timestamp for now.
func Stamp(now time.Time) Timestamp {
	return Timestamp{Monotonic: now, Wall: now}
}

// UnitRef is a named weak back-edge: Source refers to Target, and is
// recorded in Target's RefsByTarget so a merge that absorbs Target can
// rewrite every referring Source in O(degree) (§3, §9).
type UnitRef struct {
	Source string
	Target string
}

// Queue is one of the named FIFO queues a unit can be linked on (§4.5).
type Queue int

const (
	QueueLoad Queue = iota
	QueueTargetDeps
	QueueGC
	QueueCleanup
	QueueCgroupRealize
	QueueCgroupEmpty
	QueueCgroupOOM
	QueueStopWhenUnneeded
	QueueDBus
	queueCount
)

// QueueMembership mirrors the in_Q flags alongside the intrusive queue
// linkage (§9): a unit is linked on Q iff its flag is set. The Scheduler
// itself never touches these flags; the manager sets a flag when its push
// succeeds and each queue handler clears it.
type QueueMembership [queueCount]bool

// JobRef is an opaque reference into the external job layer (§6): the
// engine only tracks whether a job slot is occupied, not job internals.
type JobRef struct {
	ID   uint64
	Type string
	Mode string
}

// Unit is the central entity (§3): identity, dependency participation,
// lifecycle timestamps, queue membership, and the rate limiters and
// behavior flags that drive the state machine and garbage collector.
type Unit struct {
	Type      Type
	LoadState LoadState

	ID    string
	Names map[string]struct{}

	Description   string
	Documentation []string

	FragmentPath  string
	FragmentMTime time.Time
	SourcePath    string
	DropinPaths   []string
	DropinMTimes  map[string]time.Time
	LoadError     error

	// graph is the manager-wide dependency graph this unit's edges live
	// in; dependencies[kind] in §3 is represented there, keyed by ID,
	// rather than duplicated per-Unit.
	graph *depgraph.Graph

	RequiresMountsFor map[string]depgraph.Mask

	Conditions      []string
	Asserts         []string
	ConditionResult bool
	AssertResult    bool
	ConditionTimestamp Timestamp
	AssertTimestamp    Timestamp

	Job    *JobRef
	NopJob *JobRef

	StateChangeTimestamp   Timestamp
	InactiveExitTimestamp  Timestamp
	ActiveEnterTimestamp   Timestamp
	ActiveExitTimestamp    Timestamp
	InactiveEnterTimestamp Timestamp

	Slice *UnitRef

	Queues QueueMembership

	InvocationID uuid.UUID

	StartLimit        *ratelimit.Limiter
	AutoStopRateLimit *ratelimit.Limiter

	CollectMode CollectMode

	StopWhenUnneeded    bool
	DefaultDependencies bool
	RefuseManualStart   bool
	RefuseManualStop    bool
	AllowIsolate        bool
	IgnoreOnIsolate     bool
	Transient           bool
	Perpetual           bool

	SuccessAction    EmergencyAction
	FailureAction    EmergencyAction
	StartLimitAction EmergencyAction
	RebootArgument   string

	// CgroupPath and friends are opaque handles the core only tracks a
	// realization mask for (§6); the cgroup/BPF layer itself is external.
	CgroupPath         string
	CgroupRealized     bool
	CgroupEnabled      bool
	CgroupInvalidated  bool

	ActiveStateValue ActiveState
	SubState         string

	MergedInto   *Unit
	RefsByTarget []*UnitRef

	// ManagerGeneration is stamped at unit creation; pending external
	// callbacks carry a copy and compare it back before mutating state, so
	// a callback that lands after a manager teardown or unit destruction
	// detects the stale token and no-ops (§5).
	ManagerGeneration uint64

	TypeContext any
}

// New creates a stub unit of the given type attached to graph, which owns
// this unit's dependency edges.
func New(typ Type, graph *depgraph.Graph, managerGeneration uint64) *Unit {
	return &Unit{
		Type:              typ,
		LoadState:         LoadStub,
		graph:             graph,
		RequiresMountsFor: make(map[string]depgraph.Mask),
		DropinMTimes:      make(map[string]time.Time),
		CollectMode:       CollectInactive,
		ManagerGeneration: managerGeneration,
	}
}

// AddDependency adds u-kind->other with the given provenance mask,
// delegating to the shared dependency graph and optionally installing a
// UnitRef back-edge (§4.2).
func (u *Unit) AddDependency(kind depgraph.Kind, other *Unit, mask depgraph.Mask, addReference bool) {
	u.graph.AddVertex(u.ID)
	u.graph.AddVertex(other.ID)
	u.graph.AddDependency(u.ID, kind, other.ID, mask)
	if addReference {
		ref := &UnitRef{Source: u.ID, Target: other.ID}
		other.RefsByTarget = append(other.RefsByTarget, ref)
	}
}

// RemoveDependencies clears clr's provenance bits from every edge touching
// u, dropping edges whose destination mask reaches zero (§4.2).
func (u *Unit) RemoveDependencies(clr depgraph.Source) {
	u.graph.RemoveDependencies(u.ID, clr)
}

// Dependencies returns the sorted peer ids for kind.
func (u *Unit) Dependencies(kind depgraph.Kind) []string {
	return u.graph.Dependencies(u.ID, kind)
}

// InQueue reports whether u is linked on q.
func (u *Unit) InQueue(q Queue) bool {
	return u.Queues[q]
}

// ActiveState returns the cached high-level state last recorded by Notify
// (or assigned directly). It does not consult SubState or Job.
func (u *Unit) ActiveState() ActiveState {
	return u.ActiveStateValue
}

// IsReferenced reports whether any UnitRef still points at u, one of the
// conditions may_gc checks (§4.6).
func (u *Unit) IsReferenced() bool {
	return len(u.RefsByTarget) > 0
}
