package manager

import (
	"time"

	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/shinygold/unitengine/internal/queue"
	"github.com/shinygold/unitengine/internal/unit"
)

// installHandlers wires every named queue in §4.5's drain order to its
// handling method. Handlers clear the unit's in_Q flag before doing any
// work so a handler that re-enqueues the same unit observes a clean flag.
func (m *Manager) installHandlers() {
	m.Scheduler.SetHandler(queue.Load, m.handleLoad)
	m.Scheduler.SetHandler(queue.TargetDeps, m.handleTargetDeps)
	m.Scheduler.SetHandler(queue.GC, m.handleGC)
	m.Scheduler.SetHandler(queue.Cleanup, m.handleCleanup)
	m.Scheduler.SetHandler(queue.CgroupRealize, m.handleCgroupRealize)
	m.Scheduler.SetHandler(queue.CgroupEmpty, m.handleCgroupEmpty)
	m.Scheduler.SetHandler(queue.CgroupOOM, m.handleCgroupOOM)
	m.Scheduler.SetHandler(queue.StopWhenUnneeded, m.handleStopWhenUnneeded)
	m.Scheduler.SetHandler(queue.DBus, m.handleDBus)
}

func (m *Manager) clearQueue(id string, q unit.Queue) *unit.Unit {
	m.mu.Lock()
	u, ok := m.units[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	u.Queues[q] = false
	return u
}

// handleLoad resolves a unit's fragment. Fragment parsing itself is an
// external collaborator (§1); the core's responsibility here is limited
// to the load-state transition once that external step reports success.
func (m *Manager) handleLoad(id string) {
	u := m.clearQueue(id, unit.QueueLoad)
	if u == nil {
		return
	}
	if u.LoadState == unit.LoadStub {
		u.LoadState = unit.LoadLoaded
	}
	if u.DefaultDependencies {
		if m.Scheduler.Push(queue.TargetDeps, u.ID) {
			u.Queues[unit.QueueTargetDeps] = true
		}
	}
}

// handleTargetDeps installs Wants+Before(target) to the configured default
// target (§4.2 add_default_target_dependency), unless the unit opted out.
// Before(u->target) is this edge's Unit Engine spelling of systemd's
// unit_add_default_target_dependency, which adds an After(target->u) edge;
// Before and After are each other's inverse (internal/depgraph/kind.go), so
// the two are the same edge viewed from opposite ends.
func (m *Manager) handleTargetDeps(id string) {
	u := m.clearQueue(id, unit.QueueTargetDeps)
	if u == nil || !u.DefaultDependencies || m.DefaultTarget == "" || u.ID == m.DefaultTarget {
		return
	}
	m.mu.Lock()
	target, ok := m.units[m.DefaultTarget]
	m.mu.Unlock()
	if !ok {
		return
	}
	mask := depgraph.Mask{Origin: depgraph.SourceDefault, Destination: depgraph.SourceDefault}
	u.AddDependency(depgraph.Wants, target, mask, false)
	u.AddDependency(depgraph.Before, target, mask, false)
}

// handleGC runs one mark/sweep pass restricted to units linked on the GC
// queue, moving anything unreachable and GC-eligible to the cleanup queue
// (§4.6).
func (m *Manager) handleGC(id string) {
	u := m.clearQueue(id, unit.QueueGC)
	if u == nil {
		return
	}

	m.mu.Lock()
	var roots []string
	for otherID, other := range m.units {
		if other.Perpetual || other.Job != nil || other.IsReferenced() ||
			other.ActiveStateValue == unit.StateActive || other.ActiveStateValue == unit.StateActivating {
			roots = append(roots, otherID)
		}
	}
	m.mu.Unlock()

	collected, err := m.Collector.Sweep([]*unit.Unit{u}, roots)
	if err != nil {
		m.logger.Warn("gc sweep failed", "unit", u.ID, "error", err)
		return
	}
	for _, c := range collected {
		if m.Scheduler.Push(queue.Cleanup, c.ID) {
			c.Queues[unit.QueueCleanup] = true
		}
	}
}

// handleCleanup destroys a unit flagged unreachable: detaches it from the
// names table, drops its dependency edges (triggering symmetric removal on
// peers), and removes it from the manager's index (§3 Lifecycles).
func (m *Manager) handleCleanup(id string) {
	m.mu.Lock()
	u, ok := m.units[id]
	if ok {
		delete(m.units, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	u.Queues[unit.QueueCleanup] = false
	m.Table.Remove(u)
	m.Graph.RemoveVertex(u.ID)
	if m.Bus != nil {
		_ = m.Bus.UnitRemoved(u.ID)
	}
}

// handleCgroupRealize materializes the cgroup hierarchy for a newly
// activated unit. Actual cgroup creation is an external collaborator;
// the core only tracks the realization mask (§6).
func (m *Manager) handleCgroupRealize(id string) {
	u := m.clearQueue(id, unit.QueueCgroupRealize)
	if u == nil {
		return
	}
	u.CgroupRealized = true
}

// handleCgroupEmpty reacts to a unit's cgroup becoming empty, which may
// cause an inactive transition for units whose main process has exited.
func (m *Manager) handleCgroupEmpty(id string) {
	u := m.clearQueue(id, unit.QueueCgroupEmpty)
	if u == nil {
		return
	}
	if u.ActiveStateValue == unit.StateDeactivating {
		m.Notifier.Notify(u, unit.StateDeactivating, unit.StateInactive, 0)
	}
}

// handleCgroupOOM notifies a unit of an OOM kill event within its cgroup.
func (m *Manager) handleCgroupOOM(id string) {
	u := m.clearQueue(id, unit.QueueCgroupOOM)
	if u == nil {
		return
	}
	m.logger.Warn("cgroup oom", "unit", u.ID)
}

// handleStopWhenUnneeded submits a rate-limited stop job for units flagged
// stop_when_unneeded that no other unit still needs (§4.5 step 8).
func (m *Manager) handleStopWhenUnneeded(id string) {
	u := m.clearQueue(id, unit.QueueStopWhenUnneeded)
	if u == nil || !u.StopWhenUnneeded || !m.isUnneeded(u) {
		return
	}
	if u.AutoStopRateLimit != nil && !u.AutoStopRateLimit.Allow(time.Now()) {
		return
	}
	if _, err := m.Stop(u.ID); err != nil {
		m.logger.Warn("stop-when-unneeded: stop failed", "unit", u.ID, "error", err)
	}
}

// isUnneeded reports whether u is active but nothing still requires or
// wants it.
func (m *Manager) isUnneeded(u *unit.Unit) bool {
	if u.ActiveStateValue != unit.StateActive {
		return false
	}
	if u.IsReferenced() {
		return false
	}
	return len(u.Dependencies(depgraph.RequiredBy)) == 0 &&
		len(u.Dependencies(depgraph.WantedBy)) == 0 &&
		len(u.Dependencies(depgraph.BoundBy)) == 0
}

// handleDBus emits PropertiesChanged for a unit queued by notify() (§4.5 step 9).
func (m *Manager) handleDBus(id string) {
	u := m.clearQueue(id, unit.QueueDBus)
	if u == nil || m.Bus == nil {
		return
	}
	_ = m.Bus.PropertiesChanged(u.ID, map[string]any{
		"ActiveState": u.ActiveStateValue.String(),
		"SubState":    u.SubState,
	})
}

// Tick drains every queue to quiescence, the single event-loop iteration
// described in §4.5.
func (m *Manager) Tick() {
	m.Scheduler.Drain()
}
