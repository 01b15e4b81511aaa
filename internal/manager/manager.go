// Package manager implements the Manager façade (§4.8): the operations
// external collaborators call (start/stop/reload/kill/clean/isolate), and
// the event-loop tick that drains the queue scheduler, runs the garbage
// collector, and dispatches notifier side effects.
package manager

import (
	"sync"
	"time"

	"github.com/shinygold/unitengine/internal/bus"
	"github.com/shinygold/unitengine/internal/config"
	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/shinygold/unitengine/internal/engineerr"
	"github.com/shinygold/unitengine/internal/gc"
	"github.com/shinygold/unitengine/internal/jobs"
	"github.com/shinygold/unitengine/internal/log"
	"github.com/shinygold/unitengine/internal/queue"
	"github.com/shinygold/unitengine/internal/ratelimit"
	"github.com/shinygold/unitengine/internal/unit"
	"github.com/shinygold/unitengine/internal/vtable"
)

// Manager owns every component named in §2 and exposes the public
// operations external collaborators call.
type Manager struct {
	mu sync.Mutex

	cfg       *config.Settings
	logger    log.Logger
	generation uint64

	Table     *unit.Table
	Graph     *depgraph.Graph
	Scheduler *queue.Scheduler
	Collector *gc.Collector
	Jobs      jobs.Engine
	Bus       bus.Connection
	Registry  *vtable.Registry
	Notifier  *unit.Notifier

	units map[string]*unit.Unit

	// DefaultTarget is the unit the target-deps queue adds Wants+Before
	// edges to, unless a unit opts out via DefaultDependencies=false.
	DefaultTarget string
}

// New wires a Manager from its components. registry and jobsEngine and
// busConn may be nil in tests that do not exercise per-type dispatch, the
// job layer, or bus emission respectively.
func New(cfg *config.Settings, registry *vtable.Registry, jobsEngine jobs.Engine, busConn bus.Connection, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.GetLogger()
	}
	m := &Manager{
		cfg:       cfg,
		logger:    logger,
		generation: 1,
		Table:     unit.NewTable(),
		Graph:     depgraph.New(),
		Scheduler: queue.New(),
		Jobs:      jobsEngine,
		Bus:       busConn,
		Registry:  registry,
		units:     make(map[string]*unit.Unit),
	}
	m.Collector = gc.New(m.Graph, gcMarkerStride(cfg), nil)
	m.Notifier = &unit.Notifier{
		Jobs:            jobsEngine,
		Enqueuer:        managerEnqueuer{m},
		Bus:             busAdapter{busConn},
		EmergencyAction: m.invokeEmergencyAction,
		TriggerNotify:   m.triggerNotify,
		Logger:          logger,
	}
	m.installHandlers()
	return m
}

// managerEnqueuer adapts Manager onto unit.Enqueuer, keeping the unit's
// in_Q flag and the scheduler's intrusive linkage mutated together (§9).
type managerEnqueuer struct{ m *Manager }

func (e managerEnqueuer) Enqueue(u *unit.Unit, q unit.Queue) {
	if e.m.Scheduler.Push(toQueueName(q), u.ID) {
		u.Queues[q] = true
	}
}

// busAdapter narrows bus.Connection to the single-argument shape
// unit.Notifier's BusEmitter expects.
type busAdapter struct{ conn bus.Connection }

func (a busAdapter) PropertiesChanged(unitID string) {
	if a.conn == nil {
		return
	}
	_ = a.conn.PropertiesChanged(unitID, nil)
}

func toQueueName(q unit.Queue) queue.Name {
	switch q {
	case unit.QueueLoad:
		return queue.Load
	case unit.QueueTargetDeps:
		return queue.TargetDeps
	case unit.QueueGC:
		return queue.GC
	case unit.QueueCleanup:
		return queue.Cleanup
	case unit.QueueCgroupRealize:
		return queue.CgroupRealize
	case unit.QueueCgroupEmpty:
		return queue.CgroupEmpty
	case unit.QueueCgroupOOM:
		return queue.CgroupOOM
	case unit.QueueStopWhenUnneeded:
		return queue.StopWhenUnneeded
	default:
		return queue.DBus
	}
}

func (m *Manager) invokeEmergencyAction(u *unit.Unit, action unit.EmergencyAction) {
	m.logger.Warn("emergency action triggered", "unit", u.ID, "action", action.String())
}

func (m *Manager) triggerNotify(peerID, triggeringID string) {
	m.mu.Lock()
	peer, ok := m.units[peerID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if entry, err := m.Registry.Lookup(int(peer.Type)); err == nil && entry.Callbacks.TriggerNotify != nil {
		_ = entry.Callbacks.TriggerNotify(vtable.Context{UnitID: peer.ID}, triggeringID)
	}
}

// NewUnit creates a stub unit of typ named name, registers it in the names
// table and the manager's index, links it on the load queue, and emits
// UnitNew (§3 Lifecycles).
func (m *Manager) NewUnit(typ unit.Type, name string) (*unit.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := unit.New(typ, m.Graph, m.generation)
	if err := m.Table.AddName(u, name); err != nil {
		return nil, err
	}
	u.DefaultDependencies = true
	u.CollectMode = m.defaultCollectMode()
	u.StartLimit = ratelimitDefault(m.cfg)
	u.AutoStopRateLimit = autoStopDefault(m.cfg)

	m.units[u.ID] = u
	if m.Scheduler.Push(queue.Load, u.ID) {
		u.Queues[unit.QueueLoad] = true
	}
	if m.Bus != nil {
		_ = m.Bus.UnitNew(u.ID)
	}
	return u, nil
}

// Lookup resolves name to its unit, following merge chains.
func (m *Manager) Lookup(name string) (*unit.Unit, bool) {
	return m.Table.Lookup(name)
}

// AddDependency adds sourceID-kind->targetID with mask, per §4.2.
func (m *Manager) AddDependency(sourceID string, kind depgraph.Kind, targetID string, mask depgraph.Mask, addReference bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	source, ok := m.units[sourceID]
	if !ok {
		return engineerr.New(engineerr.NotFound, sourceID)
	}
	target, ok := m.units[targetID]
	if !ok {
		return engineerr.New(engineerr.NotFound, targetID)
	}
	source.AddDependency(kind, target, mask, addReference)
	return nil
}

// Start validates and installs a start job for unitID (§4.8).
func (m *Manager) Start(unitID string) (*unit.JobRef, error) {
	u, err := m.unitFor(unitID)
	if err != nil {
		return nil, err
	}
	if u.RefuseManualStart {
		return nil, engineerr.New(engineerr.ManualStartRefused, unitID)
	}
	if u.LoadState == unit.LoadMasked {
		return nil, engineerr.New(engineerr.Masked, unitID)
	}
	return m.installJobAndTransition(u, "start", unit.StateActivating)
}

// Stop validates and installs a stop job for unitID.
func (m *Manager) Stop(unitID string) (*unit.JobRef, error) {
	u, err := m.unitFor(unitID)
	if err != nil {
		return nil, err
	}
	if u.RefuseManualStop {
		// engineerr has no manual-stop kind of its own; reuse ManualStartRefused
		// since both report the same "manual job refused by unit config" class.
		return nil, engineerr.New(engineerr.ManualStartRefused, unitID)
	}
	return m.installJobAndTransition(u, "stop", unit.StateDeactivating)
}

// Reload validates and installs a reload job for unitID.
func (m *Manager) Reload(unitID string) (*unit.JobRef, error) {
	u, err := m.unitFor(unitID)
	if err != nil {
		return nil, err
	}
	if u.ActiveStateValue != unit.StateActive {
		return nil, engineerr.New(engineerr.JobNotApplicable, unitID)
	}
	return m.installJobAndTransition(u, "reload", unit.StateReloading)
}

func (m *Manager) installJobAndTransition(u *unit.Unit, jobType string, target unit.ActiveState) (*unit.JobRef, error) {
	if u.Job != nil {
		return nil, engineerr.New(engineerr.JobConflicts, u.ID)
	}
	var job *unit.JobRef
	if m.Jobs != nil {
		var err error
		job, err = m.Jobs.Install(u.ID, jobType, "replace")
		if err != nil {
			return nil, engineerr.Wrap(engineerr.JobNotApplicable, u.ID, err)
		}
	}
	u.Job = job
	old := u.ActiveStateValue
	m.Notifier.Notify(u, old, target, 0)
	return job, nil
}

// Kill delivers signal to unitID's per-type kill callback.
func (m *Manager) Kill(unitID string, signal int) error {
	u, err := m.unitFor(unitID)
	if err != nil {
		return err
	}
	if m.Registry == nil {
		return nil
	}
	entry, lookupErr := m.Registry.Lookup(int(u.Type))
	if lookupErr != nil || entry.Callbacks.Kill == nil {
		return engineerr.New(engineerr.JobNotApplicable, unitID)
	}
	return entry.Callbacks.Kill(vtable.Context{UnitID: u.ID}, signal)
}

// CanClean reports whether unitID's per-type callback allows Clean.
func (m *Manager) CanClean(unitID string) bool {
	u, err := m.unitFor(unitID)
	if err != nil || m.Registry == nil {
		return false
	}
	entry, lookupErr := m.Registry.Lookup(int(u.Type))
	if lookupErr != nil || entry.Callbacks.CanClean == nil {
		return false
	}
	return entry.Callbacks.CanClean(vtable.Context{UnitID: u.ID})
}

// Clean invokes unitID's per-type clean callback for the given mask.
func (m *Manager) Clean(unitID string, mask int) error {
	if !m.CanClean(unitID) {
		return engineerr.New(engineerr.JobNotApplicable, unitID)
	}
	u, _ := m.unitFor(unitID)
	entry, _ := m.Registry.Lookup(int(u.Type))
	return entry.Callbacks.Clean(vtable.Context{UnitID: u.ID}, mask)
}

// Isolate validates unitID.AllowIsolate and stops every active unit not
// required (directly or transitively) by it (§4.8).
func (m *Manager) Isolate(unitID string) error {
	u, err := m.unitFor(unitID)
	if err != nil {
		return err
	}
	if !u.AllowIsolate {
		return engineerr.New(engineerr.IsolateRefused, unitID)
	}

	keep, traceErr := m.Graph.ReachableFrom([]string{unitID})
	if traceErr != nil {
		return engineerr.Wrap(engineerr.IO, unitID, traceErr)
	}
	keep[unitID] = true

	m.mu.Lock()
	var toStop []string
	for id, other := range m.units {
		if !keep[id] && other.ActiveStateValue == unit.StateActive && !other.IgnoreOnIsolate {
			toStop = append(toStop, id)
		}
	}
	m.mu.Unlock()

	for _, id := range toStop {
		if _, err := m.Stop(id); err != nil {
			m.logger.Warn("isolate: failed to stop unit", "unit", id, "error", err)
		}
	}
	_, err = m.Start(unitID)
	return err
}

// TryRestart stops then starts unitID only if it is currently active.
func (m *Manager) TryRestart(unitID string) error {
	u, err := m.unitFor(unitID)
	if err != nil {
		return err
	}
	if u.ActiveStateValue != unit.StateActive {
		return nil
	}
	if _, err := m.Stop(unitID); err != nil {
		return err
	}
	_, err = m.Start(unitID)
	return err
}

func (m *Manager) unitFor(unitID string) (*unit.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[unitID]
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, unitID)
	}
	return u, nil
}

func (m *Manager) defaultCollectMode() unit.CollectMode {
	if m.cfg == nil {
		return unit.CollectInactive
	}
	mode, err := unit.ParseCollectMode(m.cfg.DefaultCollectMode)
	if err != nil {
		return unit.CollectInactive
	}
	return mode
}

func ratelimitDefault(cfg *config.Settings) *ratelimit.Limiter {
	if cfg == nil {
		return ratelimit.New(config.DefaultStartLimitInterval, config.DefaultStartLimitBurst, time.Now())
	}
	return ratelimit.New(cfg.StartLimitInterval, cfg.StartLimitBurst, time.Now())
}

func autoStopDefault(cfg *config.Settings) *ratelimit.Limiter {
	if cfg == nil {
		return ratelimit.New(config.DefaultAutoStopInterval, config.DefaultAutoStopBurst, time.Now())
	}
	return ratelimit.New(cfg.AutoStopInterval, cfg.AutoStopBurst, time.Now())
}

func gcMarkerStride(cfg *config.Settings) uint64 {
	if cfg == nil {
		return config.DefaultGCMarkerStride
	}
	return cfg.GCMarkerStride
}
