package manager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/shinygold/unitengine/internal/jobs"
	"github.com/shinygold/unitengine/internal/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return New(nil, nil, jobs.NewInMemoryEngine(), nil, nil)
}

func TestNewUnitRegistersNameAndLinksLoadQueue(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)
	assert.Equal(t, "a.service", u.ID)
	assert.Equal(t, unit.LoadStub, u.LoadState)

	found, ok := m.Lookup("a.service")
	require.True(t, ok)
	assert.Same(t, u, found)
}

func TestTickDrainsLoadQueueAndTargetDeps(t *testing.T) {
	m := newTestManager()
	m.DefaultTarget = "default.target"

	target, err := m.NewUnit(unit.TypeTarget, "default.target")
	require.NoError(t, err)
	svc, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)

	m.Tick()

	assert.Equal(t, unit.LoadLoaded, svc.LoadState)
	assert.Equal(t, unit.LoadLoaded, target.LoadState)
	assert.Contains(t, svc.Dependencies(depgraph.Wants), target.ID)
	assert.Contains(t, svc.Dependencies(depgraph.Before), target.ID)
}

func TestTargetDepsSkippedWhenDefaultDependenciesDisabled(t *testing.T) {
	m := newTestManager()
	m.DefaultTarget = "default.target"
	_, err := m.NewUnit(unit.TypeTarget, "default.target")
	require.NoError(t, err)
	svc, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)
	svc.DefaultDependencies = false

	m.Tick()

	assert.Empty(t, svc.Dependencies(depgraph.Wants))
}

func TestAddDependencyRejectsUnknownUnit(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)

	err = m.AddDependency(u.ID, depgraph.Requires, "missing.service", depgraph.Mask{Origin: depgraph.SourceFile, Destination: depgraph.SourceFile}, false)
	assert.Error(t, err)
}

func TestStartInstallsJobAndTransitionsToActivating(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)
	m.Tick()

	job, err := m.Start(u.ID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, unit.StateActivating, u.ActiveStateValue)
	assert.Same(t, job, u.Job)
}

func TestStartRefusedWhenRefuseManualStart(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)
	u.RefuseManualStart = true

	_, err = m.Start(u.ID)
	require.Error(t, err)
}

func TestStartRefusedWhenMasked(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)
	u.LoadState = unit.LoadMasked

	_, err = m.Start(u.ID)
	require.Error(t, err)
}

func TestStartRejectsConflictingJob(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)

	_, err = m.Start(u.ID)
	require.NoError(t, err)

	_, err = m.Start(u.ID)
	assert.Error(t, err)
}

func TestReloadRejectedWhenNotActive(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)

	_, err = m.Reload(u.ID)
	assert.Error(t, err)
}

func TestIsolateRefusedWithoutAllowIsolate(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeTarget, "rescue.target")
	require.NoError(t, err)

	err = m.Isolate(u.ID)
	assert.Error(t, err)
}

func TestIsolateStopsUnitsNotRequiredByTarget(t *testing.T) {
	m := newTestManager()
	target, err := m.NewUnit(unit.TypeTarget, "rescue.target")
	require.NoError(t, err)
	target.AllowIsolate = true

	kept, err := m.NewUnit(unit.TypeService, "kept.service")
	require.NoError(t, err)
	kept.AddDependency(depgraph.RequiredBy, target, depgraph.Mask{Origin: depgraph.SourceFile, Destination: depgraph.SourceFile}, false)
	kept.ActiveStateValue = unit.StateActive

	evicted, err := m.NewUnit(unit.TypeService, "evicted.service")
	require.NoError(t, err)
	evicted.ActiveStateValue = unit.StateActive

	err = m.Isolate(target.ID)
	require.NoError(t, err)

	assert.Equal(t, unit.StateDeactivating, evicted.ActiveStateValue)
}

func TestTryRestartNoOpWhenInactive(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)

	require.NoError(t, m.TryRestart(u.ID))
	assert.Equal(t, unit.StateInactive, u.ActiveStateValue)
}

func TestCanCleanFalseWithoutRegistry(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)

	assert.False(t, m.CanClean(u.ID))
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "a.service")
	require.NoError(t, err)
	u.ConditionResult = true
	u.CgroupPath = "/system.slice/a.service"

	path := filepath.Join(t.TempDir(), "state")
	require.NoError(t, m.Serialize(path))

	u.ConditionResult = false
	u.CgroupPath = ""

	require.NoError(t, m.Deserialize(path))
	assert.True(t, u.ConditionResult)
	assert.Equal(t, "/system.slice/a.service", u.CgroupPath)
}

func TestDeserializeMissingFileIsNoOp(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.Deserialize(filepath.Join(t.TempDir(), "missing")))
}

func TestLoadFragmentAppliesFieldsAndResolvesDependencies(t *testing.T) {
	m := newTestManager()
	_, err := m.NewUnit(unit.TypeService, "web.service")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "web.service.yaml")
	require.NoError(t, os.WriteFile(path, []byte("description: the web frontend\nrequires:\n  - network.target\nallow_isolate: true\n"), 0o644))

	require.NoError(t, m.LoadFragment("web.service", path))

	u, ok := m.Lookup("web.service")
	require.True(t, ok)
	assert.Equal(t, "the web frontend", u.Description)
	assert.True(t, u.AllowIsolate)
	assert.Contains(t, u.Dependencies(depgraph.Requires), "network.target")

	_, ok = m.Lookup("network.target")
	assert.True(t, ok)
}

func TestLoadFragmentRejectsUnknownUnit(t *testing.T) {
	m := newTestManager()
	err := m.LoadFragment("missing.service", "/nonexistent")
	assert.Error(t, err)
}

func TestCleanupHandlerRemovesUnreachableUnit(t *testing.T) {
	m := newTestManager()
	u, err := m.NewUnit(unit.TypeService, "orphan.service")
	require.NoError(t, err)
	m.Tick()

	m.handleGC(u.ID)
	m.Tick()

	_, ok := m.Lookup("orphan.service")
	assert.False(t, ok)
}
