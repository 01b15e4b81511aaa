package unit

import (
	"testing"
	"time"

	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/shinygold/unitengine/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobs struct {
	completed []*JobRef
	failed    []*JobRef
}

func (f *fakeJobs) Complete(job *JobRef, result string) error {
	f.completed = append(f.completed, job)
	return nil
}

func (f *fakeJobs) Fail(job *JobRef, kind string) error {
	f.failed = append(f.failed, job)
	return nil
}

type fakeEnqueuer struct {
	enqueued []Queue
}

func (f *fakeEnqueuer) Enqueue(u *Unit, q Queue) {
	f.enqueued = append(f.enqueued, q)
}

func newTestUnit(graph *depgraph.Graph) *Unit {
	u := New(TypeService, graph, 1)
	u.ID = "test.service"
	return u
}

func TestNotifyCompletesStartJobOnActivatingToActive(t *testing.T) {
	jobs := &fakeJobs{}
	enq := &fakeEnqueuer{}
	n := &Notifier{Jobs: jobs, Enqueuer: enq}

	u := newTestUnit(depgraph.New())
	u.Job = &JobRef{ID: 1, Type: "start"}

	n.Notify(u, StateActivating, StateActive, 0)

	assert.Len(t, jobs.completed, 1)
	assert.Nil(t, u.Job)
	assert.NotEqual(t, [16]byte{}, u.InvocationID)
	assert.Contains(t, enq.enqueued, QueueDBus)
}

func TestNotifyFailsJobOnEnteringFailed(t *testing.T) {
	jobs := &fakeJobs{}
	n := &Notifier{Jobs: jobs, Enqueuer: &fakeEnqueuer{}}

	u := newTestUnit(depgraph.New())
	u.Job = &JobRef{ID: 1, Type: "start"}

	n.Notify(u, StateActivating, StateFailed, 0)

	assert.Len(t, jobs.failed, 1)
	assert.Nil(t, u.Job)
}

func TestNotifyCompletesReloadJobOnReloadingToActive(t *testing.T) {
	jobs := &fakeJobs{}
	n := &Notifier{Jobs: jobs, Enqueuer: &fakeEnqueuer{}}

	u := newTestUnit(depgraph.New())
	u.Job = &JobRef{ID: 1, Type: "reload"}

	n.Notify(u, StateReloading, StateActive, 0)

	assert.Len(t, jobs.completed, 1)
	assert.Empty(t, jobs.failed)
	assert.Nil(t, u.Job)
}

func TestNotifyDowngradesReloadJobOnReloadFailureFlag(t *testing.T) {
	jobs := &fakeJobs{}
	n := &Notifier{Jobs: jobs, Enqueuer: &fakeEnqueuer{}}

	u := newTestUnit(depgraph.New())
	u.Job = &JobRef{ID: 1, Type: "reload"}

	n.Notify(u, StateReloading, StateActive, FlagReloadFailure)

	assert.Empty(t, jobs.completed)
	assert.Len(t, jobs.failed, 1)
	assert.Nil(t, u.Job)
}

func TestNotifyFailsJobOnReloadingToFailed(t *testing.T) {
	jobs := &fakeJobs{}
	n := &Notifier{Jobs: jobs, Enqueuer: &fakeEnqueuer{}}

	u := newTestUnit(depgraph.New())
	u.Job = &JobRef{ID: 1, Type: "reload"}

	n.Notify(u, StateReloading, StateFailed, 0)

	assert.Len(t, jobs.failed, 1)
	assert.Nil(t, u.Job)
}

func TestNotifyInvokesFailureAction(t *testing.T) {
	var invoked EmergencyAction
	n := &Notifier{
		Enqueuer:        &fakeEnqueuer{},
		EmergencyAction: func(u *Unit, action EmergencyAction) { invoked = action },
	}

	u := newTestUnit(depgraph.New())
	u.FailureAction = ActionReboot

	n.Notify(u, StateActive, StateFailed, 0)

	assert.Equal(t, ActionReboot, invoked)
}

func TestNotifyWillAutoRestartSuppressesFailureAction(t *testing.T) {
	var invoked bool
	n := &Notifier{
		Enqueuer:        &fakeEnqueuer{},
		EmergencyAction: func(u *Unit, action EmergencyAction) { invoked = true },
	}

	u := newTestUnit(depgraph.New())
	u.FailureAction = ActionReboot

	n.Notify(u, StateActive, StateFailed, FlagWillAutoRestart)

	assert.False(t, invoked)
}

func TestNotifyEnqueuesStopWhenUnneededOnLeavingActive(t *testing.T) {
	enq := &fakeEnqueuer{}
	n := &Notifier{Enqueuer: enq}

	u := newTestUnit(depgraph.New())
	n.Notify(u, StateActive, StateDeactivating, 0)

	assert.Contains(t, enq.enqueued, QueueStopWhenUnneeded)
}

func TestNotifyTripsStartLimitAndFiresAction(t *testing.T) {
	start := time.Unix(0, 0)
	var invoked EmergencyAction
	n := &Notifier{
		Enqueuer:        &fakeEnqueuer{},
		EmergencyAction: func(u *Unit, action EmergencyAction) { invoked = action },
		Now:             func() time.Time { return start },
	}

	u := newTestUnit(depgraph.New())
	u.StartLimit = ratelimit.New(10*time.Second, 1, start)
	u.StartLimitAction = ActionPoweroff

	// first activation consumes the only token.
	n.Notify(u, StateInactive, StateActivating, 0)
	require.Equal(t, StateActivating, u.ActiveStateValue)

	// second, immediate activation trips the limiter.
	n.Notify(u, StateInactive, StateActivating, 0)
	assert.Equal(t, StateFailed, u.ActiveStateValue)
	assert.Equal(t, ActionPoweroff, invoked)
}

func TestNotifyFansOutToTriggerers(t *testing.T) {
	graph := depgraph.New()
	var notified []string
	n := &Notifier{
		Enqueuer:      &fakeEnqueuer{},
		TriggerNotify: func(peer, triggering string) { notified = append(notified, peer) },
	}

	u := newTestUnit(graph)
	graph.AddDependency("trigger.path", depgraph.Triggers, u.ID, depgraph.Mask{Origin: depgraph.SourceFile})

	n.Notify(u, StateInactive, StateActive, 0)

	assert.Contains(t, notified, "trigger.path")
}
