package unit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/shinygold/unitengine/internal/log"
)

// JobInstaller is the notifier's view of the external job layer (§6):
// completing or failing the job currently installed on a unit in response
// to a state transition.
type JobInstaller interface {
	Complete(job *JobRef, result string) error
	Fail(job *JobRef, kind string) error
}

// Enqueuer links a unit onto one of the named queues, setting its in_Q
// flag and the queue's intrusive linkage together (§4.5, §9).
type Enqueuer interface {
	Enqueue(u *Unit, q Queue)
}

// BusEmitter is the notifier's view of the bus layer (§6).
type BusEmitter interface {
	PropertiesChanged(unitID string)
}

// EmergencyActionFunc invokes a configured success/failure/start-limit
// action for u.
type EmergencyActionFunc func(u *Unit, action EmergencyAction)

// TriggerNotifyFunc informs peerID that triggeringID just changed state,
// the per-type dispatch behind the Triggers/TriggeredBy relation (§4.4 step 5).
type TriggerNotifyFunc func(peerID, triggeringID string)

// Notifier is the state-machine glue described in §4.4: every observed
// low-level transition is reported here, and it drives the side effects
// (timestamps, job completion, D-Bus, start-limiting, trigger fan-out).
type Notifier struct {
	Jobs            JobInstaller
	Enqueuer        Enqueuer
	Bus             BusEmitter
	EmergencyAction EmergencyActionFunc
	TriggerNotify   TriggerNotifyFunc
	Logger          log.Logger
	Now             func() time.Time
}

func (n *Notifier) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func (n *Notifier) logger() log.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return log.GetLogger()
}

// Notify reports that u transitioned from old to newState, carrying flags
// describing why, and applies every side effect named in §4.4.
func (n *Notifier) Notify(u *Unit, old, newState ActiveState, flags NotifyFlags) {
	now := n.now()
	ts := Stamp(now)

	// 1. stamp timestamps for the edges this transition crosses.
	u.StateChangeTimestamp = ts
	if old == StateInactive && newState != StateInactive {
		u.InactiveExitTimestamp = ts
	}
	if newState == StateActive {
		u.ActiveEnterTimestamp = ts
	}
	if old == StateActive && newState != StateActive {
		u.ActiveExitTimestamp = ts
	}
	if newState == StateInactive {
		u.InactiveEnterTimestamp = ts
	}

	// 2. condition/assert skip timestamps, logged at debug rather than as
	// an error per the SkipCondition flag's contract.
	if flags.Has(FlagSkipCondition) {
		u.ConditionTimestamp = ts
		n.logger().Debug("condition check skipped transition", "unit", u.ID)
	}

	// 9. start-limit bookkeeping happens before failure/success actions so
	// a tripped limiter can override the reported state.
	if newState == StateActivating && old != StateActivating {
		if u.StartLimit != nil && !u.StartLimit.Allow(now) {
			n.logger().Warn("start limit exceeded", "unit", u.ID)
			newState = StateFailed
			if n.EmergencyAction != nil && u.StartLimitAction != ActionNone {
				n.EmergencyAction(u, u.StartLimitAction)
			}
		}
	}

	u.ActiveStateValue = newState

	// 3. failure/success actions.
	if newState == StateFailed && old != StateFailed {
		if !flags.Has(FlagWillAutoRestart) && n.EmergencyAction != nil && u.FailureAction != ActionNone {
			n.EmergencyAction(u, u.FailureAction)
		}
	}
	if newState == StateInactive && old == StateDeactivating {
		if n.EmergencyAction != nil && u.SuccessAction != ActionNone {
			n.EmergencyAction(u, u.SuccessAction)
		}
	}

	// 4. job-layer completion, per the transition matrix. FlagReloadFailure
	// downgrades a reloading->active completion to a job failure, since the
	// unit itself came back up but the reload operation it was carrying
	// failed (§4.4).
	if n.Jobs != nil && u.Job != nil {
		switch {
		case old == StateActivating && newState == StateActive:
			_ = n.Jobs.Complete(u.Job, "done")
			u.Job = nil
		case old == StateReloading && newState == StateActive:
			if flags.Has(FlagReloadFailure) {
				_ = n.Jobs.Fail(u.Job, "failed")
			} else {
				_ = n.Jobs.Complete(u.Job, "done")
			}
			u.Job = nil
		case newState == StateFailed:
			_ = n.Jobs.Fail(u.Job, "failed")
			u.Job = nil
		case old == StateDeactivating && newState == StateInactive:
			_ = n.Jobs.Complete(u.Job, "done")
			u.Job = nil
		}
	}

	// 5. trigger fan-out to every unit that triggers u.
	if n.TriggerNotify != nil {
		for _, peer := range u.Dependencies(depgraph.TriggeredBy) {
			n.TriggerNotify(peer, u.ID)
		}
	}

	// 6. D-Bus property-changed queue.
	if n.Enqueuer != nil {
		n.Enqueuer.Enqueue(u, QueueDBus)
	}

	// 7. stop-when-unneeded queue when leaving active.
	if n.Enqueuer != nil && old == StateActive && newState != StateActive {
		n.Enqueuer.Enqueue(u, QueueStopWhenUnneeded)
	}

	// 8. mint a fresh invocation id on entering active.
	if newState == StateActive && old != StateActive {
		u.InvocationID = uuid.New()
	}
}
