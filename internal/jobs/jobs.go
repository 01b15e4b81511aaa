// Package jobs models the Unit Engine's boundary with the external job
// engine (§6): the Unit Engine only installs and observes jobs, it never
// schedules dependency-ordered work itself. Engine is the interface real
// job-engine integrations implement; InMemoryEngine is a test double.
package jobs

import (
	"fmt"
	"sync"

	"github.com/shinygold/unitengine/internal/engineerr"
	"github.com/shinygold/unitengine/internal/unit"
)

// Engine is the job layer's surface as seen from the Unit Engine (§6):
// install a job for a unit, and complete/fail it as notify() observes
// state transitions. Engine implementations also satisfy unit.JobInstaller.
type Engine interface {
	Install(unitID, jobType, mode string) (*unit.JobRef, error)
	Complete(job *unit.JobRef, result string) error
	Fail(job *unit.JobRef, kind string) error
}

// InMemoryEngine is a minimal in-process job engine used in tests and by
// any caller that does not need a real dependency-ordered scheduler.
type InMemoryEngine struct {
	mu        sync.Mutex
	nextID    uint64
	installed map[uint64]*unit.JobRef
	Completed []*unit.JobRef
	Failed    []*unit.JobRef
}

// NewInMemoryEngine creates an empty InMemoryEngine.
func NewInMemoryEngine() *InMemoryEngine {
	return &InMemoryEngine{installed: make(map[uint64]*unit.JobRef)}
}

// Install records a new job for unitID and returns its handle.
func (e *InMemoryEngine) Install(unitID, jobType, mode string) (*unit.JobRef, error) {
	if unitID == "" {
		return nil, engineerr.New(engineerr.JobNotApplicable, unitID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	job := &unit.JobRef{ID: e.nextID, Type: jobType, Mode: mode}
	e.installed[job.ID] = job
	return job, nil
}

// Complete marks job as completed with result.
func (e *InMemoryEngine) Complete(job *unit.JobRef, result string) error {
	if job == nil {
		return fmt.Errorf("jobs: complete called with nil job")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.installed, job.ID)
	e.Completed = append(e.Completed, job)
	return nil
}

// Fail marks job as failed with kind.
func (e *InMemoryEngine) Fail(job *unit.JobRef, kind string) error {
	if job == nil {
		return fmt.Errorf("jobs: fail called with nil job")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.installed, job.ID)
	e.Failed = append(e.Failed, job)
	return nil
}

// Pending returns the number of jobs still installed and not yet
// completed or failed.
func (e *InMemoryEngine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.installed)
}
