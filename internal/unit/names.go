package unit

import (
	"sync"

	"github.com/shinygold/unitengine/internal/engineerr"
	"github.com/shinygold/unitengine/internal/sorting"
)

// Table is the identity and names index (§4.1): every name a unit owns
// resolves to exactly one unit, and the unit's id is one of its names.
type Table struct {
	mu      sync.RWMutex
	byName  map[string]*Unit
}

// NewTable creates an empty names table.
func NewTable() *Table {
	return &Table{byName: make(map[string]*Unit)}
}

// AddName attaches name to u, failing with NameConflict if another unit
// already owns it or InvalidName if name fails systemd naming rules.
func (t *Table) AddName(u *Unit, name string) error {
	if err := sorting.ValidateUnitName(name); err != nil {
		return engineerr.Wrap(engineerr.InvalidName, name, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if owner, ok := t.byName[name]; ok && owner != u {
		return engineerr.New(engineerr.NameConflict, name)
	}

	if u.Names == nil {
		u.Names = make(map[string]struct{})
	}
	u.Names[name] = struct{}{}
	t.byName[name] = u
	if u.ID == "" {
		u.ID = name
	}
	return nil
}

// ChooseID makes name u's canonical id. name must already be in u.Names.
func (t *Table) ChooseID(u *Unit, name string) error {
	t.mu.RLock()
	_, owns := u.Names[name]
	t.mu.RUnlock()
	if !owns {
		return engineerr.New(engineerr.InvalidName, name)
	}
	u.ID = name
	return nil
}

// Lookup resolves name to its unit, following merge chains to the
// terminal survivor.
func (t *Table) Lookup(name string) (*Unit, bool) {
	t.mu.RLock()
	u, ok := t.byName[name]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return FollowMerge(u), true
}

// Remove detaches every name u owns from the table, used on destruction.
func (t *Table) Remove(u *Unit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name := range u.Names {
		if t.byName[name] == u {
			delete(t.byName, name)
		}
	}
}

// Rebind moves every name u owns onto the terminal survivor of a merge,
// so lookups by any of u's former names resolve to the survivor (§4.1).
func (t *Table) Rebind(u, survivor *Unit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name := range u.Names {
		t.byName[name] = survivor
		if survivor.Names == nil {
			survivor.Names = make(map[string]struct{})
		}
		survivor.Names[name] = struct{}{}
	}
}

// FollowMerge chases merged_into to the terminal survivor. Merged units are
// never merge targets, so this is cycle-free by construction (§4.1).
func FollowMerge(u *Unit) *Unit {
	for u.MergedInto != nil {
		u = u.MergedInto
	}
	return u
}
