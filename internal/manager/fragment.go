package manager

import (
	"fmt"
	"os"

	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/shinygold/unitengine/internal/engineerr"
	"github.com/shinygold/unitengine/internal/unit"
)

// LoadFragment reads and parses the yaml fragment at path, applies its
// scalar fields and flags onto unitID's unit, and resolves its named
// dependency lists against the names table, creating stub peers for any
// name not yet known (§1 fragment loading, §4.2 dependency resolution).
func (m *Manager) LoadFragment(unitID string, path string) error {
	u, err := m.unitFor(unitID)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("manager: reading fragment %s: %w", path, err)
	}
	frag, err := unit.ParseFragment(data)
	if err != nil {
		return err
	}

	deps := unit.ApplyFragment(u, frag)
	u.FragmentPath = path

	mask := depgraph.Mask{Origin: depgraph.SourceFile, Destination: depgraph.SourceFile}
	for _, dep := range deps {
		peer, ok := m.Lookup(dep.Name)
		if !ok {
			peer, err = m.NewUnit(inferType(dep.Name, u.Type), dep.Name)
			if err != nil {
				return engineerr.Wrap(engineerr.IO, dep.Name, err)
			}
		}
		u.AddDependency(dep.Kind, peer, mask, false)
	}
	return nil
}

// inferType guesses a newly-referenced peer's unit type from its name
// suffix, falling back to same as the referencing unit when unrecognized
// (fragments may reference a unit before its own fragment is loaded).
func inferType(name string, fallback unit.Type) unit.Type {
	if t, ok := unit.TypeFromName(name); ok {
		return t
	}
	return fallback
}
