package unit

import (
	"fmt"

	"github.com/shinygold/unitengine/internal/depgraph"
	"gopkg.in/yaml.v3"
)

// Fragment is the parsed declarative snapshot of a unit's on-disk
// configuration (§1: fragment parsing is an external collaborator, the
// engine only consumes its output). It mirrors the dependency kinds
// §4.2 models plus the per-unit behavior flags §3 carries, generalized
// from the teacher's QuadletUnit/SystemdConfig yaml shape.
type Fragment struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type"`
	Description   string   `yaml:"description"`
	Documentation []string `yaml:"documentation"`

	Requires           []string `yaml:"requires"`
	Requisite          []string `yaml:"requisite"`
	Wants              []string `yaml:"wants"`
	BindsTo            []string `yaml:"binds_to"`
	PartOf             []string `yaml:"part_of"`
	Upholds            []string `yaml:"upholds"`
	Conflicts          []string `yaml:"conflicts"`
	Before             []string `yaml:"before"`
	After              []string `yaml:"after"`
	OnFailure          []string `yaml:"on_failure"`
	Triggers           []string `yaml:"triggers"`
	PropagatesReloadTo []string `yaml:"propagates_reload_to"`
	JoinsNamespaceOf   []string `yaml:"joins_namespace_of"`

	Conditions []string `yaml:"conditions"`
	Asserts    []string `yaml:"asserts"`

	DefaultDependencies bool   `yaml:"default_dependencies"`
	StopWhenUnneeded    bool   `yaml:"stop_when_unneeded"`
	RefuseManualStart   bool   `yaml:"refuse_manual_start"`
	RefuseManualStop    bool   `yaml:"refuse_manual_stop"`
	AllowIsolate        bool   `yaml:"allow_isolate"`
	IgnoreOnIsolate     bool   `yaml:"ignore_on_isolate"`
	OnceOnly            bool   `yaml:"once_only"`
	CollectMode         string `yaml:"collect_mode"`

	SuccessAction    string `yaml:"success_action"`
	FailureAction    string `yaml:"failure_action"`
	StartLimitAction string `yaml:"start_limit_action"`
}

// ParseFragment decodes a unit fragment from its yaml source text.
func ParseFragment(data []byte) (*Fragment, error) {
	var frag Fragment
	if err := yaml.Unmarshal(data, &frag); err != nil {
		return nil, fmt.Errorf("unit: parsing fragment: %w", err)
	}
	return &frag, nil
}

// ApplyFragment copies a fragment's scalar fields and flags onto u. Named
// dependency lists (Requires, Wants, ...) are returned as (kind, name)
// pairs rather than applied here, since resolving a name to a *Unit
// requires the names table the caller (normally internal/manager) owns.
func ApplyFragment(u *Unit, frag *Fragment) []FragmentDependency {
	u.Description = frag.Description
	u.Documentation = frag.Documentation
	u.Conditions = frag.Conditions
	u.Asserts = frag.Asserts
	u.DefaultDependencies = frag.DefaultDependencies
	u.StopWhenUnneeded = frag.StopWhenUnneeded
	u.RefuseManualStart = frag.RefuseManualStart
	u.RefuseManualStop = frag.RefuseManualStop
	u.AllowIsolate = frag.AllowIsolate
	u.IgnoreOnIsolate = frag.IgnoreOnIsolate

	if mode, err := ParseCollectMode(frag.CollectMode); err == nil {
		u.CollectMode = mode
	}
	u.SuccessAction = parseEmergencyAction(frag.SuccessAction)
	u.FailureAction = parseEmergencyAction(frag.FailureAction)
	u.StartLimitAction = parseEmergencyAction(frag.StartLimitAction)

	return fragmentDependencies(frag)
}

// FragmentDependency is one unresolved (kind, peer name) pair read from a
// fragment, pending resolution against the names table.
type FragmentDependency struct {
	Kind depgraph.Kind
	Name string
}

func fragmentDependencies(frag *Fragment) []FragmentDependency {
	var deps []FragmentDependency
	add := func(kind depgraph.Kind, names []string) {
		for _, n := range names {
			deps = append(deps, FragmentDependency{Kind: kind, Name: n})
		}
	}
	add(depgraph.Requires, frag.Requires)
	add(depgraph.Requisite, frag.Requisite)
	add(depgraph.Wants, frag.Wants)
	add(depgraph.BindsTo, frag.BindsTo)
	add(depgraph.PartOf, frag.PartOf)
	add(depgraph.Upholds, frag.Upholds)
	add(depgraph.Conflicts, frag.Conflicts)
	add(depgraph.Before, frag.Before)
	add(depgraph.After, frag.After)
	add(depgraph.OnFailure, frag.OnFailure)
	add(depgraph.Triggers, frag.Triggers)
	add(depgraph.PropagatesReloadTo, frag.PropagatesReloadTo)
	add(depgraph.JoinsNamespaceOf, frag.JoinsNamespaceOf)
	return deps
}

func parseEmergencyAction(s string) EmergencyAction {
	switch s {
	case "reboot":
		return ActionReboot
	case "reboot-force":
		return ActionRebootForce
	case "reboot-immediate":
		return ActionRebootImmediate
	case "poweroff":
		return ActionPoweroff
	case "exit":
		return ActionExit
	default:
		return ActionNone
	}
}
