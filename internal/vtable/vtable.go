// Package vtable is the Unit Engine's only dynamic-dispatch surface (§4.3):
// a static, per-UnitType table of capability flags and callbacks. The core
// never branches on unit type directly; every type-specific behavior is
// reached by looking up a unit's Callbacks in the Registry.
package vtable

import (
	"context"
	"fmt"
)

// Flags are per-type capability bits that gate core behavior without a
// callback round-trip.
type Flags struct {
	// CanTransient allows the unit type to be created without a fragment,
	// entirely from bus properties.
	CanTransient bool
	// CanDelegate allows cgroup delegation to a unit's own management.
	CanDelegate bool
	// OnceOnly marks a type that never restarts itself after success. The
	// notifier does not read this flag: FlagWillAutoRestart suppresses
	// failure actions for every type alike.
	OnceOnly bool
	// GCJobs makes a completed job on this unit eligible for immediate GC
	// consideration rather than waiting for the next sweep.
	GCJobs bool
}

// Callbacks is the full per-type behavior surface named in §4.3. Every
// field is optional; a nil callback means the type does not participate in
// that phase, and each caller that dispatches through the Registry checks
// for nil and applies its own default.
type Callbacks struct {
	Init    func(ctx Context) error
	Done    func(ctx Context)
	Load    func(ctx Context) error
	Coldplug func(ctx Context) error
	Catchup func(ctx Context) error
	Dump    func(ctx Context) string

	Start func(ctx Context) error
	Stop  func(ctx Context) error
	Reload func(ctx Context) error
	Kill   func(ctx Context, signal int) error
	Clean  func(ctx Context, mask int) error

	CanClean  func(ctx Context) bool
	CanReload func(ctx Context) bool

	Serialize        func(ctx Context) (map[string]string, error)
	DeserializeItem  func(ctx Context, key, value string) error
	DistributeFDs    func(ctx Context, fds []int) error

	ActiveState      func(ctx Context) string
	SubStateToString func(ctx Context) string
	WillRestart      func(ctx Context) bool
	MayGC            func(ctx Context) bool
	ReleaseResources func(ctx Context)

	SigchldEvent  func(ctx Context, pid int, code, status int) error
	ResetFailed   func(ctx Context)

	NotifyCgroupEmpty func(ctx Context) error
	NotifyCgroupOOM   func(ctx Context) error
	NotifyMessage     func(ctx Context, pid int, message map[string]string) error

	BusNameOwnerChange func(ctx Context, name, old, new string) error
	BusSetProperty     func(ctx Context, name string, value any) error
	BusCommitProperties func(ctx Context) error

	Following    func(ctx Context) string
	FollowingSet func(ctx Context) ([]string, error)

	TriggerNotify   func(ctx Context, trigger string) error
	TimeChange      func(ctx Context) error
	TimezoneChange  func(ctx Context) error

	GetTimeout   func(ctx Context) (int64, bool)
	MainPID      func(ctx Context) (int, bool)
	ControlPID   func(ctx Context) (int, bool)
	NeedsConsole func(ctx Context) bool
	ExitStatus   func(ctx Context) (int, bool)

	EnumeratePerpetual func(ctx context.Context) ([]string, error)
	Enumerate          func(ctx context.Context) ([]string, error)
	Shutdown           func(ctx context.Context) error
	Supported          func() bool
}

// Context is the per-call handle callbacks receive: the unit id and a
// type-specific payload the callback knows how to assert. The engine core
// treats Payload as opaque.
type Context struct {
	UnitID  string
	Payload any
}

// Entry pairs a type's Flags with its Callbacks.
type Entry struct {
	Flags     Flags
	Callbacks Callbacks
}

// Registry is the static table indexed by unit type (§4.3). It is built
// once at startup by registering every supported type and is read-only
// thereafter, so lookups need no locking.
type Registry struct {
	entries map[int]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]Entry)}
}

// Register installs entry for typ, replacing any prior registration.
func (r *Registry) Register(typ int, entry Entry) {
	r.entries[typ] = entry
}

// Lookup returns the entry for typ.
func (r *Registry) Lookup(typ int) (Entry, error) {
	e, ok := r.entries[typ]
	if !ok {
		return Entry{}, fmt.Errorf("vtable: no entry registered for unit type %d", typ)
	}
	return e, nil
}

// Supported reports whether typ has a registered entry whose Supported
// callback (if any) also reports true.
func (r *Registry) Supported(typ int) bool {
	e, ok := r.entries[typ]
	if !ok {
		return false
	}
	if e.Callbacks.Supported == nil {
		return true
	}
	return e.Callbacks.Supported()
}
