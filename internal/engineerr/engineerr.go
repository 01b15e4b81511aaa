// Package engineerr defines the Unit Engine's error taxonomy (§7): a fixed
// set of kinds callers can switch on, wrapping the underlying cause the way
// callers still expect from errors.Unwrap.
package engineerr

import "fmt"

// Kind is one of the fixed error categories the engine's public operations
// can fail with.
type Kind int

const (
	InvalidName Kind = iota
	NameConflict
	NotFound
	Masked
	BadSetting
	LoadError
	JobConflicts
	JobNotApplicable
	ManualStartRefused
	IsolateRefused
	RateLimited
	TransientNotAllowed
	IO
	OOM
	Timeout
	Cancelled
)

var kindNames = map[Kind]string{
	InvalidName:         "invalid-name",
	NameConflict:        "name-conflict",
	NotFound:            "not-found",
	Masked:              "masked",
	BadSetting:          "bad-setting",
	LoadError:           "load-error",
	JobConflicts:        "job-conflicts",
	JobNotApplicable:    "job-not-applicable",
	ManualStartRefused:  "manual-start-refused",
	IsolateRefused:      "isolate-refused",
	RateLimited:         "rate-limited",
	TransientNotAllowed: "transient-not-allowed",
	IO:                  "io",
	OOM:                 "oom",
	Timeout:             "timeout",
	Cancelled:           "cancelled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the concrete error type every engine operation returns on
// failure: a kind the caller can switch on, the unit id it concerns (when
// applicable), and the underlying cause.
type Error struct {
	Kind   Kind
	UnitID string
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.UnitID == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
		}
		return e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.UnitID, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.UnitID)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with no wrapped cause.
func New(kind Kind, unitID string) *Error {
	return &Error{Kind: kind, UnitID: unitID}
}

// Wrap creates an Error wrapping cause. Returns nil if cause is nil.
func Wrap(kind Kind, unitID string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, UnitID: unitID, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
