package core

// LifecycleState is the lifecycle phase of an atom.
type LifecycleState uint8

const (
	// StateUninitialized means the atom is detached or not yet wired
	StateUninitialized LifecycleState = iota

	// StateInitializing means the atom is wired and its children are being initialized
	StateInitializing

	// StateReady means the atom and all of its descendants finished initialization
	StateReady

	// StateDestroying means teardown is in progress
	StateDestroying

	// StateDestroyed means the atom was torn down and detached
	StateDestroyed
)

// String returns the string representation of LifecycleState.
func (s LifecycleState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
