package module

// State is the observable phase of a module host.
type State uint8

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateDirty
	StateBuilding
	StateAwaitingSwap
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	case StateBuilding:
		return "building"
	case StateAwaitingSwap:
		return "awaiting_swap"
	default:
		return "unknown"
	}
}
