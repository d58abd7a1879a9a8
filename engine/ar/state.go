package ar

// State is the session lifecycle.
//
//	Uninitialized -> Configured -> Resumed <-> Paused -> Destroyed
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateResumed
	StatePaused
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateResumed:
		return "resumed"
	case StatePaused:
		return "paused"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
