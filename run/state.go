package run

import (
	"fmt"
)

// State is the lifecycle state of a pipeline Controller
type State int32

// Controller states, in the only order they can be entered; Starting may go back to Idle on failure
const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// MarshalText exports the state name in status reports
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name from status reports
func (s *State) UnmarshalText(text []byte) error {
	name := string(text)
	for st := StateIdle; st <= StateTerminated; st++ {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown pipeline state '%s'", name)
}
