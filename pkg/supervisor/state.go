package supervisor

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a state change is not allowed.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is the supervisor lifecycle state.
type State uint8

const (
	StateBooting State = iota
	StateClockSync
	StateModuleInit
	StateRunning
	StateShutdownRequested
	StateShuttingDown
	StateHalted
	StateRebooting
)

func (s State) String() string {
	switch s {
	case StateBooting:
		return "booting"
	case StateClockSync:
		return "clock_sync"
	case StateModuleInit:
		return "module_init"
	case StateRunning:
		return "running"
	case StateShutdownRequested:
		return "shutdown_requested"
	case StateShuttingDown:
		return "shutting_down"
	case StateHalted:
		return "halted"
	case StateRebooting:
		return "rebooting"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether the process only waits for power off from here.
func (s State) Terminal() bool {
	return s == StateHalted || s == StateRebooting
}

var transitions = map[State][]State{
	StateBooting:           {StateClockSync},
	StateClockSync:         {StateModuleInit},
	StateModuleInit:        {StateRunning},
	StateRunning:           {StateShutdownRequested},
	StateShutdownRequested: {StateRunning, StateShuttingDown},
	StateShuttingDown:      {StateHalted, StateRebooting},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
