package supervisor

import "github.com/urmzd/pira/pkg/config"

// Veto is the reason a requested shutdown does not go ahead.
type Veto uint8

const (
	VetoNone Veto = iota
	VetoFleetBusy
	VetoCharging
	VetoSleepOff
	VetoDebug
	VetoHold
)

func (v Veto) String() string {
	switch v {
	case VetoNone:
		return "none"
	case VetoFleetBusy:
		return "fleet supervisor busy"
	case VetoCharging:
		return "charging"
	case VetoSleepOff:
		return "sleep off"
	case VetoDebug:
		return "debug on"
	case VetoHold:
		return "hold"
	default:
		return "unknown"
	}
}

// ShutdownInputs is everything the veto cascade looks at.
type ShutdownInputs struct {
	FleetBusy bool
	SleepMode config.SleepMode
	Charging  bool
	Debug     bool
	Hold      string
}

// EvaluateShutdown runs the veto cascade in order: fleet, sleep policy,
// debug, hold. The first rule that fires wins.
func EvaluateShutdown(in ShutdownInputs) Veto {
	if in.FleetBusy {
		return VetoFleetBusy
	}

	switch in.SleepMode {
	case config.SleepCharging:
		if in.Charging {
			return VetoCharging
		}
	case config.SleepOff:
		return VetoSleepOff
	}

	// SLEEP_ENABLE_MODE=debug allows shutting down while debugging.
	if in.Debug && in.SleepMode != config.SleepDebug {
		return VetoDebug
	}

	if in.Hold != "" {
		return VetoHold
	}
	return VetoNone
}
