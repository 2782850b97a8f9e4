package supervisor

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Clock is the system wall clock.
type Clock interface {
	Now() time.Time
	Set(t time.Time) error
}

// SystemClock reads and sets the operating system clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Set(t time.Time) error { return setSystemTime(t) }

// ClockAction is the outcome of clock reconciliation.
type ClockAction uint8

const (
	ClockUnchanged ClockAction = iota
	ClockSystemFromRTC
	ClockRTCFromSystem
	ClockNoRTC
)

func (a ClockAction) String() string {
	switch a {
	case ClockUnchanged:
		return "unchanged"
	case ClockSystemFromRTC:
		return "system_from_rtc"
	case ClockRTCFromSystem:
		return "rtc_from_system"
	case ClockNoRTC:
		return "no_rtc"
	default:
		return "unknown"
	}
}

// Reconcile decides which clock to overwrite. The clock that is behind is
// assumed wrong. System time is compared at second resolution, the RTC's.
func Reconcile(rtc, system time.Time) ClockAction {
	system = system.Truncate(time.Second)
	switch {
	case rtc.After(system):
		return ClockSystemFromRTC
	case rtc.Before(system):
		return ClockRTCFromSystem
	default:
		return ClockUnchanged
	}
}

// syncClock reads PiraSmart once and reconciles the clocks. Without an RTC
// reading the system clock is kept as is.
func (s *Supervisor) syncClock() ClockAction {
	timers := s.link.Timers()
	rtc, ok := timers.RTC()
	if !s.piraOK || !ok {
		log.Warn().Bool("pira_ok", s.piraOK).Msg("No PiraSmart time, keeping system clock")
		return ClockNoRTC
	}

	system := s.clock.Now()
	action := Reconcile(rtc, system)
	switch action {
	case ClockSystemFromRTC:
		log.Info().Time("rtc", rtc).Time("system", system).Msg("Writing RTC to system time")
		if err := s.clock.Set(rtc); err != nil {
			log.Error().Err(err).Msg("Failed to set system time")
		}
	case ClockRTCFromSystem:
		log.Info().Time("rtc", rtc).Time("system", system).Msg("Writing system time to RTC")
		if err := s.link.SetTime(system); err != nil {
			log.Error().Err(err).Msg("Failed to set PiraSmart time")
		}
	}
	return action
}
