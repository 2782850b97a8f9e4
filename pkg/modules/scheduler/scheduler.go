// Package scheduler decides when the station goes to sleep and programs the
// next PiraSmart wakeup.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/module"
	"github.com/urmzd/pira/pkg/pirasmart"
)

// Name is the catalog identifier.
const Name = "scheduler"

// OnTimerWarning is the remaining PiraSmart on time that triggers an early shutdown.
const OnTimerWarning = 30 * time.Second

// Scheduler requests shutdown once the on duration has elapsed and sets the
// wakeup timer when the station shuts down.
type Scheduler struct {
	st      module.Station
	window  Window
	started time.Time
	half    float64
	quart   float64
}

// New is the module factory.
func New(st module.Station) (module.Module, error) {
	v := st.Config().Values
	now := st.Now()

	s := &Scheduler{
		st:      st,
		window:  LoadWindow(v, now),
		started: now,
		half:    v.Float("POWER_THRESHOLD_HALF", 0),
		quart:   v.Float("POWER_THRESHOLD_QUART", 0),
	}

	log.Info().Stringer("window", s.window).Msg("Scheduler initialized")

	if !st.PiraOK() {
		log.Error().Str("module", Name).Msg("PiraSmart is not connected, schedule checks wait for it")
	} else if p := st.Timers().OnPeriod; p.Valid && s.window.On > time.Duration(p.Raw)*time.Second {
		log.Warn().
			Dur("on_duration", s.window.On).
			Uint32("safety_on_period", p.Raw).
			Msg("Safety on period will shut down the station before the scheduled on duration expires")
	}

	return s, nil
}

// Window returns the active schedule.
func (s *Scheduler) Window() Window {
	return s.window
}

// Process requests shutdown when the on duration has elapsed or the PiraSmart
// on timer is about to expire.
func (s *Scheduler) Process(_ context.Context, _ *module.Registry) error {
	if !s.st.PiraOK() {
		log.Error().Str("module", Name).Msg("PiraSmart is not connected, skipping")
		return nil
	}

	elapsed := s.st.Now().Sub(s.started)
	log.Info().Dur("remaining", s.window.On-elapsed).Msg("Scheduler on time")

	if elapsed >= s.window.On {
		log.Info().Msg("Scheduler: time to sleep")
		s.st.RequestShutdown("scheduled on duration elapsed")
	}

	if o := s.st.Timers().OnRemaining; o.Valid && time.Duration(o.Raw)*time.Second < OnTimerWarning {
		log.Warn().Uint32("remaining", o.Raw).Msg("PiraSmart safety on timer about to expire")
		s.st.RequestShutdown("safety on timer about to expire")
	}
	return nil
}

// Shutdown programs the next wakeup, scaling the off duration by battery level.
func (s *Scheduler) Shutdown(_ context.Context, _ *module.Registry) error {
	if !s.st.PiraOK() {
		log.Error().Str("module", Name).Msg("PiraSmart is not connected, wakeup not scheduled")
		return nil
	}

	off := s.window.Off
	if voltage, ok := s.st.Voltage(); ok {
		switch m := Multiplier(voltage, s.half, s.quart); m {
		case 4:
			log.Warn().Float64("voltage", voltage).Msg("Low voltage, quadrupling sleep duration")
			off *= 4
		case 2:
			log.Warn().Float64("voltage", voltage).Msg("Low voltage, doubling sleep duration")
			off *= 2
		}
	}

	now := s.st.Now()
	wakeup := s.window.NextWakeup(now, off)
	seconds := pirasmart.SecondsFromDuration(wakeup)

	timers := s.st.Timers()
	if p := timers.OffPeriod; p.Valid && seconds > p.Raw {
		log.Warn().
			Uint32("wakeup", seconds).
			Uint32("safety_off_period", p.Raw).
			Msg("Safety off period will wake the station before the next scheduled wakeup")
	}

	reboot := time.Duration(timers.RebootPeriod.Raw) * time.Second
	log.Info().
		Time("next_wakeup", now.Add(wakeup+reboot)).
		Dur("in", wakeup+reboot).
		Msg("Scheduling next wakeup")

	return s.st.SetWakeup(seconds)
}
