// Package moduletest provides an in-memory module.Station for module tests.
package moduletest

import (
	"sync"
	"time"

	"github.com/urmzd/pira/pkg/config"
	"github.com/urmzd/pira/pkg/pirasmart"
)

// Station is a settable module.Station that records requests.
type Station struct {
	mu sync.Mutex

	Clock    time.Time
	OK       bool
	Values   pirasmart.Timers
	Charging bool
	Debug    bool
	Cfg      *config.Config
	WakeErr  error

	ShutdownReasons []string
	Holds           []string
	Wakeups         []uint32
}

// New returns a connected station configured from env. No PiraSmart values
// are reported until SetValue is called.
func New(env config.MapEnv) *Station {
	return &Station{
		Clock: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		OK:    true,
		Cfg:   config.Load(env),
	}
}

// SetValue marks a PiraSmart value as reported.
func (s *Station) SetValue(tag pirasmart.Tag, raw uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := pirasmart.Value{Raw: raw, Valid: true}
	switch tag {
	case pirasmart.TagTime:
		s.Values.Time = v
	case pirasmart.TagOnRemaining:
		s.Values.OnRemaining = v
	case pirasmart.TagBattery:
		s.Values.Battery = v
	case pirasmart.TagOnPeriod:
		s.Values.OnPeriod = v
	case pirasmart.TagOffPeriod:
		s.Values.OffPeriod = v
	case pirasmart.TagRebootPeriod:
		s.Values.RebootPeriod = v
	case pirasmart.TagWakeupPeriod:
		s.Values.WakeupPeriod = v
	case pirasmart.TagStatusPin:
		s.Values.StatusPin = v
	}
}

// Advance moves the clock forward.
func (s *Station) Advance(d time.Duration) {
	s.mu.Lock()
	s.Clock = s.Clock.Add(d)
	s.mu.Unlock()
}

func (s *Station) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Clock
}

func (s *Station) PiraOK() bool { return s.OK }

func (s *Station) Voltage() (float64, bool) { return s.Timers().Voltage() }

func (s *Station) RTC() (time.Time, bool) { return s.Timers().RTC() }

func (s *Station) Timers() pirasmart.Timers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Values
}

func (s *Station) IsCharging() bool { return s.Charging }

func (s *Station) IsDebugEnabled() bool { return s.Debug }

func (s *Station) RequestShutdown(reason string) {
	s.mu.Lock()
	s.ShutdownReasons = append(s.ShutdownReasons, reason)
	s.mu.Unlock()
}

func (s *Station) HoldShutdown(reason string) {
	s.mu.Lock()
	s.Holds = append(s.Holds, reason)
	s.mu.Unlock()
}

func (s *Station) SetWakeup(seconds uint32) error {
	if s.WakeErr != nil {
		return s.WakeErr
	}
	s.mu.Lock()
	s.Wakeups = append(s.Wakeups, seconds)
	s.mu.Unlock()
	return nil
}

func (s *Station) Config() *config.Config { return s.Cfg }

// ShutdownRequested reports whether any shutdown was requested.
func (s *Station) ShutdownRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ShutdownReasons) > 0
}
