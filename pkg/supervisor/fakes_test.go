package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/urmzd/pira/pkg/charger"
	"github.com/urmzd/pira/pkg/config"
	"github.com/urmzd/pira/pkg/gpio"
	"github.com/urmzd/pira/pkg/module"
	"github.com/urmzd/pira/pkg/pirasmart"
	"github.com/urmzd/pira/pkg/state"
)

type timerWrite struct {
	tag   pirasmart.Tag
	value uint32
}

type fakeLink struct {
	timers  pirasmart.Timers
	readErr error
	reads   int
	writes  []timerWrite
	times   []time.Time
}

func (l *fakeLink) Read(context.Context) error {
	l.reads++
	return l.readErr
}

func (l *fakeLink) Timers() pirasmart.Timers { return l.timers }

func (l *fakeLink) SetTime(t time.Time) error {
	l.times = append(l.times, t)
	return nil
}

func (l *fakeLink) SetOnPeriod(v uint32) error     { return l.write(pirasmart.TagOnPeriod, v) }
func (l *fakeLink) SetOffPeriod(v uint32) error    { return l.write(pirasmart.TagOffPeriod, v) }
func (l *fakeLink) SetRebootPeriod(v uint32) error { return l.write(pirasmart.TagRebootPeriod, v) }
func (l *fakeLink) SetWakeupPeriod(v uint32) error { return l.write(pirasmart.TagWakeupPeriod, v) }

func (l *fakeLink) write(tag pirasmart.Tag, v uint32) error {
	l.writes = append(l.writes, timerWrite{tag, v})
	return nil
}

func (l *fakeLink) wrote(tag pirasmart.Tag) []uint32 {
	var values []uint32
	for _, w := range l.writes {
		if w.tag == tag {
			values = append(values, w.value)
		}
	}
	return values
}

type fakePins struct {
	modes  map[uint]gpio.Mode
	levels map[uint]gpio.Level
	inputs map[uint]gpio.Level
	reads  map[uint]int
}

func newFakePins() *fakePins {
	return &fakePins{
		modes:  make(map[uint]gpio.Mode),
		levels: make(map[uint]gpio.Level),
		inputs: make(map[uint]gpio.Level),
		reads:  make(map[uint]int),
	}
}

func (p *fakePins) SetMode(pin uint, mode gpio.Mode) error {
	p.modes[pin] = mode
	return nil
}

func (p *fakePins) Write(pin uint, level gpio.Level) error {
	p.levels[pin] = level
	return nil
}

func (p *fakePins) Read(pin uint) (gpio.Level, error) {
	p.reads[pin]++
	level, ok := p.inputs[pin]
	if !ok {
		return gpio.High, nil
	}
	return level, nil
}

type fakeCharger struct {
	status     charger.Status
	err        error
	configured bool
}

func (c *fakeCharger) Status() (charger.Status, error) { return c.status, c.err }

func (c *fakeCharger) Configure() error {
	c.configured = true
	return nil
}

type fakeClock struct {
	now  time.Time
	sets []time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(t time.Time) error {
	c.sets = append(c.sets, t)
	c.now = t
	return nil
}

type fakeJournal struct {
	entries []string
	closed  bool
}

func (j *fakeJournal) Insert(_ context.Context, kind, value string) error {
	if j.closed {
		return errors.New("journal closed")
	}
	j.entries = append(j.entries, kind+"="+value)
	return nil
}

func (j *fakeJournal) Close() error {
	j.closed = true
	return nil
}

type fakeStore struct {
	saved []*state.Snapshot
}

func (s *fakeStore) Save(snap *state.Snapshot) error {
	s.saved = append(s.saved, snap)
	return nil
}

func (s *fakeStore) last() *state.Snapshot {
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

type fakeFleet struct {
	idle    bool
	err     error
	actions []string
}

func (f *fakeFleet) Idle(context.Context) (bool, error) { return f.idle, f.err }

func (f *fakeFleet) Shutdown(context.Context) error {
	f.actions = append(f.actions, "shutdown")
	return nil
}

func (f *fakeFleet) Reboot(context.Context) error {
	f.actions = append(f.actions, "reboot")
	return nil
}

type fakePower struct {
	actions []string
}

func (p *fakePower) PowerOff(context.Context) error {
	p.actions = append(p.actions, "poweroff")
	return nil
}

func (p *fakePower) Reboot(context.Context) error {
	p.actions = append(p.actions, "reboot")
	return nil
}

type fakeWifi struct {
	started, stopped int
}

func (w *fakeWifi) Start() error { w.started++; return nil }
func (w *fakeWifi) Stop() error  { w.stopped++; return nil }

// hookModule records hook calls and runs optional callbacks against the station.
type hookModule struct {
	st        module.Station
	processes int
	shutdowns int
	onProcess func(st module.Station, n int)
}

func (m *hookModule) Process(context.Context, *module.Registry) error {
	m.processes++
	if m.onProcess != nil {
		m.onProcess(m.st, m.processes)
	}
	return nil
}

func (m *hookModule) Shutdown(context.Context, *module.Registry) error {
	m.shutdowns++
	return nil
}

type harness struct {
	sup     *Supervisor
	link    *fakeLink
	pins    *fakePins
	charger *fakeCharger
	clock   *fakeClock
	journal *fakeJournal
	store   *fakeStore
	power   *fakePower
	wifi    *fakeWifi
	synced  int
	parked  int
	module  *hookModule
}

// newHarness builds a supervisor on fakes with a single "hook" module.
func newHarness(t *testing.T, env config.MapEnv, opts ...func(*Options)) *harness {
	t.Helper()
	if _, ok := env["MODULES"]; !ok {
		env["MODULES"] = "hook"
	}

	h := &harness{
		link:    &fakeLink{},
		pins:    newFakePins(),
		charger: &fakeCharger{status: charger.Status{VBus: charger.VBusNoInput, Charge: charger.ChargeNone}},
		clock:   &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		journal: &fakeJournal{},
		store:   &fakeStore{},
		power:   &fakePower{},
		wifi:    &fakeWifi{},
	}

	o := Options{
		Config:  config.Load(env),
		Link:    h.link,
		Pins:    h.pins,
		Charger: h.charger,
		Clock:   h.clock,
		Journal: h.journal,
		State:   h.store,
		Power:   h.power,
		Wifi:    h.wifi,
		Catalog: module.Catalog{
			"hook": func(st module.Station) (module.Module, error) {
				h.module = &hookModule{st: st}
				return h.module, nil
			},
		},
		Sync:  func() error { h.synced++; return nil },
		Sleep: func(context.Context, time.Duration) error { return nil },
		Park:  func() { h.parked++ },
	}
	for _, fn := range opts {
		fn(&o)
	}

	sup, err := New(o)
	require.NoError(t, err)
	h.sup = sup
	return h
}

func (h *harness) boot(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sup.Boot(context.Background()))
}

func (h *harness) setBattery(raw uint32) {
	h.link.timers.Battery = pirasmart.Value{Raw: raw, Valid: true}
}
