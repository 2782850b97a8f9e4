// Package supervisor boots the station, runs the sense-report-sleep loop and
// decides when the board powers down.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/charger"
	"github.com/urmzd/pira/pkg/config"
	"github.com/urmzd/pira/pkg/db"
	"github.com/urmzd/pira/pkg/gpio"
	"github.com/urmzd/pira/pkg/module"
	"github.com/urmzd/pira/pkg/pirasmart"
	"github.com/urmzd/pira/pkg/state"
)

// Link is the PiraSmart driver.
type Link interface {
	Read(ctx context.Context) error
	Timers() pirasmart.Timers
	SetTime(t time.Time) error
	SetOnPeriod(seconds uint32) error
	SetOffPeriod(seconds uint32) error
	SetRebootPeriod(seconds uint32) error
	SetWakeupPeriod(seconds uint32) error
}

// Pins is GPIO access.
type Pins interface {
	SetMode(pin uint, mode gpio.Mode) error
	Write(pin uint, level gpio.Level) error
	Read(pin uint) (gpio.Level, error)
}

// Charger is the battery charger.
type Charger interface {
	charger.StatusReader
	Configure() error
}

// Journal is the station event log.
type Journal interface {
	Insert(ctx context.Context, kind, value string) error
	Close() error
}

// StateStore persists snapshots.
type StateStore interface {
	Save(snap *state.Snapshot) error
}

// Options wires the supervisor. Link, Pins, Power and Config are required.
type Options struct {
	Config  *config.Config
	Link    Link
	Pins    Pins
	Charger Charger
	Clock   Clock
	Journal Journal
	State   StateStore
	Fleet   FleetController
	Power   Power
	Wifi    Wifi
	Catalog module.Catalog
	Session string

	// Sync flushes filesystems before the power action. Defaults to SyncFilesystem.
	Sync func() error

	// Sleep waits between loop iterations. Defaults to a context aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Park blocks after the power action. Defaults to sleeping forever.
	Park func()
}

// Supervisor is the station state machine. It is driven from a single
// goroutine and lent to modules as their module.Station.
type Supervisor struct {
	cfg     *config.Config
	link    Link
	pins    Pins
	charger Charger
	clock   Clock
	journal Journal
	store   StateStore
	fleet   FleetController
	power   Power
	wifi    Wifi
	catalog module.Catalog
	session string
	sync    func() error
	sleep   func(ctx context.Context, d time.Duration) error
	park    func()

	state     State
	monitor   *charger.Monitor
	registry  *module.Registry
	piraOK    bool
	debug     bool
	iteration uint64

	shutdownRequested bool
	shutdownReason    string
	hold              string
}

// New creates a supervisor in the booting state.
func New(opts Options) (*Supervisor, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("supervisor: config is required")
	case opts.Link == nil:
		return nil, errors.New("supervisor: PiraSmart link is required")
	case opts.Pins == nil:
		return nil, errors.New("supervisor: GPIO is required")
	case opts.Power == nil:
		return nil, errors.New("supervisor: power controller is required")
	}

	s := &Supervisor{
		cfg:      opts.Config,
		link:     opts.Link,
		pins:     opts.Pins,
		charger:  opts.Charger,
		clock:    opts.Clock,
		journal:  opts.Journal,
		store:    opts.State,
		fleet:    opts.Fleet,
		power:    opts.Power,
		wifi:     opts.Wifi,
		catalog:  opts.Catalog,
		session:  opts.Session,
		sync:     opts.Sync,
		sleep:    opts.Sleep,
		park:     opts.Park,
		state:    StateBooting,
		monitor:  charger.NewMonitor(),
		registry: module.NewRegistry(),
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.sync == nil {
		s.sync = SyncFilesystem
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.park == nil {
		s.park = ParkForever
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return s.state
}

// Modules returns the loaded module registry.
func (s *Supervisor) Modules() *module.Registry {
	return s.registry
}

// ShutdownRequested reports whether a shutdown is pending for this iteration.
func (s *Supervisor) ShutdownRequested() bool {
	return s.shutdownRequested
}

func (s *Supervisor) transition(to State) error {
	if !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	log.Debug().Stringer("from", s.state).Stringer("to", to).Msg("Supervisor state change")
	s.state = to
	return nil
}

// Run boots the station and loops until it powers down, which never returns,
// or ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.cfg.BootDisable {
		log.Warn().Msg("Boot has been disabled (BOOT_DISABLE=1), not booting further")
		s.park()
		return nil
	}

	if err := s.Boot(ctx); err != nil {
		return err
	}

	for {
		if err := s.RunOnce(ctx); err != nil {
			return err
		}
		if s.state.Terminal() {
			s.park()
			return nil
		}
		if err := s.sleep(ctx, s.cfg.LoopDelay); err != nil {
			return err
		}
	}
}

// Boot runs the boot sequence through to the running state.
func (s *Supervisor) Boot(ctx context.Context) error {
	if s.state != StateBooting {
		return fmt.Errorf("%w: boot from %s", ErrInvalidTransition, s.state)
	}
	log.Info().Msg("Performing boot sequence")

	s.setupPins()
	s.setupCharger()
	s.debug = s.readDebugPin()
	s.setupWifi()
	s.record(ctx, db.KindSystem, db.EventBoot)

	if err := s.transition(StateClockSync); err != nil {
		return err
	}
	s.readPira(ctx)
	s.syncClock()
	s.writeTimerOverrides()

	if err := s.transition(StateModuleInit); err != nil {
		return err
	}
	s.record(ctx, db.KindSystem, db.EventModuleInit)
	log.Info().Strs("modules", s.cfg.Modules).Msg("Initializing modules")
	s.registry = module.Load(s, s.catalog, s.cfg.Modules)

	s.record(ctx, db.KindSystem, db.EventMainLoop)
	if err := s.transition(StateRunning); err != nil {
		return err
	}
	log.Info().Int("modules", s.registry.Len()).Msg("Starting processing loop")
	return nil
}

func (s *Supervisor) setupPins() {
	if err := s.pins.SetMode(gpio.PinPiraStatus, gpio.ModeOutput); err != nil {
		log.Error().Err(err).Msg("Failed to configure status pin")
	}
	if err := s.pins.Write(gpio.PinPiraStatus, gpio.High); err != nil {
		log.Error().Err(err).Msg("Failed to raise status pin")
	}
	if err := s.pins.SetMode(gpio.PinSoftPower, gpio.ModeOutput); err != nil {
		log.Error().Err(err).Msg("Failed to configure soft power pin")
	}
	if err := s.pins.Write(gpio.PinSoftPower, gpio.Low); err != nil {
		log.Error().Err(err).Msg("Failed to switch soft power pin")
	}
}

func (s *Supervisor) setupCharger() {
	if s.charger == nil {
		log.Warn().Msg("No charger, charging status unavailable")
		return
	}
	s.sampleCharging()
	if err := s.charger.Configure(); err != nil {
		log.Error().Err(err).Msg("Failed to configure charger")
	}
}

func (s *Supervisor) setupWifi() {
	if s.wifi == nil {
		return
	}
	if !s.wifiEnabled() {
		log.Info().Str("mode", string(s.cfg.WifiMode)).Msg("Not starting wifi as it is disabled")
		return
	}
	log.Info().Msg("Enabling wifi")
	if err := s.wifi.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start wifi")
	}
}

func (s *Supervisor) wifiEnabled() bool {
	switch s.cfg.WifiMode {
	case config.WifiOn:
		return true
	case config.WifiCharging:
		return s.IsCharging()
	case config.WifiDebug:
		return s.debug
	default:
		return false
	}
}

func (s *Supervisor) writeTimerOverrides() {
	t := s.cfg.Timers
	for _, o := range []struct {
		name string
		o    config.Override
		set  func(uint32) error
	}{
		{"PIRA_POWER", t.Power, s.link.SetOnPeriod},
		{"PIRA_SLEEP", t.Sleep, s.link.SetOffPeriod},
		{"PIRA_REBOOT", t.Reboot, s.link.SetRebootPeriod},
		{"PIRA_WAKEUP", t.Wakeup, s.link.SetWakeupPeriod},
	} {
		if !o.o.Set {
			continue
		}
		if err := o.set(o.o.Seconds); err != nil {
			log.Error().Err(err).Str("key", o.name).Msg("Failed to write PiraSmart timer")
			continue
		}
		log.Info().Str("key", o.name).Uint32("seconds", o.o.Seconds).Msg("PiraSmart timer set")
	}
}

func (s *Supervisor) sampleCharging() {
	if s.charger == nil {
		return
	}
	if err := s.monitor.Sample(s.charger); err != nil {
		log.Warn().Err(err).Msg("Failed to read charger status")
	}
}

func (s *Supervisor) readPira(ctx context.Context) {
	err := s.link.Read(ctx)
	s.piraOK = err == nil
	if err != nil {
		log.Error().Err(err).Msg("PiraSmart read failed")
	}
}

// RunOnce runs one main loop iteration. The only errors returned are
// context cancellation and invalid state.
func (s *Supervisor) RunOnce(ctx context.Context) error {
	if s.state != StateRunning {
		return fmt.Errorf("%w: loop in %s", ErrInvalidTransition, s.state)
	}
	s.iteration++

	s.sampleCharging()
	s.readPira(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.debug = s.readDebugPin()
	s.hold = ""

	voltage, voltageOK := s.Voltage()
	if voltageOK {
		s.record(ctx, db.KindDeviceVoltage, strconv.FormatFloat(voltage, 'f', 3, 64))
	}

	_ = s.registry.ProcessAll(ctx)

	if s.piraOK && voltageOK && voltage <= s.cfg.ShutdownVoltage {
		log.Warn().Float64("voltage", voltage).Float64("threshold", s.cfg.ShutdownVoltage).Msg("Voltage is under the threshold, need to shut down")
		s.RequestShutdown("low voltage")
	}

	s.persist()

	if !s.shutdownRequested {
		return nil
	}
	s.shutdownRequested = false
	if err := s.transition(StateShutdownRequested); err != nil {
		return err
	}
	return s.performShutdown(ctx)
}

// performShutdown evaluates the veto cascade and, unless vetoed, runs the
// irreversible shutdown sequence.
func (s *Supervisor) performShutdown(ctx context.Context) error {
	in := ShutdownInputs{
		FleetBusy: s.fleetBusy(ctx),
		SleepMode: s.cfg.SleepMode,
		Charging:  s.IsCharging(),
		Debug:     s.debug,
		Hold:      s.hold,
	}

	if veto := EvaluateShutdown(in); veto != VetoNone {
		ev := log.Info().Stringer("veto", veto).Str("reason", s.shutdownReason)
		if veto == VetoHold {
			ev = ev.Str("hold", s.hold)
		}
		ev.Msg("Not shutting down")
		s.shutdownReason = ""
		return s.transition(StateRunning)
	}
	if in.Debug {
		log.Info().Msg("Shutting down even during debug")
	}

	if err := s.transition(StateShuttingDown); err != nil {
		return err
	}
	log.Info().Str("reason", s.shutdownReason).Msg("Shutting down")
	s.record(ctx, db.KindSystem, db.EventShutdown)

	log.Info().Msg("Requesting all modules to shut down")
	_ = s.registry.ShutdownAll(ctx)

	if s.wifi != nil {
		if err := s.wifi.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop wifi")
		}
	}

	s.persist()
	s.record(ctx, db.KindSystem, db.EventHalt)
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event log")
		}
		s.journal = nil
	}
	if err := s.sync(); err != nil {
		log.Error().Err(err).Msg("Failed to sync filesystems")
	}

	return s.powerAction(ctx)
}

func (s *Supervisor) fleetBusy(ctx context.Context) bool {
	if s.fleet == nil {
		return false
	}
	idle, err := s.fleet.Idle(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Fleet idle check failed, not vetoing shutdown")
		return false
	}
	return !idle
}

// powerAction arms the PiraSmart reboot timer, lowers the status pin and runs
// the configured system power action.
func (s *Supervisor) powerAction(ctx context.Context) error {
	reboot := s.cfg.ShutdownStrategy == config.StrategyReboot

	period, action, next := uint32(ShutdownRebootPeriod), s.power.PowerOff, StateHalted
	if reboot {
		period, action, next = RebootRebootPeriod, s.power.Reboot, StateRebooting
	}
	log.Info().Str("strategy", string(s.cfg.ShutdownStrategy)).Uint32("reboot_period", period).Msg("Shutting down as scheduled")

	if err := s.link.SetRebootPeriod(period); err != nil {
		log.Error().Err(err).Msg("Failed to arm PiraSmart reboot timer")
	}
	if err := s.pins.Write(gpio.PinPiraStatus, gpio.Low); err != nil {
		log.Error().Err(err).Msg("Failed to lower status pin")
	}
	if err := action(ctx); err != nil {
		log.Error().Err(err).Msg("Power action failed, waiting for PiraSmart")
	}
	return s.transition(next)
}

func (s *Supervisor) record(ctx context.Context, kind, value string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Insert(ctx, kind, value); err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("Failed to write event log")
	}
}

func (s *Supervisor) persist() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.Snapshot()); err != nil {
		log.Error().Err(err).Msg("Error while saving state")
	}
}

// Snapshot captures the current state for persistence.
func (s *Supervisor) Snapshot() *state.Snapshot {
	timers := s.link.Timers()
	snap := &state.Snapshot{
		SavedAt:           s.clock.Now().UTC().Truncate(time.Second),
		Session:           s.session,
		Iteration:         s.iteration,
		State:             s.state.String(),
		PiraOK:            s.piraOK,
		Frames:            timers.Frames,
		Charging:          s.monitor.IsCharging(),
		ChargingSamples:   s.monitor.Samples(),
		Debug:             s.debug,
		ShutdownRequested: s.shutdownRequested,
		Hold:              s.hold,
		Modules:           s.registry.Names(),
	}
	if v, ok := timers.Voltage(); ok {
		snap.Voltage = &v
	}
	for _, tag := range pirasmart.ReadTags {
		if v := timers.Get(tag); v.Valid {
			if snap.Timers == nil {
				snap.Timers = make(map[string]uint32)
			}
			snap.Timers[tag.String()] = v.Raw
		}
	}
	return snap
}

// module.Station

func (s *Supervisor) Now() time.Time { return s.clock.Now() }

func (s *Supervisor) PiraOK() bool { return s.piraOK }

func (s *Supervisor) Voltage() (float64, bool) { return s.link.Timers().Voltage() }

func (s *Supervisor) RTC() (time.Time, bool) { return s.link.Timers().RTC() }

func (s *Supervisor) Timers() pirasmart.Timers { return s.link.Timers() }

func (s *Supervisor) IsCharging() bool { return s.monitor.IsCharging() }

// IsDebugEnabled returns the debug state read at boot or at the start of the
// current iteration.
func (s *Supervisor) IsDebugEnabled() bool { return s.debug }

// readDebugPin reads the debug pin when DEBUG_ENABLE_MODE is gpio:<pin>.
// LOW means debug. An unparsable pin counts as debug on, a failed read as off.
func (s *Supervisor) readDebugPin() bool {
	mode := s.cfg.DebugMode
	switch {
	case !mode.GPIO:
		return false
	case mode.Invalid:
		return true
	}
	if err := s.pins.SetMode(mode.Pin, gpio.ModeInput); err != nil {
		log.Warn().Err(err).Uint("pin", mode.Pin).Msg("Failed to configure debug pin")
		return false
	}
	level, err := s.pins.Read(mode.Pin)
	if err != nil {
		log.Warn().Err(err).Uint("pin", mode.Pin).Msg("Failed to read debug pin")
		return false
	}
	return level == gpio.Low
}

func (s *Supervisor) RequestShutdown(reason string) {
	log.Info().Str("reason", reason).Msg("Shutdown requested")
	s.shutdownRequested = true
	if s.shutdownReason == "" {
		s.shutdownReason = reason
	}
}

func (s *Supervisor) HoldShutdown(reason string) {
	log.Info().Str("reason", reason).Msg("Shutdown held")
	s.hold = reason
}

func (s *Supervisor) SetWakeup(seconds uint32) error {
	return s.link.SetWakeupPeriod(seconds)
}

func (s *Supervisor) Config() *config.Config { return s.cfg }

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ParkForever never returns. The OS or PiraSmart cuts power.
func ParkForever() {
	for {
		time.Sleep(time.Second)
	}
}

var _ module.Station = (*Supervisor)(nil)
