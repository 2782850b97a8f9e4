package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/pira/pkg/charger"
	"github.com/urmzd/pira/pkg/config"
	"github.com/urmzd/pira/pkg/gpio"
	"github.com/urmzd/pira/pkg/module"
	"github.com/urmzd/pira/pkg/pirasmart"
)

func TestEvaluateShutdown(t *testing.T) {
	tests := []struct {
		name string
		in   ShutdownInputs
		want Veto
	}{
		{"sleep proceeds", ShutdownInputs{SleepMode: config.SleepSleep}, VetoNone},
		{"fleet busy first", ShutdownInputs{FleetBusy: true, SleepMode: config.SleepOff, Hold: "x"}, VetoFleetBusy},
		{"charging", ShutdownInputs{SleepMode: config.SleepCharging, Charging: true}, VetoCharging},
		{"charging mode not charging", ShutdownInputs{SleepMode: config.SleepCharging}, VetoNone},
		{"sleep off", ShutdownInputs{SleepMode: config.SleepOff, Debug: true}, VetoSleepOff},
		{"debug on", ShutdownInputs{SleepMode: config.SleepSleep, Debug: true, Hold: "x"}, VetoDebug},
		{"debug mode allows debug", ShutdownInputs{SleepMode: config.SleepDebug, Debug: true}, VetoNone},
		{"debug mode without debug", ShutdownInputs{SleepMode: config.SleepDebug}, VetoNone},
		{"hold", ShutdownInputs{SleepMode: config.SleepSleep, Hold: "uploading"}, VetoHold},
		{"hold in debug mode", ShutdownInputs{SleepMode: config.SleepDebug, Debug: true, Hold: "uploading"}, VetoHold},
		{"sleep ignores charging", ShutdownInputs{SleepMode: config.SleepSleep, Charging: true}, VetoNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateShutdown(tt.in))
		})
	}
}

func TestReconcile(t *testing.T) {
	s := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, ClockSystemFromRTC, Reconcile(s.Add(time.Second), s))
	assert.Equal(t, ClockRTCFromSystem, Reconcile(s.Add(-time.Second), s))
	assert.Equal(t, ClockUnchanged, Reconcile(s, s))
	assert.Equal(t, ClockUnchanged, Reconcile(s, s.Add(300*time.Millisecond)))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateBooting, StateClockSync))
	assert.True(t, CanTransition(StateShutdownRequested, StateRunning))
	assert.True(t, CanTransition(StateShuttingDown, StateRebooting))
	assert.False(t, CanTransition(StateRunning, StateShuttingDown))
	assert.False(t, CanTransition(StateHalted, StateRunning))
	assert.True(t, StateHalted.Terminal())
	assert.False(t, StateRunning.Terminal())
}

func TestBoot_ClockSync(t *testing.T) {
	system := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("rtc ahead sets system", func(t *testing.T) {
		h := newHarness(t, config.MapEnv{})
		h.link.timers.Time = pirasmart.Value{Raw: uint32(system.Unix() + 60), Valid: true}
		h.boot(t)

		require.Len(t, h.clock.sets, 1)
		assert.Equal(t, system.Add(time.Minute), h.clock.sets[0])
		assert.Empty(t, h.link.times)
	})

	t.Run("rtc behind sets rtc", func(t *testing.T) {
		h := newHarness(t, config.MapEnv{})
		h.link.timers.Time = pirasmart.Value{Raw: uint32(system.Unix() - 60), Valid: true}
		h.boot(t)

		assert.Empty(t, h.clock.sets)
		require.Len(t, h.link.times, 1)
		assert.Equal(t, system, h.link.times[0])
	})

	t.Run("equal writes nothing", func(t *testing.T) {
		h := newHarness(t, config.MapEnv{})
		h.link.timers.Time = pirasmart.Value{Raw: uint32(system.Unix()), Valid: true}
		h.boot(t)

		assert.Empty(t, h.clock.sets)
		assert.Empty(t, h.link.times)
	})

	t.Run("pira unreachable keeps system clock", func(t *testing.T) {
		h := newHarness(t, config.MapEnv{})
		h.link.readErr = pirasmart.ErrDecode
		h.boot(t)

		assert.Empty(t, h.clock.sets)
		assert.Empty(t, h.link.times)
		assert.Equal(t, StateRunning, h.sup.State())
		assert.False(t, h.sup.PiraOK())
	})
}

func TestBoot_Sequence(t *testing.T) {
	h := newHarness(t, config.MapEnv{
		"PIRA_POWER":       "1200",
		"PIRA_WAKEUP":      "60",
		"WIFI_ENABLE_MODE": "on",
	})
	h.boot(t)

	assert.Equal(t, StateRunning, h.sup.State())
	assert.Equal(t, gpio.High, h.pins.levels[gpio.PinPiraStatus])
	assert.Equal(t, gpio.Low, h.pins.levels[gpio.PinSoftPower])
	assert.True(t, h.charger.configured)
	assert.Equal(t, 1, h.wifi.started)
	assert.Equal(t, []uint32{1200}, h.link.wrote(pirasmart.TagOnPeriod))
	assert.Equal(t, []uint32{60}, h.link.wrote(pirasmart.TagWakeupPeriod))
	assert.Empty(t, h.link.wrote(pirasmart.TagOffPeriod))
	assert.Equal(t, []string{"hook"}, h.sup.Modules().Names())
	assert.Equal(t, []string{"system=boot", "system=module_init", "system=main_loop"}, h.journal.entries)

	assert.ErrorIs(t, h.sup.Boot(context.Background()), ErrInvalidTransition)
}

func TestBoot_WifiChargingPolicy(t *testing.T) {
	h := newHarness(t, config.MapEnv{"WIFI_ENABLE_MODE": "charging"})
	h.boot(t)
	assert.Equal(t, 0, h.wifi.started)

	h = newHarness(t, config.MapEnv{"WIFI_ENABLE_MODE": "charging"})
	h.charger.status = charger.Status{PowerGood: true}
	h.boot(t)
	assert.Equal(t, 1, h.wifi.started)
}

func TestBoot_FailingModuleStillRuns(t *testing.T) {
	h := newHarness(t, config.MapEnv{"MODULES": "pira.modules.debug"}, func(o *Options) {
		o.Catalog = module.Catalog{
			"debug": func(module.Station) (module.Module, error) { return nil, errors.New("constructor failed") },
		}
	})
	h.boot(t)

	assert.Equal(t, StateRunning, h.sup.State())
	assert.Equal(t, 0, h.sup.Modules().Len())
	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateRunning, h.sup.State())
}

func TestRunOnce_BeforeBoot(t *testing.T) {
	h := newHarness(t, config.MapEnv{})
	assert.ErrorIs(t, h.sup.RunOnce(context.Background()), ErrInvalidTransition)
}

func TestRunOnce_LowVoltageRequestsShutdown(t *testing.T) {
	h := newHarness(t, config.MapEnv{"SLEEP_ENABLE_MODE": "off"})
	h.boot(t)
	h.setBattery(100) // 1.64 V

	require.NoError(t, h.sup.RunOnce(context.Background()))

	snap := h.store.last()
	require.NotNil(t, snap)
	assert.True(t, snap.ShutdownRequested)
	require.NotNil(t, snap.Voltage)
	assert.InDelta(t, 1.64, *snap.Voltage, 1e-9)
	assert.Contains(t, h.journal.entries, "device.voltage=1.640")

	// vetoed by SLEEP_ENABLE_MODE=off, flag consumed
	assert.False(t, h.sup.ShutdownRequested())
	assert.Equal(t, StateRunning, h.sup.State())
}

func TestRunOnce_NoVoltageCheckWhenPiraDown(t *testing.T) {
	h := newHarness(t, config.MapEnv{})
	h.boot(t)
	h.setBattery(100)
	h.link.readErr = pirasmart.ErrDecode

	require.NoError(t, h.sup.RunOnce(context.Background()))

	assert.False(t, h.store.last().ShutdownRequested)
	assert.Empty(t, h.power.actions)
	assert.Equal(t, StateRunning, h.sup.State())
}

func TestRunOnce_HighVoltageKeepsRunning(t *testing.T) {
	h := newHarness(t, config.MapEnv{})
	h.boot(t)
	h.setBattery(250)

	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateRunning, h.sup.State())
	assert.Equal(t, 1, h.module.processes)
	assert.Empty(t, h.power.actions)
}

func TestRunOnce_ChargingVeto(t *testing.T) {
	h := newHarness(t, config.MapEnv{"SLEEP_ENABLE_MODE": "charging"})
	h.charger.status = charger.Status{VBus: charger.VBusUSBHost}
	h.boot(t)
	h.module.onProcess = func(st module.Station, _ int) { st.RequestShutdown("test") }

	for i := 0; i < 3; i++ {
		require.NoError(t, h.sup.RunOnce(context.Background()))
	}

	assert.Equal(t, 0, h.module.shutdowns)
	assert.Empty(t, h.power.actions)
	assert.Empty(t, h.link.wrote(pirasmart.TagRebootPeriod))
	assert.Equal(t, StateRunning, h.sup.State())
}

func TestRunOnce_ChargingDebounce(t *testing.T) {
	h := newHarness(t, config.MapEnv{"SLEEP_ENABLE_MODE": "charging"})
	h.charger.status = charger.Status{PowerGood: true}
	h.boot(t)
	h.charger.status = charger.Status{}
	h.module.onProcess = func(st module.Station, _ int) { st.RequestShutdown("test") }

	// boot sample plus three loop samples keep one charging sample in the window
	for i := 0; i < 3; i++ {
		require.NoError(t, h.sup.RunOnce(context.Background()))
		require.Equal(t, StateRunning, h.sup.State())
	}

	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateHalted, h.sup.State())
}

func TestRunOnce_SleepProceeds(t *testing.T) {
	h := newHarness(t, config.MapEnv{"SLEEP_ENABLE_MODE": "sleep", "WIFI_ENABLE_MODE": "on"})
	h.boot(t)
	h.module.onProcess = func(st module.Station, _ int) { st.RequestShutdown("done") }

	require.NoError(t, h.sup.RunOnce(context.Background()))

	assert.Equal(t, StateHalted, h.sup.State())
	assert.Equal(t, 1, h.module.shutdowns)
	assert.Equal(t, 1, h.wifi.stopped)
	assert.Equal(t, []string{"poweroff"}, h.power.actions)
	assert.Equal(t, []uint32{ShutdownRebootPeriod}, h.link.wrote(pirasmart.TagRebootPeriod))
	assert.Equal(t, gpio.Low, h.pins.levels[gpio.PinPiraStatus])
	assert.Equal(t, 1, h.synced)
	assert.True(t, h.journal.closed)
	assert.Equal(t, []string{
		"system=boot", "system=module_init", "system=main_loop",
		"system=shutdown", "system=halt",
	}, h.journal.entries)
	assert.Equal(t, "shutting_down", h.store.last().State)

	assert.ErrorIs(t, h.sup.RunOnce(context.Background()), ErrInvalidTransition)
}

func TestRunOnce_RebootStrategy(t *testing.T) {
	h := newHarness(t, config.MapEnv{"SHUTDOWN_STRATEGY": "reboot"})
	h.boot(t)
	h.module.onProcess = func(st module.Station, _ int) { st.RequestShutdown("done") }

	require.NoError(t, h.sup.RunOnce(context.Background()))

	assert.Equal(t, StateRebooting, h.sup.State())
	assert.Equal(t, []string{"reboot"}, h.power.actions)
	assert.Equal(t, []uint32{RebootRebootPeriod}, h.link.wrote(pirasmart.TagRebootPeriod))
}

func TestRunOnce_HoldLastsOneIteration(t *testing.T) {
	h := newHarness(t, config.MapEnv{})
	h.boot(t)
	h.module.onProcess = func(st module.Station, n int) {
		st.RequestShutdown("done")
		if n == 1 {
			st.HoldShutdown("uploading")
		}
	}

	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateRunning, h.sup.State())
	assert.Equal(t, "uploading", h.store.last().Hold)
	assert.Equal(t, 0, h.module.shutdowns)

	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateHalted, h.sup.State())
	assert.Equal(t, 1, h.module.shutdowns)
}

func TestRunOnce_DebugVeto(t *testing.T) {
	debugLow := func(h *harness) { h.pins.inputs[5] = gpio.Low }

	h := newHarness(t, config.MapEnv{"DEBUG_ENABLE_MODE": "gpio:5"})
	debugLow(h)
	h.boot(t)
	h.module.onProcess = func(st module.Station, _ int) { st.RequestShutdown("done") }
	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateRunning, h.sup.State())
	assert.Equal(t, gpio.ModeInput, h.pins.modes[5])

	h = newHarness(t, config.MapEnv{"DEBUG_ENABLE_MODE": "gpio:5", "SLEEP_ENABLE_MODE": "debug"})
	debugLow(h)
	h.boot(t)
	h.module.onProcess = func(st module.Station, _ int) { st.RequestShutdown("done") }
	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateHalted, h.sup.State())

	h = newHarness(t, config.MapEnv{"DEBUG_ENABLE_MODE": "gpio:x"})
	h.boot(t)
	assert.True(t, h.sup.IsDebugEnabled())
}

func TestRunOnce_DebugPinReadOncePerIteration(t *testing.T) {
	h := newHarness(t, config.MapEnv{"DEBUG_ENABLE_MODE": "gpio:5", "SLEEP_ENABLE_MODE": "debug"})
	h.pins.inputs[5] = gpio.Low
	h.boot(t)
	assert.Equal(t, 1, h.pins.reads[5])

	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, 2, h.pins.reads[5])
	assert.True(t, h.store.last().Debug)

	h.module.onProcess = func(st module.Station, _ int) {
		assert.True(t, st.IsDebugEnabled())
		st.RequestShutdown("done")
	}
	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateHalted, h.sup.State())
	assert.Equal(t, 3, h.pins.reads[5])
}

func TestRunOnce_FleetVeto(t *testing.T) {
	fleet := &fakeFleet{idle: false}
	h := newHarness(t, config.MapEnv{}, func(o *Options) { o.Fleet = fleet })
	h.boot(t)
	h.module.onProcess = func(st module.Station, _ int) { st.RequestShutdown("done") }

	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateRunning, h.sup.State())

	fleet.idle = true
	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateHalted, h.sup.State())
}

func TestRunOnce_FleetErrorDoesNotVeto(t *testing.T) {
	fleet := &fakeFleet{err: errors.New("connection refused")}
	h := newHarness(t, config.MapEnv{}, func(o *Options) {
		o.Fleet = fleet
		o.Power = FleetPower{Fleet: fleet}
	})
	h.boot(t)
	h.module.onProcess = func(st module.Station, _ int) { st.RequestShutdown("done") }

	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, StateHalted, h.sup.State())
	assert.Equal(t, []string{"shutdown"}, fleet.actions)
}

func TestRun_ParksAfterPowerAction(t *testing.T) {
	h := newHarness(t, config.MapEnv{})
	iterations := 0
	h.sup.sleep = func(context.Context, time.Duration) error { iterations++; return nil }
	h.sup.catalog["hook"] = func(st module.Station) (module.Module, error) {
		h.module = &hookModule{st: st, onProcess: func(st module.Station, n int) {
			if n == 3 {
				st.RequestShutdown("done")
			}
		}}
		return h.module, nil
	}

	require.NoError(t, h.sup.Run(context.Background()))
	assert.Equal(t, 2, iterations)
	assert.Equal(t, 1, h.parked)
	assert.Equal(t, StateHalted, h.sup.State())
}

func TestRun_BootDisabled(t *testing.T) {
	h := newHarness(t, config.MapEnv{"BOOT_DISABLE": "1"})

	require.NoError(t, h.sup.Run(context.Background()))
	assert.Equal(t, 1, h.parked)
	assert.Equal(t, 0, h.link.reads)
	assert.Equal(t, StateBooting, h.sup.State())
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness(t, config.MapEnv{})
	ctx, cancel := context.WithCancel(context.Background())
	h.sup.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	assert.ErrorIs(t, h.sup.Run(ctx), context.Canceled)
	assert.Equal(t, 0, h.parked)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestSnapshot_RecordsFramesOfLastRead(t *testing.T) {
	h := newHarness(t, config.MapEnv{})
	h.boot(t)
	h.link.timers.Frames = 3

	require.NoError(t, h.sup.RunOnce(context.Background()))
	assert.Equal(t, 3, h.store.last().Frames)
}
