// Package debug logs the station state every loop iteration.
package debug

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/module"
	"github.com/urmzd/pira/pkg/pirasmart"
)

const Name = "debug"

type Debug struct {
	module.Nop
	st module.Station
}

// New is the module factory.
func New(st module.Station) (module.Module, error) {
	return &Debug{st: st}, nil
}

func (d *Debug) Process(_ context.Context, modules *module.Registry) error {
	ev := log.Info().Str("module", Name)

	if d.st.PiraOK() {
		timers := d.st.Timers()
		ev = ev.Int("frames", timers.Frames)
		if rtc, ok := timers.RTC(); ok {
			ev = ev.Time("rtc", rtc)
		}
		if v, ok := timers.Voltage(); ok {
			ev = ev.Float64("battery_v", v)
		}
		ev = addValue(ev, "overview_s", timers.OnRemaining)
		ev = addValue(ev, "safety_on_s", timers.OnPeriod)
		ev = addValue(ev, "safety_off_s", timers.OffPeriod)
		ev = addValue(ev, "reboot_s", timers.RebootPeriod)
		ev = addValue(ev, "wakeup_s", timers.WakeupPeriod)
		ev = addValue(ev, "status_pin", timers.StatusPin)
	} else {
		ev = ev.Bool("pira_connected", false)
	}

	ev = ev.Bool("charging", d.st.IsCharging()).Bool("debug", d.st.IsDebugEnabled())
	if modules != nil {
		ev = ev.Strs("modules", modules.Names())
	}
	ev.Msg("Station status")
	return nil
}

func addValue(ev *zerolog.Event, key string, v pirasmart.Value) *zerolog.Event {
	if !v.Valid {
		return ev
	}
	return ev.Uint32(key, v.Raw)
}
