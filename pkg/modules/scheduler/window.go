package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/config"
)

// Day is a time of day as an offset from midnight.
type Day time.Duration

func (d Day) String() string {
	m := int(time.Duration(d) / time.Minute)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// on returns d on the calendar day of ref.
func (d Day) on(ref time.Time) time.Time {
	y, m, dd := ref.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, ref.Location()).Add(time.Duration(d))
}

func dayOf(t time.Time) Day {
	h, m, s := t.Clock()
	return Day(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// Window is a daily on/off schedule.
type Window struct {
	Start Day
	End   Day
	On    time.Duration
	Off   time.Duration
}

// SafeWindow is used when the configured schedule cannot be parsed: on all
// day with the shortest sleep.
var SafeWindow = Window{
	Start: Day(1 * time.Minute),
	End:   Day(23*time.Hour + 59*time.Minute),
	On:    time.Minute,
	Off:   time.Minute,
}

// Contains reports whether t falls within [Start, End). A window whose end is
// before its start wraps over midnight. Equal bounds cover the whole day.
func (w Window) Contains(t time.Time) bool {
	d := dayOf(t)
	switch {
	case w.Start == w.End:
		return true
	case w.Start < w.End:
		return d >= w.Start && d < w.End
	default:
		return d >= w.Start || d < w.End
	}
}

// NextWakeup returns the sleep duration from now. A window that does not
// wrap midnight always sleeps for off. A wrapping window sleeps for off
// inside the window and otherwise until the next window start, but never
// less than off.
func (w Window) NextWakeup(now time.Time, off time.Duration) time.Duration {
	if w.End >= w.Start || w.Contains(now) {
		return off
	}
	start := w.Start.on(now)
	if !start.After(now) {
		start = start.AddDate(0, 0, 1)
	}
	return max(start.Sub(now), off)
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s on %s off %s", w.Start, w.End, w.On, w.Off)
}

// LoadWindow reads the schedule for the day of now. With SCHEDULE_MONTHLY=1
// the SCHEDULE_MONTH<n>_* keys of the current month are used. Malformed
// values yield SafeWindow.
func LoadWindow(v config.Values, now time.Time) Window {
	keys := struct{ start, end, on, off string }{"SCHEDULE_START", "SCHEDULE_END", "SCHEDULE_T_ON", "SCHEDULE_T_OFF"}
	defaults := struct{ start, end, on, off string }{"00:01", "23:59", "1", "1"}

	if v.String("SCHEDULE_MONTHLY", "0") == "1" {
		prefix := fmt.Sprintf("SCHEDULE_MONTH%d_", int(now.Month()))
		keys.start, keys.end, keys.on, keys.off = prefix+"START", prefix+"END", prefix+"T_ON", prefix+"T_OFF"
		defaults.start, defaults.end, defaults.on, defaults.off = "08:00", "18:00", "15", "35"
	}

	loc := location(v)
	start, err1 := parseDay(v.String(keys.start, defaults.start), loc, now)
	end, err2 := parseDay(v.String(keys.end, defaults.end), loc, now)
	on, err3 := parseMinutes(v.String(keys.on, defaults.on))
	off, err4 := parseMinutes(v.String(keys.off, defaults.off))

	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			log.Warn().Err(err).Stringer("window", SafeWindow).Msg("Ignoring malformed schedule specification, using safe values")
			return SafeWindow
		}
	}

	return Window{Start: start, End: end, On: on, Off: off}
}

type coordinates struct {
	lat, lon float64
	ok       bool
}

func location(v config.Values) coordinates {
	if !v.Has("LATITUDE") || !v.Has("LONGITUDE") {
		return coordinates{}
	}
	return coordinates{lat: v.Float("LATITUDE", 0), lon: v.Float("LONGITUDE", 0), ok: true}
}

// parseDay accepts HH:MM, "sunrise" or "sunset". The astronomical forms need
// LATITUDE and LONGITUDE.
func parseDay(raw string, loc coordinates, now time.Time) (Day, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "sunrise" || raw == "sunset" {
		if !loc.ok {
			return 0, fmt.Errorf("%s needs LATITUDE and LONGITUDE", raw)
		}
		rise, set := sunrise.SunriseSunset(loc.lat, loc.lon, now.Year(), now.Month(), now.Day())
		t := rise
		if raw == "sunset" {
			t = set
		}
		if t.IsZero() {
			return 0, fmt.Errorf("no %s at %.4f,%.4f on %s", raw, loc.lat, loc.lon, now.Format(time.DateOnly))
		}
		d := dayOf(t.In(now.Location()))
		log.Info().Str("event", raw).Stringer("at", d).Msg("Astronomical schedule bound")
		return d, nil
	}

	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, fmt.Errorf("time %q is not HH:MM", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("time %q has invalid hour", raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q has invalid minute", raw)
	}
	return Day(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

// parseMinutes parses a non-negative whole number of minutes.
func parseMinutes(raw string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("duration %q is not a whole number of minutes", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("duration %q is negative", raw)
	}
	return time.Duration(n) * time.Minute, nil
}

// Multiplier scales the sleep duration under low battery: 4 below quart,
// 2 below half, 1 otherwise. Comparisons are strict, so a voltage equal to a
// threshold gets the smaller multiplier of that tier.
func Multiplier(voltage, half, quart float64) int {
	switch {
	case voltage < quart:
		return 4
	case voltage < half:
		return 2
	default:
		return 1
	}
}
