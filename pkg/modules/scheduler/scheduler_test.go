package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/pira/pkg/config"
	"github.com/urmzd/pira/pkg/module/moduletest"
	"github.com/urmzd/pira/pkg/pirasmart"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 6, 1, hour, minute, 0, 0, time.UTC)
}

func hm(hour, minute int) Day {
	return Day(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestMultiplier(t *testing.T) {
	tests := []struct {
		voltage float64
		want    int
	}{
		{3.0, 4},
		{3.2, 2}, // equal to quart
		{3.4, 2},
		{3.6, 1}, // equal to half
		{4.0, 1},
	}
	for _, tt := range tests {
		if got := Multiplier(tt.voltage, 3.6, 3.2); got != tt.want {
			t.Errorf("Multiplier(%v) expected %d, got: %d", tt.voltage, tt.want, got)
		}
	}

	if got := Multiplier(1.0, 0, 0); got != 1 {
		t.Errorf("expected unset thresholds to give 1, got: %d", got)
	}
}

func TestLoadWindow_Static(t *testing.T) {
	v := config.Values{Env: config.MapEnv{
		"SCHEDULE_START": "06:30",
		"SCHEDULE_END":   "20:00",
		"SCHEDULE_T_ON":  "10",
		"SCHEDULE_T_OFF": "50",
	}}

	w := LoadWindow(v, at(12, 0))
	assert.Equal(t, Window{Start: hm(6, 30), End: hm(20, 0), On: 10 * time.Minute, Off: 50 * time.Minute}, w)
}

func TestLoadWindow_Defaults(t *testing.T) {
	w := LoadWindow(config.Values{Env: config.MapEnv{}}, at(12, 0))
	assert.Equal(t, Window{Start: hm(0, 1), End: hm(23, 59), On: time.Minute, Off: time.Minute}, w)
}

func TestLoadWindow_Monthly(t *testing.T) {
	v := config.Values{Env: config.MapEnv{
		"SCHEDULE_MONTHLY":      "1",
		"SCHEDULE_MONTH6_START": "05:00",
		"SCHEDULE_MONTH6_T_OFF": "120",
		"SCHEDULE_MONTH1_START": "09:00",
	}}

	w := LoadWindow(v, at(12, 0))
	assert.Equal(t, hm(5, 0), w.Start)
	assert.Equal(t, hm(18, 0), w.End)
	assert.Equal(t, 15*time.Minute, w.On)
	assert.Equal(t, 120*time.Minute, w.Off)
}

func TestLoadWindow_MalformedFallsBack(t *testing.T) {
	for name, env := range map[string]config.MapEnv{
		"bad time":        {"SCHEDULE_START": "25:00"},
		"bad duration":    {"SCHEDULE_T_OFF": "ten"},
		"negative":        {"SCHEDULE_T_ON": "-5"},
		"sunrise no geo":  {"SCHEDULE_START": "sunrise"},
		"missing divider": {"SCHEDULE_END": "1800"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, SafeWindow, LoadWindow(config.Values{Env: env}, at(12, 0)))
		})
	}
}

func TestLoadWindow_Sunrise(t *testing.T) {
	v := config.Values{Env: config.MapEnv{
		"SCHEDULE_START": "sunrise",
		"SCHEDULE_END":   "sunset",
		"LATITUDE":       "46.05",
		"LONGITUDE":      "14.51",
	}}

	w := LoadWindow(v, at(12, 0))
	require.NotEqual(t, SafeWindow, w)
	// Ljubljana in June: sunrise before 05:00 UTC, sunset after 18:00 UTC
	assert.Less(t, w.Start, hm(5, 0))
	assert.Greater(t, w.End, hm(18, 0))
}

func TestWindow_NextWakeup(t *testing.T) {
	day := Window{Start: hm(8, 0), End: hm(18, 0)}
	night := Window{Start: hm(22, 0), End: hm(6, 0)}
	off := 30 * time.Minute

	tests := []struct {
		name string
		w    Window
		now  time.Time
		want time.Duration
	}{
		{"inside", day, at(12, 0), off},
		{"at start", day, at(8, 0), off},
		{"before start", day, at(7, 0), off},
		{"at end", day, at(18, 0), off},
		{"after end", day, at(20, 0), off},
		{"wrap evening", night, at(23, 0), off},
		{"wrap morning", night, at(5, 0), off},
		{"wrap outside", night, at(12, 0), 10 * time.Hour},
		{"wrap outside near start", night, at(21, 50), off},
		{"whole day", Window{Start: hm(0, 0), End: hm(0, 0)}, at(3, 0), off},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.w.NextWakeup(tt.now, off))
		})
	}
}

func TestScheduler_ProcessOnDuration(t *testing.T) {
	st := moduletest.New(config.MapEnv{"SCHEDULE_T_ON": "5"})
	m, err := New(st)
	require.NoError(t, err)

	st.Advance(4 * time.Minute)
	require.NoError(t, m.Process(context.Background(), nil))
	assert.False(t, st.ShutdownRequested())

	st.Advance(time.Minute)
	require.NoError(t, m.Process(context.Background(), nil))
	assert.True(t, st.ShutdownRequested())
}

func TestScheduler_ProcessOnTimerExpiring(t *testing.T) {
	st := moduletest.New(config.MapEnv{"SCHEDULE_T_ON": "60"})
	m, err := New(st)
	require.NoError(t, err)

	st.SetValue(pirasmart.TagOnRemaining, 30)
	require.NoError(t, m.Process(context.Background(), nil))
	assert.False(t, st.ShutdownRequested())

	st.SetValue(pirasmart.TagOnRemaining, 29)
	require.NoError(t, m.Process(context.Background(), nil))
	assert.True(t, st.ShutdownRequested())
}

func TestScheduler_ProcessPiraDisconnected(t *testing.T) {
	st := moduletest.New(config.MapEnv{"SCHEDULE_T_ON": "0"})
	st.OK = false
	m, err := New(st)
	require.NoError(t, err)

	require.NoError(t, m.Process(context.Background(), nil))
	require.NoError(t, m.Shutdown(context.Background(), nil))
	assert.False(t, st.ShutdownRequested())
	assert.Empty(t, st.Wakeups)
}

func TestScheduler_ShutdownScalesSleep(t *testing.T) {
	env := config.MapEnv{
		"SCHEDULE_START":        "00:00",
		"SCHEDULE_END":          "00:00",
		"SCHEDULE_T_OFF":        "10",
		"POWER_THRESHOLD_HALF":  "3.6",
		"POWER_THRESHOLD_QUART": "3.2",
	}

	tests := []struct {
		name string
		raw  uint32 // battery ADC counts
		want uint32
	}{
		{"full", 250, 600},     // 4.1 V
		{"half", 210, 1200},    // 3.444 V
		{"quarter", 150, 2400}, // 2.46 V
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := moduletest.New(env)
			st.SetValue(pirasmart.TagBattery, tt.raw)
			m, err := New(st)
			require.NoError(t, err)

			require.NoError(t, m.Shutdown(context.Background(), nil))
			assert.Equal(t, []uint32{tt.want}, st.Wakeups)
		})
	}
}

func TestScheduler_ShutdownScalesSleepOutsideWindow(t *testing.T) {
	env := config.MapEnv{
		"SCHEDULE_MONTHLY":      "1",
		"POWER_THRESHOLD_HALF":  "3.6",
		"POWER_THRESHOLD_QUART": "3.2",
	}

	tests := []struct {
		name string
		now  time.Time
		raw  uint32
		want uint32
	}{
		{"evening low battery", at(20, 0), 150, 4 * 35 * 60},
		{"morning half battery", at(6, 0), 210, 2 * 35 * 60},
		{"evening full battery", at(20, 0), 250, 35 * 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := moduletest.New(env)
			st.Clock = tt.now
			st.SetValue(pirasmart.TagBattery, tt.raw)
			m, err := New(st)
			require.NoError(t, err)

			require.NoError(t, m.Shutdown(context.Background(), nil))
			assert.Equal(t, []uint32{tt.want}, st.Wakeups)
		})
	}
}

func TestScheduler_ShutdownDefaultWindowBeforeMidnight(t *testing.T) {
	st := moduletest.New(config.MapEnv{"POWER_THRESHOLD_QUART": "3.2"})
	st.Clock = at(23, 59).Add(30 * time.Second)
	st.SetValue(pirasmart.TagBattery, 150)
	m, err := New(st)
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background(), nil))
	assert.Equal(t, []uint32{240}, st.Wakeups)
}

func TestScheduler_ShutdownUnknownVoltage(t *testing.T) {
	st := moduletest.New(config.MapEnv{"SCHEDULE_T_OFF": "3", "POWER_THRESHOLD_QUART": "3.2"})
	st.Clock = at(12, 0)
	m, err := New(st)
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background(), nil))
	assert.Equal(t, []uint32{180}, st.Wakeups)
}
