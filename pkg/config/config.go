// Package config resolves the supervisor settings from the environment and an
// optional YAML file. Malformed values never stop the station from booting:
// they are logged and replaced by their defaults.
package config

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Defaults.
const (
	DefaultShutdownVoltage = 2.6
	DefaultLoopDelay       = 60 * time.Second
	DefaultSerialPort      = "/dev/ttyAMA0"
	DefaultGPIOAddr        = "localhost:8888"
	DefaultStatePath       = "/data/state.json"
	DefaultDBPath          = "/data/pira.db"
	DefaultWifiScript      = "./scripts/start-networking.sh"
	DefaultFleetWifiScript = "./scripts/wifi-connect-start.sh"
)

// DefaultModules is the module load order used when MODULES is not set.
// Reporting modules come after sensor modules so they see the latest values.
var DefaultModules = []string{"scheduler", "debug"}

// WifiMode decides when the wifi script is started.
type WifiMode string

const (
	WifiCharging WifiMode = "charging"
	WifiOn       WifiMode = "on"
	WifiDebug    WifiMode = "debug"
	WifiOff      WifiMode = "off"
)

// SleepMode decides when a requested shutdown may go ahead.
type SleepMode string

const (
	SleepCharging SleepMode = "charging"
	SleepOff      SleepMode = "off"
	SleepSleep    SleepMode = "sleep"
	SleepDebug    SleepMode = "debug"
)

// ShutdownStrategy is the system power action run at the end of shutdown.
type ShutdownStrategy string

const (
	StrategyShutdown ShutdownStrategy = "shutdown"
	StrategyReboot   ShutdownStrategy = "reboot"
)

// DebugMode is the parsed DEBUG_ENABLE_MODE.
type DebugMode struct {
	// GPIO is set for gpio:<pin>; debug is on while the pin reads LOW.
	GPIO bool
	Pin  uint
	// Invalid marks a gpio: value with an unparsable pin. It counts as debug on.
	Invalid bool
}

func (d DebugMode) String() string {
	switch {
	case d.Invalid:
		return "gpio:invalid"
	case d.GPIO:
		return "gpio:" + strconv.FormatUint(uint64(d.Pin), 10)
	default:
		return "none"
	}
}

// Override is an optional initial PiraSmart timer value in seconds.
type Override struct {
	Seconds uint32
	Set     bool
}

// TimerOverrides are written to PiraSmart once after clock sync.
type TimerOverrides struct {
	Power  Override // p, safety on period
	Sleep  Override // s, safety off period
	Reboot Override // r, reboot period
	Wakeup Override // w, wakeup period
}

// Config holds the supervisor settings.
type Config struct {
	Values Values

	Modules          []string
	ShutdownVoltage  float64
	LoopDelay        time.Duration
	WifiMode         WifiMode
	WifiScript       string
	DebugMode        DebugMode
	SleepMode        SleepMode
	ShutdownStrategy ShutdownStrategy
	Timers           TimerOverrides
	BootDisable      bool

	SerialPort string
	GPIOAddr   string
	StatePath  string
	DBPath     string

	FleetAddress string
	FleetAPIKey  string
}

// FleetEnabled reports whether a fleet supervisor is configured.
func (c *Config) FleetEnabled() bool {
	return c.FleetAddress != ""
}

// Load resolves the configuration from env. Schema violations are logged as
// warnings and the affected settings fall back to their defaults.
func Load(env Env) *Config {
	if err := NewValidator().Validate(env); err != nil {
		log.Warn().Err(err).Msg("Configuration does not match schema, malformed values use defaults")
	}

	v := Values{Env: env}
	cfg := &Config{
		Values:           v,
		Modules:          parseModules(v.String("MODULES", "")),
		ShutdownVoltage:  v.Float("SHUTDOWN_VOLTAGE", DefaultShutdownVoltage),
		LoopDelay:        v.Seconds("LOOP_DELAY", DefaultLoopDelay),
		WifiMode:         WifiMode(v.Enum("WIFI_ENABLE_MODE", string(WifiCharging), "charging", "on", "debug", "off")),
		DebugMode:        parseDebugMode(v.String("DEBUG_ENABLE_MODE", "none")),
		SleepMode:        SleepMode(v.Enum("SLEEP_ENABLE_MODE", string(SleepSleep), "charging", "off", "sleep", "debug")),
		ShutdownStrategy: ShutdownStrategy(v.Enum("SHUTDOWN_STRATEGY", string(StrategyShutdown), "shutdown", "reboot")),
		Timers: TimerOverrides{
			Power:  v.Override("PIRA_POWER"),
			Sleep:  v.Override("PIRA_SLEEP"),
			Reboot: v.Override("PIRA_REBOOT"),
			Wakeup: v.Override("PIRA_WAKEUP"),
		},
		BootDisable:  v.String("BOOT_DISABLE", "0") == "1",
		SerialPort:   v.String("PIRA_SERIAL_PORT", DefaultSerialPort),
		GPIOAddr:     v.String("PIGPIO_ADDR", DefaultGPIOAddr),
		StatePath:    v.String("PIRA_STATE_PATH", DefaultStatePath),
		DBPath:       v.String("PIRA_DB_PATH", DefaultDBPath),
		FleetAddress: v.First("BALENA_SUPERVISOR_ADDRESS", "RESIN_SUPERVISOR_ADDRESS"),
		FleetAPIKey:  v.First("BALENA_SUPERVISOR_API_KEY", "RESIN_SUPERVISOR_API_KEY"),
	}

	defaultScript := DefaultWifiScript
	if cfg.FleetEnabled() {
		defaultScript = DefaultFleetWifiScript
	}
	cfg.WifiScript = v.String("WIFI_SCRIPT", defaultScript)

	if cfg.LoopDelay <= 0 {
		log.Warn().Dur("loop_delay", cfg.LoopDelay).Msg("Loop delay must be positive, using default")
		cfg.LoopDelay = DefaultLoopDelay
	}

	return cfg
}

// parseModules splits a comma separated module list. Empty means defaults.
func parseModules(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]string(nil), DefaultModules...)
	}

	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func parseDebugMode(raw string) DebugMode {
	raw = strings.TrimSpace(raw)
	pin, ok := strings.CutPrefix(raw, "gpio:")
	if !ok {
		if raw != "none" && raw != "" {
			log.Warn().Str("value", raw).Msg("Unknown DEBUG_ENABLE_MODE, debug disabled")
		}
		return DebugMode{}
	}

	n, err := strconv.ParseUint(pin, 10, 8)
	if err != nil {
		log.Warn().Str("value", raw).Msg("Invalid GPIO pin specified for debug")
		return DebugMode{GPIO: true, Invalid: true}
	}
	return DebugMode{GPIO: true, Pin: uint(n)}
}

// Values gives typed access to raw settings, logging and defaulting
// malformed values.
type Values struct {
	Env Env
}

// String returns the trimmed value of key or def when unset or empty.
func (v Values) String(key, def string) string {
	if v.Env == nil {
		return def
	}
	raw, ok := v.Env.Lookup(key)
	if !ok {
		return def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	return raw
}

// Has reports whether key is set to a non-empty value.
func (v Values) Has(key string) bool {
	return v.String(key, "") != ""
}

// First returns the first non-empty value among keys.
func (v Values) First(keys ...string) string {
	for _, k := range keys {
		if s := v.String(k, ""); s != "" {
			return s
		}
	}
	return ""
}

// Float parses a float setting.
func (v Values) Float(key string, def float64) float64 {
	raw := v.String(key, "")
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		log.Warn().Str("key", key).Str("value", raw).Float64("default", def).Msg("Malformed number, using default")
		return def
	}
	return f
}

// Int parses an integer setting.
func (v Values) Int(key string, def int) int {
	raw := v.String(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Int("default", def).Msg("Malformed integer, using default")
		return def
	}
	return n
}

// Seconds parses a duration given in (possibly fractional) seconds.
func (v Values) Seconds(key string, def time.Duration) time.Duration {
	f := v.Float(key, def.Seconds())
	return time.Duration(f * float64(time.Second))
}

// Enum returns the value if it is one of allowed, otherwise def.
func (v Values) Enum(key, def string, allowed ...string) string {
	raw := v.String(key, def)
	for _, a := range allowed {
		if raw == a {
			return raw
		}
	}
	log.Warn().Str("key", key).Str("value", raw).Str("default", def).Msg("Unknown option, using default")
	return def
}

// Override parses an optional timer value in the open range (0, 2^32).
func (v Values) Override(key string) Override {
	raw := v.String(key, "")
	if raw == "" {
		return Override{}
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 || n >= 1<<32 {
		log.Warn().Str("key", key).Str("value", raw).Msg("Timer override must be in (0, 2^32), ignoring")
		return Override{}
	}
	return Override{Seconds: uint32(n), Set: true}
}
