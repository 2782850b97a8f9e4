package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// settingsSchema describes the recognized settings. Every value is a string,
// as it would be in the environment.
const settingsSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"MODULES": {"type": "string", "pattern": "^[A-Za-z0-9_.]+(,[A-Za-z0-9_.]+)*$"},
		"SHUTDOWN_VOLTAGE": {"$ref": "#/$defs/number"},
		"LOOP_DELAY": {"$ref": "#/$defs/number"},
		"WIFI_ENABLE_MODE": {"enum": ["charging", "on", "debug", "off"]},
		"DEBUG_ENABLE_MODE": {"type": "string", "pattern": "^(none|gpio:[0-9]+)$"},
		"SLEEP_ENABLE_MODE": {"enum": ["charging", "off", "sleep", "debug"]},
		"SHUTDOWN_STRATEGY": {"enum": ["shutdown", "reboot"]},
		"PIRA_POWER": {"$ref": "#/$defs/seconds"},
		"PIRA_SLEEP": {"$ref": "#/$defs/seconds"},
		"PIRA_REBOOT": {"$ref": "#/$defs/seconds"},
		"PIRA_WAKEUP": {"$ref": "#/$defs/seconds"},
		"BOOT_DISABLE": {"enum": ["0", "1"]},
		"SCHEDULE_MONTHLY": {"enum": ["0", "1"]},
		"POWER_THRESHOLD_HALF": {"$ref": "#/$defs/number"},
		"POWER_THRESHOLD_QUART": {"$ref": "#/$defs/number"},
		"LATITUDE": {"$ref": "#/$defs/number"},
		"LONGITUDE": {"$ref": "#/$defs/number"},
		"WEBSERVER_PORT": {"type": "string", "pattern": "^[0-9]{1,5}$"},
		"MQTT_BROKER": {"type": "string", "pattern": "^(tcp|ssl|ws|wss)://"}
	},
	"patternProperties": {
		"^SCHEDULE_(MONTH([1-9]|1[0-2])_)?(START|END)$": {
			"type": "string",
			"pattern": "^([0-9]{1,2}:[0-9]{2}|sunrise|sunset)$"
		},
		"^SCHEDULE_(MONTH([1-9]|1[0-2])_)?T_(ON|OFF)$": {
			"type": "string",
			"pattern": "^[0-9]+$"
		}
	},
	"$defs": {
		"number": {"type": "string", "pattern": "^-?[0-9]+(\\.[0-9]+)?$"},
		"seconds": {"type": "string", "pattern": "^[1-9][0-9]{0,9}$"}
	}
}`

// Validator checks raw settings against the settings schema. The compiled
// schema is cached after first use.
type Validator struct {
	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the settings present in env.
// Returns nil if valid, or an error describing the validation failures.
func (v *Validator) Validate(env Env) error {
	compiled, err := v.compile()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	payload := make(map[string]any)
	for _, k := range env.Keys() {
		if val, ok := env.Lookup(k); ok {
			payload[k] = val
		}
	}

	return compiled.Validate(payload)
}

func (v *Validator) compile() (*jsonschema.Schema, error) {
	v.once.Do(func() {
		var schemaMap any
		if err := json.Unmarshal([]byte(settingsSchema), &schemaMap); err != nil {
			v.err = fmt.Errorf("failed to unmarshal schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("settings.json", schemaMap); err != nil {
			v.err = fmt.Errorf("failed to add resource: %w", err)
			return
		}
		v.compiled, v.err = c.Compile("settings.json")
	})
	return v.compiled, v.err
}
