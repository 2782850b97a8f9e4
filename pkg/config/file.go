package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML document of top-level KEY: value pairs. Scalar values
// are converted to their string form and lists are joined with commas, so the
// file and the environment share one parser.
func LoadFile(path string) (MapEnv, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	env := make(MapEnv, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			env[k] = val
		case bool:
			if val {
				env[k] = "1"
			} else {
				env[k] = "0"
			}
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			env[k] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("config key %s: nested maps are not supported", k)
		default:
			env[k] = fmt.Sprint(val)
		}
	}
	return env, nil
}
