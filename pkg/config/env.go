package config

import (
	"os"
	"sort"
	"strings"
)

// Env is a source of environment-style key/value settings.
type Env interface {
	Lookup(key string) (string, bool)
	Keys() []string
}

// OSEnv reads the process environment.
type OSEnv struct{}

func (OSEnv) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

func (OSEnv) Keys() []string {
	env := os.Environ()
	keys := make([]string, 0, len(env))
	for _, kv := range env {
		if k, _, ok := strings.Cut(kv, "="); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// MapEnv is an in-memory Env.
type MapEnv map[string]string

func (m MapEnv) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapEnv) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Layered looks keys up in order; earlier layers win.
type Layered []Env

func (l Layered) Lookup(key string) (string, bool) {
	for _, env := range l {
		if env == nil {
			continue
		}
		if v, ok := env.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

func (l Layered) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, env := range l {
		if env == nil {
			continue
		}
		for _, k := range env.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
