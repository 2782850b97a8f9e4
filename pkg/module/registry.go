package module

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Registry holds the loaded modules in load order.
type Registry struct {
	names   []string
	modules map[string]Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Load resolves and constructs each named module in order. Unknown modules
// and failing constructors are logged and skipped.
func Load(st Station, catalog Catalog, names []string) *Registry {
	r := NewRegistry()

	for _, raw := range names {
		name := Normalize(raw)
		if name == "" {
			continue
		}
		if _, dup := r.modules[name]; dup {
			log.Warn().Str("module", name).Msg("Module listed twice, skipping duplicate")
			continue
		}

		factory, err := catalog.Lookup(name)
		if err != nil {
			log.Error().Err(err).Str("module", raw).Msg("Module not found, skipping")
			continue
		}

		var m Module
		err = guard(name, "init", func() error {
			var ferr error
			m, ferr = factory(st)
			return ferr
		})
		if err == nil && m == nil {
			err = fmt.Errorf("module %s: constructor returned no module", name)
		}
		if err != nil {
			log.Error().Err(err).Str("module", name).Msg("Error while initializing module, skipping")
			continue
		}

		r.Add(name, m)
		log.Info().Str("module", name).Msg("Module loaded")
	}

	return r
}

// Add appends a module. An existing module of the same name is replaced in place.
func (r *Registry) Add(name string, m Module) {
	if _, ok := r.modules[name]; !ok {
		r.names = append(r.names, name)
	}
	r.modules[name] = m
}

// Get returns the module registered under name.
func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.modules[Normalize(name)]
	return m, ok
}

// Names returns module names in load order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of loaded modules.
func (r *Registry) Len() int {
	return len(r.names)
}

// ProcessAll runs every module's Process hook in order. A failing module is
// logged and the remaining modules still run. The returned error joins every
// module failure.
func (r *Registry) ProcessAll(ctx context.Context) error {
	return r.each("process", func(m Module) error { return m.Process(ctx, r) })
}

// ShutdownAll runs every module's Shutdown hook in order with the same
// isolation as ProcessAll.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	return r.each("shutdown", func(m Module) error { return m.Shutdown(ctx, r) })
}

func (r *Registry) each(hook string, call func(Module) error) error {
	var errs []error
	for _, name := range r.names {
		m := r.modules[name]
		if err := guard(name, hook, func() error { return call(m) }); err != nil {
			log.Error().Err(err).Str("module", name).Str("hook", hook).Msg("Module failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// guard runs fn and converts a panic into an error.
func guard(name, hook string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Debug().Str("module", name).Bytes("stack", debug.Stack()).Msg("Module panic stack")
			err = fmt.Errorf("%w: %s %s: %v", ErrPanic, name, hook, p)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("module %s %s: %w", name, hook, err)
	}
	return nil
}
