// Package module defines the contract between the supervisor and its
// plug-in modules, and the registry that isolates module failures.
package module

import (
	"context"
	"errors"
	"time"

	"github.com/urmzd/pira/pkg/config"
	"github.com/urmzd/pira/pkg/pirasmart"
)

var (
	// ErrUnknownModule indicates a configured module is not in the catalog
	ErrUnknownModule = errors.New("unknown module")

	// ErrPanic indicates a module call panicked
	ErrPanic = errors.New("module panicked")
)

// Station is what the supervisor lends to modules. It is the only way a
// module can observe or influence the station.
type Station interface {
	// Now returns the current wall clock time.
	Now() time.Time

	// PiraOK reports whether the last PiraSmart read succeeded.
	PiraOK() bool

	// Voltage returns the battery voltage, false when unknown.
	Voltage() (float64, bool)

	// RTC returns the PiraSmart clock, false when unknown.
	RTC() (time.Time, bool)

	// Timers returns the last values reported by PiraSmart.
	Timers() pirasmart.Timers

	IsCharging() bool
	IsDebugEnabled() bool

	// RequestShutdown asks for a shutdown at the end of this iteration.
	RequestShutdown(reason string)

	// HoldShutdown vetoes a shutdown for the current iteration only.
	HoldShutdown(reason string)

	// SetWakeup programs the PiraSmart wakeup timer in seconds.
	SetWakeup(seconds uint32) error

	// Config returns the supervisor configuration.
	Config() *config.Config
}

// Module is a plug-in driven by the supervisor loop. Both calls receive the
// registry so a module can look up its siblings by name.
type Module interface {
	// Process is called once per loop iteration in registry order.
	Process(ctx context.Context, modules *Registry) error

	// Shutdown is called once, in registry order, before the station powers down.
	Shutdown(ctx context.Context, modules *Registry) error
}

// Factory constructs a module bound to the station.
type Factory func(st Station) (Module, error)

// Nop can be embedded by modules that have nothing to do in one of the hooks.
type Nop struct{}

func (Nop) Process(context.Context, *Registry) error  { return nil }
func (Nop) Shutdown(context.Context, *Registry) error { return nil }
