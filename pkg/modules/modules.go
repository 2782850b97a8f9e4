// Package modules wires the built-in modules into a catalog.
package modules

import (
	"github.com/urmzd/pira/pkg/module"
	"github.com/urmzd/pira/pkg/modules/debug"
	"github.com/urmzd/pira/pkg/modules/scheduler"
	"github.com/urmzd/pira/pkg/modules/telemetry"
	"github.com/urmzd/pira/pkg/modules/webserver"
)

// Builtin returns the catalog of modules compiled into the supervisor.
func Builtin() module.Catalog {
	return module.Catalog{
		scheduler.Name: scheduler.New,
		debug.Name:     debug.New,
		webserver.Name: webserver.New,
		telemetry.Name: telemetry.New,
	}
}
