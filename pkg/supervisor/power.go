package supervisor

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// Reboot periods written to PiraSmart right before the power action. They
// power the board back on should the OS action fail.
const (
	ShutdownRebootPeriod = 30
	RebootRebootPeriod   = 120
)

// Power runs the system power action.
type Power interface {
	PowerOff(ctx context.Context) error
	Reboot(ctx context.Context) error
}

// SystemPower uses /sbin/shutdown. The command is started and not waited
// for, since the process is expected to be killed by the shutdown.
type SystemPower struct {
	Command string
}

func (p SystemPower) PowerOff(context.Context) error {
	return p.run("--poweroff", "now")
}

func (p SystemPower) Reboot(context.Context) error {
	return p.run("--reboot", "now")
}

func (p SystemPower) run(args ...string) error {
	name := p.Command
	if name == "" {
		name = "/sbin/shutdown"
	}
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Error().Err(err).Str("command", name).Msg("Power command failed")
		}
	}()
	return nil
}

// FleetController is the part of the fleet client used for power actions and
// the idle check.
type FleetController interface {
	Idle(ctx context.Context) (bool, error)
	Shutdown(ctx context.Context) error
	Reboot(ctx context.Context) error
}

// FleetPower asks the fleet supervisor to power the device down.
type FleetPower struct {
	Fleet FleetController
}

func (p FleetPower) PowerOff(ctx context.Context) error {
	return p.Fleet.Shutdown(ctx)
}

func (p FleetPower) Reboot(ctx context.Context) error {
	return p.Fleet.Reboot(ctx)
}
