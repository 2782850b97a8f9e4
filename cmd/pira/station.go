package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/config"
	"github.com/urmzd/pira/pkg/db"
	"github.com/urmzd/pira/pkg/fleet"
	"github.com/urmzd/pira/pkg/modules"
	"github.com/urmzd/pira/pkg/state"
	"github.com/urmzd/pira/pkg/supervisor"
)

// hardwareRetryDelay is the pause before reopening hardware after a failure.
const hardwareRetryDelay = 5 * time.Second

// station wires the supervisor process from the configuration.
type station struct {
	cfg          *config.Config
	openJournal  func(ctx context.Context, path string) (*db.Journal, error)
	openHardware func(ctx context.Context, cfg *config.Config) (*supervisor.Hardware, error)
	retryDelay   time.Duration
	park         func()
}

func newStation(cfg *config.Config) *station {
	return &station{
		cfg:          cfg,
		openJournal:  openJournal,
		openHardware: supervisor.OpenHardware,
		retryDelay:   hardwareRetryDelay,
		park:         supervisor.ParkForever,
	}
}

// openJournal opens the station database and records a new boot.
func openJournal(ctx context.Context, path string) (*db.Journal, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	journal, err := database.StartJournal(ctx)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	log.Info().Str("path", database.Path()).Msg("Database opened")
	return journal, nil
}

// startJournal returns the event log and the boot session id. The event log
// is optional: without it the session id is generated here.
func (s *station) startJournal(ctx context.Context) (*db.Journal, string) {
	journal, err := s.openJournal(ctx, s.cfg.DBPath)
	if err != nil {
		session := uuid.NewString()
		log.Error().Err(err).Str("path", s.cfg.DBPath).Str("session", session).Msg("Event log unavailable, continuing without it")
		return nil, session
	}
	return journal, journal.Boot().Session
}

// run boots the station and returns when ctx is cancelled. With BOOT_DISABLE
// set it parks before touching any hardware.
func (s *station) run(ctx context.Context) error {
	if s.cfg.BootDisable {
		log.Warn().Msg("Boot has been disabled (BOOT_DISABLE=1), not booting further")
		s.park()
		return nil
	}

	journal, session := s.startJournal(ctx)
	defer func() {
		if journal == nil {
			return
		}
		if err := journal.Close(); err != nil {
			log.Debug().Err(err).Msg("Event log already closed")
		}
	}()

	var fleetClient *fleet.Client
	var power supervisor.Power = supervisor.SystemPower{}
	if s.cfg.FleetEnabled() {
		fleetClient = fleet.NewClient(s.cfg.FleetAddress, s.cfg.FleetAPIKey)
		power = supervisor.FleetPower{Fleet: fleetClient}
	}

	for {
		hw, err := s.openHardware(ctx, s.cfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Dur("retry_in", s.retryDelay).Msg("Failed to open hardware")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.retryDelay):
			}
			continue
		}

		opts := hw.Options(s.cfg)
		opts.State = state.NewStore(s.cfg.StatePath)
		opts.Power = power
		opts.Wifi = &supervisor.ScriptWifi{Path: s.cfg.WifiScript}
		opts.Catalog = modules.Builtin()
		opts.Session = session
		if journal != nil {
			opts.Journal = journal
		}
		if fleetClient != nil {
			opts.Fleet = fleetClient
		}

		sup, err := supervisor.New(opts)
		if err != nil {
			hw.Close()
			return err
		}

		err = sup.Run(ctx)
		hw.Close()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}
